// Package voice coordinates the local voice session: its connection
// state machine, participant set and local mute/deafen flags.
package voice

import (
	"chat-sync/domain"
	"chat-sync/domain/event"
	"log/slog"

	"github.com/samber/lo"
)

type State string

const (
	Idle       State = "idle"
	Connecting State = "connecting"
	Connected  State = "connected"
)

type Flags struct {
	IsMuted    bool
	IsDeafened bool
}

type Publisher interface {
	Publish(e event.DomainEvent)
}

type Coordinator struct {
	log          *slog.Logger
	pub          Publisher
	connector    Connector
	local        domain.User
	state        State
	channelID    string
	flags        Flags
	participants []domain.VoiceParticipant
	cancel       func()
	generation   uint64
}

func NewCoordinator(log *slog.Logger, pub Publisher, connector Connector) *Coordinator {
	return &Coordinator{
		log:       log,
		pub:       pub,
		connector: connector,
		state:     Idle,
	}
}

func (c *Coordinator) SetLocalUser(user domain.User) {
	c.local = user
}

// Join leaves any current membership then starts connecting to channelID.
func (c *Coordinator) Join(channelID string) {
	if c.state != Idle {
		c.reset()
	}
	c.generation++
	generation := c.generation
	c.state = Connecting
	c.channelID = channelID
	c.publish()
	c.log.Info("Joining voice channel", "channel", channelID)
	c.cancel = c.connector.Connect(channelID, func(participants []domain.VoiceParticipant) {
		if generation != c.generation {
			return
		}
		c.Confirm(participants)
	})
}

// Confirm finishes a pending join. The local participant is always part
// of the resulting set.
func (c *Coordinator) Confirm(participants []domain.VoiceParticipant) {
	if c.state != Connecting {
		return
	}
	c.cancel = nil
	c.state = Connected
	c.participants = c.participants[:0]
	for _, p := range participants {
		if p.UserID == c.local.ID {
			continue
		}
		c.upsert(p)
	}
	if c.local.ID != "" {
		c.participants = append([]domain.VoiceParticipant{c.localParticipant()}, c.participants...)
	}
	c.log.Info("Voice connected", "channel", c.channelID, "participants", len(c.participants))
	c.publish()
}

func (c *Coordinator) Leave() {
	if c.state == Idle {
		return
	}
	c.log.Info("Leaving voice channel", "channel", c.channelID)
	c.reset()
	c.publish()
}

func (c *Coordinator) reset() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.generation++
	c.state = Idle
	c.channelID = ""
	c.participants = nil
}

func (c *Coordinator) OnParticipantJoined(p domain.VoiceParticipant) {
	if !c.connected("voice-user-joined") || p.UserID == c.local.ID {
		return
	}
	c.upsert(p)
	c.publish()
}

func (c *Coordinator) OnParticipantLeft(userID string) {
	if !c.connected("voice-user-left") {
		return
	}
	before := len(c.participants)
	c.participants = lo.Reject(c.participants, func(p domain.VoiceParticipant, _ int) bool {
		return p.UserID == userID
	})
	if len(c.participants) != before {
		c.publish()
	}
}

func (c *Coordinator) OnMuted(userID string, muted bool) {
	if !c.connected("voice-user-muted") {
		return
	}
	if c.patch(userID, func(p *domain.VoiceParticipant) { p.IsMuted = muted }) {
		c.publish()
	}
}

func (c *Coordinator) OnSpeaking(userID string, speaking bool) {
	if !c.connected("voice-user-speaking") {
		return
	}
	if c.patch(userID, func(p *domain.VoiceParticipant) { p.IsSpeaking = speaking }) {
		c.publish()
	}
}

// ToggleMute flips the local mute flag and returns the new flags.
func (c *Coordinator) ToggleMute() Flags {
	return c.SetMuteStatus(!c.flags.IsMuted, c.flags.IsDeafened)
}

// ToggleDeafen flips the deafen flag. Turning it on also mutes; turning
// it off leaves mute as it is.
func (c *Coordinator) ToggleDeafen() Flags {
	deafened := !c.flags.IsDeafened
	muted := c.flags.IsMuted
	if deafened {
		muted = true
	}
	return c.SetMuteStatus(muted, deafened)
}

func (c *Coordinator) SetMuteStatus(muted, deafened bool) Flags {
	c.flags = Flags{IsMuted: muted, IsDeafened: deafened}
	c.patch(c.local.ID, func(p *domain.VoiceParticipant) {
		p.IsMuted = muted
		p.IsDeafened = deafened
	})
	c.publish()
	return c.flags
}

func (c *Coordinator) State() State { return c.state }

func (c *Coordinator) ChannelID() string { return c.channelID }

func (c *Coordinator) Flags() Flags { return c.flags }

// InSession reports whether a join is pending or established.
func (c *Coordinator) InSession() bool { return c.state != Idle }

func (c *Coordinator) Participants() []domain.VoiceParticipant {
	return append([]domain.VoiceParticipant(nil), c.participants...)
}

func (c *Coordinator) connected(name string) bool {
	if c.state == Connected {
		return true
	}
	c.log.Debug("Voice event ignored", "event", name, "state", c.state)
	return false
}

func (c *Coordinator) upsert(p domain.VoiceParticipant) {
	for i := range c.participants {
		if c.participants[i].UserID == p.UserID {
			c.participants[i] = p
			return
		}
	}
	c.participants = append(c.participants, p)
}

func (c *Coordinator) patch(userID string, fn func(*domain.VoiceParticipant)) bool {
	if userID == "" {
		return false
	}
	for i := range c.participants {
		if c.participants[i].UserID == userID {
			fn(&c.participants[i])
			return true
		}
	}
	return false
}

func (c *Coordinator) localParticipant() domain.VoiceParticipant {
	return domain.VoiceParticipant{
		UserID:     c.local.ID,
		Username:   c.local.Username,
		IsMuted:    c.flags.IsMuted,
		IsDeafened: c.flags.IsDeafened,
	}
}

func (c *Coordinator) publish() {
	if c.pub == nil {
		return
	}
	c.pub.Publish(event.VoiceChanged{
		State:        string(c.state),
		ChannelID:    c.channelID,
		Participants: c.Participants(),
		IsMuted:      c.flags.IsMuted,
		IsDeafened:   c.flags.IsDeafened,
	})
}
