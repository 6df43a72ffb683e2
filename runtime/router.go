package runtime

import (
	"chat-sync/bus"
	"chat-sync/domain"
	"chat-sync/domain/event"
	"chat-sync/observability"
	"encoding/json"
	"log/slog"
)

type Subscriber interface {
	Subscribe(name event.Name, handler bus.Handler) bus.Subscription
	Unsubscribe(sub bus.Subscription)
}

type Publisher interface {
	Publish(e event.DomainEvent)
}

type Roster interface {
	ReplaceRoster(entries []domain.PresenceEntry)
	Upsert(entry domain.PresenceEntry)
	Remove(userID string) bool
}

type Timeline interface {
	AppendRemote(message domain.Message)
}

type Typing interface {
	OnTypingStart(userID, username, channelID string)
	OnTypingStop(userID, channelID string)
}

type Voice interface {
	ChannelID() string
	OnParticipantJoined(p domain.VoiceParticipant)
	OnParticipantLeft(userID string)
	OnMuted(userID string, muted bool)
	OnSpeaking(userID string, speaking bool)
}

// Router decodes every inbound event and hands it to exactly one manager.
type Router struct {
	log      *slog.Logger
	metrics  *observability.Metrics
	pub      Publisher
	roster   Roster
	timeline Timeline
	typing   Typing
	voice    Voice
	subs     []bus.Subscription
}

func NewRouter(
	log *slog.Logger,
	metrics *observability.Metrics,
	pub Publisher,
	roster Roster,
	timeline Timeline,
	typing Typing,
	voice Voice,
) *Router {
	return &Router{
		log:      log,
		metrics:  metrics,
		pub:      pub,
		roster:   roster,
		timeline: timeline,
		typing:   typing,
		voice:    voice,
	}
}

// Bind subscribes the router to every inbound event and to the
// connection lifecycle.
func (r *Router) Bind(s Subscriber) {
	for _, name := range event.InboundNames {
		r.subs = append(r.subs, s.Subscribe(name, r.handler(name)))
	}
	r.subs = append(r.subs,
		s.Subscribe(event.Connect, func(json.RawMessage) { r.connection(true) }),
		s.Subscribe(event.Disconnect, func(json.RawMessage) { r.connection(false) }),
	)
}

func (r *Router) Unbind(s Subscriber) {
	for _, sub := range r.subs {
		s.Unsubscribe(sub)
	}
	r.subs = nil
}

func (r *Router) handler(name event.Name) bus.Handler {
	return func(payload json.RawMessage) {
		in, err := event.Decode(name, payload)
		if err != nil {
			r.log.Warn("Inbound event rejected", "event", name, "error", err)
			r.metrics.Rejected(string(name))
			return
		}
		r.metrics.Received(string(name))
		r.Route(in)
	}
}

// Route applies one decoded event to the manager that owns its state.
func (r *Router) Route(in event.Inbound) {
	switch e := in.(type) {
	case event.PeerJoined:
		r.roster.Upsert(joinedPresence(e.User))
	case event.PeerLeft:
		r.roster.Remove(e.User.ID)
	case event.RosterSnapshot:
		r.roster.ReplaceRoster(e.Entries)
	case event.MessageReceived:
		r.timeline.AppendRemote(e.Message)
	case event.TypingStarted:
		r.typing.OnTypingStart(e.UserID, e.Username, e.ChannelID)
	case event.TypingStopped:
		r.typing.OnTypingStop(e.UserID, e.ChannelID)
	case event.VoiceJoined:
		if e.ChannelID != "" && e.ChannelID != r.voice.ChannelID() {
			r.log.Debug("Voice join for another channel ignored", "channel", e.ChannelID)
			return
		}
		r.voice.OnParticipantJoined(e.VoiceParticipant)
	case event.VoiceLeft:
		r.voice.OnParticipantLeft(e.UserID)
	case event.VoiceMuted:
		r.voice.OnMuted(e.UserID, e.IsMuted)
	case event.VoiceSpeaking:
		r.voice.OnSpeaking(e.UserID, e.IsSpeaking)
	default:
		r.log.Debug("No route for event", "event", in.EventName())
	}
}

// joinedPresence keeps the announced status; a peer that just joined is
// never listed as offline.
func joinedPresence(user domain.User) domain.PresenceEntry {
	entry := user.Presence()
	if entry.Status == domain.StatusOffline {
		entry.Status = domain.StatusOnline
	}
	return entry
}

func (r *Router) connection(connected bool) {
	if r.pub == nil {
		return
	}
	r.pub.Publish(event.ConnectionChanged{Connected: connected})
}
