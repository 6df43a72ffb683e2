// Package typing tracks who is currently typing in each channel.
// Signals expire on their own after a debounce window unless refreshed.
package typing

import (
	"chat-sync/domain"
	"chat-sync/domain/event"
	"chat-sync/runtime/scheduler"
	"log/slog"
	"strings"
	"time"

	"github.com/samber/lo"
)

const DefaultDebounce = 3000 * time.Millisecond

type Scheduler interface {
	After(d time.Duration, fn func()) scheduler.TaskID
	Cancel(id scheduler.TaskID) bool
	Now() time.Time
}

type Publisher interface {
	Publish(e event.DomainEvent)
}

type channelState struct {
	signals []domain.TypingSignal
	expiry  map[string]scheduler.TaskID
}

type Tracker struct {
	log         *slog.Logger
	sched       Scheduler
	pub         Publisher
	debounce    time.Duration
	localUserID string
	channels    map[string]*channelState
}

func NewTracker(log *slog.Logger, sched Scheduler, pub Publisher, debounce time.Duration) *Tracker {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Tracker{
		log:      log,
		sched:    sched,
		pub:      pub,
		debounce: debounce,
		channels: make(map[string]*channelState),
	}
}

// SetLocalUser sets the id whose own typing echoes are ignored.
func (t *Tracker) SetLocalUser(userID string) {
	t.localUserID = userID
}

// OnTypingStart inserts or refreshes a signal and re-arms its expiry.
// A refreshed user moves to the end of the arrival order.
func (t *Tracker) OnTypingStart(userID, username, channelID string) {
	if userID == t.localUserID {
		return
	}
	state := t.channel(channelID)
	if id, ok := state.expiry[userID]; ok {
		t.sched.Cancel(id)
	}
	state.signals = lo.Reject(state.signals, func(s domain.TypingSignal, _ int) bool {
		return s.UserID == userID
	})
	state.signals = append(state.signals, domain.TypingSignal{
		UserID:    userID,
		Username:  username,
		ChannelID: channelID,
		Deadline:  t.sched.Now().Add(t.debounce),
	})
	state.expiry[userID] = t.sched.After(t.debounce, func() {
		t.log.Debug("Typing signal expired", "user", userID, "channel", channelID)
		t.remove(userID, channelID)
	})
	t.publish(channelID)
}

func (t *Tracker) OnTypingStop(userID, channelID string) {
	state, ok := t.channels[channelID]
	if !ok {
		return
	}
	if id, ok := state.expiry[userID]; ok {
		t.sched.Cancel(id)
	}
	t.remove(userID, channelID)
}

func (t *Tracker) remove(userID, channelID string) {
	state, ok := t.channels[channelID]
	if !ok {
		return
	}
	delete(state.expiry, userID)
	before := len(state.signals)
	state.signals = lo.Reject(state.signals, func(s domain.TypingSignal, _ int) bool {
		return s.UserID == userID
	})
	if len(state.signals) == before {
		return
	}
	if len(state.signals) == 0 {
		delete(t.channels, channelID)
	}
	t.publish(channelID)
}

// Reset drops every signal and cancels all pending expiries.
func (t *Tracker) Reset() {
	for channelID, state := range t.channels {
		for _, id := range state.expiry {
			t.sched.Cancel(id)
		}
		delete(t.channels, channelID)
		t.publish(channelID)
	}
}

// Active returns the channel's signals in arrival order.
func (t *Tracker) Active(channelID string) []domain.TypingSignal {
	state, ok := t.channels[channelID]
	if !ok {
		return nil
	}
	return append([]domain.TypingSignal(nil), state.signals...)
}

func (t *Tracker) Text(channelID string) string {
	return Render(t.Active(channelID))
}

// Render builds the indicator line shown under a timeline.
func Render(signals []domain.TypingSignal) string {
	switch len(signals) {
	case 0:
		return ""
	case 1:
		return signals[0].Username + " is typing…"
	}
	names := lo.Map(signals, func(s domain.TypingSignal, _ int) string { return s.Username })
	return strings.Join(names, ", ") + " are typing…"
}

func (t *Tracker) channel(channelID string) *channelState {
	state, ok := t.channels[channelID]
	if !ok {
		state = &channelState{expiry: make(map[string]scheduler.TaskID)}
		t.channels[channelID] = state
	}
	return state
}

func (t *Tracker) publish(channelID string) {
	if t.pub == nil {
		return
	}
	signals := t.Active(channelID)
	t.pub.Publish(event.TypingChanged{
		ChannelID: channelID,
		Signals:   signals,
		Text:      Render(signals),
	})
}
