// Package projection builds local timelines from observed messages.
// Handles ordering, grouping, and optional echo reconciliation.
// Does not emit events on the transport or interact with UI directly.
package projection

import (
	"chat-sync/domain"
	"chat-sync/domain/event"
	"log/slog"
	"time"

	"github.com/patrickmn/go-cache"
)

type Publisher interface {
	Publish(e event.DomainEvent)
}

// Timeline holds the ordered message log of every channel.
// Accepted messages are never removed.
type Timeline struct {
	log      *slog.Logger
	pub      Publisher
	channels map[string][]domain.Message
	pending  *cache.Cache
}

type Option func(*Timeline)

// WithEchoReconciliation drops a relayed message whose id matches a
// local send still pending within ttl. Without it the relayed copy is
// appended as a second entry.
func WithEchoReconciliation(ttl time.Duration) Option {
	return func(t *Timeline) {
		t.pending = cache.New(ttl, 2*ttl)
	}
}

func NewTimeline(log *slog.Logger, pub Publisher, opts ...Option) *Timeline {
	t := &Timeline{
		log:      log,
		pub:      pub,
		channels: make(map[string][]domain.Message),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Append adds the message at the end of its channel log.
func (t *Timeline) Append(message domain.Message) {
	t.channels[message.ChannelID] = append(t.channels[message.ChannelID], message)
	t.publish(message.ChannelID)
}

// AppendLocal is the optimistic insert done when the local user sends.
func (t *Timeline) AppendLocal(message domain.Message) {
	if t.pending != nil {
		t.pending.SetDefault(message.ID, message.ChannelID)
	}
	t.Append(message)
}

// AppendRemote appends a relayed message.
func (t *Timeline) AppendRemote(message domain.Message) {
	if t.pending != nil {
		if channelID, ok := t.pending.Get(message.ID); ok && channelID == message.ChannelID {
			t.pending.Delete(message.ID)
			t.log.Debug("Echo of a local message reconciled", "id", message.ID, "channel", message.ChannelID)
			return
		}
	}
	t.Append(message)
}

// Seed appends an initial history batch in one go.
func (t *Timeline) Seed(channelID string, messages []domain.Message) {
	if len(messages) == 0 {
		return
	}
	for _, m := range messages {
		m.ChannelID = channelID
		t.channels[channelID] = append(t.channels[channelID], m)
	}
	t.publish(channelID)
}

// Messages returns a copy of the channel log in arrival order.
func (t *Timeline) Messages(channelID string) []domain.Message {
	return append([]domain.Message(nil), t.channels[channelID]...)
}

func (t *Timeline) Len(channelID string) int {
	return len(t.channels[channelID])
}

// Groups is GroupForDisplay over the channel log.
func (t *Timeline) Groups(channelID string) []Group {
	var groups []Group
	for g := range GroupForDisplay(t.Messages(channelID)) {
		groups = append(groups, g)
	}
	return groups
}

func (t *Timeline) publish(channelID string) {
	if t.pub == nil {
		return
	}
	t.pub.Publish(event.TimelineChanged{
		ChannelID: channelID,
		Messages:  t.Messages(channelID),
	})
}
