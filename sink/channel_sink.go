package sink

import (
	"chat-sync/domain/event"
	"context"
	"log/slog"
)

// ChannelSink hands snapshots over to another goroutine.
// When the buffer is full the snapshot is dropped: the next one
// supersedes it anyway.
type ChannelSink struct {
	log *slog.Logger
	out chan event.DomainEvent
}

func NewChannelSink(log *slog.Logger, size int) *ChannelSink {
	return &ChannelSink{log: log, out: make(chan event.DomainEvent, size)}
}

func (c *ChannelSink) Events() <-chan event.DomainEvent { return c.out }

// Backlog reports snapshots not yet read and the buffer size.
func (c *ChannelSink) Backlog() (int, int) { return len(c.out), cap(c.out) }

func (c *ChannelSink) Consume(_ context.Context, e event.DomainEvent) error {
	select {
	case c.out <- e:
	default:
		c.log.Debug("Snapshot lost, presentation is lagging", "topic", e.Topic())
	}
	return nil
}
