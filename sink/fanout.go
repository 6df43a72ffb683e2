// Package sink republishes manager snapshots to the presentation layer.
package sink

import (
	"chat-sync/contract"
	"chat-sync/domain/event"
	"context"
	"log/slog"
)

// Fanout broadcasts snapshots to every registered sink.
//
// Delivery is best-effort and synchronous: sinks run on the engine loop,
// in registration order, and a failing sink never stops the others.
type Fanout struct {
	log   *slog.Logger
	sinks []contract.EventSink
}

func NewFanout(log *slog.Logger, sinks ...contract.EventSink) *Fanout {
	return &Fanout{log: log, sinks: sinks}
}

func (f *Fanout) Add(sinks ...contract.EventSink) *Fanout {
	f.sinks = append(f.sinks, sinks...)
	return f
}

// Publish One sink for each event
func (f *Fanout) Publish(e event.DomainEvent) {
	for _, s := range f.sinks {
		if err := s.Consume(context.Background(), e); err != nil {
			f.log.Warn("Sink failed to consume snapshot", "topic", e.Topic(), "error", err)
		}
	}
}
