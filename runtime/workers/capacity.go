package workers

import (
	"chat-sync/observability"
	"context"
	"log/slog"
	"time"
)

const lowCapacityRatio = 0.8

// Probe reads the fill level of one bounded queue.
type Probe struct {
	Name    string
	Backlog func() (length, capacity int)
}

// CapacityWorker periodically samples queue backlogs into a gauge.
// Reading a backlog never blocks the goroutine that owns the queue.
type CapacityWorker struct {
	log      *slog.Logger
	metrics  *observability.Metrics
	probes   []Probe
	interval time.Duration
}

func NewCapacityWorker(log *slog.Logger, metrics *observability.Metrics, interval time.Duration, probes ...Probe) *CapacityWorker {
	return &CapacityWorker{log: log, metrics: metrics, probes: probes, interval: interval}
}

func (w *CapacityWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping capacity sampling")
			return nil
		case <-ticker.C:
			w.Sample()
		}
	}
}

// Sample records every probe once and warns about queues close to full.
func (w *CapacityWorker) Sample() {
	for _, p := range w.probes {
		length, capacity := p.Backlog()
		w.metrics.QueueDepth(p.Name, length)
		if capacity > 0 && float64(length) >= lowCapacityRatio*float64(capacity) {
			w.log.Warn("Queue close to full", "queue", p.Name, "length", length, "capacity", capacity)
		}
	}
}
