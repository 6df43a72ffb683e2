// Package runtime drives the engine loop and routes transport events to
// the managers. It orchestrates the system without containing business
// logic or domain rules.
package runtime

import (
	"chat-sync/errors"
	"chat-sync/observability"
	"chat-sync/runtime/scheduler"
	"context"
	"log/slog"
	"sync"
	"time"
)

const DefaultQueueSize = 1024

// Engine is the single logical thread of the client. Queued tasks and
// due scheduled tasks run one at a time, each to completion.
type Engine struct {
	log     *slog.Logger
	sched   *scheduler.Scheduler
	metrics *observability.Metrics
	tasks   chan func()
	done    chan struct{}
	once    sync.Once
}

func NewEngine(log *slog.Logger, sched *scheduler.Scheduler, queueSize int, metrics *observability.Metrics) *Engine {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Engine{
		log:     log,
		sched:   sched,
		metrics: metrics,
		tasks:   make(chan func(), queueSize),
		done:    make(chan struct{}),
	}
}

func (e *Engine) Scheduler() *scheduler.Scheduler {
	return e.sched
}

// Do queues fn. Tasks queued after the engine stopped are discarded.
func (e *Engine) Do(fn func()) {
	select {
	case <-e.done:
		e.log.Debug("Task discarded, engine stopped")
	case e.tasks <- fn:
	}
}

// Call queues fn and waits until it has run.
func (e *Engine) Call(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	task := func() {
		defer close(finished)
		fn()
	}
	select {
	case <-e.done:
		return errors.ErrEngineStopped
	case <-ctx.Done():
		return ctx.Err()
	case e.tasks <- task:
	}
	select {
	case <-finished:
		return nil
	case <-e.done:
		return errors.ErrEngineStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run consumes tasks and fires scheduled ones until ctx is done.
func (e *Engine) Run(ctx context.Context) error {
	for {
		e.fireDue()

		var timer *time.Timer
		var wake <-chan time.Time
		if next, ok := e.sched.Next(); ok {
			timer = time.NewTimer(next.Sub(e.sched.Now()))
			wake = timer.C
		}

		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			e.once.Do(func() { close(e.done) })
			e.log.Info("Engine stopped", "pending_tasks", len(e.tasks), "scheduled", e.sched.Pending())
			return nil
		case fn := <-e.tasks:
			fn()
			e.metrics.TaskRun()
		case <-wake:
		}
		if timer != nil {
			timer.Stop()
		}
	}
}

func (e *Engine) fireDue() {
	for range e.sched.Advance(e.sched.Now()) {
		e.metrics.TaskRun()
	}
}

// Backlog reports queued tasks and the queue capacity.
func (e *Engine) Backlog() (int, int) {
	return len(e.tasks), cap(e.tasks)
}
