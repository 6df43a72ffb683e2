// Package scheduler is the single scheduled-task facility of the engine.
// Every delayed action (typing expiry, simulated voice handshake) goes
// through one deadline list so it can be canceled and driven by a virtual
// clock in tests.
//
// A Scheduler is not safe for concurrent use: it is owned by the engine
// loop, which calls Advance when the next deadline is reached.
package scheduler

import (
	"container/heap"
	"sync"
	"time"
)

type TaskID uint64

// Clock returns the current time.
type Clock func() time.Time

type task struct {
	id       TaskID
	deadline time.Time
	fn       func()
	index    int
}

type Scheduler struct {
	now   Clock
	seq   TaskID
	queue taskQueue
	tasks map[TaskID]*task
}

func New(clock Clock) *Scheduler {
	if clock == nil {
		clock = time.Now
	}
	return &Scheduler{now: clock, tasks: make(map[TaskID]*task)}
}

func (s *Scheduler) Now() time.Time { return s.now() }

// After schedules fn to run once d has elapsed.
func (s *Scheduler) After(d time.Duration, fn func()) TaskID {
	s.seq++
	t := &task{id: s.seq, deadline: s.now().Add(d), fn: fn}
	heap.Push(&s.queue, t)
	s.tasks[t.id] = t
	return t.id
}

// Cancel removes a pending task. It reports false when the task
// already ran or was canceled.
func (s *Scheduler) Cancel(id TaskID) bool {
	t, ok := s.tasks[id]
	if !ok {
		return false
	}
	heap.Remove(&s.queue, t.index)
	delete(s.tasks, id)
	return true
}

// Next returns the earliest pending deadline.
func (s *Scheduler) Next() (time.Time, bool) {
	if len(s.queue) == 0 {
		return time.Time{}, false
	}
	return s.queue[0].deadline, true
}

func (s *Scheduler) Pending() int { return len(s.queue) }

// Advance runs, in deadline order, every task due at now.
// Tasks scheduled by a running task are eligible in the same call.
func (s *Scheduler) Advance(now time.Time) int {
	ran := 0
	for len(s.queue) > 0 && !s.queue[0].deadline.After(now) {
		t := heap.Pop(&s.queue).(*task)
		delete(s.tasks, t.id)
		t.fn()
		ran++
	}
	return ran
}

type taskQueue []*task

func (q taskQueue) Len() int { return len(q) }

// Less breaks deadline ties with scheduling order.
func (q taskQueue) Less(i, j int) bool {
	if q[i].deadline.Equal(q[j].deadline) {
		return q[i].id < q[j].id
	}
	return q[i].deadline.Before(q[j].deadline)
}

func (q taskQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *taskQueue) Push(x any) {
	t := x.(*task)
	t.index = len(*q)
	*q = append(*q, t)
}

func (q *taskQueue) Pop() any {
	old := *q
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*q = old[:n-1]
	return t
}

// ManualClock is a virtual clock for tests and replays.
type ManualClock struct {
	mu  sync.Mutex
	now time.Time
}

func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Add moves the clock forward and returns the new time.
func (c *ManualClock) Add(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}
