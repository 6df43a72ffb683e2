// Package bus is the single entry and exit point between the engine and
// the relay. It routes received frames to subscribers by event name and
// sends outward intents on a best-effort basis.
package bus

import (
	"chat-sync/contract"
	"chat-sync/domain/event"
	"chat-sync/errors"
	"chat-sync/observability"
	"context"
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

type Handler func(payload json.RawMessage)

// Subscription identifies one registered handler.
type Subscription struct {
	name event.Name
	id   uint64
}

// Dispatcher runs handler invocations, usually on the engine loop.
type Dispatcher interface {
	Do(fn func())
}

type subscriber struct {
	id      uint64
	handler Handler
}

type Bus struct {
	log        *slog.Logger
	dialer     contract.Dialer
	metrics    *observability.Metrics
	dispatcher Dispatcher
	reconnect  time.Duration

	mu        sync.Mutex
	transport contract.Transport
	closed    bool
	handlers  map[event.Name][]subscriber
	nextID    uint64
	ready     chan struct{}
	connected atomic.Bool
}

type Option func(*Bus)

func WithDispatcher(d Dispatcher) Option {
	return func(b *Bus) { b.dispatcher = d }
}

func WithMetrics(m *observability.Metrics) Option {
	return func(b *Bus) { b.metrics = m }
}

// WithReconnect makes Run dial again after a lost connection.
// Disconnect stops reconnection until the next Connect.
func WithReconnect(interval time.Duration) Option {
	return func(b *Bus) { b.reconnect = interval }
}

func New(log *slog.Logger, dialer contract.Dialer, opts ...Option) *Bus {
	b := &Bus{
		log:      log,
		dialer:   dialer,
		handlers: make(map[event.Name][]subscriber),
		ready:    make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Connect dials the relay and fires the connect lifecycle event.
// It is a no-op while already connected.
func (b *Bus) Connect(ctx context.Context) error {
	b.mu.Lock()
	if b.transport != nil {
		b.mu.Unlock()
		return nil
	}
	b.closed = false
	b.mu.Unlock()

	t, err := b.dialer.Dial(ctx)
	if err != nil {
		return err
	}

	b.mu.Lock()
	if b.transport != nil {
		b.mu.Unlock()
		_ = t.Close()
		return nil
	}
	b.transport = t
	b.mu.Unlock()

	b.setConnected(true)
	select {
	case b.ready <- struct{}{}:
	default:
	}
	b.log.Info("Connected to relay")
	b.dispatch(event.Connect, nil)
	return nil
}

// Disconnect closes the transport and fires the disconnect lifecycle event.
func (b *Bus) Disconnect() {
	b.mu.Lock()
	t := b.transport
	b.transport = nil
	b.closed = true
	b.mu.Unlock()
	if t == nil {
		return
	}
	_ = t.Close()
	b.setConnected(false)
	b.log.Info("Disconnected from relay")
	b.dispatch(event.Disconnect, nil)
}

func (b *Bus) Connected() bool {
	return b.connected.Load()
}

// Send writes one intent. Without a live transport the intent is dropped
// and the caller is never told.
func (b *Bus) Send(name event.Name, payload any) {
	b.mu.Lock()
	t := b.transport
	b.mu.Unlock()
	if t == nil {
		b.log.Debug("Intent dropped, transport unavailable", "event", name)
		b.metrics.Dropped(string(name))
		return
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		b.log.Warn("Intent dropped, payload not serializable", "event", name, "error", err)
		b.metrics.Dropped(string(name))
		return
	}
	if err := t.WriteFrame(event.Frame{Event: name, Payload: raw}); err != nil {
		b.log.Debug("Intent dropped, write failed", "event", name, "error", err)
		b.metrics.Dropped(string(name))
		return
	}
	b.metrics.Sent(string(name))
}

// Subscribe registers handler for name. Handlers of one name run in
// subscription order.
func (b *Bus) Subscribe(name event.Name, handler Handler) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	b.handlers[name] = append(b.handlers[name], subscriber{id: b.nextID, handler: handler})
	return Subscription{name: name, id: b.nextID}
}

func (b *Bus) Unsubscribe(sub Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.handlers[sub.name]
	for i, s := range subs {
		if s.id == sub.id {
			b.handlers[sub.name] = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	if len(b.handlers[sub.name]) == 0 {
		delete(b.handlers, sub.name)
	}
}

// Run reads frames until ctx is done. A lost connection fires the
// disconnect event and Run waits for the next Connect, or dials again
// itself when reconnection is enabled.
func (b *Bus) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, b.Disconnect)
	defer stop()
	for {
		t, err := b.await(ctx)
		if err != nil {
			return nil
		}
		b.read(ctx, t)
	}
}

func (b *Bus) await(ctx context.Context) (contract.Transport, error) {
	for {
		b.mu.Lock()
		t, closed := b.transport, b.closed
		b.mu.Unlock()
		if t != nil {
			return t, nil
		}

		var retry <-chan time.Time
		if b.reconnect > 0 && !closed {
			retry = time.After(b.reconnect)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-b.ready:
		case <-retry:
			if err := b.Connect(ctx); err != nil {
				b.log.Debug("Reconnect failed", "error", err)
			}
		}
	}
}

func (b *Bus) read(ctx context.Context, t contract.Transport) {
	for {
		frame, err := t.ReadFrame()
		if err != nil {
			if stderrors.Is(err, errors.ErrInvalidPayload) {
				b.log.Warn("Malformed frame rejected", "error", err)
				b.metrics.Rejected("frame")
				continue
			}
			if ctx.Err() == nil {
				b.lost(t, err)
			}
			return
		}
		b.dispatch(frame.Event, frame.Payload)
	}
}

func (b *Bus) lost(t contract.Transport, err error) {
	b.mu.Lock()
	if b.transport != t {
		b.mu.Unlock()
		return
	}
	b.transport = nil
	b.mu.Unlock()
	_ = t.Close()
	b.setConnected(false)
	b.log.Warn("Connection to relay lost", "error", err)
	b.dispatch(event.Disconnect, nil)
}

func (b *Bus) dispatch(name event.Name, payload json.RawMessage) {
	run := func() {
		for _, h := range b.subscribers(name) {
			h(payload)
		}
	}
	if b.dispatcher == nil {
		run()
		return
	}
	b.dispatcher.Do(run)
}

func (b *Bus) subscribers(name event.Name) []Handler {
	b.mu.Lock()
	defer b.mu.Unlock()
	handlers := make([]Handler, 0, len(b.handlers[name]))
	for _, s := range b.handlers[name] {
		handlers = append(handlers, s.handler)
	}
	return handlers
}

func (b *Bus) setConnected(connected bool) {
	b.connected.Store(connected)
	b.metrics.SetConnected(connected)
}
