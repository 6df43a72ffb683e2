package runtime

import (
	"chat-sync/bus"
	"chat-sync/contract"
	"chat-sync/domain/event"
	"chat-sync/observability"
	"chat-sync/presence"
	"chat-sync/projection"
	"chat-sync/runtime/scheduler"
	"chat-sync/runtime/workers"
	"chat-sync/session"
	"chat-sync/sink"
	"chat-sync/typing"
	"chat-sync/voice"
	"context"
	"encoding/json"
	"log/slog"
	"time"
)

// Options tune one client. A positive SampleInterval enables queue depth
// sampling of the engine and of the extra Probes.
type Options struct {
	TypingDebounce    time.Duration
	VoiceConnectDelay time.Duration
	QueueSize         int
	ReconcileEchoes   bool
	EchoTTL           time.Duration
	ReconnectInterval time.Duration
	SampleInterval    time.Duration
	Probes            []workers.Probe
}

// Orchestrator assembles one client: the engine, the bus, every manager
// and the session store, all sharing a single scheduler.
type Orchestrator struct {
	log        *slog.Logger
	sampler    *workers.CapacityWorker
	supervisor contract.ISupervisor
	engine     *Engine
	bus        *bus.Bus
	fanout     *sink.Fanout
	router     *Router
	roster     *presence.Registry
	timeline   *projection.Timeline
	typing     *typing.Tracker
	voice      *voice.Coordinator
	store      *session.Store
}

func NewOrchestrator(
	log *slog.Logger,
	supervisor contract.ISupervisor,
	dialer contract.Dialer,
	repo contract.SessionRepository,
	metrics *observability.Metrics,
	opts Options,
	sinks ...contract.EventSink,
) *Orchestrator {
	sched := scheduler.New(time.Now)
	engine := NewEngine(log, sched, opts.QueueSize, metrics)
	fanout := sink.NewFanout(log, sinks...)

	busOpts := []bus.Option{bus.WithDispatcher(engine), bus.WithMetrics(metrics)}
	if opts.ReconnectInterval > 0 {
		busOpts = append(busOpts, bus.WithReconnect(opts.ReconnectInterval))
	}
	eventBus := bus.New(log, dialer, busOpts...)

	var timelineOpts []projection.Option
	if opts.ReconcileEchoes {
		timelineOpts = append(timelineOpts, projection.WithEchoReconciliation(opts.EchoTTL))
	}

	roster := presence.NewRegistry(log, fanout)
	timeline := projection.NewTimeline(log, fanout, timelineOpts...)
	tracker := typing.NewTracker(log, sched, fanout, opts.TypingDebounce)
	coordinator := voice.NewCoordinator(log, fanout, voice.NewDelayedConnector(sched, opts.VoiceConnectDelay))
	store := session.NewStore(log, eventBus, repo, roster, timeline, tracker, coordinator, session.WithClock(sched.Now))

	var sampler *workers.CapacityWorker
	if opts.SampleInterval > 0 {
		probes := append([]workers.Probe{{Name: "engine", Backlog: engine.Backlog}}, opts.Probes...)
		sampler = workers.NewCapacityWorker(log, metrics, opts.SampleInterval, probes...)
	}

	// First task on the queue: every later Do or Call sees the restored identity.
	engine.Do(func() {
		if _, err := store.Restore(); err != nil {
			log.Warn("Session not restored", "error", err)
		}
	})

	return &Orchestrator{
		log:        log,
		sampler:    sampler,
		supervisor: supervisor,
		engine:     engine,
		bus:        eventBus,
		fanout:     fanout,
		router:     NewRouter(log, metrics, fanout, roster, timeline, tracker, coordinator),
		roster:     roster,
		timeline:   timeline,
		typing:     tracker,
		voice:      coordinator,
		store:      store,
	}
}

// Start connects to the relay and runs the engine and the bus under supervision until ctx is done. An unreachable
// relay is not fatal: intents are dropped until a connection exists.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.router.Bind(o.bus)
	o.bus.Subscribe(event.Connect, func(json.RawMessage) { o.store.Resync() })

	if err := o.bus.Connect(ctx); err != nil {
		o.log.Warn("Relay unreachable, intents will be dropped", "error", err)
	}
	o.supervisor.Add(o.engine, o.bus)
	if o.sampler != nil {
		o.supervisor.Add(o.sampler)
	}
	o.log.Info("Starting engine and relay reader")
	o.supervisor.Run(ctx)
	return nil
}

// Do queues an action on the engine loop.
func (o *Orchestrator) Do(fn func(*session.Store)) {
	o.engine.Do(func() { fn(o.store) })
}

// Call runs an action on the engine loop and waits for it.
func (o *Orchestrator) Call(ctx context.Context, fn func(*session.Store)) error {
	return o.engine.Call(ctx, func() { fn(o.store) })
}

// Read runs fn on the engine loop so it can safely inspect managers.
func (o *Orchestrator) Read(ctx context.Context, fn func(View)) error {
	return o.engine.Call(ctx, func() {
		fn(View{
			Roster:   o.roster,
			Timeline: o.timeline,
			Typing:   o.typing,
			Voice:    o.voice,
			Store:    o.store,
		})
	})
}

func (o *Orchestrator) Connected() bool {
	return o.bus.Connected()
}

// Stop disconnects and cancels every supervised worker.
func (o *Orchestrator) Stop() {
	o.log.Info("Requesting orchestrator shutdown")
	o.bus.Disconnect()
	o.supervisor.Stop()
}

// View exposes the managers to code running on the engine loop.
type View struct {
	Roster   *presence.Registry
	Timeline *projection.Timeline
	Typing   *typing.Tracker
	Voice    *voice.Coordinator
	Store    *session.Store
}
