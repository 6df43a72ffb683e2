package main

import (
	"bufio"
	"chat-sync/observability"
	"chat-sync/repositories"
	"chat-sync/runtime"
	"chat-sync/runtime/workers"
	"chat-sync/session"
	"chat-sync/sink"
	"chat-sync/transport"
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/gookit/color"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run wires one chat client: session store, relay connection, engine and
// the console, then blocks until the user quits or a signal arrives.
func run() (err error) {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)
	if !config.Colours {
		color.Disable()
	}

	// 2. Session storage (BadgerDB)
	db, err := repositories.OpenSessionDB(config.SessionPath)
	if err != nil {
		return err
	}
	defer func() {
		log.Info("Closing session store...")
		err = multierr.Append(err, db.Close())
	}()

	// 3. Metrics
	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(prometheus.Labels{"component": "client"})
	metrics.Register(registry)

	// 4. Supervision & Orchestration
	supervisor := workers.NewSupervisor(log, metrics).WithRestartDelay(config.RestartInterval)
	snapshots := sink.NewChannelSink(log, config.EventBufferSize)
	orchestrator := runtime.NewOrchestrator(
		log, supervisor,
		transport.NewDialer(config.ServerURL),
		repositories.NewSessionRepository(db),
		metrics,
		runtime.Options{
			TypingDebounce:    config.TypingDebounce,
			VoiceConnectDelay: config.VoiceConnectDelay,
			QueueSize:         config.QueueSize,
			ReconcileEchoes:   config.ReconcileEchoes,
			EchoTTL:           config.EchoTTL,
			ReconnectInterval: config.ReconnectInterval,
			SampleInterval:    config.SampleInterval,
			Probes:            []workers.Probe{{Name: "snapshots", Backlog: snapshots.Backlog}},
		},
		snapshots,
	)

	// 5. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errChan := make(chan error, 2)
	go func() {
		if err := orchestrator.Start(ctx); err != nil {
			errChan <- fmt.Errorf("orchestrator failed: %w", err)
		}
	}()

	var metricsServer *http.Server
	if config.MetricsAddr != "" {
		metricsServer = &http.Server{Addr: config.MetricsAddr, Handler: observability.Handler(registry)}
		go func() {
			log.Info("Serving metrics", "address", config.MetricsAddr)
			if err := metricsServer.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
				errChan <- fmt.Errorf("metrics server error: %w", err)
			}
		}()
	}

	// 6. Identity: a restored session wins over USERNAME
	if config.Username != "" {
		if err := orchestrator.Call(ctx, func(s *session.Store) {
			if _, ok := s.User(); ok {
				return
			}
			if _, err := s.Login(config.Username); err != nil {
				log.Warn("Login failed", "username", config.Username, "error", err)
			}
		}); err != nil {
			return fmt.Errorf("login failed: %w", err)
		}
	}

	// 7. Console until quit, signal or error
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	console := NewConsole(log, os.Stdout, orchestrator, snapshots.Events())
	consoleDone := make(chan error, 1)
	go func() { consoleDone <- console.Run(ctx, lines) }()

	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err := <-consoleDone:
		if err != nil {
			return err
		}
	case err := <-errChan:
		return err
	}

	// 8. Final cleanup: say goodbye while the engine still runs
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	var shutdownErr error
	if ctx.Err() == nil {
		shutdownErr = orchestrator.Read(shutdownCtx, func(v runtime.View) {
			v.Store.StopTyping()
			if v.Voice.InSession() {
				v.Store.LeaveVoice()
			}
			v.Store.AnnounceOffline()
		})
	}
	if metricsServer != nil {
		shutdownErr = multierr.Append(shutdownErr, metricsServer.Shutdown(shutdownCtx))
	}
	orchestrator.Stop()
	log.Info("Client stopped cleanly")
	return shutdownErr
}
