package main

import (
	"chat-sync/observability"
	"chat-sync/relay"
	"chat-sync/runtime/workers"
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run serves the websocket relay until a signal arrives.
func run() error {
	_ = godotenv.Load()
	config, err := LoadConfig()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)
	restart, err := time.ParseDuration(config.RestartInterval)
	if err != nil {
		return fmt.Errorf("invalid RESTART_INTERVAL: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(prometheus.Labels{"component": "relay"})
	metrics.Register(registry)
	if err := registry.Register(collectors.NewGoCollector()); err != nil {
		return fmt.Errorf("metrics registration failed: %w", err)
	}

	hub := relay.NewHub(log)
	supervisor := workers.NewSupervisor(log, metrics).WithRestartDelay(restart)
	supervisor.Add(hub)
	go supervisor.Run(ctx)

	mux := http.NewServeMux()
	mux.Handle(config.Path, hub)
	if config.Metrics {
		mux.Handle("/metrics", observability.Handler(registry))
	}
	server := &http.Server{Addr: config.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting relay", "address", config.Addr, "path", config.Path, "at", time.Now().UTC())
		if err := server.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("relay server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err := <-errChan:
		supervisor.Stop()
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err = server.Shutdown(shutdownCtx)
	supervisor.Stop()
	log.Info("Relay stopped cleanly")
	return err
}
