package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/SovereignSignal/llm-grants-council-claude1/api"
	"github.com/SovereignSignal/llm-grants-council-claude1/config"
	"github.com/SovereignSignal/llm-grants-council-claude1/extract"
	"github.com/SovereignSignal/llm-grants-council-claude1/identity"
	"github.com/SovereignSignal/llm-grants-council-claude1/learning"
	"github.com/SovereignSignal/llm-grants-council-claude1/llm"
	"github.com/SovereignSignal/llm-grants-council-claude1/pipeline"
	"github.com/SovereignSignal/llm-grants-council-claude1/reviewer"
	"github.com/SovereignSignal/llm-grants-council-claude1/storage"
	"github.com/SovereignSignal/llm-grants-council-claude1/webfetch"
)

const (
	shutdownTimeout = 10 * time.Second

	augmentFetchTimeout   = 15 * time.Second
	augmentMaxContentSize = 2 << 20 // 2MB per fetched page
)

// App holds the wired council service.
type App struct {
	cfg *config.Config

	natsConn *nats.Conn
	store    storage.Store

	server *api.Server

	observations *learning.Observations
	processor    *learning.Processor

	logger *slog.Logger
}

// newApp builds the full service from configuration.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	app := &App{cfg: cfg, logger: logger}

	store, err := app.openStore(ctx)
	if err != nil {
		return nil, err
	}
	app.store = store

	client := llm.NewClient(cfg.LLM.Endpoint, cfg.LLM.APIKey(), llm.WithLogger(logger))

	extractor := extract.NewExtractor(client, cfg.LLM.DefaultModel, cfg.LLM.ExtractionTimeout, logger)
	resolver := identity.NewResolver(store, logger)
	personas := reviewer.DefaultPersonas()
	pool := reviewer.NewPool(personas, client, cfg.LLM, store, nil, logger)

	augmenter := webfetch.NewAugmenter(augmentFetchTimeout, augmentMaxContentSize, logger)
	metrics := pipeline.NewMetrics(prometheus.DefaultRegisterer)

	coordinator := pipeline.NewCoordinator(store, client, extractor, resolver, pool, cfg,
		pipeline.WithAugmenter(augmenter),
		pipeline.WithMetrics(metrics),
		pipeline.WithLogger(logger),
	)

	app.observations = learning.NewObservations(store, cfg.Learning.MinEvidence, logger)
	app.processor = learning.NewProcessor(store, client, cfg.LLM.DefaultModel, cfg.LLM.ReflectionTimeout, logger)

	app.server = api.NewServer(store, coordinator, app.observations, app.processor, personas, logger)
	return app, nil
}

// openStore connects the configured persistence backend.
func (a *App) openStore(ctx context.Context) (storage.Store, error) {
	switch a.cfg.Storage.Backend {
	case "nats":
		a.logger.Info("Connecting to NATS", "url", a.cfg.Storage.NATSURL)
		conn, err := nats.Connect(a.cfg.Storage.NATSURL,
			nats.Name(appName),
			nats.MaxReconnects(-1),
			nats.ReconnectWait(2*time.Second),
		)
		if err != nil {
			return nil, fmt.Errorf("connect to NATS: %w", err)
		}
		a.natsConn = conn

		js, err := jetstream.New(conn)
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("create JetStream context: %w", err)
		}
		store, err := storage.NewNATSStore(ctx, js)
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("initialize NATS storage: %w", err)
		}
		return store, nil
	default:
		a.logger.Info("Using in-memory storage")
		return storage.NewMemoryStore(), nil
	}
}

// close releases backend connections.
func (a *App) close() {
	if a.natsConn != nil {
		a.natsConn.Drain()
		a.natsConn.Close()
	}
}

// runServe starts the HTTP API and blocks until a shutdown signal.
func runServe(configPath, logLevel string) error {
	logger := setupLogging(logLevel)

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	app, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer app.close()

	mux := http.NewServeMux()
	app.server.RegisterRoutes(mux)

	srv := &http.Server{
		Addr:              cfg.API.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Council API listening",
			"addr", cfg.API.Addr,
			"storage", cfg.Storage.Backend,
			"version", Version)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}
	logger.Info("Received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during HTTP shutdown", "error", err)
	}

	logger.Info("Shutdown complete")
	return nil
}

// runLearn processes pending learning events and promotes observations
// that have accumulated enough evidence, then exits.
func runLearn(ctx context.Context, configPath, logLevel string) error {
	logger := setupLogging(logLevel)

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	app, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer app.close()

	processed, err := app.processor.ProcessPending(ctx)
	if err != nil {
		return fmt.Errorf("process learning events: %w", err)
	}

	promoted, err := app.observations.PromoteEligible(ctx)
	if err != nil {
		return fmt.Errorf("promote observations: %w", err)
	}

	fmt.Printf("Processed %d learning events, promoted %d observations\n", processed, len(promoted))
	return nil
}
