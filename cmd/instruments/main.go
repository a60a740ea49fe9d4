package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rickgao/betfair-instruments/internal/api"
	"github.com/rickgao/betfair-instruments/internal/auth"
	"github.com/rickgao/betfair-instruments/internal/config"
	"github.com/rickgao/betfair-instruments/internal/database"
	"github.com/rickgao/betfair-instruments/internal/instrument"
	"github.com/rickgao/betfair-instruments/internal/model"
	"github.com/rickgao/betfair-instruments/internal/poller"
	"github.com/rickgao/betfair-instruments/internal/stream"
	"github.com/rickgao/betfair-instruments/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/instruments.local.yaml", "path to config file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	// Load configuration
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := newLogger(os.Stdout, cfg.Logging)
	slog.SetDefault(logger)

	logger.Info("starting instruments",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
		"instance_id", cfg.Instance.ID,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	creds, err := loadCredentials(ctx, cfg.API)
	if err != nil {
		logger.Error("failed to load credentials", "error", err)
		os.Exit(1)
	}

	apiClient := api.NewClient(
		cfg.API.RestURL,
		creds,
		api.WithLogger(logger),
		api.WithTimeout(cfg.API.Timeout),
		api.WithRetries(cfg.API.MaxRetries, cfg.API.RetryBackoff),
		api.WithUserAgent(version.UserAgent()),
	)

	provider := instrument.NewProvider(apiClient, instrument.Config{
		ChunkSize:   cfg.Provider.ChunkSize,
		Concurrency: cfg.Provider.Concurrency,
		LoadTimeout: cfg.Provider.LoadTimeout,
		Currency:    cfg.Provider.Currency,
		Filter:      instrument.MarketFilter(cfg.Provider.Filters),
	}, logger)

	// Connect to database and warm the registry from the last saved load
	var store *database.InstrumentStore
	var db Pinger
	if cfg.Database.Enabled() {
		logger.Info("connecting to database",
			"host", cfg.Database.Postgres.Host,
			"port", cfg.Database.Postgres.Port,
			"database", cfg.Database.Postgres.Name,
		)

		pool, err := database.Connect(ctx, cfg.Database.Postgres)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		db = pool

		store = database.NewInstrumentStore(pool, logger)
		if err := store.EnsureSchema(ctx); err != nil {
			logger.Error("failed to create schema", "error", err)
			os.Exit(1)
		}

		saved, err := store.Load(ctx)
		if err != nil {
			logger.Warn("warm start failed", "error", err)
		} else {
			provider.Registry().AddBulk(saved)
			logger.Info("registry warmed from database", "instruments", len(saved))
		}
	}

	// Start the HTTP server early so lookups are served during the first load
	updates := newFeed(logger)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler: createHandler(provider, db, updates, logger),
	}

	go func() {
		logger.Info("starting http server", "port", cfg.HTTP.Port)
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("http server error", "error", err)
		}
	}()

	onLoad := func(ctx context.Context, stats instrument.LoadStats) {
		loaded := instrumentsForLoad(provider.Instruments(), stats.LoadID)
		updates.publish(updateLoad, loaded)
		if store == nil {
			return
		}
		n, err := store.Save(ctx, loaded)
		if err != nil {
			logger.Warn("failed to persist instruments", "load_id", stats.LoadID, "saved", n, "error", err)
			return
		}
		logger.Info("instruments persisted", "load_id", stats.LoadID, "saved", n)
	}

	// Periodic reload, or a single load when polling is disabled
	if cfg.Poller.Enabled {
		p := poller.New(poller.Config{
			Interval: cfg.Poller.Interval,
			Timeout:  cfg.Poller.Timeout,
		}, provider, nil, onLoad, logger)
		if err := p.Start(ctx); err != nil {
			logger.Error("failed to start poller", "error", err)
			os.Exit(1)
		}
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer shutdownCancel()
			p.Stop(shutdownCtx)
		}()
	} else {
		stats, err := provider.LoadAll(ctx, nil)
		if err != nil {
			logger.Error("initial load failed", "error", err)
		} else {
			onLoad(ctx, stats)
		}
	}

	// Stream market definitions into the registry
	streamDone := make(chan struct{})
	if cfg.Stream.Enabled {
		consumer := newStreamConsumer(cfg.Stream, creds, provider, updates, logger)
		go func() {
			defer close(streamDone)
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("stream consumer stopped", "error", err)
			}
		}()
	} else {
		close(streamDone)
	}

	logger.Info("instruments running",
		"instance_id", cfg.Instance.ID,
		"instruments", provider.Count(),
		"health_url", fmt.Sprintf("http://localhost:%d/health", cfg.HTTP.Port),
	)

	// Wait for shutdown
	<-ctx.Done()

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	server.Shutdown(shutdownCtx)

	select {
	case <-streamDone:
	case <-shutdownCtx.Done():
		logger.Warn("stream consumer did not stop in time")
	}

	logger.Info("instruments stopped")
}

// newLogger builds the process logger from the logging config.
func newLogger(w io.Writer, cfg config.LoggingConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// loadCredentials uses the configured session token when present and falls back to
// certificate login.
func loadCredentials(ctx context.Context, cfg config.APIConfig) (*auth.Credentials, error) {
	if cfg.SessionToken != "" || cfg.SessionTokenPath != "" || !cfg.Login.Enabled() {
		return auth.LoadCredentials(cfg.AppKey, cfg.SessionToken, cfg.SessionTokenPath)
	}

	return auth.CertLogin(ctx, auth.LoginConfig{
		URL:      cfg.Login.URL,
		AppKey:   cfg.AppKey,
		Username: cfg.Login.Username,
		Password: cfg.Login.Password,
		CertPath: cfg.Login.CertPath,
		KeyPath:  cfg.Login.KeyPath,
	})
}

// newStreamConsumer wires the stream consumer to the provider and the update feed.
func newStreamConsumer(cfg config.StreamConfig, creds *auth.Credentials, provider *instrument.Provider, updates *feed, logger *slog.Logger) *stream.Consumer {
	clientCfg := stream.DefaultClientConfig()
	clientCfg.Addr = cfg.Address
	if cfg.HeartbeatInterval > 0 {
		clientCfg.HeartbeatInterval = cfg.HeartbeatInterval
	}
	if cfg.IdleTimeout > 0 {
		clientCfg.IdleTimeout = cfg.IdleTimeout
	}
	if cfg.BufferSize > 0 {
		clientCfg.BufferSize = cfg.BufferSize
	}

	handler := func(defs []stream.MarketDefinition) error {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		n, err := provider.AddDefinitions(ctx, defs)
		logger.Debug("stream definitions applied", "definitions", len(defs), "instruments", n)
		updates.publish(updateStream, instrumentsForMarkets(provider, defs))
		return err
	}

	return stream.NewConsumer(stream.ConsumerConfig{
		Client:       clientCfg,
		AppKey:       creds.AppKey,
		SessionToken: creds.SessionToken,
		Filter: stream.MarketFilter{
			MarketIDs:    cfg.MarketIDs,
			EventTypeIDs: cfg.EventTypeIDs,
			CountryCodes: cfg.CountryCodes,
			MarketTypes:  cfg.MarketTypes,
		},
		ReconnectBaseWait: cfg.ReconnectBaseDelay,
		ReconnectMaxWait:  cfg.ReconnectMaxDelay,
	}, handler, logger)
}

// instrumentsForMarkets returns the registry's instruments for the markets of defs.
func instrumentsForMarkets(provider *instrument.Provider, defs []stream.MarketDefinition) []model.Instrument {
	var out []model.Instrument
	for _, def := range defs {
		found, err := provider.Search(map[string]string{"market_id": def.MarketID})
		if err != nil {
			continue
		}
		out = append(out, found...)
	}
	return out
}

// instrumentsForLoad returns the instruments produced by one load.
func instrumentsForLoad(all []model.Instrument, loadID uuid.UUID) []model.Instrument {
	var out []model.Instrument
	for _, inst := range all {
		if inst.LoadID == loadID {
			out = append(out, inst)
		}
	}
	return out
}
