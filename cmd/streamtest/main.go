// streamtest connects to the Betfair exchange stream and prints the instruments derived
// from each market definition.
// Usage: go run ./cmd/streamtest --config configs/instruments.local.yaml
//
// The config needs api.app_key and a session (api.session_token, api.session_token_path
// or api.login), plus at least one stream.market_ids or stream.event_type_ids entry.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rickgao/betfair-instruments/internal/api"
	"github.com/rickgao/betfair-instruments/internal/auth"
	"github.com/rickgao/betfair-instruments/internal/config"
	"github.com/rickgao/betfair-instruments/internal/instrument"
	"github.com/rickgao/betfair-instruments/internal/stream"
)

func main() {
	configPath := flag.String("config", "configs/instruments.example.yaml", "path to config file")
	verbose := flag.Bool("verbose", false, "print full instrument JSON")
	flag.Parse()

	// Setup logger
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	// Load config
	cfg, err := config.LoadWithDefaults(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal")
		cancel()
	}()

	creds, err := auth.LoadCredentials(cfg.API.AppKey, cfg.API.SessionToken, cfg.API.SessionTokenPath)
	if err != nil {
		logger.Error("failed to load credentials", "error", err)
		os.Exit(1)
	}
	if creds.SessionToken == "" && cfg.API.Login.Enabled() {
		creds, err = auth.CertLogin(ctx, auth.LoginConfig{
			URL:      cfg.API.Login.URL,
			AppKey:   cfg.API.AppKey,
			Username: cfg.API.Login.Username,
			Password: cfg.API.Login.Password,
			CertPath: cfg.API.Login.CertPath,
			KeyPath:  cfg.API.Login.KeyPath,
		})
		if err != nil {
			logger.Error("certificate login failed", "error", err)
			os.Exit(1)
		}
	}
	if creds.SessionToken == "" {
		logger.Error("a session token is required for the stream")
		os.Exit(1)
	}

	// The provider supplies the account currency stamped on each instrument
	apiClient := api.NewClient(cfg.API.RestURL, creds, api.WithLogger(logger))
	provider := instrument.NewProvider(apiClient, instrument.Config{Currency: cfg.Provider.Currency}, logger)

	currency, err := provider.AccountCurrency(ctx)
	if err != nil {
		logger.Error("failed to get account currency", "error", err)
		os.Exit(1)
	}
	logger.Info("using account currency", "currency", currency)

	clientCfg := stream.DefaultClientConfig()
	if cfg.Stream.Address != "" {
		clientCfg.Addr = cfg.Stream.Address
	}

	handler := func(defs []stream.MarketDefinition) error {
		ts := time.Now().UnixNano()
		for _, def := range defs {
			instruments, err := instrument.MakeInstruments(instrument.DefinitionShape{Definition: def}, currency, ts)
			if err != nil {
				logger.Warn("failed to map definition", "market_id", def.MarketID, "error", err)
				continue
			}
			for _, inst := range instruments {
				if *verbose {
					data, _ := json.Marshal(inst)
					fmt.Printf("[INSTRUMENT] %s\n", data)
					continue
				}
				fmt.Printf("[INSTRUMENT] %s %s / %s / %s (%s)\n",
					inst.ID(), inst.EventName, inst.MarketName, inst.SelectionName, inst.MarketStartTime.Format(time.RFC3339))
			}
		}
		_, err := provider.AddDefinitions(ctx, defs)
		return err
	}

	consumer := stream.NewConsumer(stream.ConsumerConfig{
		Client:       clientCfg,
		AppKey:       creds.AppKey,
		SessionToken: creds.SessionToken,
		Filter: stream.MarketFilter{
			MarketIDs:    cfg.Stream.MarketIDs,
			EventTypeIDs: cfg.Stream.EventTypeIDs,
			CountryCodes: cfg.Stream.CountryCodes,
			MarketTypes:  cfg.Stream.MarketTypes,
		},
		ReconnectBaseWait: cfg.Stream.ReconnectBaseDelay,
		ReconnectMaxWait:  cfg.Stream.ReconnectMaxDelay,
	}, handler, logger)

	// Stats printer
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				stats := consumer.Stats()
				logger.Info("stream stats",
					"sessions", stats.Sessions,
					"messages", stats.Messages,
					"definitions", stats.Definitions,
					"errors", stats.Errors,
					"instruments", provider.Count(),
				)
			}
		}
	}()

	logger.Info("streaming market definitions (Ctrl+C to stop)...", "addr", clientCfg.Addr)
	if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("stream stopped", "error", err)
		os.Exit(1)
	}

	logger.Info("shutdown complete")
}
