package instrument

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rickgao/betfair-instruments/internal/api"
	"github.com/rickgao/betfair-instruments/internal/model"
	"github.com/rickgao/betfair-instruments/internal/stream"
)

// Config holds provider configuration.
type Config struct {
	ChunkSize   int           // Market ids per catalogue request
	Concurrency int           // Catalogue requests in flight
	LoadTimeout time.Duration // Applied to LoadAll when the context has no deadline
	Currency    string        // Overrides the account currency when set
	Filter      MarketFilter  // Used by LoadAll when called with a nil filter
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		ChunkSize:   DefaultChunkSize,
		Concurrency: 1,
		LoadTimeout: 5 * time.Minute,
	}
}

// LoadStats summarizes one LoadAll call.
type LoadStats struct {
	LoadID      uuid.UUID
	Markets     int
	Chunks      int
	Instruments int
	Duration    time.Duration
}

// Provider loads instruments from a MarketDataClient into a Registry.
// At most one LoadAll runs at a time; lookups are safe during a load.
type Provider struct {
	cfg      Config
	client   MarketDataClient
	batcher  *Batcher
	registry *Registry
	logger   *slog.Logger
	now      func() time.Time

	loadMu sync.Mutex

	currencyMu sync.Mutex
	currency   string
}

// NewProvider creates a Provider backed by client.
func NewProvider(client MarketDataClient, cfg Config, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.Default()
	}

	p := &Provider{
		cfg:      cfg,
		client:   client,
		registry: NewRegistry(logger),
		logger:   logger,
		now:      time.Now,
		currency: cfg.Currency,
	}
	if client != nil {
		p.batcher = NewBatcher(client, BatcherConfig{
			ChunkSize:   cfg.ChunkSize,
			Concurrency: cfg.Concurrency,
		}, logger)
	}
	return p
}

// NewProviderFromInstruments creates a Provider without a client, pre-populated with
// instruments. LoadAll fails with ErrNoClient.
func NewProviderFromInstruments(instruments []model.Instrument, logger *slog.Logger) *Provider {
	p := NewProvider(nil, DefaultConfig(), logger)
	p.registry.AddBulk(instruments)
	return p
}

// LoadAll loads every instrument of the markets matching filter into the registry.
// A nil filter uses the configured one. Chunks completed before a failure stay loaded.
func (p *Provider) LoadAll(ctx context.Context, filter MarketFilter) (LoadStats, error) {
	if p.client == nil {
		return LoadStats{}, ErrNoClient
	}
	if !p.loadMu.TryLock() {
		return LoadStats{}, ErrLoadInProgress
	}
	defer p.loadMu.Unlock()

	if filter == nil {
		filter = p.cfg.Filter
	}
	// Fail on a bad filter before any remote call, including the currency lookup.
	if err := filter.marketOnly().Validate(); err != nil {
		return LoadStats{}, err
	}

	if _, ok := ctx.Deadline(); !ok && p.cfg.LoadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.LoadTimeout)
		defer cancel()
	}

	start := time.Now()
	stats := LoadStats{LoadID: uuid.New()}

	currency, err := p.AccountCurrency(ctx)
	if err != nil {
		return stats, err
	}

	p.logger.Info("loading markets", "filter", filter, "load_id", stats.LoadID)
	markets, err := LoadMarkets(ctx, p.client, filter)
	if err != nil {
		return stats, err
	}
	stats.Markets = len(markets)

	p.logger.Info("found markets, loading metadata", "markets", len(markets))
	stats.Chunks, err = p.batcher.Each(ctx, MarketIDs(markets), func(_ int, records []api.MarketCatalogue) error {
		ts := p.now().UnixNano()
		var batch []model.Instrument
		for _, record := range records {
			instruments, err := MakeInstruments(CatalogShape{Record: record}, currency, ts)
			if err != nil {
				return err
			}
			batch = append(batch, instruments...)
		}
		for i := range batch {
			batch[i].LoadID = stats.LoadID
		}
		p.registry.AddBulk(batch)
		stats.Instruments += len(batch)
		return nil
	})
	stats.Duration = time.Since(start)
	if err != nil {
		p.logger.Warn("load interrupted",
			"chunks_loaded", stats.Chunks,
			"instruments", stats.Instruments,
			"error", err,
		)
		return stats, err
	}

	p.registry.ForgetMissing()
	p.logger.Info("instruments created",
		"instruments", stats.Instruments,
		"chunks", stats.Chunks,
		"duration", stats.Duration,
	)
	return stats, nil
}

// LoadMarkets returns the navigation markets matching filter. It does not touch the registry.
func (p *Provider) LoadMarkets(ctx context.Context, filter MarketFilter) ([]FlattenedMarket, error) {
	if p.client == nil {
		return nil, ErrNoClient
	}
	return LoadMarkets(ctx, p.client, filter)
}

// AccountCurrency returns the account currency, fetching it on first use.
func (p *Provider) AccountCurrency(ctx context.Context) (string, error) {
	p.currencyMu.Lock()
	defer p.currencyMu.Unlock()

	if p.currency != "" {
		return p.currency, nil
	}
	if p.client == nil {
		return "", ErrNoClient
	}

	currency, err := p.client.GetAccountCurrency(ctx)
	if err != nil {
		return "", &RemoteCallError{Op: "get account currency", Err: err}
	}
	p.currency = currency
	return currency, nil
}

// AddDefinitions maps streaming market definitions into the registry and returns the
// number of instruments added. A definition that fails to map is skipped whole.
func (p *Provider) AddDefinitions(ctx context.Context, defs []stream.MarketDefinition) (int, error) {
	currency, err := p.AccountCurrency(ctx)
	if err != nil {
		return 0, err
	}

	loadID := uuid.New()
	ts := p.now().UnixNano()

	var batch []model.Instrument
	var errs []error
	for _, def := range defs {
		instruments, err := MakeInstruments(DefinitionShape{Definition: def}, currency, ts)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		batch = append(batch, instruments...)
	}
	for i := range batch {
		batch[i].LoadID = loadID
	}
	p.registry.AddBulk(batch)

	if len(errs) > 0 {
		return len(batch), fmt.Errorf("add definitions: %w", errors.Join(errs...))
	}
	return len(batch), nil
}

// Resolve returns the instrument for (marketID, selectionID, handicap). See Registry.Resolve.
func (p *Provider) Resolve(marketID, selectionID, handicap string) (model.Instrument, bool, error) {
	return p.registry.Resolve(marketID, selectionID, handicap)
}

// Search returns the instruments matching filter. See Registry.Search.
func (p *Provider) Search(filter map[string]string) ([]model.Instrument, error) {
	return p.registry.Search(filter)
}

// Instruments returns every loaded instrument.
func (p *Provider) Instruments() []model.Instrument {
	return p.registry.Instruments()
}

// Count returns the number of loaded instruments.
func (p *Provider) Count() int {
	return p.registry.Count()
}

// Registry returns the provider's registry.
func (p *Provider) Registry() *Registry {
	return p.registry
}
