package poller

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rickgao/betfair-instruments/internal/instrument"
)

// Loader reloads instruments. Implemented by *instrument.Provider.
type Loader interface {
	LoadAll(ctx context.Context, filter instrument.MarketFilter) (instrument.LoadStats, error)
}

// LoadHandler receives the stats of each cycle that completed without error.
type LoadHandler func(ctx context.Context, stats instrument.LoadStats)

// Config holds poller configuration.
type Config struct {
	Interval  time.Duration // Reload interval (default: 1h)
	Timeout   time.Duration // Per-cycle timeout (default: 10m)
	SkipFirst bool          // Wait one interval before the first cycle
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Interval: time.Hour,
		Timeout:  10 * time.Minute,
	}
}

// Stats holds poller counters.
type Stats struct {
	Cycles  int64 // Cycles attempted
	Loads   int64 // Cycles that completed
	Skipped int64 // Cycles skipped because a load was running
	Errors  int64 // Cycles that failed
}

// Poller periodically reloads instruments.
type Poller struct {
	cfg    Config
	loader Loader
	filter instrument.MarketFilter
	onLoad LoadHandler
	logger *slog.Logger

	cycles  atomic.Int64
	loads   atomic.Int64
	skipped atomic.Int64
	errors  atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new Poller. A nil filter lets the loader use its configured one.
func New(cfg Config, loader Loader, filter instrument.MarketFilter, onLoad LoadHandler, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultConfig().Interval
	}
	return &Poller{
		cfg:    cfg,
		loader: loader,
		filter: filter,
		onLoad: onLoad,
		logger: logger,
	}
}

// Start begins the polling loop.
func (p *Poller) Start(ctx context.Context) error {
	p.ctx, p.cancel = context.WithCancel(ctx)

	p.wg.Add(1)
	go p.run()

	p.logger.Info("instrument poller started",
		"interval", p.cfg.Interval,
		"timeout", p.cfg.Timeout,
	)

	return nil
}

// Stop gracefully shuts down the poller.
func (p *Poller) Stop(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("instrument poller stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns a snapshot of the poller counters.
func (p *Poller) Stats() Stats {
	return Stats{
		Cycles:  p.cycles.Load(),
		Loads:   p.loads.Load(),
		Skipped: p.skipped.Load(),
		Errors:  p.errors.Load(),
	}
}

// run is the main polling loop.
func (p *Poller) run() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	if !p.cfg.SkipFirst {
		p.poll()
	}

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.poll()
		}
	}
}

// poll runs one load cycle.
func (p *Poller) poll() {
	p.cycles.Add(1)

	ctx := p.ctx
	if p.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(p.ctx, p.cfg.Timeout)
		defer cancel()
	}

	stats, err := p.loader.LoadAll(ctx, p.filter)
	switch {
	case errors.Is(err, instrument.ErrLoadInProgress):
		p.skipped.Add(1)
		p.logger.Debug("load already running, skipping cycle")
		return
	case err != nil:
		p.errors.Add(1)
		p.logger.Warn("reload failed",
			"instruments", stats.Instruments,
			"chunks", stats.Chunks,
			"err", err,
		)
		return
	}

	p.loads.Add(1)
	p.logger.Info("reload complete",
		"load_id", stats.LoadID,
		"markets", stats.Markets,
		"instruments", stats.Instruments,
		"duration", stats.Duration,
	)

	if p.onLoad != nil {
		p.onLoad(p.ctx, stats)
	}
}
