package poller

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rickgao/betfair-instruments/internal/instrument"
)

// fakeLoader returns canned results and records the filters and deadlines it saw.
type fakeLoader struct {
	mu        sync.Mutex
	calls     int
	err       error
	filters   []instrument.MarketFilter
	deadlines []bool
	block     chan struct{}
}

func (f *fakeLoader) LoadAll(ctx context.Context, filter instrument.MarketFilter) (instrument.LoadStats, error) {
	f.mu.Lock()
	f.calls++
	f.filters = append(f.filters, filter)
	_, ok := ctx.Deadline()
	f.deadlines = append(f.deadlines, ok)
	err := f.err
	block := f.block
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return instrument.LoadStats{}, ctx.Err()
		}
	}
	if err != nil {
		return instrument.LoadStats{}, err
	}
	return instrument.LoadStats{Markets: 2, Chunks: 1, Instruments: 6}, nil
}

func (f *fakeLoader) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestPoller_Poll(t *testing.T) {
	loader := &fakeLoader{}
	filter := instrument.MarketFilter{instrument.FilterEventTypeName: {"Horse Racing"}}

	var handled atomic.Int32
	onLoad := func(_ context.Context, stats instrument.LoadStats) {
		if stats.Instruments != 6 {
			t.Errorf("stats.Instruments = %d, want 6", stats.Instruments)
		}
		handled.Add(1)
	}

	p := New(Config{Interval: time.Hour, Timeout: time.Minute}, loader, filter, onLoad, nil)
	p.ctx = context.Background()

	p.poll()

	if got := loader.callCount(); got != 1 {
		t.Fatalf("LoadAll calls = %d, want 1", got)
	}
	if got := loader.filters[0][instrument.FilterEventTypeName]; len(got) != 1 || got[0] != "Horse Racing" {
		t.Errorf("filter = %v, want [Horse Racing]", got)
	}
	if !loader.deadlines[0] {
		t.Error("LoadAll context has no deadline")
	}
	if got := handled.Load(); got != 1 {
		t.Errorf("onLoad calls = %d, want 1", got)
	}

	stats := p.Stats()
	if stats.Cycles != 1 || stats.Loads != 1 || stats.Errors != 0 || stats.Skipped != 0 {
		t.Errorf("Stats() = %+v", stats)
	}
}

func TestPoller_PollError(t *testing.T) {
	loader := &fakeLoader{err: errors.New("navigation unavailable")}

	var handled atomic.Int32
	onLoad := func(context.Context, instrument.LoadStats) { handled.Add(1) }

	p := New(DefaultConfig(), loader, nil, onLoad, nil)
	p.ctx = context.Background()

	p.poll()

	if got := handled.Load(); got != 0 {
		t.Errorf("onLoad calls = %d, want 0", got)
	}
	stats := p.Stats()
	if stats.Errors != 1 || stats.Loads != 0 {
		t.Errorf("Stats() = %+v, want 1 error", stats)
	}
}

func TestPoller_SkipsWhenLoadRunning(t *testing.T) {
	loader := &fakeLoader{err: instrument.ErrLoadInProgress}

	p := New(DefaultConfig(), loader, nil, nil, nil)
	p.ctx = context.Background()

	p.poll()

	stats := p.Stats()
	if stats.Skipped != 1 || stats.Errors != 0 {
		t.Errorf("Stats() = %+v, want 1 skipped", stats)
	}
}

func TestPoller_NoTimeout(t *testing.T) {
	loader := &fakeLoader{}

	p := New(Config{Interval: time.Hour}, loader, nil, nil, nil)
	p.ctx = context.Background()

	p.poll()

	if loader.deadlines[0] {
		t.Error("LoadAll context has a deadline, want none")
	}
}

func TestPoller_StartStop(t *testing.T) {
	loader := &fakeLoader{}

	p := New(Config{Interval: 50 * time.Millisecond, Timeout: time.Second}, loader, nil, nil, nil)

	ctx := context.Background()
	if err := p.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// Immediate cycle plus at least one tick.
	time.Sleep(120 * time.Millisecond)

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	if err := p.Stop(stopCtx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	if got := loader.callCount(); got < 2 {
		t.Errorf("LoadAll calls = %d, want >= 2", got)
	}
}

func TestPoller_SkipFirst(t *testing.T) {
	loader := &fakeLoader{}

	p := New(Config{Interval: time.Hour, SkipFirst: true}, loader, nil, nil, nil)

	ctx := context.Background()
	if err := p.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	time.Sleep(20 * time.Millisecond)

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := p.Stop(stopCtx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	if got := loader.callCount(); got != 0 {
		t.Errorf("LoadAll calls = %d, want 0", got)
	}
}

func TestPoller_StopCancelsRunningLoad(t *testing.T) {
	loader := &fakeLoader{block: make(chan struct{})}

	p := New(Config{Interval: time.Hour}, loader, nil, nil, nil)

	ctx := context.Background()
	if err := p.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	time.Sleep(20 * time.Millisecond)

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := p.Stop(stopCtx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	if got := p.Stats().Errors; got != 1 {
		t.Errorf("Errors = %d, want 1", got)
	}
}

func TestNew_DefaultInterval(t *testing.T) {
	p := New(Config{}, &fakeLoader{}, nil, nil, nil)
	if p.cfg.Interval != time.Hour {
		t.Errorf("Interval = %v, want %v", p.cfg.Interval, time.Hour)
	}
}
