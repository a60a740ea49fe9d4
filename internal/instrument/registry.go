package instrument

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rickgao/betfair-instruments/internal/model"
)

// MaxMissingKeys bounds the set of unresolved keys kept for warning deduplication.
const MaxMissingKeys = 10000

// RegistryStats holds registry counters.
type RegistryStats struct {
	Instruments int
	Memoized    int
	Missing     int
	Scans       int64
}

// Registry holds loaded instruments and resolves composite keys to them.
// Readers see a consistent, possibly partial, registry while a load is in flight.
type Registry struct {
	logger *slog.Logger

	mu          sync.RWMutex
	instruments map[string]model.Instrument // By instrument ID
	memo        map[model.Key]string        // Resolved key -> instrument ID
	missing     map[model.Key]struct{}      // Keys already warned about

	scans atomic.Int64
}

// NewRegistry creates an empty Registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		logger:      logger,
		instruments: make(map[string]model.Instrument),
		memo:        make(map[model.Key]string),
		missing:     make(map[model.Key]struct{}),
	}
}

// Add inserts or overwrites one instrument.
func (r *Registry) Add(inst model.Instrument) {
	r.mu.Lock()
	r.instruments[inst.ID()] = inst
	r.mu.Unlock()
}

// AddBulk inserts or overwrites a batch of instruments under one lock.
func (r *Registry) AddBulk(instruments []model.Instrument) {
	r.mu.Lock()
	for _, inst := range instruments {
		r.instruments[inst.ID()] = inst
	}
	r.mu.Unlock()
}

// Get returns the instrument with the given ID.
func (r *Registry) Get(id string) (model.Instrument, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	inst, ok := r.instruments[id]
	return inst, ok
}

// Resolve returns the instrument for (marketID, selectionID, handicap). The handicap is
// normalized first. A resolved key is memoized and later calls do not scan. A key with no
// match returns false and is warned about once per load. A key with several matches
// returns an *AmbiguousResolutionError and is not memoized.
func (r *Registry) Resolve(marketID, selectionID, handicap string) (model.Instrument, bool, error) {
	hc, err := ParseHandicap(handicap)
	if err != nil {
		return model.Instrument{}, false, err
	}
	key := model.Key{MarketID: marketID, SelectionID: selectionID, Handicap: hc}

	r.mu.RLock()
	if inst, ok := r.memoizedLocked(key); ok {
		r.mu.RUnlock()
		return inst, true, nil
	}
	r.scans.Add(1)
	var matches []model.Instrument
	for _, inst := range r.instruments {
		if inst.Key() == key {
			matches = append(matches, inst)
		}
	}
	r.mu.RUnlock()

	switch len(matches) {
	case 0:
		if r.markMissing(key) {
			r.logger.Warn("found 0 instruments for key",
				"market_id", key.MarketID,
				"selection_id", key.SelectionID,
				"handicap", key.Handicap,
			)
		}
		return model.Instrument{}, false, nil
	case 1:
		r.mu.Lock()
		r.memo[key] = matches[0].ID()
		delete(r.missing, key)
		r.mu.Unlock()
		return matches[0], true, nil
	default:
		return model.Instrument{}, false, &AmbiguousResolutionError{Key: key, Count: len(matches)}
	}
}

// markMissing records key as unresolved and reports whether it was new. The set is
// emptied when it reaches MaxMissingKeys, so a key may be warned about again.
func (r *Registry) markMissing(key model.Key) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, warned := r.missing[key]; warned {
		return false
	}
	if len(r.missing) >= MaxMissingKeys {
		clear(r.missing)
	}
	r.missing[key] = struct{}{}
	return true
}

// ForgetMissing drops the record of unresolved keys. Called after a full load so keys
// still missing are warned about again.
func (r *Registry) ForgetMissing() {
	r.mu.Lock()
	clear(r.missing)
	r.mu.Unlock()
}

func (r *Registry) memoizedLocked(key model.Key) (model.Instrument, bool) {
	id, ok := r.memo[key]
	if !ok {
		return model.Instrument{}, false
	}
	inst, ok := r.instruments[id]
	return inst, ok
}

// Search returns the instruments whose named attributes equal every value in filter,
// sorted by ID. A nil or empty filter returns every instrument.
func (r *Registry) Search(filter map[string]string) ([]model.Instrument, error) {
	for name := range filter {
		if _, ok := attribute(&model.Instrument{}, name); !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownAttribute, name)
		}
	}

	r.mu.RLock()
	out := make([]model.Instrument, 0, len(r.instruments))
	for _, inst := range r.instruments {
		if matchesAttributes(&inst, filter) {
			out = append(out, inst)
		}
	}
	r.mu.RUnlock()

	sortByID(out)
	return out, nil
}

// Instruments returns every instrument, sorted by ID.
func (r *Registry) Instruments() []model.Instrument {
	out, _ := r.Search(nil)
	return out
}

// Count returns the number of instruments.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.instruments)
}

// Stats returns current registry statistics.
func (r *Registry) Stats() RegistryStats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return RegistryStats{
		Instruments: len(r.instruments),
		Memoized:    len(r.memo),
		Missing:     len(r.missing),
		Scans:       r.scans.Load(),
	}
}

// SearchAttributes lists the attribute names accepted by Search.
var SearchAttributes = []string{
	"venue_name",
	"event_type_id",
	"event_type_name",
	"competition_id",
	"competition_name",
	"event_id",
	"event_name",
	"event_country_code",
	"event_open_date",
	"betting_type",
	"market_id",
	"market_name",
	"market_start_time",
	"market_type",
	"selection_id",
	"selection_name",
	"selection_handicap",
	"currency",
}

// attribute returns the named attribute of inst. Times are formatted as RFC 3339 in UTC.
func attribute(inst *model.Instrument, name string) (string, bool) {
	switch name {
	case "venue_name":
		return inst.VenueName, true
	case "event_type_id":
		return inst.EventTypeID, true
	case "event_type_name":
		return inst.EventTypeName, true
	case "competition_id":
		return inst.CompetitionID, true
	case "competition_name":
		return inst.CompetitionName, true
	case "event_id":
		return inst.EventID, true
	case "event_name":
		return inst.EventName, true
	case "event_country_code":
		return inst.EventCountryCode, true
	case "event_open_date":
		return inst.EventOpenDate.UTC().Format(time.RFC3339), true
	case "betting_type":
		return inst.BettingType, true
	case "market_id":
		return inst.MarketID, true
	case "market_name":
		return inst.MarketName, true
	case "market_start_time":
		return inst.MarketStartTime.UTC().Format(time.RFC3339), true
	case "market_type":
		return inst.MarketType, true
	case "selection_id":
		return inst.SelectionID, true
	case "selection_name":
		return inst.SelectionName, true
	case "selection_handicap":
		return inst.SelectionHandicap, true
	case "currency":
		return inst.Currency, true
	}
	return "", false
}

func matchesAttributes(inst *model.Instrument, filter map[string]string) bool {
	for name, want := range filter {
		if got, _ := attribute(inst, name); got != want {
			return false
		}
	}
	return true
}

func sortByID(instruments []model.Instrument) {
	sort.Slice(instruments, func(i, j int) bool {
		return instruments[i].ID() < instruments[j].ID()
	})
}
