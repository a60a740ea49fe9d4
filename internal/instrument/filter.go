package instrument

import (
	"slices"
	"sort"
)

// Market filter keys.
const (
	FilterEventTypeName         = "event_type_name"
	FilterEventTypeID           = "event_type_id"
	FilterEventName             = "event_name"
	FilterEventID               = "event_id"
	FilterEventCountryCode      = "event_countryCode"
	FilterMarketName            = "market_name"
	FilterMarketID              = "market_id"
	FilterMarketExchangeID      = "market_exchangeId"
	FilterMarketType            = "market_marketType"
	FilterMarketStartTime       = "market_marketStartTime"
	FilterMarketNumberOfWinners = "market_numberOfWinners"
)

var validMarketFilterKeys = []string{
	FilterEventTypeName,
	FilterEventTypeID,
	FilterEventName,
	FilterEventID,
	FilterEventCountryCode,
	FilterMarketName,
	FilterMarketID,
	FilterMarketExchangeID,
	FilterMarketType,
	FilterMarketStartTime,
	FilterMarketNumberOfWinners,
}

// Instrument-level keys that may appear in a market filter but do not apply to navigation.
var instrumentOnlyKeys = []string{"selection_id", "selection_handicap"}

// ValidMarketFilterKeys returns the keys accepted in a MarketFilter.
func ValidMarketFilterKeys() []string {
	return slices.Clone(validMarketFilterKeys)
}

// MarketFilter selects navigation markets. A market matches when, for every key, its
// attribute equals one of the listed values. An empty filter matches every market.
type MarketFilter map[string][]string

// marketOnly returns a copy of f without instrument-level keys.
func (f MarketFilter) marketOnly() MarketFilter {
	out := make(MarketFilter, len(f))
	for k, v := range f {
		if slices.Contains(instrumentOnlyKeys, k) {
			continue
		}
		out[k] = v
	}
	return out
}

// Validate checks every key against the allow-list.
// Keys are checked in sorted order so the reported key is deterministic.
func (f MarketFilter) Validate() error {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if !slices.Contains(validMarketFilterKeys, k) {
			return &InvalidFilterKeyError{Key: k}
		}
	}
	return nil
}

// Matches reports whether m satisfies every key of the filter.
func (f MarketFilter) Matches(m FlattenedMarket) bool {
	for k, values := range f {
		v, ok := m.Attr(k)
		if !ok || !slices.Contains(values, v) {
			return false
		}
	}
	return true
}
