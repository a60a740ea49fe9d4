package model

import (
	"time"

	"github.com/google/uuid"
)

// Venue is the venue name stamped on every instrument.
const Venue = "BETFAIR"

// Key identifies an instrument by its composite (market, selection, handicap) tuple.
// Handicap must already be normalized.
type Key struct {
	MarketID    string
	SelectionID string
	Handicap    string
}

// String returns the symbol form of the key ("1.23-456-0.0").
func (k Key) String() string {
	return k.MarketID + "-" + k.SelectionID + "-" + k.Handicap
}

// Instrument is a betting instrument: one selection within one market.
type Instrument struct {
	VenueName string // Always Venue

	EventTypeID   string // e.g. "1"
	EventTypeName string // e.g. "Soccer"

	CompetitionID   string // Empty when the market has no competition
	CompetitionName string

	EventID          string
	EventName        string
	EventCountryCode string
	EventOpenDate    time.Time

	BettingType     string // ODDS, ASIAN_HANDICAP_DOUBLE_LINE, ...
	MarketID        string // e.g. "1.23"
	MarketName      string
	MarketStartTime time.Time // Unix epoch when unknown
	MarketType      string    // MATCH_ODDS, WIN, ...

	SelectionID       string
	SelectionName     string
	SelectionHandicap string // Normalized

	Currency string // Account settlement currency

	TsEvent int64 // Mapping time (ns since epoch)
	TsInit  int64 // Mapping time (ns since epoch)

	// Info is the upstream payload the instrument was built from, kept for diagnostics.
	Info map[string]any

	// LoadID identifies the load cycle or stream batch that produced the instrument.
	LoadID uuid.UUID
}

// Key returns the composite key of the instrument.
func (i *Instrument) Key() Key {
	return Key{
		MarketID:    i.MarketID,
		SelectionID: i.SelectionID,
		Handicap:    i.SelectionHandicap,
	}
}

// ID returns the registry identifier of the instrument.
func (i *Instrument) ID() string {
	return i.Key().String() + "." + i.VenueName
}
