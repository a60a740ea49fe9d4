package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
)

// Navigation node types.
const (
	NodeGroup     = "GROUP"
	NodeEventType = "EVENT_TYPE"
	NodeEvent     = "EVENT"
	NodeRace      = "RACE"
	NodeMarket    = "MARKET"
)

// FlexID is an identifier the API sends either as a JSON string or a JSON number.
type FlexID string

// UnmarshalJSON accepts "123", 123 and null.
func (id *FlexID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = FlexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id: %w", err)
	}
	*id = FlexID(n.String())
	return nil
}

// NavigationNode is one node of the navigation menu tree from GET navigation/menu.json.
type NavigationNode struct {
	Type     string           `json:"type"`
	ID       FlexID           `json:"id"`
	Name     string           `json:"name"`
	Children []NavigationNode `json:"children,omitempty"`

	// EVENT / RACE fields
	CountryCode string `json:"countryCode,omitempty"`
	Venue       string `json:"venue,omitempty"`
	StartTime   string `json:"startTime,omitempty"`

	// MARKET fields
	ExchangeID      FlexID `json:"exchangeId,omitempty"`
	MarketType      string `json:"marketType,omitempty"`
	MarketStartTime string `json:"marketStartTime,omitempty"`
	NumberOfWinners FlexID `json:"numberOfWinners,omitempty"`
}

// MarketProjection selects the optional sections of a catalogue record.
type MarketProjection string

const (
	ProjectionCompetition       MarketProjection = "COMPETITION"
	ProjectionEvent             MarketProjection = "EVENT"
	ProjectionEventType         MarketProjection = "EVENT_TYPE"
	ProjectionMarketStartTime   MarketProjection = "MARKET_START_TIME"
	ProjectionMarketDescription MarketProjection = "MARKET_DESCRIPTION"
	ProjectionRunnerDescription MarketProjection = "RUNNER_DESCRIPTION"
	ProjectionRunnerMetadata    MarketProjection = "RUNNER_METADATA"
)

// MarketCatalogue is a record from POST listMarketCatalogue.
type MarketCatalogue struct {
	MarketID        string             `json:"marketId"`
	MarketName      string             `json:"marketName"`
	MarketStartTime string             `json:"marketStartTime,omitempty"` // ISO 8601
	Description     *MarketDescription `json:"description,omitempty"`
	TotalMatched    float64            `json:"totalMatched,omitempty"`
	Runners         []RunnerCatalog    `json:"runners,omitempty"`
	EventType       *EventType         `json:"eventType,omitempty"`
	Competition     *Competition       `json:"competition,omitempty"`
	Event           *Event             `json:"event,omitempty"`

	// Raw is the record exactly as received.
	Raw json.RawMessage `json:"-"`
}

// UnmarshalJSON decodes the record and keeps a copy of the raw bytes.
func (m *MarketCatalogue) UnmarshalJSON(data []byte) error {
	type plain MarketCatalogue
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*m = MarketCatalogue(p)
	m.Raw = append(json.RawMessage(nil), data...)
	return nil
}

// MarketDescription holds the MARKET_DESCRIPTION projection.
type MarketDescription struct {
	PersistenceEnabled bool    `json:"persistenceEnabled"`
	BspMarket          bool    `json:"bspMarket"`
	MarketTime         string  `json:"marketTime,omitempty"`
	SuspendTime        string  `json:"suspendTime,omitempty"`
	BettingType        string  `json:"bettingType"`
	TurnInPlayEnabled  bool    `json:"turnInPlayEnabled"`
	MarketType         string  `json:"marketType"`
	Regulator          string  `json:"regulator,omitempty"`
	MarketBaseRate     float64 `json:"marketBaseRate,omitempty"`
	Rules              string  `json:"rules,omitempty"`
}

// RunnerCatalog is one selection of a catalogue record.
type RunnerCatalog struct {
	SelectionID  int64             `json:"selectionId"`
	RunnerName   string            `json:"runnerName"`
	Handicap     json.Number       `json:"handicap"`
	SortPriority int               `json:"sortPriority,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// SelectionIDString returns the selection id in its string form.
func (r RunnerCatalog) SelectionIDString() string {
	return strconv.FormatInt(r.SelectionID, 10)
}

// EventType holds the EVENT_TYPE projection.
type EventType struct {
	ID   FlexID `json:"id"`
	Name string `json:"name"`
}

// Competition holds the COMPETITION projection.
type Competition struct {
	ID   FlexID `json:"id"`
	Name string `json:"name"`
}

// Event holds the EVENT projection.
type Event struct {
	ID          FlexID `json:"id"`
	Name        string `json:"name"`
	CountryCode string `json:"countryCode,omitempty"`
	Timezone    string `json:"timezone,omitempty"`
	Venue       string `json:"venue,omitempty"`
	OpenDate    string `json:"openDate,omitempty"` // ISO 8601
}

// MarketFilterParams is the filter section of a listMarketCatalogue request.
type MarketFilterParams struct {
	MarketIDs []string `json:"marketIds,omitempty"`
}

// listMarketCatalogueRequest is the body of POST listMarketCatalogue.
type listMarketCatalogueRequest struct {
	Filter           MarketFilterParams `json:"filter"`
	MarketProjection []MarketProjection `json:"marketProjection,omitempty"`
	MaxResults       int                `json:"maxResults"`
}

// PriceProjection selects the price data returned by listMarketBook.
type PriceProjection struct {
	PriceData []string `json:"priceData"`
}

// listMarketBookRequest is the body of POST listMarketBook.
type listMarketBookRequest struct {
	MarketIDs       []string        `json:"marketIds"`
	PriceProjection PriceProjection `json:"priceProjection"`
}

// MarketBook is the dynamic state of one market.
type MarketBook struct {
	MarketID     string          `json:"marketId"`
	Status       string          `json:"status"`
	InPlay       bool            `json:"inplay"`
	TotalMatched decimal.Decimal `json:"totalMatched"`
	Runners      []RunnerBook    `json:"runners"`
}

// RunnerBook is the dynamic state of one runner. Volume and price are absent for
// runners that have not traded.
type RunnerBook struct {
	SelectionID     int64               `json:"selectionId"`
	Handicap        json.Number         `json:"handicap"`
	Status          string              `json:"status"`
	LastPriceTraded decimal.NullDecimal `json:"lastPriceTraded"`
	TotalMatched    decimal.NullDecimal `json:"totalMatched"`
}

// AccountDetails is the response of POST getAccountDetails.
type AccountDetails struct {
	CurrencyCode  string  `json:"currencyCode"`
	FirstName     string  `json:"firstName"`
	LastName      string  `json:"lastName"`
	LocaleCode    string  `json:"localeCode"`
	Region        string  `json:"region"`
	Timezone      string  `json:"timezone"`
	DiscountRate  float64 `json:"discountRate"`
	PointsBalance int     `json:"pointsBalance"`
	CountryCode   string  `json:"countryCode"`
}
