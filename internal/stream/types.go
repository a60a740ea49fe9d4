package stream

import (
	"crypto/tls"
	"encoding/json"
	"errors"
	"time"
)

// Exchange stream endpoints.
const (
	DefaultAddr     = "stream-api.betfair.com:443"
	IntegrationAddr = "stream-api-integration.betfair.com:443"
)

// Errors
var (
	ErrNotConnected    = errors.New("not connected")
	ErrStaleConnection = errors.New("connection stale (no data)")
	ErrAlreadyClosed   = errors.New("already closed")
	ErrUnknownOp       = errors.New("unknown stream op")
)

// Message ops.
const (
	OpConnection         = "connection"
	OpStatus             = "status"
	OpMarketChange       = "mcm"
	OpAuthentication     = "authentication"
	OpMarketSubscription = "marketSubscription"
	OpHeartbeat          = "heartbeat"
)

// Status codes.
const (
	StatusSuccess = "SUCCESS"
	StatusFailure = "FAILURE"
)

// FieldMarketDefinition is the market data field that carries market definitions.
const FieldMarketDefinition = "EX_MARKET_DEF"

// TimestampedMessage wraps raw message data with receive timestamp.
type TimestampedMessage struct {
	Data       []byte    // One JSON line without the CRLF terminator
	ReceivedAt time.Time // Local timestamp when the line was read
}

// AuthenticationRequest is the first message sent after connecting.
type AuthenticationRequest struct {
	Op      string `json:"op"`
	ID      int64  `json:"id"`
	AppKey  string `json:"appKey"`
	Session string `json:"session"`
}

// HeartbeatRequest keeps the connection alive. The server answers with a status message.
type HeartbeatRequest struct {
	Op string `json:"op"`
	ID int64  `json:"id"`
}

// MarketFilter restricts a market subscription.
type MarketFilter struct {
	MarketIDs    []string `json:"marketIds,omitempty"`
	EventTypeIDs []string `json:"eventTypeIds,omitempty"`
	EventIDs     []string `json:"eventIds,omitempty"`
	CountryCodes []string `json:"countryCodes,omitempty"`
	MarketTypes  []string `json:"marketTypes,omitempty"`
}

// MarketDataFilter selects the fields streamed for each market.
type MarketDataFilter struct {
	Fields []string `json:"fields"`
}

// MarketSubscriptionRequest subscribes to market changes.
type MarketSubscriptionRequest struct {
	Op               string           `json:"op"`
	ID               int64            `json:"id"`
	MarketFilter     MarketFilter     `json:"marketFilter"`
	MarketDataFilter MarketDataFilter `json:"marketDataFilter"`
}

// ConnectionMessage is sent by the server when the connection is accepted.
type ConnectionMessage struct {
	Op           string `json:"op"`
	ConnectionID string `json:"connectionId"`
}

// StatusMessage answers an authentication or subscription request.
type StatusMessage struct {
	Op               string `json:"op"`
	ID               int64  `json:"id,omitempty"`
	StatusCode       string `json:"statusCode"`
	ErrorCode        string `json:"errorCode,omitempty"`
	ErrorMessage     string `json:"errorMessage,omitempty"`
	ConnectionClosed bool   `json:"connectionClosed,omitempty"`
}

// MarketChangeMessage is an "mcm" message.
type MarketChangeMessage struct {
	Op  string         `json:"op"`
	ID  int64          `json:"id,omitempty"`
	Clk string         `json:"clk,omitempty"`
	Pt  int64          `json:"pt"` // Publish time (ms since epoch)
	Ct  string         `json:"ct,omitempty"`
	Mc  []MarketChange `json:"mc,omitempty"`
}

// MarketChange is the change for a single market.
type MarketChange struct {
	ID               string            `json:"id"`
	Img              bool              `json:"img,omitempty"`
	MarketDefinition *MarketDefinition `json:"marketDefinition,omitempty"`
}

// MarketDefinition is the streaming description of a market.
// Field names on the wire are abbreviated; runner identifiers and names are optional.
type MarketDefinition struct {
	MarketID        string             `json:"-"` // From the enclosing MarketChange
	MarketName      string             `json:"name,omitempty"`
	EventTypeID     string             `json:"eventTypeId"`
	EventTypeName   string             `json:"eventTypeName,omitempty"`
	CompetitionID   string             `json:"competitionId,omitempty"`
	CompetitionName string             `json:"competitionName,omitempty"`
	EventID         string             `json:"eventId"`
	EventName       string             `json:"eventName,omitempty"`
	CountryCode     string             `json:"countryCode,omitempty"`
	Venue           string             `json:"venue,omitempty"`
	Timezone        string             `json:"timezone,omitempty"`
	OpenDate        string             `json:"openDate,omitempty"`
	MarketTime      string             `json:"marketTime,omitempty"`
	SuspendTime     string             `json:"suspendTime,omitempty"`
	BettingType     string             `json:"bettingType"`
	MarketType      string             `json:"marketType"`
	Status          string             `json:"status,omitempty"`
	InPlay          bool               `json:"inPlay,omitempty"`
	NumberOfWinners int                `json:"numberOfWinners,omitempty"`
	Version         int64              `json:"version,omitempty"`
	Runners         []RunnerDefinition `json:"runners"`

	// Raw is the definition exactly as received.
	Raw json.RawMessage `json:"-"`
}

// UnmarshalJSON decodes the definition and keeps a copy of the raw bytes.
func (d *MarketDefinition) UnmarshalJSON(data []byte) error {
	type plain MarketDefinition
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*d = MarketDefinition(p)
	d.Raw = append(json.RawMessage(nil), data...)
	return nil
}

// RunnerDefinition is one runner of a market definition.
type RunnerDefinition struct {
	ID           int64       `json:"id"`
	SelectionID  int64       `json:"selectionId,omitempty"`
	Name         string      `json:"name,omitempty"`
	Handicap     json.Number `json:"hc,omitempty"`
	Status       string      `json:"status,omitempty"`
	SortPriority int         `json:"sortPriority,omitempty"`
}

// ClientConfig configures a stream client.
type ClientConfig struct {
	Addr              string        // host:port of the stream endpoint
	TLSConfig         *tls.Config   // Optional; ServerName defaults to the host of Addr
	Plaintext         bool          // Dial without TLS (local test servers only)
	HeartbeatInterval time.Duration // Interval between heartbeat requests
	IdleTimeout       time.Duration // Max time without inbound data before the connection is stale
	WriteTimeout      time.Duration // Write deadline for sends
	BufferSize        int           // Message channel buffer size
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Addr:              DefaultAddr,
		HeartbeatInterval: 30 * time.Second,
		IdleTimeout:       60 * time.Second,
		WriteTimeout:      5 * time.Second,
		BufferSize:        1000,
	}
}
