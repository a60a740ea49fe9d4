package config

import (
	"time"

	"github.com/rickgao/betfair-instruments/internal/api"
	"github.com/rickgao/betfair-instruments/internal/instrument"
	"github.com/rickgao/betfair-instruments/internal/stream"
)

// Default values for optional configuration fields.
const (
	DefaultRestURL            = api.DefaultBaseURL
	DefaultStreamAddress      = stream.DefaultAddr
	DefaultAPITimeout         = 30 * time.Second
	DefaultMaxRetries         = 3
	DefaultRetryBackoff       = 1 * time.Second
	DefaultChunkSize          = instrument.DefaultChunkSize
	DefaultConcurrency        = 1
	DefaultLoadTimeout        = 5 * time.Minute
	DefaultHeartbeatInterval  = 30 * time.Second
	DefaultIdleTimeout        = 60 * time.Second
	DefaultStreamBufferSize   = 1000
	DefaultReconnectBaseDelay = 1 * time.Second
	DefaultReconnectMaxDelay  = 60 * time.Second
	DefaultPollInterval       = 1 * time.Hour
	DefaultPollTimeout        = 10 * time.Minute
	DefaultDBPort             = 5432
	DefaultDBSSLMode          = "prefer"
	DefaultMaxConns           = 10
	DefaultMinConns           = 2
	DefaultHTTPPort           = 8080
	DefaultLogLevel           = "info"
	DefaultLogFormat          = "text"
)

func (c *Config) applyDefaults() {
	// API defaults
	if c.API.RestURL == "" {
		c.API.RestURL = DefaultRestURL
	}
	if c.API.Timeout == 0 {
		c.API.Timeout = DefaultAPITimeout
	}
	if c.API.MaxRetries == 0 {
		c.API.MaxRetries = DefaultMaxRetries
	}
	if c.API.RetryBackoff == 0 {
		c.API.RetryBackoff = DefaultRetryBackoff
	}

	// Provider defaults
	if c.Provider.ChunkSize == 0 {
		c.Provider.ChunkSize = DefaultChunkSize
	}
	if c.Provider.Concurrency == 0 {
		c.Provider.Concurrency = DefaultConcurrency
	}
	if c.Provider.LoadTimeout == 0 {
		c.Provider.LoadTimeout = DefaultLoadTimeout
	}

	// Stream defaults
	if c.Stream.Address == "" {
		c.Stream.Address = DefaultStreamAddress
	}
	if c.Stream.HeartbeatInterval == 0 {
		c.Stream.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if c.Stream.IdleTimeout == 0 {
		c.Stream.IdleTimeout = DefaultIdleTimeout
	}
	if c.Stream.BufferSize == 0 {
		c.Stream.BufferSize = DefaultStreamBufferSize
	}
	if c.Stream.ReconnectBaseDelay == 0 {
		c.Stream.ReconnectBaseDelay = DefaultReconnectBaseDelay
	}
	if c.Stream.ReconnectMaxDelay == 0 {
		c.Stream.ReconnectMaxDelay = DefaultReconnectMaxDelay
	}

	// Poller defaults
	if c.Poller.Interval == 0 {
		c.Poller.Interval = DefaultPollInterval
	}
	if c.Poller.Timeout == 0 {
		c.Poller.Timeout = DefaultPollTimeout
	}

	// Database defaults
	if c.Database.Enabled() {
		applyDBDefaults(&c.Database.Postgres)
	}

	if c.HTTP.Port == 0 {
		c.HTTP.Port = DefaultHTTPPort
	}

	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = DefaultLogFormat
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}
