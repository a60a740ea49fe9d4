package config

import (
	"log/slog"
	"strings"
	"time"
)

// Config is the root configuration for the instruments service and its tools.
type Config struct {
	Instance InstanceConfig `yaml:"instance"`
	API      APIConfig      `yaml:"api"`
	Provider ProviderConfig `yaml:"provider"`
	Stream   StreamConfig   `yaml:"stream"`
	Poller   PollerConfig   `yaml:"poller"`
	Database DatabaseConfig `yaml:"database"`
	HTTP     HTTPConfig     `yaml:"http"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// InstanceConfig identifies this instance.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// APIConfig holds exchange REST API settings.
type APIConfig struct {
	RestURL          string        `yaml:"rest_url"`
	AppKey           string        `yaml:"app_key"`            // X-Application header
	SessionToken     string        `yaml:"session_token"`      // X-Authentication header
	SessionTokenPath string        `yaml:"session_token_path"` // File holding the session token
	Timeout          time.Duration `yaml:"timeout"`
	MaxRetries       int           `yaml:"max_retries"`
	RetryBackoff     time.Duration `yaml:"retry_backoff"`
	Login            LoginConfig   `yaml:"login"` // Certificate login, used when no session token is set
}

// LoginConfig holds certificate login settings.
type LoginConfig struct {
	URL      string `yaml:"url"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	CertPath string `yaml:"cert_path"`
	KeyPath  string `yaml:"key_path"`
}

// Enabled reports whether certificate login is configured.
func (l LoginConfig) Enabled() bool {
	return l.Username != ""
}

// ProviderConfig holds instrument provider settings.
type ProviderConfig struct {
	ChunkSize   int                 `yaml:"chunk_size"`
	Concurrency int                 `yaml:"concurrency"`
	LoadTimeout time.Duration       `yaml:"load_timeout"`
	Currency    string              `yaml:"currency"` // Skips the account lookup when set
	Filters     map[string][]string `yaml:"filters"`
}

// StreamConfig holds exchange stream settings.
type StreamConfig struct {
	Enabled            bool          `yaml:"enabled"`
	Address            string        `yaml:"address"` // host:port, dialed over TLS
	HeartbeatInterval  time.Duration `yaml:"heartbeat_interval"`
	IdleTimeout        time.Duration `yaml:"idle_timeout"`
	BufferSize         int           `yaml:"buffer_size"`
	ReconnectBaseDelay time.Duration `yaml:"reconnect_base_delay"`
	ReconnectMaxDelay  time.Duration `yaml:"reconnect_max_delay"`
	MarketIDs          []string      `yaml:"market_ids"`
	EventTypeIDs       []string      `yaml:"event_type_ids"`
	CountryCodes       []string      `yaml:"country_codes"`
	MarketTypes        []string      `yaml:"market_types"`
}

// PollerConfig holds periodic reload settings.
type PollerConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
	Timeout  time.Duration `yaml:"timeout"`
}

// DatabaseConfig holds the Postgres connection used to persist instruments.
type DatabaseConfig struct {
	Postgres DBConfig `yaml:"postgres"`
}

// Enabled reports whether a database is configured.
func (d DatabaseConfig) Enabled() bool {
	return d.Postgres.Host != ""
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// HTTPConfig holds the health and query server settings.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// SlogLevel returns the configured level, defaulting to info.
func (l LoggingConfig) SlogLevel() slog.Level {
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
