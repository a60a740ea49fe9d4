package config

import (
	"errors"
	"fmt"
	"net"

	"github.com/rickgao/betfair-instruments/internal/api"
	"github.com/rickgao/betfair-instruments/internal/instrument"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if c.Instance.ID == "" {
		return errors.New("instance.id is required")
	}

	if c.API.AppKey == "" {
		return errors.New("api.app_key is required")
	}
	if c.API.SessionToken == "" && c.API.SessionTokenPath == "" && !c.API.Login.Enabled() {
		return errors.New("api.session_token, api.session_token_path or api.login is required")
	}
	if c.API.Login.Enabled() {
		if c.API.Login.Password == "" {
			return errors.New("api.login.password is required")
		}
		if c.API.Login.CertPath == "" || c.API.Login.KeyPath == "" {
			return errors.New("api.login.cert_path and api.login.key_path are required")
		}
	}
	if c.API.MaxRetries < 0 {
		return errors.New("api.max_retries must be >= 0")
	}
	if c.API.RetryBackoff <= 0 {
		return errors.New("api.retry_backoff must be > 0")
	}

	if c.Provider.ChunkSize < 1 || c.Provider.ChunkSize > api.MaxCatalogueResults {
		return fmt.Errorf("provider.chunk_size must be between 1 and %d, got %d", api.MaxCatalogueResults, c.Provider.ChunkSize)
	}
	if c.Provider.Concurrency < 1 {
		return errors.New("provider.concurrency must be >= 1")
	}
	if c.Provider.LoadTimeout <= 0 {
		return errors.New("provider.load_timeout must be > 0")
	}
	if err := instrument.MarketFilter(c.Provider.Filters).Validate(); err != nil {
		return fmt.Errorf("provider.filters: %w", err)
	}

	if c.Stream.Enabled {
		if c.Stream.Address == "" {
			return errors.New("stream.address is required when stream is enabled")
		}
		if _, _, err := net.SplitHostPort(c.Stream.Address); err != nil {
			return fmt.Errorf("stream.address: %w", err)
		}
		if c.Stream.BufferSize < 1 {
			return errors.New("stream.buffer_size must be >= 1")
		}
		if c.Stream.ReconnectMaxDelay < c.Stream.ReconnectBaseDelay {
			return errors.New("stream.reconnect_max_delay cannot be less than reconnect_base_delay")
		}
	}

	if c.Poller.Enabled {
		if c.Poller.Interval <= 0 {
			return errors.New("poller.interval must be > 0")
		}
		if c.Poller.Timeout <= 0 {
			return errors.New("poller.timeout must be > 0")
		}
	}

	if c.Database.Enabled() {
		if err := c.Database.Postgres.validate("database.postgres"); err != nil {
			return err
		}
	}

	if c.HTTP.Port < 1 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}

	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}

	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
