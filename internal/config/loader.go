package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes the environment variables that override config values.
const EnvPrefix = "INSTRUMENTS_"

// LookupFunc resolves an environment variable. os.LookupEnv satisfies it.
type LookupFunc func(key string) (string, bool)

// Load reads a YAML config file, expands environment references and applies
// INSTRUMENTS_* overrides. Unknown keys are rejected.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}

	cfg, err := Parse(data, os.LookupEnv)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML config bytes. ${VAR} and ${VAR:-fallback} are expanded through
// lookup before decoding, and INSTRUMENTS_* variables override the decoded values.
func Parse(data []byte, lookup LookupFunc) (*Config, error) {
	if lookup == nil {
		lookup = func(string) (string, bool) { return "", false }
	}

	expanded := os.Expand(string(data), func(ref string) string {
		name, fallback, hasFallback := strings.Cut(ref, ":-")
		if v, ok := lookup(name); ok && v != "" {
			return v
		}
		if hasFallback {
			return fallback
		}
		return ""
	})

	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader([]byte(expanded)))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config yaml: %w", err)
	}

	if err := applyEnvOverrides(&cfg, lookup); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnvOverrides sets the values that commonly differ between deployments of the
// same file.
func applyEnvOverrides(cfg *Config, lookup LookupFunc) error {
	if v, ok := lookup(EnvPrefix + "INSTANCE_ID"); ok && v != "" {
		cfg.Instance.ID = v
	}
	if v, ok := lookup(EnvPrefix + "LOG_LEVEL"); ok && v != "" {
		cfg.Logging.Level = v
	}
	if v, ok := lookup(EnvPrefix + "LOG_FORMAT"); ok && v != "" {
		cfg.Logging.Format = v
	}
	if v, ok := lookup(EnvPrefix + "HTTP_PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sHTTP_PORT: %w", EnvPrefix, err)
		}
		cfg.HTTP.Port = port
	}
	if v, ok := lookup(EnvPrefix + "STREAM_ENABLED"); ok && v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sSTREAM_ENABLED: %w", EnvPrefix, err)
		}
		cfg.Stream.Enabled = enabled
	}
	return nil
}

// LoadWithDefaults loads config and applies default values.
func LoadWithDefaults(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

// LoadAndValidate loads config, applies defaults, and validates.
func LoadAndValidate(path string) (*Config, error) {
	cfg, err := LoadWithDefaults(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config %s: %w", path, err)
	}
	return cfg, nil
}
