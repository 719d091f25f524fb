// Package config loads application configuration from environment variables.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Defaults for optional variables.
const (
	DefaultListenAddr       = "127.0.0.1:8080"
	DefaultRequestTimeout   = 30 * time.Second
	DefaultProbeConcurrency = 4
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	// DataDir and LegacyDir override the resolved on-disk layout; empty means
	// the OS default.
	DataDir          string
	LegacyDir        string
	ListenAddr       string
	RequestTimeout   time.Duration
	ProbeConcurrency int
	LogLevel         slog.Level
}

// Load reads configuration from environment variables and returns a validated Config.
// All variables are optional: ESDESK_DATA_DIR, ESDESK_LEGACY_DIR,
// ESDESK_LISTEN_ADDR (127.0.0.1:8080), ESDESK_REQUEST_TIMEOUT (30s),
// ESDESK_PROBE_CONCURRENCY (4) and ESDESK_LOG_LEVEL (info).
func Load() (*Config, error) {
	cfg := &Config{
		DataDir:          os.Getenv("ESDESK_DATA_DIR"),
		LegacyDir:        os.Getenv("ESDESK_LEGACY_DIR"),
		ListenAddr:       DefaultListenAddr,
		RequestTimeout:   DefaultRequestTimeout,
		ProbeConcurrency: DefaultProbeConcurrency,
		LogLevel:         slog.LevelInfo,
	}

	if v, ok := os.LookupEnv("ESDESK_LISTEN_ADDR"); ok {
		cfg.ListenAddr = strings.TrimSpace(v)
	}

	if v, ok := os.LookupEnv("ESDESK_REQUEST_TIMEOUT"); ok {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("ESDESK_REQUEST_TIMEOUT has invalid duration %q: %w", v, err)
		}
		cfg.RequestTimeout = parsed
	}

	if v, ok := os.LookupEnv("ESDESK_PROBE_CONCURRENCY"); ok {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("ESDESK_PROBE_CONCURRENCY has invalid number %q: %w", v, err)
		}
		cfg.ProbeConcurrency = parsed
	}

	if v, ok := os.LookupEnv("ESDESK_LOG_LEVEL"); ok && v != "" {
		if err := cfg.LogLevel.UnmarshalText([]byte(v)); err != nil {
			return nil, fmt.Errorf("ESDESK_LOG_LEVEL has invalid level %q: %w", v, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.ListenAddr, validation.Required),
		validation.Field(&c.RequestTimeout, validation.Required, validation.Min(time.Second), validation.Max(10*time.Minute)),
		validation.Field(&c.ProbeConcurrency, validation.Required, validation.Min(1), validation.Max(32)),
	)
}
