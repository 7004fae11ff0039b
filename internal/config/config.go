// Package config defines client configuration structures and loading hooks.
//
// Conventions:
// - Provide New(...) initializer to build a Config with defaults.
// - All future functions must accept context.Context as the first parameter.
// - External errors must be wrapped via this package's error helpers.
package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config contains portal client configuration. Extend as needed.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// BaseURL is the portal origin, e.g. "http://localhost:3000".
	BaseURL string `koanf:"base_url"`

	// WSURL overrides the live update endpoint. Derived from BaseURL when empty.
	WSURL string `koanf:"ws_url"`

	// StateDir holds the session file and the statement journal.
	StateDir string `koanf:"state_dir"`

	// HTTPTimeoutMS bounds every REST call.
	HTTPTimeoutMS int `koanf:"http_timeout_ms"`

	// OpsAddr configures the /healthz and /metrics listen address for watch mode.
	OpsAddr string `koanf:"ops_addr"`

	// QueueSize bounds the in-memory statement buffer.
	QueueSize int `koanf:"queue_size"`

	// BatchSize is the flush threshold: a full batch triggers an immediate send.
	BatchSize int `koanf:"batch_size"`

	// FlushIntervalMS flushes partial batches on a timer.
	FlushIntervalMS int `koanf:"flush_interval_ms"`

	// RetryDelayMS is the fixed delay before retrying a failed batch.
	RetryDelayMS int `koanf:"retry_delay_ms"`

	// DedupeSize sets the size of the statement ID deduplication cache.
	DedupeSize int `koanf:"dedupe_size"`

	// WSMaxReconnect caps reconnection attempts before giving up.
	WSMaxReconnect int `koanf:"ws_max_reconnect"`

	// WSReconnectDelayMS is the linear backoff unit: attempt N waits N*delay.
	WSReconnectDelayMS int `koanf:"ws_reconnect_delay_ms"`

	// WSHeartbeatIntervalMS paces client heartbeats on the live stream.
	WSHeartbeatIntervalMS int `koanf:"ws_heartbeat_interval_ms"`

	// OAuth settings for the authorization-code exchange.
	OAuthClientID     string `koanf:"oauth_client_id"`
	OAuthClientSecret string `koanf:"oauth_client_secret"`
	OAuthAuthURL      string `koanf:"oauth_auth_url"`
	OAuthTokenURL     string `koanf:"oauth_token_url"`
	OAuthRedirectURL  string `koanf:"oauth_redirect_url"`
}

// New creates a Config using defaults. Context is accepted first to satisfy
// the project-wide convention; it is reserved for future use and is currently
// unused.
func New(_ context.Context) *Config {
	c := &Config{
		LogLevel:              "info",
		BaseURL:               "http://localhost:3000",
		WSURL:                 "",
		StateDir:              defaultStateDir(),
		HTTPTimeoutMS:         15_000,
		OpsAddr:               ":9090",
		QueueSize:             1_000,
		BatchSize:             10,
		FlushIntervalMS:       30_000,
		RetryDelayMS:          5_000,
		DedupeSize:            10_000,
		WSMaxReconnect:        5,
		WSReconnectDelayMS:    3_000,
		WSHeartbeatIntervalMS: 30_000,
	}
	return c
}

// defaultStateDir resolves ~/.hulab, falling back to a relative dir when the
// home directory is unknown.
func defaultStateDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".hulab"
	}
	return filepath.Join(home, ".hulab")
}

// HTTPTimeout returns the REST call timeout as a duration.
func (c *Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutMS) * time.Millisecond
}

// FlushInterval returns the timer flush interval as a duration.
func (c *Config) FlushInterval() time.Duration {
	return time.Duration(c.FlushIntervalMS) * time.Millisecond
}

// RetryDelay returns the fixed retry delay as a duration.
func (c *Config) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelayMS) * time.Millisecond
}

// WSReconnectDelay returns the linear backoff unit as a duration.
func (c *Config) WSReconnectDelay() time.Duration {
	return time.Duration(c.WSReconnectDelayMS) * time.Millisecond
}

// WSHeartbeatInterval returns the heartbeat pace as a duration.
func (c *Config) WSHeartbeatInterval() time.Duration {
	return time.Duration(c.WSHeartbeatIntervalMS) * time.Millisecond
}

// WSEndpoint returns the live update URL, deriving ws(s):// from the portal
// origin unless WSURL is set explicitly.
func (c *Config) WSEndpoint() string {
	if c.WSURL != "" {
		return c.WSURL
	}
	u := c.BaseURL
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	return strings.TrimRight(u, "/") + "/ws"
}
