package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Load resolves the effective Config. Later sources win: New(ctx)
// defaults, then the YAML file named by HULAB_CONFIG (if set), then
// HULAB_* environment variables.
func Load(ctx context.Context) (*Config, error) {
	base := New(ctx)

	k := koanf.New(".")

	if path := os.Getenv("HULAB_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
		}
	}

	// HULAB_BATCH_SIZE becomes the flat key batch_size. Underscores stay
	// as-is so the keys line up with the koanf struct tags.
	envProvider := env.Provider("HULAB_", ".", func(s string) string {
		s = strings.ToLower(s)
		s = strings.TrimPrefix(s, "hulab_")
		return s
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	// Unmarshal over a copy so the caller's defaults stay intact.
	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// validate rejects configurations the client cannot run with.
func (c *Config) validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("%w: base_url must not be empty", ErrInvalidConfig)
	}
	if c.QueueSize <= 0 {
		return fmt.Errorf("%w: queue_size must be positive", ErrInvalidConfig)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("%w: batch_size must be positive", ErrInvalidConfig)
	}
	if c.BatchSize > c.QueueSize {
		return fmt.Errorf("%w: batch_size must not exceed queue_size", ErrInvalidConfig)
	}
	if c.WSMaxReconnect < 0 {
		return fmt.Errorf("%w: ws_max_reconnect must not be negative", ErrInvalidConfig)
	}
	return nil
}
