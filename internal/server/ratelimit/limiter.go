// Package ratelimit throttles API clients with per-key token buckets.
package ratelimit

import (
	"fmt"
	"time"
)

// Limiter decides whether a request identified by key may proceed.
type Limiter interface {
	// Allow consumes one token for key. When the bucket is empty it returns
	// false and how long the caller should wait before the next token.
	Allow(key string) (bool, time.Duration)

	// Reset forgets the bucket for key.
	Reset(key string)
}

// Config holds the rate limiting settings of the HTTP server.
type Config struct {
	Enabled bool `yaml:"enabled"`

	// Requests is the bucket capacity, refilled evenly over Window.
	Requests int           `yaml:"requests"`
	Window   time.Duration `yaml:"window"`

	// TrustProxy keys clients by X-Forwarded-For / X-Real-IP instead of the
	// socket address. Only enable behind a proxy that sets these headers.
	TrustProxy bool `yaml:"trust_proxy"`
}

// DefaultConfig returns the default rate limiting configuration.
func DefaultConfig() Config {
	return Config{
		Enabled:  true,
		Requests: 300,
		Window:   time.Minute,
	}
}

// ApplyDefaults fills unset capacity and window.
func (c *Config) ApplyDefaults() {
	d := DefaultConfig()
	if c.Requests == 0 {
		c.Requests = d.Requests
	}
	if c.Window == 0 {
		c.Window = d.Window
	}
}

// Validate checks that an enabled limiter has a usable bucket.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Requests <= 0 {
		return fmt.Errorf("rate_limit.requests must be positive, got %d", c.Requests)
	}
	if c.Window <= 0 {
		return fmt.Errorf("rate_limit.window must be positive, got %s", c.Window)
	}
	return nil
}
