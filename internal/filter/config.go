package filter

import (
	"fmt"
	"os"
	"time"

	"golang.org/x/text/language"
)

// Config holds evaluation settings shared by all tables.
type Config struct {
	// Timezone used for "today" and the other date placeholders.
	// Empty means the process local zone.
	Timezone string `yaml:"timezone"`
	// Language tag for text sorting, e.g. "de".
	Language string `yaml:"language"`
	// LogDedupWindow collapses repeated evaluator warnings.
	LogDedupWindow time.Duration `yaml:"log_dedup_window"`
}

// DefaultConfig returns the filter defaults.
func DefaultConfig() Config {
	return Config{
		Language:       "und",
		LogDedupWindow: time.Minute,
	}
}

// ApplyDefaults fills in zero values with defaults.
func (c *Config) ApplyDefaults() {
	defaults := DefaultConfig()
	if c.Language == "" {
		c.Language = defaults.Language
	}
	if c.LogDedupWindow == 0 {
		c.LogDedupWindow = defaults.LogDedupWindow
	}
}

// ApplyEnvOverrides applies environment variable overrides.
func (c *Config) ApplyEnvOverrides() {
	if tz := os.Getenv("WORKTRACK_TIMEZONE"); tz != "" {
		c.Timezone = tz
	}
}

// ResolvePaths resolves relative paths using the given base directory.
// No paths to resolve in filter config.
func (c *Config) ResolvePaths(_ string) { _ = c }

// Validate returns an error if the configuration is invalid.
func (c *Config) Validate() error {
	if _, err := c.Location(); err != nil {
		return err
	}
	if _, err := language.Parse(c.Language); err != nil {
		return fmt.Errorf("filter.language %q: %w", c.Language, err)
	}
	if c.LogDedupWindow < 0 {
		return fmt.Errorf("filter.log_dedup_window must not be negative")
	}
	return nil
}

// Location returns the configured evaluation zone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("filter.timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Tag returns the configured collation language.
func (c *Config) Tag() language.Tag {
	tag, err := language.Parse(c.Language)
	if err != nil {
		return language.Und
	}
	return tag
}
