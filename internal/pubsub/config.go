package pubsub

import (
	"fmt"
	"os"
)

// Config holds the event publishing configuration.
type Config struct {
	// NATSURL enables the JetStream publisher when set.
	NATSURL       string `yaml:"nats_url"`
	StreamName    string `yaml:"stream_name"`
	SubjectPrefix string `yaml:"subject_prefix"`
	RetryAttempts int    `yaml:"retry_attempts"`
	// Storage is "memory" or "file".
	Storage string `yaml:"storage"`
}

// DefaultConfig returns the event defaults. NATS is off by default.
func DefaultConfig() Config {
	return Config{
		StreamName:    "WORKTRACK",
		SubjectPrefix: "WORKTRACK",
		RetryAttempts: 3,
		Storage:       "file",
	}
}

// ApplyDefaults fills in zero values with defaults.
func (c *Config) ApplyDefaults() {
	defaults := DefaultConfig()
	if c.StreamName == "" {
		c.StreamName = defaults.StreamName
	}
	if c.SubjectPrefix == "" {
		c.SubjectPrefix = defaults.SubjectPrefix
	}
	if c.Storage == "" {
		c.Storage = defaults.Storage
	}
}

// ApplyEnvOverrides applies environment variable overrides.
func (c *Config) ApplyEnvOverrides() {
	if url := os.Getenv("WORKTRACK_NATS_URL"); url != "" {
		c.NATSURL = url
	}
}

// ResolvePaths resolves relative paths using the given base directory.
// No paths to resolve in events config.
func (c *Config) ResolvePaths(_ string) { _ = c }

// Validate returns an error if the configuration is invalid.
func (c *Config) Validate() error {
	if c.Storage != "memory" && c.Storage != "file" {
		return fmt.Errorf("events.storage must be memory or file, got %q", c.Storage)
	}
	if c.RetryAttempts < 0 {
		return fmt.Errorf("events.retry_attempts must not be negative")
	}
	return nil
}

// PublisherOptions converts the configuration for a stream publisher.
func (c *Config) PublisherOptions() PublisherOptions {
	storage := MemoryStorage
	if c.Storage == "file" {
		storage = FileStorage
	}
	return PublisherOptions{
		StreamName:    c.StreamName,
		SubjectPrefix: c.SubjectPrefix,
		RetryAttempts: c.RetryAttempts,
		Storage:       storage,
	}
}
