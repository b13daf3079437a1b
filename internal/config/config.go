package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/worktrack/worktrack/internal/filter"
	"github.com/worktrack/worktrack/internal/identity"
	"github.com/worktrack/worktrack/internal/pubsub"
	"github.com/worktrack/worktrack/internal/savedfilter"
	"github.com/worktrack/worktrack/internal/server"
	"github.com/worktrack/worktrack/internal/table"
	"gopkg.in/yaml.v3"
)

// DefaultDir is the config directory used when none is given.
const DefaultDir = "config"

// Config holds the application configuration
type Config struct {
	Server  server.Config `yaml:"server"`
	Logging LoggingConfig `yaml:"logging"`

	// Components
	Storage  savedfilter.Config `yaml:"storage"`
	Identity identity.Config    `yaml:"identity"`
	Events   pubsub.Config      `yaml:"events"`
	Filter   filter.Config      `yaml:"filter"`
	Tables   table.Config       `yaml:"tables"`
}

// Default returns a configuration with every section at its defaults.
func Default() *Config {
	return &Config{
		Server:   server.DefaultConfig(),
		Logging:  DefaultLoggingConfig(),
		Storage:  savedfilter.DefaultConfig(),
		Identity: identity.DefaultConfig(),
		Events:   pubsub.DefaultConfig(),
		Filter:   filter.DefaultConfig(),
	}
}

// LoadConfig loads configuration from dir and environment variables.
// Order: defaults -> config.yml -> config.local.yml -> ApplyDefaults ->
// ApplyEnvOverrides -> ResolvePaths -> Validate
func LoadConfig(dir string) (*Config, error) {
	if dir == "" {
		dir = DefaultDir
	}

	// Defaults first so YAML can override them, including bool fields.
	cfg := Default()

	for _, name := range []string{"config.yml", "config.local.yml"} {
		if err := loadFile(filepath.Join(dir, name), cfg); err != nil {
			return nil, err
		}
	}

	if err := ApplyServiceConfigs(dir,
		&cfg.Server,
		&cfg.Logging,
		&cfg.Storage,
		&cfg.Identity,
		&cfg.Events,
		&cfg.Filter,
		&cfg.Tables,
	); err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}

	return cfg, nil
}

// loadFile merges filename into cfg. A missing file is skipped.
func loadFile(filename string, cfg *Config) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", filename, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", filename, err)
	}
	return nil
}
