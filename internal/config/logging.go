package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

var (
	logLevels  = []string{"debug", "info", "warn", "error"}
	logFormats = []string{"text", "json"}
)

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level    string         `yaml:"level"`  // debug, info, warn, error
	Format   string         `yaml:"format"` // text, json
	Dir      string         `yaml:"dir"`
	Rotation RotationConfig `yaml:"rotation"`
	Console  OutputConfig   `yaml:"console"`
	File     FileConfig     `yaml:"file"`
}

// RotationConfig holds lumberjack rotation settings
type RotationConfig struct {
	MaxSize    int  `yaml:"max_size"`    // MB
	MaxBackups int  `yaml:"max_backups"` // files
	MaxAge     int  `yaml:"max_age"`     // days
	Compress   bool `yaml:"compress"`
}

// OutputConfig configures one log output. Empty level and format inherit
// the top-level values.
type OutputConfig struct {
	Enabled bool   `yaml:"enabled"`
	Level   string `yaml:"level"`
	Format  string `yaml:"format"`
}

// FileConfig configures the rotating log files.
type FileConfig struct {
	OutputConfig `yaml:",inline"`
	Async        AsyncConfig `yaml:"async"`
}

// AsyncConfig moves file writes onto a background goroutine.
type AsyncConfig struct {
	Enabled       bool          `yaml:"enabled"`
	BufferSize    int           `yaml:"buffer_size"`
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
}

// DefaultLoggingConfig returns default logging configuration
func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		Level:  "info",
		Format: "text",
		Dir:    "logs",
		Rotation: RotationConfig{
			MaxSize:    100,
			MaxBackups: 10,
			MaxAge:     30,
			Compress:   true,
		},
		// Output level and format inherit the top-level values.
		Console: OutputConfig{Enabled: true},
		File: FileConfig{
			OutputConfig: OutputConfig{Enabled: true},
			Async:        defaultAsyncConfig(),
		},
	}
}

func defaultAsyncConfig() AsyncConfig {
	return AsyncConfig{
		BufferSize:    4096,
		BatchSize:     64,
		FlushInterval: 200 * time.Millisecond,
	}
}

// ApplyDefaults fills in missing values with defaults.
// Compress is left alone: false cannot be told apart from unset.
func (c *LoggingConfig) ApplyDefaults() {
	defaults := DefaultLoggingConfig()
	if c.Level == "" {
		c.Level = defaults.Level
	}
	if c.Format == "" {
		c.Format = defaults.Format
	}
	if c.Dir == "" {
		c.Dir = defaults.Dir
	}

	if c.Rotation.MaxSize == 0 {
		c.Rotation.MaxSize = defaults.Rotation.MaxSize
	}
	if c.Rotation.MaxBackups == 0 {
		c.Rotation.MaxBackups = defaults.Rotation.MaxBackups
	}
	if c.Rotation.MaxAge == 0 {
		c.Rotation.MaxAge = defaults.Rotation.MaxAge
	}

	c.Console.inherit(c.Level, c.Format)
	c.File.inherit(c.Level, c.Format)

	async := defaultAsyncConfig()
	if c.File.Async.BufferSize == 0 {
		c.File.Async.BufferSize = async.BufferSize
	}
	if c.File.Async.BatchSize == 0 {
		c.File.Async.BatchSize = async.BatchSize
	}
	if c.File.Async.FlushInterval == 0 {
		c.File.Async.FlushInterval = async.FlushInterval
	}
}

// inherit enables an output that was left entirely unset and fills its
// level and format from the parent.
func (o *OutputConfig) inherit(level, format string) {
	if *o == (OutputConfig{}) {
		o.Enabled = true
	}
	if o.Level == "" {
		o.Level = level
	}
	if o.Format == "" {
		o.Format = format
	}
}

// ApplyEnvOverrides applies environment variable overrides.
// WORKTRACK_LOG_LEVEL sets the level of every output.
func (c *LoggingConfig) ApplyEnvOverrides() {
	if v := os.Getenv("WORKTRACK_LOG_LEVEL"); v != "" {
		level := strings.ToLower(v)
		c.Level = level
		c.Console.Level = level
		c.File.Level = level
	}
}

// ResolvePaths resolves a relative log dir. Paths starting with ".." are
// taken relative to configDir, anything else relative to its parent so that
// logs/ ends up next to config/.
func (c *LoggingConfig) ResolvePaths(configDir string) {
	if c.Dir == "" || filepath.IsAbs(c.Dir) {
		return
	}
	base := filepath.Dir(configDir)
	if strings.HasPrefix(c.Dir, "..") {
		base = configDir
	}
	c.Dir = filepath.Clean(filepath.Join(base, c.Dir))
}

// Validate validates the configuration
func (c *LoggingConfig) Validate() error {
	if !slices.Contains(logLevels, c.Level) {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Level)
	}
	if !slices.Contains(logFormats, c.Format) {
		return fmt.Errorf("invalid log format: %s (must be text or json)", c.Format)
	}
	if c.Dir == "" {
		return fmt.Errorf("log directory cannot be empty")
	}
	if err := c.Console.validate("console"); err != nil {
		return err
	}
	if err := c.File.validate("file"); err != nil {
		return err
	}

	if a := c.File.Async; c.File.Enabled && a.Enabled {
		if a.BufferSize <= 0 {
			return fmt.Errorf("logging.file.async.buffer_size must be positive, got %d", a.BufferSize)
		}
		if a.BatchSize <= 0 || a.BatchSize > a.BufferSize {
			return fmt.Errorf("logging.file.async.batch_size must be between 1 and buffer_size, got %d", a.BatchSize)
		}
		if a.FlushInterval <= 0 {
			return fmt.Errorf("logging.file.async.flush_interval must be positive, got %s", a.FlushInterval)
		}
	}
	return nil
}

func (o OutputConfig) validate(name string) error {
	if !o.Enabled {
		return nil
	}
	if o.Level != "" && !slices.Contains(logLevels, o.Level) {
		return fmt.Errorf("invalid %s log level: %s", name, o.Level)
	}
	if o.Format != "" && !slices.Contains(logFormats, o.Format) {
		return fmt.Errorf("invalid %s log format: %s", name, o.Format)
	}
	return nil
}
