package config

// ServiceConfig defines the standard configuration lifecycle methods.
// Each section of Config implements it so LoadConfig can treat them alike.
type ServiceConfig interface {
	// ApplyDefaults fills zero values with sensible defaults
	ApplyDefaults()

	// ApplyEnvOverrides applies environment variable overrides
	ApplyEnvOverrides()

	// ResolvePaths resolves relative paths against the config directory.
	// Runtime data (logs, the SQLite file) lands next to it, not inside it.
	ResolvePaths(configDir string)

	// Validate returns an error if the configuration is invalid.
	Validate() error
}

// ApplyServiceConfigs runs the lifecycle on each config in order and stops
// at the first validation error.
func ApplyServiceConfigs(configDir string, configs ...ServiceConfig) error {
	for _, cfg := range configs {
		cfg.ApplyDefaults()
		cfg.ApplyEnvOverrides()
		cfg.ResolvePaths(configDir)
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	return nil
}
