package identity

import (
	"fmt"
	"os"
	"time"
)

// minSecretLength is the shortest accepted HS256 secret, in bytes.
const minSecretLength = 32

// Config holds token verification settings.
type Config struct {
	// Secret is the HS256 key shared with the sign-on service.
	Secret string `yaml:"secret"`
	// Issuer, when set, must match the token's iss claim.
	Issuer string `yaml:"issuer"`
	// TokenTTL is the lifetime of tokens issued by Issue.
	TokenTTL time.Duration `yaml:"token_ttl"`
}

// DefaultConfig returns the identity defaults. Secret has no default.
func DefaultConfig() Config {
	return Config{
		Issuer:   "worktrack",
		TokenTTL: 12 * time.Hour,
	}
}

// ApplyDefaults fills in zero values with defaults.
func (c *Config) ApplyDefaults() {
	if c.TokenTTL == 0 {
		c.TokenTTL = DefaultConfig().TokenTTL
	}
}

// ApplyEnvOverrides applies environment variable overrides.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("WORKTRACK_JWT_SECRET"); v != "" {
		c.Secret = v
	}
}

// ResolvePaths resolves relative paths using the given base directory.
// No paths to resolve in identity config.
func (c *Config) ResolvePaths(_ string) { _ = c }

// Validate returns an error if the configuration is invalid.
func (c *Config) Validate() error {
	if len(c.Secret) < minSecretLength {
		return fmt.Errorf("identity.secret must be at least %d bytes (set WORKTRACK_JWT_SECRET)", minSecretLength)
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("identity.token_ttl must be positive")
	}
	return nil
}
