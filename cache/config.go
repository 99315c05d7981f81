package cache

import (
	"fmt"
	"time"
)

// Config holds state cache settings.
type Config struct {
	// KeyPrefix namespaces cache keys in Redis (default "workloadops:state").
	KeyPrefix string `mapstructure:"key_prefix"`

	// DefaultTTL applies when Put is called with ttl <= 0 (e.g. "30s").
	DefaultTTL string `mapstructure:"default_ttl"`
}

// ApplyDefaults sets defaults for zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.KeyPrefix == "" {
		c.KeyPrefix = "workloadops:state"
	}
	if c.DefaultTTL == "" {
		c.DefaultTTL = "30s"
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	d, err := time.ParseDuration(c.DefaultTTL)
	if err != nil {
		return fmt.Errorf("invalid default_ttl %q: %w", c.DefaultTTL, err)
	}
	if d <= 0 {
		return fmt.Errorf("default_ttl must be > 0, got %s", c.DefaultTTL)
	}
	return nil
}

func (c *Config) ttl() time.Duration {
	d, _ := time.ParseDuration(c.DefaultTTL)
	return d
}
