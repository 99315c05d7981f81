package tracelog

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Config holds trace-log sink settings.
type Config struct {
	// Enabled turns the sink on.
	Enabled bool `mapstructure:"enabled"`

	// App names the sorted set records are written to: <key_prefix>:<app>.
	App string `mapstructure:"app"`

	// KeyPrefix defaults to "traces".
	KeyPrefix string `mapstructure:"key_prefix"`

	// MinLevel is the lowest level forwarded to Redis (default "info").
	MinLevel string `mapstructure:"min_level"`

	// QueueSize bounds records waiting to be written; further records are dropped.
	QueueSize int `mapstructure:"queue_size"`

	// WriteTimeout bounds each ZADD (e.g. "2s").
	WriteTimeout string `mapstructure:"write_timeout"`
}

// ApplyDefaults sets defaults for zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.KeyPrefix == "" {
		c.KeyPrefix = "traces"
	}
	if c.MinLevel == "" {
		c.MinLevel = "info"
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 1024
	}
	if c.WriteTimeout == "" {
		c.WriteTimeout = "2s"
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.App == "" {
		return fmt.Errorf("tracelog.app is required")
	}
	if _, err := zerolog.ParseLevel(c.MinLevel); err != nil {
		return fmt.Errorf("tracelog.min_level: %w", err)
	}
	if _, err := time.ParseDuration(c.WriteTimeout); err != nil {
		return fmt.Errorf("tracelog.write_timeout %q: %w", c.WriteTimeout, err)
	}
	return nil
}

// Key returns the sorted set key for app.
func Key(prefix, app string) string {
	return prefix + ":" + app
}
