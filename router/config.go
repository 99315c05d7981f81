package router

import (
	"fmt"
	"time"

	"github.com/kbukum/workloadops/resilience"
)

// Config holds router settings.
type Config struct {
	// Retry is the policy applied to every adapter call. Terminate and
	// Create reuse its timing but only retry connection failures.
	Retry resilience.Config `mapstructure:"retry"`

	// CacheTTL is the TTL of states written by the router. Empty uses the
	// cache's default TTL.
	CacheTTL string `mapstructure:"cache_ttl"`

	// WaitTimeout bounds WaitUntil calls made with a zero timeout.
	WaitTimeout string `mapstructure:"wait_timeout"`
}

// ApplyDefaults fills in zero-valued fields.
func (c *Config) ApplyDefaults() {
	c.Retry.ApplyDefaults()
	if c.WaitTimeout == "" {
		c.WaitTimeout = "5m"
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if err := c.Retry.Validate(); err != nil {
		return err
	}
	if c.CacheTTL != "" {
		if _, err := time.ParseDuration(c.CacheTTL); err != nil {
			return fmt.Errorf("router: invalid cache_ttl %q: %w", c.CacheTTL, err)
		}
	}
	d, err := time.ParseDuration(c.WaitTimeout)
	if err != nil {
		return fmt.Errorf("router: invalid wait_timeout %q: %w", c.WaitTimeout, err)
	}
	if d <= 0 {
		return fmt.Errorf("router: wait_timeout must be positive")
	}
	return nil
}

func (c *Config) cacheTTL() time.Duration {
	d, _ := time.ParseDuration(c.CacheTTL)
	return d
}

func (c *Config) waitTimeout() time.Duration {
	d, _ := time.ParseDuration(c.WaitTimeout)
	return d
}
