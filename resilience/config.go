package resilience

import (
	"fmt"
	"time"
)

// Config is the file/env form of a retry policy and per-backend circuit breaker.
type Config struct {
	MaxAttempts    int     `mapstructure:"max_attempts" json:"max_attempts"`
	BaseDelay      string  `mapstructure:"base_delay" json:"base_delay"`
	MaxDelay       string  `mapstructure:"max_delay" json:"max_delay"`
	JitterFraction float64 `mapstructure:"jitter_fraction" json:"jitter_fraction"`

	BreakerEnabled     bool   `mapstructure:"breaker_enabled" json:"breaker_enabled"`
	BreakerMaxFailures int    `mapstructure:"breaker_max_failures" json:"breaker_max_failures"`
	BreakerTimeout     string `mapstructure:"breaker_timeout" json:"breaker_timeout"`
}

// ApplyDefaults fills in zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.MaxAttempts == 0 {
		c.MaxAttempts = 3
	}
	if c.BaseDelay == "" {
		c.BaseDelay = "100ms"
	}
	if c.MaxDelay == "" {
		c.MaxDelay = "5s"
	}
	if c.JitterFraction == 0 {
		c.JitterFraction = 0.2
	}
	if c.BreakerMaxFailures == 0 {
		c.BreakerMaxFailures = 5
	}
	if c.BreakerTimeout == "" {
		c.BreakerTimeout = "30s"
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.MaxAttempts < 1 {
		return fmt.Errorf("resilience: max_attempts must be at least 1, got %d", c.MaxAttempts)
	}
	if c.JitterFraction < 0 || c.JitterFraction > 1 {
		return fmt.Errorf("resilience: jitter_fraction must be within [0, 1], got %v", c.JitterFraction)
	}
	for name, v := range map[string]string{"base_delay": c.BaseDelay, "max_delay": c.MaxDelay, "breaker_timeout": c.BreakerTimeout} {
		if d, err := time.ParseDuration(v); err != nil || d < 0 {
			return fmt.Errorf("resilience: invalid %s %q", name, v)
		}
	}
	return nil
}

// Policy converts the configuration into a RetryPolicy with the transient classifier.
func (c Config) Policy() RetryPolicy {
	base, _ := time.ParseDuration(c.BaseDelay)
	maxDelay, _ := time.ParseDuration(c.MaxDelay)
	return RetryPolicy{
		MaxAttempts:    c.MaxAttempts,
		BaseDelay:      base,
		MaxDelay:       maxDelay,
		JitterFraction: c.JitterFraction,
		Retryable:      IsTransient,
	}
}

// Breaker returns a circuit breaker named name, or nil when breakers are disabled.
func (c Config) Breaker(name string, onStateChange func(name string, from, to State)) *CircuitBreaker {
	if !c.BreakerEnabled {
		return nil
	}
	timeout, _ := time.ParseDuration(c.BreakerTimeout)
	return NewCircuitBreaker(CircuitBreakerConfig{
		Name:          name,
		MaxFailures:   c.BreakerMaxFailures,
		Timeout:       timeout,
		OnStateChange: onStateChange,
	})
}
