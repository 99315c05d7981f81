package workload

import (
	"fmt"
	"time"
)

// Config holds settings shared by every adapter.
type Config struct {
	// PollInterval is the fixed delay between WaitUntil observations.
	PollInterval string `mapstructure:"poll_interval" json:"poll_interval"`
	// DefaultLabels are applied to every created workload; spec labels win.
	DefaultLabels map[string]string `mapstructure:"default_labels" json:"default_labels"`
}

// ApplyDefaults fills in zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.PollInterval == "" {
		c.PollInterval = DefaultPollInterval.String()
	}
}

// Validate checks that the core configuration is valid.
func (c *Config) Validate() error {
	d, err := time.ParseDuration(c.PollInterval)
	if err != nil {
		return fmt.Errorf("workload: invalid poll_interval %q: %w", c.PollInterval, err)
	}
	if d <= 0 {
		return fmt.Errorf("workload: poll_interval must be positive")
	}
	return nil
}

// Interval returns the parsed poll interval, falling back to the default.
func (c Config) Interval() time.Duration {
	d, err := time.ParseDuration(c.PollInterval)
	if err != nil || d <= 0 {
		return DefaultPollInterval
	}
	return d
}

// ManagedByLabel marks workloads created through this module.
const (
	ManagedByLabel = "app.kubernetes.io/managed-by"
	ManagedByValue = "workloadops"
	IdentityLabel  = "workloadops.io/identity"
)

// MergeLabels combines default labels with spec labels (spec wins) and adds
// the managed-by marker.
func MergeLabels(defaults, labels map[string]string) map[string]string {
	merged := make(map[string]string, len(defaults)+len(labels)+1)
	for k, v := range defaults {
		merged[k] = v
	}
	for k, v := range labels {
		merged[k] = v
	}
	merged[ManagedByLabel] = ManagedByValue
	return merged
}
