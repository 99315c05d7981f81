package docker

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Config holds Docker-specific workload configuration.
type Config struct {
	Host       string     `mapstructure:"host" json:"host"`
	APIVersion string     `mapstructure:"api_version" json:"api_version"`
	TLS        *TLSConfig `mapstructure:"tls" json:"tls"`
	// Network is the user-defined network containers join; "host" selects host networking.
	Network string `mapstructure:"network" json:"network"`
	// Platform is an "os/arch" pair used when pulling and creating.
	Platform string `mapstructure:"platform" json:"platform"`
	// StopTimeout is the grace period Terminate allows before the engine kills the container.
	StopTimeout string `mapstructure:"stop_timeout" json:"stop_timeout"`
}

// TLSConfig holds Docker TLS settings.
type TLSConfig struct {
	CACert string `mapstructure:"ca_cert" json:"ca_cert"`
	Cert   string `mapstructure:"cert" json:"cert"`
	Key    string `mapstructure:"key" json:"key"`
}

// ApplyDefaults fills in zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.Host == "" {
		c.Host = "unix:///var/run/docker.sock"
	}
	if c.StopTimeout == "" {
		c.StopTimeout = "10s"
	}
}

// Validate checks the Docker configuration.
func (c *Config) Validate() error {
	if c.Host == "" {
		return errors.New("docker: host is required")
	}
	if c.TLS != nil {
		if c.TLS.Cert == "" || c.TLS.Key == "" {
			return fmt.Errorf("docker: tls cert and key are both required when tls is enabled")
		}
	}
	if d, err := time.ParseDuration(c.StopTimeout); err != nil || d < 0 {
		return fmt.Errorf("docker: invalid stop_timeout %q", c.StopTimeout)
	}
	if c.Platform != "" && !strings.Contains(c.Platform, "/") {
		return fmt.Errorf("docker: platform must be os/arch, got %q", c.Platform)
	}
	return nil
}

// stopTimeoutSeconds returns the grace period in whole seconds.
func (c *Config) stopTimeoutSeconds() int {
	d, err := time.ParseDuration(c.StopTimeout)
	if err != nil {
		return 10
	}
	return int(d.Round(time.Second) / time.Second)
}
