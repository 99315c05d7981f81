package observability

import (
	"fmt"
	"time"
)

// Export protocols.
const (
	ProtocolHTTP = "http"
	ProtocolGRPC = "grpc"
)

// Config configures the telemetry pipeline.
type Config struct {
	// Enabled turns OTLP export on. When false spans and metrics are still
	// produced (so trace ids exist for logs) but nothing leaves the process.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
	// ServiceName is the name of the service.
	ServiceName string `yaml:"service_name" mapstructure:"service_name"`
	// ServiceVersion is the version of the service.
	ServiceVersion string `yaml:"service_version" mapstructure:"service_version"`
	// Environment is the deployment environment (development, staging, production).
	Environment string `yaml:"environment" mapstructure:"environment"`
	// Protocol selects the OTLP transport: "http" or "grpc".
	Protocol string `yaml:"protocol" mapstructure:"protocol"`
	// Endpoint is the OTLP collector host:port.
	Endpoint string `yaml:"endpoint" mapstructure:"endpoint"`
	// Insecure disables TLS to the collector.
	Insecure bool `yaml:"insecure" mapstructure:"insecure"`
	// SampleRate is the sampling rate (0.0 to 1.0).
	SampleRate float64 `yaml:"sample_rate" mapstructure:"sample_rate"`
	// BatchTimeout is the span batch processor's export interval.
	BatchTimeout time.Duration `yaml:"batch_timeout" mapstructure:"batch_timeout"`
	// MetricInterval is the periodic metric reader's export interval.
	MetricInterval time.Duration `yaml:"metric_interval" mapstructure:"metric_interval"`
	// SetGlobal installs the providers as the otel globals.
	SetGlobal bool `yaml:"set_global" mapstructure:"set_global"`
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.ServiceName == "" {
		c.ServiceName = "workloadops"
	}
	if c.Environment == "" {
		c.Environment = "development"
	}
	if c.Protocol == "" {
		c.Protocol = ProtocolHTTP
	}
	if c.Endpoint == "" {
		if c.Protocol == ProtocolGRPC {
			c.Endpoint = "localhost:4317"
		} else {
			c.Endpoint = "localhost:4318"
		}
	}
	if c.SampleRate == 0 {
		c.SampleRate = 1.0
	}
	if c.BatchTimeout == 0 {
		c.BatchTimeout = 5 * time.Second
	}
	if c.MetricInterval == 0 {
		c.MetricInterval = 15 * time.Second
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Protocol != ProtocolHTTP && c.Protocol != ProtocolGRPC {
		return fmt.Errorf("telemetry.protocol must be %q or %q (got: %s)", ProtocolHTTP, ProtocolGRPC, c.Protocol)
	}
	if c.SampleRate < 0 || c.SampleRate > 1 {
		return fmt.Errorf("telemetry.sample_rate must be within [0, 1] (got: %v)", c.SampleRate)
	}
	if c.BatchTimeout < 0 || c.MetricInterval < 0 {
		return fmt.Errorf("telemetry intervals must not be negative")
	}
	return nil
}
