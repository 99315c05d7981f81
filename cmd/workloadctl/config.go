package main

import (
	"fmt"

	"github.com/kbukum/workloadops/cache"
	"github.com/kbukum/workloadops/config"
	"github.com/kbukum/workloadops/observability"
	"github.com/kbukum/workloadops/redis"
	"github.com/kbukum/workloadops/router"
	"github.com/kbukum/workloadops/server"
	"github.com/kbukum/workloadops/tracelog"
	"github.com/kbukum/workloadops/version"
	"github.com/kbukum/workloadops/workload"
	"github.com/kbukum/workloadops/workload/docker"
	"github.com/kbukum/workloadops/workload/kubernetes"
)

// CLIConfig is the workloadctl configuration file.
//
//	name: workloadctl
//	backends: [cluster, engine]
//	redis:
//	  enabled: true
//	  addr: localhost:6379
//	telemetry:
//	  enabled: true
//	  protocol: grpc
type CLIConfig struct {
	config.ServiceConfig `yaml:",inline" mapstructure:",squash"`

	// Backends lists the backend kinds to build adapters for.
	Backends []string `yaml:"backends" mapstructure:"backends"`

	Workload   workload.Config      `yaml:"workload" mapstructure:"workload"`
	Kubernetes kubernetes.Config    `yaml:"kubernetes" mapstructure:"kubernetes"`
	Docker     docker.Config        `yaml:"docker" mapstructure:"docker"`
	Redis      redis.Config         `yaml:"redis" mapstructure:"redis"`
	Cache      cache.Config         `yaml:"cache" mapstructure:"cache"`
	Router     router.Config        `yaml:"router" mapstructure:"router"`
	Telemetry  observability.Config `yaml:"telemetry" mapstructure:"telemetry"`
	TraceLog   tracelog.Config      `yaml:"tracelog" mapstructure:"tracelog"`
	Server     server.Config        `yaml:"server" mapstructure:"server"`
}

// ApplyDefaults fills unset fields in every section.
func (c *CLIConfig) ApplyDefaults() {
	if c.Name == "" {
		c.Name = "workloadctl"
	}
	if c.Version == "" {
		c.Version = version.Get().String()
	}
	c.ServiceConfig.ApplyDefaults()
	if len(c.Backends) == 0 {
		c.Backends = []string{string(workload.KindCluster), string(workload.KindEngine)}
	}
	c.Workload.ApplyDefaults()
	c.Kubernetes.ApplyDefaults()
	c.Docker.ApplyDefaults()
	c.Redis.ApplyDefaults()
	c.Cache.ApplyDefaults()
	c.Router.ApplyDefaults()
	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = c.Name
	}
	if c.Telemetry.ServiceVersion == "" {
		c.Telemetry.ServiceVersion = c.Version
	}
	if c.Telemetry.Environment == "" {
		c.Telemetry.Environment = c.Environment
	}
	c.Telemetry.ApplyDefaults()
	if c.TraceLog.App == "" {
		c.TraceLog.App = c.Name
	}
	c.TraceLog.ApplyDefaults()
	c.Server.ApplyDefaults()
}

// Validate checks every section.
func (c *CLIConfig) Validate() error {
	if err := c.ServiceConfig.Validate(); err != nil {
		return err
	}
	for _, b := range c.Backends {
		if _, err := workload.ParseKind(b); err != nil {
			return fmt.Errorf("backends: %w", err)
		}
	}
	checks := []struct {
		section string
		check   func() error
	}{
		{"workload", c.Workload.Validate},
		{"kubernetes", c.Kubernetes.Validate},
		{"docker", c.Docker.Validate},
		{"redis", c.Redis.Validate},
		{"cache", c.Cache.Validate},
		{"router", c.Router.Validate},
		{"telemetry", c.Telemetry.Validate},
		{"tracelog", c.TraceLog.Validate},
		{"server", c.Server.Validate},
	}
	for _, ch := range checks {
		if err := ch.check(); err != nil {
			return fmt.Errorf("%s: %w", ch.section, err)
		}
	}
	if c.TraceLog.Enabled && !c.Redis.Enabled {
		return fmt.Errorf("tracelog: requires redis.enabled")
	}
	return nil
}
