package workload

import (
	"context"
	"fmt"

	"github.com/kbukum/workloadops/component"
	"github.com/kbukum/workloadops/logger"
)

// Component wraps an Adapter so its backend health is reported by the
// component registry.
type Component struct {
	adapter Adapter
	log     *logger.Logger
}

// NewComponent creates a lifecycle component for an adapter.
func NewComponent(a Adapter, log *logger.Logger) *Component {
	if log == nil {
		log = logger.Nop()
	}
	return &Component{adapter: a, log: log.WithComponent(componentName(a.Kind()))}
}

// Adapter returns the wrapped adapter.
func (c *Component) Adapter() Adapter { return c.adapter }

var _ component.Component = (*Component)(nil)

func (c *Component) Name() string { return componentName(c.adapter.Kind()) }

// Start probes the backend. An unreachable backend is logged, not fatal;
// operations against it fail with retryable errors until it recovers.
func (c *Component) Start(ctx context.Context) error {
	if err := c.adapter.HealthCheck(ctx); err != nil {
		c.log.Warn("backend not reachable at startup", logger.ErrorFields("health_check", err))
	}
	return nil
}

func (c *Component) Stop(_ context.Context) error { return nil }

func (c *Component) Health(ctx context.Context) component.Health {
	if err := c.adapter.HealthCheck(ctx); err != nil {
		return component.Health{
			Name:    c.Name(),
			Status:  component.StatusUnhealthy,
			Message: fmt.Sprintf("health check failed: %v", err),
		}
	}
	return component.Health{Name: c.Name(), Status: component.StatusHealthy}
}

func componentName(kind BackendKind) string { return "workload." + string(kind) }
