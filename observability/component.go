package observability

import (
	"context"
	"time"

	"github.com/kbukum/workloadops/component"
)

var _ component.Component = (*Pipeline)(nil)

// Name implements component.Component.
func (p *Pipeline) Name() string { return "telemetry" }

// Start implements component.Component. Providers are live from NewPipeline.
func (p *Pipeline) Start(context.Context) error { return nil }

// Stop shuts the pipeline down within the context deadline, or five seconds.
func (p *Pipeline) Stop(ctx context.Context) error {
	timeout := 5 * time.Second
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	return p.Shutdown(timeout)
}

// Health implements component.Component.
func (p *Pipeline) Health(context.Context) component.Health {
	h := component.Health{Name: p.Name(), Status: component.StatusHealthy}
	if !p.cfg.Enabled {
		h.Message = "export disabled"
	}
	return h
}
