package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/workloadops/component"
	"github.com/kbukum/workloadops/version"
)

// HealthChecker reports the health of the backends and supporting components.
type HealthChecker func(ctx context.Context) []component.Health

// Health reports overall status: unhealthy (503) if any component is
// unhealthy, degraded if any is degraded, healthy otherwise.
func Health(serviceName string, checker HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := component.StatusHealthy
		var components []component.Health
		if checker != nil {
			components = checker(c.Request.Context())
		}
		for _, h := range components {
			if h.Status == component.StatusUnhealthy {
				status = component.StatusUnhealthy
				break
			}
			if h.Status == component.StatusDegraded {
				status = component.StatusDegraded
			}
		}

		code := http.StatusOK
		if status == component.StatusUnhealthy {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{
			"status":     status,
			"service":    serviceName,
			"timestamp":  time.Now().UTC().Format(time.RFC3339),
			"components": components,
		})
	}
}

// Version reports the build identity.
func Version() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, version.Get())
	}
}
