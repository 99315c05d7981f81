package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/workloadops/errors"
	"github.com/kbukum/workloadops/workload"
)

// Workloads is the router surface the HTTP API serves. *router.Router implements it.
type Workloads interface {
	Describe(ctx context.Context, ref workload.Ref) (workload.State, error)
	Create(ctx context.Context, ref workload.Ref, spec workload.Spec) (workload.State, error)
	Terminate(ctx context.Context, ref workload.Ref) error
	WaitUntil(ctx context.Context, ref workload.Ref, pred workload.Predicate, timeout time.Duration) (workload.State, error)
	Logs(ctx context.Context, ref workload.Ref, opts workload.LogOptions) (io.ReadCloser, error)
	List(ctx context.Context, kind workload.BackendKind, filter workload.ListFilter) ([]workload.State, error)
}

// RegisterWorkloads mounts the /v1/workloads routes.
func (s *Server) RegisterWorkloads(w Workloads) {
	h := &workloadHandlers{w: w}
	s.engine.GET("/v1/workloads/:kind", h.list)
	g := s.engine.Group("/v1/workloads/:kind/:name")
	g.GET("", h.describe)
	g.POST("", h.create)
	g.DELETE("", h.terminate)
	g.GET("/wait", h.wait)
	g.GET("/logs", h.logs)
}

type workloadHandlers struct {
	w Workloads
}

// refOf builds the ref from the path and the namespace query parameter.
// An unknown kind is kept so the router reports UNSUPPORTED_BACKEND.
func refOf(c *gin.Context) workload.Ref {
	raw := c.Param("kind")
	kind, err := workload.ParseKind(raw)
	if err != nil {
		kind = workload.BackendKind(raw)
	}
	return workload.NewRef(kind, c.Query("namespace"), c.Param("name"))
}

func queryDuration(c *gin.Context, key string) (time.Duration, error) {
	v := c.Query(key)
	if v == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return 0, errors.InvalidSpec(fmt.Sprintf("query %s=%q is not a duration", key, v))
	}
	return d, nil
}

// list answers GET /v1/workloads/:kind?namespace=&phase=&label=k=v.
// label may repeat.
func (h *workloadHandlers) list(c *gin.Context) {
	raw := c.Param("kind")
	kind, err := workload.ParseKind(raw)
	if err != nil {
		kind = workload.BackendKind(raw)
	}
	filter := workload.ListFilter{Namespace: c.Query("namespace")}
	if p := c.Query("phase"); p != "" {
		if filter.Phase, err = workload.ParsePhase(p); err != nil {
			RespondWithError(c, err)
			return
		}
	}
	for _, kv := range c.QueryArray("label") {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			RespondWithError(c, errors.InvalidSpec(fmt.Sprintf("query label=%q is not key=value", kv)))
			return
		}
		if filter.Labels == nil {
			filter.Labels = map[string]string{}
		}
		filter.Labels[k] = v
	}

	states, err := h.w.List(c.Request.Context(), kind, filter)
	if err != nil {
		RespondWithError(c, err)
		return
	}
	if states == nil {
		states = []workload.State{}
	}
	RespondOK(c, states)
}

func (h *workloadHandlers) describe(c *gin.Context) {
	state, err := h.w.Describe(c.Request.Context(), refOf(c))
	if err != nil {
		RespondWithError(c, err)
		return
	}
	RespondOK(c, state)
}

func (h *workloadHandlers) create(c *gin.Context) {
	ref := refOf(c)
	var spec workload.Spec
	if err := c.ShouldBindJSON(&spec); err != nil {
		RespondWithError(c, errors.InvalidSpec("request body is not a workload spec").WithCause(err))
		return
	}
	if err := spec.Validate(); err != nil {
		RespondWithError(c, err)
		return
	}
	var target workload.Phase
	if w := c.Query("wait"); w != "" {
		p, err := workload.ParsePhase(w)
		if err != nil {
			RespondWithError(c, err)
			return
		}
		target = p
	}
	timeout, err := queryDuration(c, "timeout")
	if err != nil {
		RespondWithError(c, err)
		return
	}

	ctx := c.Request.Context()
	state, err := h.w.Create(ctx, ref, spec)
	if err != nil {
		RespondWithError(c, err)
		return
	}
	if target != "" && state.Phase != target {
		if state, err = h.w.WaitUntil(ctx, ref, workload.PhaseIs(target), timeout); err != nil {
			RespondWithError(c, err)
			return
		}
	}
	RespondCreated(c, state)
}

func (h *workloadHandlers) terminate(c *gin.Context) {
	if err := h.w.Terminate(c.Request.Context(), refOf(c)); err != nil {
		RespondWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *workloadHandlers) wait(c *gin.Context) {
	var pred workload.Predicate
	if c.Query("settled") == "true" {
		pred = workload.Settled
	} else {
		names := strings.Split(c.Query("phase"), ",")
		if c.Query("phase") == "" {
			RespondWithError(c, errors.InvalidSpec("wait needs phase or settled=true"))
			return
		}
		phases, err := workload.ParsePhases(names)
		if err != nil {
			RespondWithError(c, err)
			return
		}
		pred = workload.PhaseIn(phases...)
	}
	timeout, err := queryDuration(c, "timeout")
	if err != nil {
		RespondWithError(c, err)
		return
	}

	state, err := h.w.WaitUntil(c.Request.Context(), refOf(c), pred, timeout)
	if err != nil {
		RespondWithError(c, err)
		return
	}
	RespondOK(c, state)
}

func (h *workloadHandlers) logs(c *gin.Context) {
	var opts workload.LogOptions
	opts.Follow = c.Query("follow") == "true"
	if t := c.Query("tail"); t != "" {
		n, err := strconv.Atoi(t)
		if err != nil || n < 0 {
			RespondWithError(c, errors.InvalidSpec(fmt.Sprintf("query tail=%q is not a line count", t)))
			return
		}
		opts.Tail = n
	}
	since, err := queryDuration(c, "since")
	if err != nil {
		RespondWithError(c, err)
		return
	}
	opts.Since = since

	rc, err := h.w.Logs(c.Request.Context(), refOf(c), opts)
	if err != nil {
		RespondWithError(c, err)
		return
	}
	defer rc.Close()

	c.Header("Content-Type", "text/plain; charset=utf-8")
	c.Status(http.StatusOK)
	buf := make([]byte, 32<<10)
	for {
		n, err := rc.Read(buf)
		if n > 0 {
			if _, werr := c.Writer.Write(buf[:n]); werr != nil {
				return
			}
			c.Writer.Flush()
		}
		if err != nil {
			return
		}
	}
}
