package router

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/kbukum/workloadops/component"
	"github.com/kbukum/workloadops/errors"
	"github.com/kbukum/workloadops/logger"
	"github.com/kbukum/workloadops/observability"
	"github.com/kbukum/workloadops/resilience"
	"github.com/kbukum/workloadops/workload"
)

// StateCache is the cache the router reads on Describe and updates after
// every operation. *cache.StateCache implements it.
type StateCache interface {
	Get(ctx context.Context, key string) (workload.State, bool)
	Put(ctx context.Context, key string, state workload.State, ttl time.Duration)
	Invalidate(ctx context.Context, key string) error
}

// Deps are the collaborators a Router is built from.
type Deps struct {
	// Adapters are keyed by their Kind. At least one is required.
	Adapters []workload.Adapter
	// Cache is optional; nil disables caching.
	Cache StateCache
	// Pipeline opens one operation per call. Required.
	Pipeline *observability.Pipeline
	Logger   *logger.Logger
}

// Router is the single entry point for workload operations. It selects the
// adapter by Ref.Kind and composes it with retry, circuit breaking, the state
// cache and telemetry. A Router is safe for concurrent use.
type Router struct {
	adapters map[workload.BackendKind]workload.Adapter
	breakers map[workload.BackendKind]*resilience.CircuitBreaker
	cache    StateCache
	pipeline *observability.Pipeline
	policy   resilience.RetryPolicy
	cacheTTL time.Duration
	waitFor  time.Duration
	log      *logger.Logger

	// stale holds keys whose eviction failed. Describe skips the cache for
	// them until an eviction succeeds.
	stale sync.Map
}

// New builds a Router.
func New(cfg Config, deps Deps) (*Router, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Pipeline == nil {
		return nil, fmt.Errorf("router: telemetry pipeline is required")
	}
	if len(deps.Adapters) == 0 {
		return nil, fmt.Errorf("router: at least one adapter is required")
	}
	log := deps.Logger
	if log == nil {
		log = logger.Nop()
	}
	log = log.WithComponent("router")

	r := &Router{
		adapters: make(map[workload.BackendKind]workload.Adapter, len(deps.Adapters)),
		breakers: make(map[workload.BackendKind]*resilience.CircuitBreaker, len(deps.Adapters)),
		cache:    deps.Cache,
		pipeline: deps.Pipeline,
		policy:   cfg.Retry.Policy(),
		cacheTTL: cfg.cacheTTL(),
		waitFor:  cfg.waitTimeout(),
		log:      log,
	}
	if r.cache == nil {
		r.cache = nopCache{}
	}

	for _, a := range deps.Adapters {
		kind := a.Kind()
		if _, dup := r.adapters[kind]; dup {
			return nil, fmt.Errorf("router: duplicate adapter for kind %q", kind)
		}
		r.adapters[kind] = a
		if cb := cfg.Retry.Breaker(string(kind), r.onBreakerChange); cb != nil {
			r.breakers[kind] = cb
		}
	}
	return r, nil
}

// Kinds lists the backend kinds the router serves, sorted.
func (r *Router) Kinds() []workload.BackendKind {
	kinds := make([]workload.BackendKind, 0, len(r.adapters))
	for k := range r.adapters {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// Describe returns the state of ref, from the cache when a fresh entry exists.
// A workload that does not exist fails with NotFound and is not cached.
func (r *Router) Describe(ctx context.Context, ref workload.Ref) (state workload.State, err error) {
	ctx, op := r.start(ctx, workload.OpDescribe, ref)
	defer func() { r.finish(op, state, err) }()

	adapter, err := r.resolve(workload.OpDescribe, ref)
	if err != nil {
		return workload.State{}, err
	}

	key := ref.Key()
	if cached, ok := r.cached(ctx, key); ok {
		op.SetAttributes(attribute.String(observability.AttrCacheResult, "hit"))
		return cached, nil
	}
	op.SetAttributes(attribute.String(observability.AttrCacheResult, "miss"))

	state, err = call(ctx, r, op, ref, r.policy, func(ctx context.Context) (workload.State, error) {
		return adapter.Describe(ctx, ref)
	})
	if err != nil {
		return workload.State{}, r.surface(workload.OpDescribe, ref, err)
	}

	r.cache.Put(ctx, key, state, r.cacheTTL)
	return state, nil
}

// Create submits a new workload and caches its first observed state.
// The cache is never read; a retry only follows connection failures, so a
// request the backend may have accepted is not repeated.
func (r *Router) Create(ctx context.Context, ref workload.Ref, spec workload.Spec) (state workload.State, err error) {
	ctx, op := r.start(ctx, workload.OpCreate, ref)
	defer func() { r.finish(op, state, err) }()

	adapter, err := r.resolve(workload.OpCreate, ref)
	if err != nil {
		return workload.State{}, err
	}

	policy := r.policy.WithRetryable(resilience.IsConnectionFailure)
	state, err = call(ctx, r, op, ref, policy, func(ctx context.Context) (workload.State, error) {
		return adapter.Create(ctx, ref, spec)
	})
	if err != nil {
		return workload.State{}, r.surface(workload.OpCreate, ref, err)
	}

	r.cache.Put(ctx, ref.Key(), state, r.cacheTTL)
	r.log.WithContext(ctx).Info("workload created", refFields(ref, logger.FieldPhase, string(state.Phase)))
	return state, nil
}

// Terminate deletes the workload. The cache entry is invalidated before
// Terminate returns, both on success and when the workload was already gone.
func (r *Router) Terminate(ctx context.Context, ref workload.Ref) (err error) {
	ctx, op := r.start(ctx, workload.OpTerminate, ref)
	defer func() { op.End(err) }()

	adapter, err := r.resolve(workload.OpTerminate, ref)
	if err != nil {
		return err
	}

	policy := r.policy.WithRetryable(resilience.IsConnectionFailure)
	_, err = call(ctx, r, op, ref, policy, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, adapter.Terminate(ctx, ref)
	})
	if err == nil || errors.IsCode(err, errors.ErrCodeNotFound) {
		r.invalidate(ctx, ref.Key())
	}
	if err != nil {
		return r.surface(workload.OpTerminate, ref, err)
	}

	r.log.WithContext(ctx).Info("workload terminated", refFields(ref))
	return nil
}

// WaitUntil polls ref until pred holds, timeout elapses or ctx is done.
// A zero timeout uses the configured wait timeout. The final observed state
// is cached, except Gone, which is evicted so later reads observe NotFound.
func (r *Router) WaitUntil(ctx context.Context, ref workload.Ref, pred workload.Predicate, timeout time.Duration) (state workload.State, err error) {
	ctx, op := r.start(ctx, workload.OpWaitUntil, ref)
	defer func() { r.finish(op, state, err) }()

	adapter, err := r.resolve(workload.OpWaitUntil, ref)
	if err != nil {
		return workload.State{}, err
	}
	if pred == nil {
		return workload.State{}, errors.InvalidSpec("wait predicate is required").
			WithOperation(workload.OpWaitUntil, ref.String())
	}
	if timeout <= 0 {
		timeout = r.waitFor
	}
	op.SetAttributes(attribute.String("wait.timeout", timeout.String()))

	state, err = call(ctx, r, op, ref, r.policy, func(ctx context.Context) (workload.State, error) {
		return adapter.WaitUntil(ctx, ref, pred, timeout)
	})
	if err != nil {
		return workload.State{}, r.surface(workload.OpWaitUntil, ref, err)
	}

	if state.Phase == workload.PhaseGone {
		r.invalidate(ctx, ref.Key())
	} else {
		r.cache.Put(ctx, ref.Key(), state, r.cacheTTL)
	}
	return state, nil
}

// Logs opens the output stream of a workload. The caller closes it.
// Backends whose adapter cannot read logs fail with UnsupportedBackend.
func (r *Router) Logs(ctx context.Context, ref workload.Ref, opts workload.LogOptions) (rc io.ReadCloser, err error) {
	ctx, op := r.start(ctx, workload.OpLogs, ref)
	defer func() { op.End(err) }()

	adapter, err := r.resolve(workload.OpLogs, ref)
	if err != nil {
		return nil, err
	}
	reader, ok := adapter.(workload.LogReader)
	if !ok {
		return nil, errors.New(errors.ErrCodeUnsupportedBackend,
			fmt.Sprintf("backend %q does not provide logs", ref.Kind)).
			WithOperation(workload.OpLogs, ref.String())
	}

	rc, err = call(ctx, r, op, ref, r.policy, func(ctx context.Context) (io.ReadCloser, error) {
		return reader.Logs(ctx, ref, opts)
	})
	if err != nil {
		return nil, r.surface(workload.OpLogs, ref, err)
	}
	return rc, nil
}

// List enumerates the managed workloads of one backend and caches each
// observed state. Backends whose adapter cannot list fail with
// UnsupportedBackend.
func (r *Router) List(ctx context.Context, kind workload.BackendKind, filter workload.ListFilter) (states []workload.State, err error) {
	scope := workload.Ref{Kind: kind, Namespace: filter.Namespace}
	ctx, op := r.start(ctx, workload.OpList, scope)
	defer func() { op.End(err) }()

	adapter, ok := r.adapters[kind]
	if !ok {
		return nil, errors.UnsupportedBackend(string(kind)).WithOperation(workload.OpList, scope.String())
	}
	lister, ok := adapter.(workload.Lister)
	if !ok {
		return nil, errors.New(errors.ErrCodeUnsupportedBackend,
			fmt.Sprintf("backend %q does not list workloads", kind)).
			WithOperation(workload.OpList, scope.String())
	}
	if err := filter.Validate(kind); err != nil {
		return nil, r.surface(workload.OpList, scope, err)
	}

	states, err = call(ctx, r, op, scope, r.policy, func(ctx context.Context) ([]workload.State, error) {
		return lister.List(ctx, filter)
	})
	if err != nil {
		return nil, r.surface(workload.OpList, scope, err)
	}

	for _, s := range states {
		r.cache.Put(ctx, s.Ref.Key(), s, r.cacheTTL)
	}
	op.SetAttributes(attribute.Int("list.count", len(states)))
	return states, nil
}

// Health reports the health of every backend, ordered by kind.
func (r *Router) Health(ctx context.Context) []component.Health {
	out := make([]component.Health, 0, len(r.adapters))
	for _, kind := range r.Kinds() {
		h := workload.NewComponent(r.adapters[kind], r.log).Health(ctx)
		if cb := r.breakers[kind]; cb != nil && cb.State() != resilience.StateClosed && h.Status == component.StatusHealthy {
			h.Status = component.StatusDegraded
			h.Message = fmt.Sprintf("circuit %s", cb.State())
		}
		out = append(out, h)
	}
	return out
}

// invalidate evicts key, or marks it stale when the store refuses.
func (r *Router) invalidate(ctx context.Context, key string) {
	if err := r.cache.Invalidate(ctx, key); err != nil {
		r.stale.Store(key, struct{}{})
		return
	}
	r.stale.Delete(key)
}

// cached reads key from the cache. A stale key is evicted first and always
// misses, so a state from before a terminate is never served.
func (r *Router) cached(ctx context.Context, key string) (workload.State, bool) {
	if _, stale := r.stale.Load(key); stale {
		if err := r.cache.Invalidate(ctx, key); err == nil {
			r.stale.Delete(key)
		}
		return workload.State{}, false
	}
	return r.cache.Get(ctx, key)
}

// resolve selects the adapter for ref. The kind is checked before the ref
// itself so an unknown backend is reported as such.
func (r *Router) resolve(op string, ref workload.Ref) (workload.Adapter, error) {
	adapter, ok := r.adapters[ref.Kind]
	if !ok {
		return nil, errors.UnsupportedBackend(string(ref.Kind)).WithOperation(op, ref.String())
	}
	if err := ref.Validate(); err != nil {
		return nil, r.surface(op, ref, err)
	}
	return adapter, nil
}

// call runs fn under the retry policy, inside the backend's circuit breaker
// when one is configured.
func call[T any](ctx context.Context, r *Router, op *observability.Operation, ref workload.Ref, policy resilience.RetryPolicy, fn func(ctx context.Context) (T, error)) (T, error) {
	log := r.log.WithContext(ctx)
	policy.OnRetry = func(attempt int, err error, delay time.Duration) {
		r.pipeline.Metrics().RecordRetry(ctx, op.Name(), string(ref.Kind))
		op.AddEvent("retry",
			attribute.Int(observability.AttrAttempt, attempt),
			attribute.String(observability.AttrErrorCode, string(errors.CodeOf(err))),
		)
		log.Warn("retrying workload operation", refFields(ref,
			logger.FieldOperation, op.Name(),
			logger.FieldAttempt, attempt,
			logger.FieldDelay, delay.Milliseconds(),
			logger.FieldCode, string(errors.CodeOf(err)),
			logger.FieldError, err.Error(),
		))
	}

	cb := r.breakers[ref.Kind]
	return resilience.Execute(ctx, policy, func(ctx context.Context) (T, error) {
		if cb == nil {
			return fn(ctx)
		}
		var result T
		err := cb.Execute(func() error {
			var err error
			result, err = fn(ctx)
			return err
		})
		return result, err
	})
}

// surface turns err into the AppError the caller sees, tagged with the
// operation and ref.
func (r *Router) surface(op string, ref workload.Ref, err error) error {
	appErr, ok := err.(*errors.AppError)
	if !ok {
		if inner, found := errors.AsAppError(err); found && !errors.IsRetryable(inner) {
			appErr = inner
		} else {
			appErr = errors.Internal(err)
		}
	}
	return appErr.WithOperation(op, ref.String())
}

func (r *Router) start(ctx context.Context, op string, ref workload.Ref) (context.Context, *observability.Operation) {
	attrs := observability.RefAttributes(string(ref.Kind), ref.Namespace, ref.Name)
	if ref.IdentityToken != "" {
		attrs = append(attrs, attribute.String(observability.AttrIdentity, ref.IdentityToken))
	}
	return r.pipeline.StartOperation(ctx, op, attrs...)
}

func (r *Router) finish(op *observability.Operation, state workload.State, err error) {
	if err == nil && state.Phase != "" {
		op.SetAttributes(attribute.String(observability.AttrPhase, string(state.Phase)))
	}
	op.End(err)
}

func (r *Router) onBreakerChange(name string, from, to resilience.State) {
	r.log.Warn("backend circuit changed state", logger.Fields(
		logger.FieldKind, name,
		"from", from.String(),
		"to", to.String(),
	))
}

func refFields(ref workload.Ref, kvs ...interface{}) map[string]interface{} {
	fields := logger.Fields(kvs...)
	fields[logger.FieldKind] = string(ref.Kind)
	fields[logger.FieldName] = ref.Name
	if ref.Namespace != "" {
		fields[logger.FieldNamespace] = ref.Namespace
	}
	return fields
}

type nopCache struct{}

func (nopCache) Get(context.Context, string) (workload.State, bool) { return workload.State{}, false }
func (nopCache) Put(context.Context, string, workload.State, time.Duration) {}
func (nopCache) Invalidate(context.Context, string) error { return nil }
