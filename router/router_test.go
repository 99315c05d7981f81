package router

import (
	"context"
	stderrors "errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/go-cmp/cmp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"

	"github.com/kbukum/workloadops/cache"
	"github.com/kbukum/workloadops/component"
	"github.com/kbukum/workloadops/errors"
	"github.com/kbukum/workloadops/observability"
	"github.com/kbukum/workloadops/resilience"
	"github.com/kbukum/workloadops/testutil"
	"github.com/kbukum/workloadops/workload"
	"github.com/kbukum/workloadops/workload/kubernetes"
)

// fakeAdapter answers each operation from a script; calls past the end of a
// script repeat its last entry.
type fakeAdapter struct {
	kind workload.BackendKind

	mu        sync.Mutex
	describe  []result
	create    []result
	terminate []error
	health    error
	calls     map[string]int
}

type result struct {
	phase workload.Phase
	err   error
}

func newFakeAdapter(kind workload.BackendKind) *fakeAdapter {
	return &fakeAdapter{kind: kind, calls: map[string]int{}}
}

func (f *fakeAdapter) Kind() workload.BackendKind { return f.kind }

func (f *fakeAdapter) next(op string, script []result, ref workload.Ref) (workload.State, error) {
	f.mu.Lock()
	n := f.calls[op]
	f.calls[op]++
	f.mu.Unlock()
	if len(script) == 0 {
		return workload.NewState(ref, workload.PhaseRunning, nil), nil
	}
	if n >= len(script) {
		n = len(script) - 1
	}
	if script[n].err != nil {
		return workload.State{}, script[n].err
	}
	return workload.NewState(ref, script[n].phase, map[string]string{"call": op}), nil
}

func (f *fakeAdapter) Describe(_ context.Context, ref workload.Ref) (workload.State, error) {
	return f.next(workload.OpDescribe, f.describe, ref)
}

func (f *fakeAdapter) Create(_ context.Context, ref workload.Ref, _ workload.Spec) (workload.State, error) {
	return f.next(workload.OpCreate, f.create, ref)
}

func (f *fakeAdapter) Terminate(_ context.Context, ref workload.Ref) error {
	script := make([]result, len(f.terminate))
	for i, err := range f.terminate {
		script[i] = result{phase: workload.PhaseTerminating, err: err}
	}
	_, err := f.next(workload.OpTerminate, script, ref)
	return err
}

func (f *fakeAdapter) WaitUntil(ctx context.Context, ref workload.Ref, pred workload.Predicate, timeout time.Duration) (workload.State, error) {
	return workload.Poll(ctx, f.Describe, ref, pred, timeout, time.Millisecond, nil)
}

func (f *fakeAdapter) HealthCheck(context.Context) error { return f.health }

func (f *fakeAdapter) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

type logAdapter struct {
	*fakeAdapter
}

func (l logAdapter) Logs(_ context.Context, ref workload.Ref, _ workload.LogOptions) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader("hello from " + ref.Name)), nil
}

// listAdapter answers List with listed after failing once per entry in fails.
type listAdapter struct {
	*fakeAdapter
	listed []workload.State
	fails  []error
	filter workload.ListFilter
}

func (l *listAdapter) List(_ context.Context, filter workload.ListFilter) ([]workload.State, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := l.calls[workload.OpList]
	l.calls[workload.OpList]++
	l.filter = filter
	if n < len(l.fails) {
		return nil, l.fails[n]
	}
	return l.listed, nil
}

type harness struct {
	router *Router
	cache  *cache.StateCache
	mini   *miniredis.Miniredis
	tel    *testutil.Telemetry
	spans  *tracetest.InMemoryExporter
}

func fastConfig() Config {
	return Config{Retry: resilience.Config{MaxAttempts: 3, BaseDelay: "1ms", MaxDelay: "2ms"}}
}

func newHarness(t *testing.T, cfg Config, adapters ...workload.Adapter) *harness {
	t.Helper()
	srv := testutil.Redis(t)
	sc, err := cache.New(srv.Client(), cache.Config{DefaultTTL: "1m"}, nil)
	if err != nil {
		t.Fatalf("cache.New: %v", err)
	}

	tel := testutil.NewTelemetry(t)
	r, err := New(cfg, Deps{Adapters: adapters, Cache: sc, Pipeline: tel.Pipeline})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return &harness{router: r, cache: sc, mini: srv.Mini(), tel: tel, spans: tel.Spans}
}

func assertCode(t *testing.T, err error, want errors.ErrorCode) *errors.AppError {
	t.Helper()
	appErr, ok := errors.AsAppError(err)
	if !ok {
		t.Fatalf("expected *AppError with code %s, got %v", want, err)
	}
	if appErr.Code != want {
		t.Fatalf("code = %s, want %s (%v)", appErr.Code, want, err)
	}
	return appErr
}

func TestRouter_DescribeUsesCache(t *testing.T) {
	a := newFakeAdapter(workload.KindCluster)
	h := newHarness(t, fastConfig(), a)
	ctx := context.Background()
	ref := workload.NewRef(workload.KindCluster, "ns1", "job-7")

	first, err := h.router.Describe(ctx, ref)
	if err != nil {
		t.Fatalf("Describe() error = %v", err)
	}
	second, err := h.router.Describe(ctx, ref)
	if err != nil {
		t.Fatalf("Describe() error = %v", err)
	}

	if n := a.count(workload.OpDescribe); n != 1 {
		t.Errorf("adapter Describe calls = %d, want 1", n)
	}
	if second.Phase != first.Phase || !second.LastObservedAt.Equal(first.LastObservedAt) {
		t.Errorf("cached state differs: %+v vs %+v", second, first)
	}

	spans := h.spans.GetSpans()
	if len(spans) != 2 {
		t.Fatalf("spans = %d, want 2", len(spans))
	}
	var results []string
	for _, s := range spans {
		if s.Name != workload.OpDescribe {
			t.Errorf("span name = %q", s.Name)
		}
		for _, kv := range s.Attributes {
			if kv.Key == attribute.Key(observability.AttrCacheResult) {
				results = append(results, kv.Value.AsString())
			}
		}
	}
	if strings.Join(results, ",") != "miss,hit" {
		t.Errorf("cache results = %v, want [miss hit]", results)
	}
}

func TestRouter_DescribeRetriesTransientFailures(t *testing.T) {
	a := newFakeAdapter(workload.KindCluster)
	a.describe = []result{
		{err: errors.ServiceUnavailable("kubernetes", stderrors.New("503"))},
		{err: errors.ConnectionFailed("kubernetes", stderrors.New("refused"))},
		{phase: workload.PhaseRunning},
	}
	h := newHarness(t, fastConfig(), a)

	state, err := h.router.Describe(context.Background(), workload.NewRef(workload.KindCluster, "ns1", "job-7"))
	if err != nil {
		t.Fatalf("Describe() error = %v", err)
	}
	if state.Phase != workload.PhaseRunning {
		t.Errorf("phase = %s, want Running", state.Phase)
	}
	if n := a.count(workload.OpDescribe); n != 3 {
		t.Errorf("adapter calls = %d, want 3", n)
	}
	if n := h.tel.Counter(t, observability.MetricRetryAttempts, observability.AttrOperation, workload.OpDescribe); n != 2 {
		t.Errorf("retry metric = %d, want 2", n)
	}
}

func TestRouter_DescribeRetriesExhausted(t *testing.T) {
	a := newFakeAdapter(workload.KindCluster)
	a.describe = []result{{err: errors.ServiceUnavailable("kubernetes", stderrors.New("503"))}}
	h := newHarness(t, fastConfig(), a)
	ref := workload.NewRef(workload.KindCluster, "ns1", "job-7")

	_, err := h.router.Describe(context.Background(), ref)

	appErr := assertCode(t, err, errors.ErrCodeRetriesExhausted)
	if appErr.Operation != workload.OpDescribe || appErr.Ref != ref.String() {
		t.Errorf("error not annotated: op=%q ref=%q", appErr.Operation, appErr.Ref)
	}
	if !errors.IsCode(err, errors.ErrCodeServiceUnavailable) {
		t.Error("last backend error should be preserved")
	}
	if n := a.count(workload.OpDescribe); n != 3 {
		t.Errorf("adapter calls = %d, want 3", n)
	}
}

func TestRouter_EngineNotFoundIsNotCached(t *testing.T) {
	a := newFakeAdapter(workload.KindEngine)
	a.describe = []result{{err: errors.NotFound("container", "cache-1").WithOperation(workload.OpDescribe, "engine//cache-1")}}
	h := newHarness(t, fastConfig(), a)

	_, err := h.router.Describe(context.Background(), workload.NewRef(workload.KindEngine, "", "cache-1"))

	assertCode(t, err, errors.ErrCodeNotFound)
	if n := a.count(workload.OpDescribe); n != 1 {
		t.Errorf("adapter calls = %d, want 1", n)
	}
	if keys := h.mini.Keys(); len(keys) != 0 {
		t.Errorf("cache keys = %v, want none", keys)
	}
}

func TestRouter_TerminateInvalidatesCache(t *testing.T) {
	a := newFakeAdapter(workload.KindCluster)
	a.describe = []result{{phase: workload.PhaseRunning}, {err: errors.NotFound("job", "ns1/job-7")}}
	h := newHarness(t, fastConfig(), a)
	ctx := context.Background()
	ref := workload.NewRef(workload.KindCluster, "ns1", "job-7")

	if _, err := h.router.Describe(ctx, ref); err != nil {
		t.Fatalf("Describe() error = %v", err)
	}
	if err := h.router.Terminate(ctx, ref); err != nil {
		t.Fatalf("Terminate() error = %v", err)
	}
	if _, ok := h.cache.Get(ctx, ref.Key()); ok {
		t.Fatal("cache still holds the pre-termination state")
	}

	_, err := h.router.Describe(ctx, ref)
	assertCode(t, err, errors.ErrCodeNotFound)
}

func TestRouter_FailedEvictionBypassesCache(t *testing.T) {
	a := newFakeAdapter(workload.KindCluster)
	a.describe = []result{{phase: workload.PhaseRunning}, {err: errors.NotFound("job", "ns1/job-7")}}
	h := newHarness(t, fastConfig(), a)
	ctx := context.Background()
	ref := workload.NewRef(workload.KindCluster, "ns1", "job-7")

	if _, err := h.router.Describe(ctx, ref); err != nil {
		t.Fatalf("Describe() error = %v", err)
	}

	h.mini.SetError("ERR store briefly unavailable")
	if err := h.router.Terminate(ctx, ref); err != nil {
		t.Fatalf("Terminate() error = %v", err)
	}
	h.mini.SetError("")

	if _, ok := h.cache.Get(ctx, ref.Key()); !ok {
		t.Fatal("expected the pre-termination entry to survive the failed eviction")
	}

	_, err := h.router.Describe(ctx, ref)
	assertCode(t, err, errors.ErrCodeNotFound)
	if n := a.count(workload.OpDescribe); n != 2 {
		t.Errorf("adapter describe calls = %d, want 2", n)
	}
	if _, ok := h.cache.Get(ctx, ref.Key()); ok {
		t.Error("stale entry was not evicted on the next read")
	}
}

func TestRouter_TerminateNotFoundStillInvalidates(t *testing.T) {
	a := newFakeAdapter(workload.KindEngine)
	a.terminate = []error{errors.NotFound("container", "api")}
	h := newHarness(t, fastConfig(), a)
	ctx := context.Background()
	ref := workload.NewRef(workload.KindEngine, "", "api")

	h.cache.Put(ctx, ref.Key(), workload.NewState(ref, workload.PhaseRunning, nil), 0)

	err := h.router.Terminate(ctx, ref)
	appErr := assertCode(t, err, errors.ErrCodeNotFound)
	if appErr.Operation != workload.OpTerminate {
		t.Errorf("operation = %q", appErr.Operation)
	}
	if _, ok := h.cache.Get(ctx, ref.Key()); ok {
		t.Error("cache entry survived a NotFound terminate")
	}
}

func TestRouter_TerminateOnlyRetriesConnectionFailures(t *testing.T) {
	ref := workload.NewRef(workload.KindEngine, "", "api")

	t.Run("backend saw the request", func(t *testing.T) {
		a := newFakeAdapter(workload.KindEngine)
		a.terminate = []error{errors.ServiceUnavailable("docker", stderrors.New("500"))}
		h := newHarness(t, fastConfig(), a)

		err := h.router.Terminate(context.Background(), ref)
		assertCode(t, err, errors.ErrCodeRetriesExhausted)
		if n := a.count(workload.OpTerminate); n != 1 {
			t.Errorf("terminate calls = %d, want 1", n)
		}
	})

	t.Run("connection refused", func(t *testing.T) {
		a := newFakeAdapter(workload.KindEngine)
		a.terminate = []error{errors.ConnectionFailed("docker", stderrors.New("refused")), nil}
		h := newHarness(t, fastConfig(), a)

		if err := h.router.Terminate(context.Background(), ref); err != nil {
			t.Fatalf("Terminate() error = %v", err)
		}
		if n := a.count(workload.OpTerminate); n != 2 {
			t.Errorf("terminate calls = %d, want 2", n)
		}
	})
}

func TestRouter_CacheDownFallsBackToAdapter(t *testing.T) {
	a := newFakeAdapter(workload.KindCluster)
	h := newHarness(t, fastConfig(), a)
	h.mini.Close()
	ctx := context.Background()
	ref := workload.NewRef(workload.KindCluster, "ns1", "job-7")

	for i := 0; i < 2; i++ {
		state, err := h.router.Describe(ctx, ref)
		if err != nil {
			t.Fatalf("Describe() error = %v", err)
		}
		if state.Phase != workload.PhaseRunning {
			t.Errorf("phase = %s, want Running", state.Phase)
		}
	}
	if n := a.count(workload.OpDescribe); n != 2 {
		t.Errorf("adapter calls = %d, want 2", n)
	}
	if err := h.router.Terminate(ctx, ref); err != nil {
		t.Errorf("Terminate() error = %v", err)
	}
}

func TestRouter_RejectsBadRefs(t *testing.T) {
	a := newFakeAdapter(workload.KindCluster)
	h := newHarness(t, fastConfig(), a)
	ctx := context.Background()

	tests := []struct {
		name string
		ref  workload.Ref
		want errors.ErrorCode
	}{
		{"unknown kind", workload.Ref{Kind: "nomad", Name: "x"}, errors.ErrCodeUnsupportedBackend},
		{"unregistered engine", workload.NewRef(workload.KindEngine, "", "api"), errors.ErrCodeUnsupportedBackend},
		{"missing namespace", workload.NewRef(workload.KindCluster, "", "job-7"), errors.ErrCodeInvalidSpec},
		{"empty name", workload.NewRef(workload.KindCluster, "ns1", ""), errors.ErrCodeInvalidSpec},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.router.Describe(ctx, tt.ref)
			appErr := assertCode(t, err, tt.want)
			if appErr.Operation != workload.OpDescribe || appErr.Ref != tt.ref.String() {
				t.Errorf("error not annotated: op=%q ref=%q", appErr.Operation, appErr.Ref)
			}

			_, err = h.router.Create(ctx, tt.ref, workload.Spec{Image: "busybox"})
			assertCode(t, err, tt.want)
			assertCode(t, h.router.Terminate(ctx, tt.ref), tt.want)
		})
	}

	if n := a.count(workload.OpDescribe) + a.count(workload.OpCreate) + a.count(workload.OpTerminate); n != 0 {
		t.Errorf("adapter reached %d times", n)
	}
}

func TestRouter_CreateWritesCache(t *testing.T) {
	a := newFakeAdapter(workload.KindCluster)
	a.create = []result{{phase: workload.PhasePending}}
	h := newHarness(t, fastConfig(), a)
	ctx := context.Background()
	ref := workload.NewRef(workload.KindCluster, "ns1", "job-7")

	state, err := h.router.Create(ctx, ref, workload.Spec{Image: "busybox"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	cached, ok := h.cache.Get(ctx, ref.Key())
	if !ok || cached.Phase != state.Phase {
		t.Errorf("cache = %+v (hit=%v), want phase %s", cached, ok, state.Phase)
	}

	a.create = []result{{err: errors.AlreadyExists("job", "ns1/job-7")}}
	_, err = h.router.Create(ctx, ref, workload.Spec{Image: "busybox"})
	assertCode(t, err, errors.ErrCodeAlreadyExists)
}

func TestRouter_WaitUntil(t *testing.T) {
	ctx := context.Background()
	ref := workload.NewRef(workload.KindEngine, "", "api")

	t.Run("caches the final state", func(t *testing.T) {
		a := newFakeAdapter(workload.KindEngine)
		a.describe = []result{{phase: workload.PhasePending}, {phase: workload.PhasePending}, {phase: workload.PhaseRunning}}
		h := newHarness(t, fastConfig(), a)

		state, err := h.router.WaitUntil(ctx, ref, workload.PhaseIs(workload.PhaseRunning), time.Second)
		if err != nil {
			t.Fatalf("WaitUntil() error = %v", err)
		}
		if state.Phase != workload.PhaseRunning {
			t.Errorf("phase = %s", state.Phase)
		}
		if cached, ok := h.cache.Get(ctx, ref.Key()); !ok || cached.Phase != workload.PhaseRunning {
			t.Errorf("cache = %+v (hit=%v)", cached, ok)
		}
	})

	t.Run("gone evicts", func(t *testing.T) {
		a := newFakeAdapter(workload.KindEngine)
		a.describe = []result{{err: errors.NotFound("container", "api")}}
		h := newHarness(t, fastConfig(), a)
		h.cache.Put(ctx, ref.Key(), workload.NewState(ref, workload.PhaseRunning, nil), 0)

		state, err := h.router.WaitUntil(ctx, ref, workload.PhaseIs(workload.PhaseGone), time.Second)
		if err != nil || state.Phase != workload.PhaseGone {
			t.Fatalf("WaitUntil() = %+v, %v", state, err)
		}
		if _, ok := h.cache.Get(ctx, ref.Key()); ok {
			t.Error("gone workload still cached")
		}
	})

	t.Run("timeout", func(t *testing.T) {
		a := newFakeAdapter(workload.KindEngine)
		a.describe = []result{{phase: workload.PhasePending}}
		h := newHarness(t, fastConfig(), a)

		_, err := h.router.WaitUntil(ctx, ref, workload.PhaseIs(workload.PhaseRunning), 20*time.Millisecond)
		appErr := assertCode(t, err, errors.ErrCodeTimeout)
		if appErr.Ref != ref.String() {
			t.Errorf("ref = %q", appErr.Ref)
		}
	})

	t.Run("nil predicate", func(t *testing.T) {
		h := newHarness(t, fastConfig(), newFakeAdapter(workload.KindEngine))
		_, err := h.router.WaitUntil(ctx, ref, nil, time.Second)
		assertCode(t, err, errors.ErrCodeInvalidSpec)
	})
}

func TestRouter_Logs(t *testing.T) {
	ctx := context.Background()
	engine := logAdapter{newFakeAdapter(workload.KindEngine)}
	cluster := newFakeAdapter(workload.KindCluster)
	h := newHarness(t, fastConfig(), engine, cluster)

	rc, err := h.router.Logs(ctx, workload.NewRef(workload.KindEngine, "", "api"), workload.LogOptions{Tail: 10})
	if err != nil {
		t.Fatalf("Logs() error = %v", err)
	}
	defer rc.Close()
	out, _ := io.ReadAll(rc)
	if string(out) != "hello from api" {
		t.Errorf("logs = %q", out)
	}

	_, err = h.router.Logs(ctx, workload.NewRef(workload.KindCluster, "ns1", "job-7"), workload.LogOptions{})
	assertCode(t, err, errors.ErrCodeUnsupportedBackend)
}

func TestRouter_List(t *testing.T) {
	ctx := context.Background()
	api := workload.NewRef(workload.KindEngine, "", "api")
	worker := workload.NewRef(workload.KindEngine, "", "worker")
	engine := &listAdapter{
		fakeAdapter: newFakeAdapter(workload.KindEngine),
		listed: []workload.State{
			workload.NewState(api, workload.PhaseRunning, nil),
			workload.NewState(worker, workload.PhaseDegraded, nil),
		},
		fails: []error{errors.ConnectionFailed("docker", stderrors.New("refused"))},
	}
	h := newHarness(t, fastConfig(), engine)

	filter := workload.ListFilter{Labels: map[string]string{"team": "infra"}}
	states, err := h.router.List(ctx, workload.KindEngine, filter)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(states) != 2 || engine.count(workload.OpList) != 2 {
		t.Fatalf("states = %d, list calls = %d", len(states), engine.count(workload.OpList))
	}
	if diff := cmp.Diff(filter, engine.filter); diff != "" {
		t.Errorf("filter mismatch (-want +got):\n%s", diff)
	}

	got, err := h.router.Describe(ctx, worker)
	if err != nil {
		t.Fatalf("Describe() error = %v", err)
	}
	if got.Phase != workload.PhaseDegraded || engine.count(workload.OpDescribe) != 0 {
		t.Errorf("listed state not served from cache: %+v, describe calls = %d", got, engine.count(workload.OpDescribe))
	}

	var listSpans int
	for _, s := range h.spans.GetSpans() {
		if s.Name == workload.OpList {
			listSpans++
		}
	}
	if listSpans != 1 {
		t.Errorf("list spans = %d, want 1", listSpans)
	}
}

func TestRouter_ListRejects(t *testing.T) {
	ctx := context.Background()
	engine := &listAdapter{fakeAdapter: newFakeAdapter(workload.KindEngine)}
	cluster := newFakeAdapter(workload.KindCluster)
	h := newHarness(t, fastConfig(), engine, cluster)

	tests := []struct {
		name   string
		kind   workload.BackendKind
		filter workload.ListFilter
		want   errors.ErrorCode
	}{
		{"unknown backend", workload.BackendKind("nomad"), workload.ListFilter{}, errors.ErrCodeUnsupportedBackend},
		{"backend without listing", workload.KindCluster, workload.ListFilter{}, errors.ErrCodeUnsupportedBackend},
		{"engine namespace", workload.KindEngine, workload.ListFilter{Namespace: "ns1"}, errors.ErrCodeInvalidSpec},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.router.List(ctx, tt.kind, tt.filter)
			appErr := assertCode(t, err, tt.want)
			if appErr.Operation != workload.OpList {
				t.Errorf("operation = %q", appErr.Operation)
			}
		})
	}
	if n := engine.count(workload.OpList); n != 0 {
		t.Errorf("adapter List calls = %d, want 0", n)
	}
}

func TestRouter_CircuitBreakerFailsFast(t *testing.T) {
	a := newFakeAdapter(workload.KindCluster)
	a.describe = []result{{err: errors.ServiceUnavailable("kubernetes", stderrors.New("503"))}}
	cfg := Config{Retry: resilience.Config{
		MaxAttempts: 1, BaseDelay: "1ms", MaxDelay: "1ms",
		BreakerEnabled: true, BreakerMaxFailures: 2, BreakerTimeout: "1h",
	}}
	h := newHarness(t, cfg, a)
	ctx := context.Background()
	ref := workload.NewRef(workload.KindCluster, "ns1", "job-7")

	for i := 0; i < 2; i++ {
		_, _ = h.router.Describe(ctx, ref)
	}
	_, err := h.router.Describe(ctx, ref)

	assertCode(t, err, errors.ErrCodeRetriesExhausted)
	if !stderrors.Is(err, resilience.ErrCircuitOpen) {
		t.Errorf("expected open circuit cause, got %v", err)
	}
	if n := a.count(workload.OpDescribe); n != 2 {
		t.Errorf("adapter calls = %d, want 2", n)
	}

	health := h.router.Health(ctx)
	if len(health) != 1 || health[0].Status != component.StatusDegraded {
		t.Errorf("health = %+v, want degraded", health)
	}
}

func TestRouter_Health(t *testing.T) {
	cluster := newFakeAdapter(workload.KindCluster)
	engine := newFakeAdapter(workload.KindEngine)
	engine.health = errors.ConnectionFailed("docker", stderrors.New("no socket"))
	h := newHarness(t, fastConfig(), engine, cluster)

	health := h.router.Health(context.Background())
	if len(health) != 2 {
		t.Fatalf("health entries = %d", len(health))
	}
	if health[0].Name != "workload.cluster" || health[0].Status != component.StatusHealthy {
		t.Errorf("cluster health = %+v", health[0])
	}
	if health[1].Name != "workload.engine" || health[1].Status != component.StatusUnhealthy {
		t.Errorf("engine health = %+v", health[1])
	}
}

func TestNew_Errors(t *testing.T) {
	pipeline := testutil.NewTelemetry(t).Pipeline

	a := newFakeAdapter(workload.KindCluster)
	tests := []struct {
		name string
		cfg  Config
		deps Deps
	}{
		{"no pipeline", Config{}, Deps{Adapters: []workload.Adapter{a}}},
		{"no adapters", Config{}, Deps{Pipeline: pipeline}},
		{"duplicate kind", Config{}, Deps{Pipeline: pipeline, Adapters: []workload.Adapter{a, newFakeAdapter(workload.KindCluster)}}},
		{"bad ttl", Config{CacheTTL: "soon"}, Deps{Pipeline: pipeline, Adapters: []workload.Adapter{a}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.cfg, tt.deps); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestRouter_ClusterCreateThenWaitRunning(t *testing.T) {
	client := fake.NewClientset()
	adapter := kubernetes.NewWithClient(client, &kubernetes.Config{}, workload.Config{PollInterval: "10ms"}, nil)
	h := newHarness(t, fastConfig(), adapter)
	ctx := context.Background()
	ref := workload.NewRef(workload.KindCluster, "ns1", "job-7")

	state, err := h.router.Create(ctx, ref, workload.Spec{Image: "busybox", Command: []string{"sleep", "60"}})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if state.Phase != workload.PhasePending {
		t.Fatalf("Create() phase = %s, want Pending", state.Phase)
	}

	go func() {
		time.Sleep(30 * time.Millisecond)
		pod := &corev1.Pod{
			ObjectMeta: metav1.ObjectMeta{Name: "job-7-abcde", Namespace: "ns1", Labels: map[string]string{"job-name": "job-7"}},
			Spec:       corev1.PodSpec{Containers: []corev1.Container{{Name: "main", Image: "busybox"}}},
			Status: corev1.PodStatus{
				Phase:      corev1.PodRunning,
				Conditions: []corev1.PodCondition{{Type: corev1.PodReady, Status: corev1.ConditionTrue}},
				ContainerStatuses: []corev1.ContainerStatus{{
					Name: "main", Ready: true, Image: "busybox",
					State: corev1.ContainerState{Running: &corev1.ContainerStateRunning{}},
				}},
			},
		}
		_, _ = client.CoreV1().Pods("ns1").Create(context.Background(), pod, metav1.CreateOptions{})
	}()

	got, err := h.router.WaitUntil(ctx, ref, workload.PhaseIs(workload.PhaseRunning), 30*time.Second)
	if err != nil {
		t.Fatalf("WaitUntil() error = %v", err)
	}
	if got.Phase != workload.PhaseRunning {
		t.Errorf("WaitUntil() phase = %s, want Running", got.Phase)
	}

	described, err := h.router.Describe(ctx, ref)
	if err != nil || described.Phase != workload.PhaseRunning {
		t.Errorf("Describe() = %+v, %v", described, err)
	}
}
