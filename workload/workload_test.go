package workload

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/kbukum/workloadops/errors"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestNewRef_DeterministicToken(t *testing.T) {
	a := NewRef(KindCluster, "ns1", "job-7")
	b := NewRef(KindCluster, "ns1", "job-7")
	c := NewRef(KindEngine, "", "job-7")

	if a.IdentityToken == "" {
		t.Fatal("expected identity token")
	}
	if a.IdentityToken != b.IdentityToken {
		t.Errorf("tokens differ for equal refs: %s vs %s", a.IdentityToken, b.IdentityToken)
	}
	if a.IdentityToken == c.IdentityToken {
		t.Error("expected different tokens for different kinds")
	}
	if a.Key() != a.IdentityToken {
		t.Errorf("Key() = %q, want identity token", a.Key())
	}
	if (Ref{Kind: KindCluster, Namespace: "ns1", Name: "job-7"}).Key() != a.IdentityToken {
		t.Error("Key() without token should derive the same token as NewRef")
	}
}

func TestRef_Validate(t *testing.T) {
	tests := []struct {
		name    string
		ref     Ref
		wantErr bool
	}{
		{"cluster ok", NewRef(KindCluster, "ns1", "job-7"), false},
		{"cluster missing namespace", NewRef(KindCluster, "", "job-7"), true},
		{"cluster bad name", NewRef(KindCluster, "ns1", "Job_7"), true},
		{"engine ok", NewRef(KindEngine, "", "cache-1"), false},
		{"engine underscore ok", NewRef(KindEngine, "", "cache_1"), false},
		{"engine with namespace", NewRef(KindEngine, "ns1", "cache-1"), true},
		{"empty name", NewRef(KindEngine, "", ""), true},
		{"bad token", Ref{Kind: KindEngine, Name: "cache-1", IdentityToken: "nope"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.ref.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.IsCode(err, errors.ErrCodeInvalidSpec) {
				t.Errorf("expected INVALID_SPEC, got %v", err)
			}
		})
	}
}

func TestParseKind(t *testing.T) {
	for in, want := range map[string]BackendKind{"cluster": KindCluster, "k8s": KindCluster, "Docker": KindEngine, "engine": KindEngine} {
		got, err := ParseKind(in)
		if err != nil || got != want {
			t.Errorf("ParseKind(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseKind("nomad"); !errors.IsCode(err, errors.ErrCodeUnsupportedBackend) {
		t.Errorf("expected UNSUPPORTED_BACKEND, got %v", err)
	}
}

func TestParsePhases(t *testing.T) {
	got, err := ParsePhases([]string{"running", " Degraded", "GONE"})
	if err != nil {
		t.Fatalf("ParsePhases: %v", err)
	}
	if len(got) != 3 || got[0] != PhaseRunning || got[1] != PhaseDegraded || got[2] != PhaseGone {
		t.Errorf("ParsePhases = %v", got)
	}
	if _, err := ParsePhase("Succeeded"); !errors.IsCode(err, errors.ErrCodeInvalidSpec) {
		t.Errorf("ParsePhase(Succeeded) error = %v, want INVALID_SPEC", err)
	}
}

func TestSpec_Validate(t *testing.T) {
	tests := []struct {
		name    string
		spec    Spec
		wantErr bool
	}{
		{"minimal", Spec{Image: "busybox"}, false},
		{"missing image", Spec{Command: []string{"sh"}}, true},
		{"bad env name", Spec{Image: "busybox", Env: map[string]string{"1BAD": "x"}}, true},
		{"bad quantity", Spec{Image: "busybox", Resources: &Resources{MemoryLimit: "lots"}}, true},
		{"good resources", Spec{Image: "busybox", Resources: &Resources{CPULimit: "500m", MemoryLimit: "256Mi"}}, false},
		{"bad port", Spec{Image: "busybox", Ports: []PortMapping{{Container: 70000}}}, true},
		{"bad restart policy", Spec{Image: "busybox", RestartPolicy: "sometimes"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.spec.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.IsCode(err, errors.ErrCodeInvalidSpec) {
				t.Errorf("expected INVALID_SPEC, got %v", err)
			}
		})
	}
}

func TestPredicates(t *testing.T) {
	running := State{Phase: PhaseRunning}
	if !PhaseIs(PhaseRunning)(running) || PhaseIs(PhaseGone)(running) {
		t.Error("PhaseIs mismatch")
	}
	if !PhaseIn(PhaseDegraded, PhaseRunning)(running) || PhaseIn(PhaseGone)(running) {
		t.Error("PhaseIn mismatch")
	}
	if Settled(State{Phase: PhasePending}) || !Settled(running) {
		t.Error("Settled mismatch")
	}
}

func TestState_CloneIsolatesDetail(t *testing.T) {
	s := NewState(NewRef(KindEngine, "", "a"), PhaseRunning, map[string]string{"k": "v"})
	c := s.Clone()
	c.Detail["k"] = "changed"
	if s.Detail["k"] != "v" {
		t.Error("clone shares detail map")
	}
}

// sequence returns a DescribeFunc that yields the given results in order,
// repeating the last one.
func sequence(calls *int32, results ...func(Ref) (State, error)) DescribeFunc {
	return func(_ context.Context, ref Ref) (State, error) {
		n := int(atomic.AddInt32(calls, 1)) - 1
		if n >= len(results) {
			n = len(results) - 1
		}
		return results[n](ref)
	}
}

func phase(p Phase) func(Ref) (State, error) {
	return func(ref Ref) (State, error) { return NewState(ref, p, nil), nil }
}

func fail(err error) func(Ref) (State, error) {
	return func(Ref) (State, error) { return State{}, err }
}

func TestPoll_ReachesPhase(t *testing.T) {
	var calls int32
	ref := NewRef(KindCluster, "ns1", "job-7")
	describe := sequence(&calls, phase(PhasePending), phase(PhasePending), phase(PhaseRunning))

	got, err := Poll(context.Background(), describe, ref, PhaseIs(PhaseRunning), time.Second, time.Millisecond, nil)
	if err != nil {
		t.Fatalf("Poll() error = %v", err)
	}
	if got.Phase != PhaseRunning {
		t.Errorf("phase = %s, want Running", got.Phase)
	}
	if calls != 3 {
		t.Errorf("describe calls = %d, want 3", calls)
	}
}

func TestPoll_NotFoundIsGone(t *testing.T) {
	var calls int32
	ref := NewRef(KindEngine, "", "cache-1")
	describe := sequence(&calls, phase(PhaseRunning), fail(errors.NotFound("container", "cache-1")))

	got, err := Poll(context.Background(), describe, ref, PhaseIs(PhaseGone), time.Second, time.Millisecond, nil)
	if err != nil {
		t.Fatalf("Poll() error = %v", err)
	}
	if got.Phase != PhaseGone || got.Ref != ref {
		t.Errorf("got %+v, want Gone for %s", got, ref)
	}
}

func TestPoll_TransientErrorsContinue(t *testing.T) {
	var calls int32
	ref := NewRef(KindEngine, "", "cache-1")
	transient := errors.ServiceUnavailable("docker", nil)
	describe := sequence(&calls, fail(transient), fail(transient), phase(PhaseRunning))

	if _, err := Poll(context.Background(), describe, ref, PhaseIs(PhaseRunning), time.Second, time.Millisecond, nil); err != nil {
		t.Fatalf("Poll() error = %v", err)
	}
	if calls != 3 {
		t.Errorf("describe calls = %d, want 3", calls)
	}
}

func TestPoll_TerminalErrorAborts(t *testing.T) {
	var calls int32
	describe := sequence(&calls, fail(errors.InvalidSpec("bad")))

	_, err := Poll(context.Background(), describe, NewRef(KindEngine, "", "x"), PhaseIs(PhaseRunning), time.Second, time.Millisecond, nil)
	if !errors.IsCode(err, errors.ErrCodeInvalidSpec) {
		t.Fatalf("expected INVALID_SPEC, got %v", err)
	}
	if calls != 1 {
		t.Errorf("describe calls = %d, want 1", calls)
	}
}

func TestPoll_Timeout(t *testing.T) {
	var calls int32
	describe := sequence(&calls, phase(PhasePending))

	start := time.Now()
	_, err := Poll(context.Background(), describe, NewRef(KindEngine, "", "x"), PhaseIs(PhaseRunning), 50*time.Millisecond, 10*time.Millisecond, nil)
	if !errors.IsCode(err, errors.ErrCodeTimeout) {
		t.Fatalf("expected TIMEOUT, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Poll took %s after a 50ms timeout", elapsed)
	}
	if calls < 2 {
		t.Errorf("expected several observations, got %d", calls)
	}
}

func TestPoll_CancelUnwinds(t *testing.T) {
	var calls int32
	describe := sequence(&calls, phase(PhasePending))
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		_, err := Poll(ctx, describe, NewRef(KindEngine, "", "x"), PhaseIs(PhaseRunning), time.Minute, time.Hour, nil)
		done <- err
	}()

	for atomic.LoadInt32(&calls) == 0 {
		time.Sleep(time.Millisecond)
	}
	cancel()

	select {
	case err := <-done:
		if !errors.IsCode(err, errors.ErrCodeCanceled) {
			t.Fatalf("expected CANCELED, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Poll did not return after cancel")
	}
}

func TestResources_Parse(t *testing.T) {
	mem, err := ParseMemory("256Mi")
	if err != nil || mem != 256*1024*1024 {
		t.Errorf("ParseMemory(256Mi) = %d, %v", mem, err)
	}
	cpu, err := ParseCPU("500m")
	if err != nil || cpu != 500_000_000 {
		t.Errorf("ParseCPU(500m) = %d, %v", cpu, err)
	}
	cpu, err = ParseCPU("2")
	if err != nil || cpu != 2_000_000_000 {
		t.Errorf("ParseCPU(2) = %d, %v", cpu, err)
	}
	if _, err := ParseMemory("-1Gi"); err == nil {
		t.Error("expected error for negative memory")
	}
	if got := FormatCPU(500_000_000); got != "500m" {
		t.Errorf("FormatCPU = %q, want 500m", got)
	}
	if got := FormatMemory(256 * 1024 * 1024); got != "256Mi" {
		t.Errorf("FormatMemory = %q, want 256Mi", got)
	}
}

func TestMergeLabels(t *testing.T) {
	got := MergeLabels(map[string]string{"team": "a", "env": "dev"}, map[string]string{"env": "prod"})
	if got["team"] != "a" || got["env"] != "prod" || got[ManagedByLabel] != ManagedByValue {
		t.Errorf("unexpected labels %v", got)
	}
}

func TestNewAdapter_Unregistered(t *testing.T) {
	_, err := NewAdapter(BackendKind("nomad"), Config{}, nil, nil)
	if !errors.IsCode(err, errors.ErrCodeUnsupportedBackend) {
		t.Fatalf("expected UNSUPPORTED_BACKEND, got %v", err)
	}
}

func TestListFilter(t *testing.T) {
	tests := []struct {
		name    string
		kind    BackendKind
		filter  ListFilter
		wantErr bool
	}{
		{"cluster default namespace", KindCluster, ListFilter{}, false},
		{"cluster namespace", KindCluster, ListFilter{Namespace: "jobs"}, false},
		{"cluster bad namespace", KindCluster, ListFilter{Namespace: "Jobs_1"}, true},
		{"engine", KindEngine, ListFilter{Labels: map[string]string{"team": "infra"}}, false},
		{"engine namespace", KindEngine, ListFilter{Namespace: "jobs"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.filter.Validate(tt.kind)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.IsCode(err, errors.ErrCodeInvalidSpec) {
				t.Errorf("code = %s", errors.CodeOf(err))
			}
		})
	}

	f := ListFilter{Labels: map[string]string{"team": "infra"}, Phase: PhaseRunning}
	sel := f.Selector()
	if sel[ManagedByLabel] != ManagedByValue || sel["team"] != "infra" {
		t.Errorf("selector = %v", sel)
	}
	ref := NewRef(KindEngine, "", "api")
	if !f.Keep(NewState(ref, PhaseRunning, nil)) || f.Keep(NewState(ref, PhaseGone, nil)) {
		t.Error("phase filter not applied")
	}
	if !(ListFilter{}).Keep(NewState(ref, PhaseGone, nil)) {
		t.Error("empty filter should keep every phase")
	}
}
