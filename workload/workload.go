package workload

import (
	"context"
	"io"
	"time"

	"github.com/kbukum/workloadops/validation"
)

// Adapter translates workload operations into one backend's native API.
// Every returned error is an *errors.AppError classified at the adapter boundary.
type Adapter interface {
	// Kind reports the backend this adapter serves.
	Kind() BackendKind

	// Describe returns the current observed state of ref, or NotFound.
	Describe(ctx context.Context, ref Ref) (State, error)

	// Create submits a new workload and returns its first observed state.
	// It fails with AlreadyExists when ref names an existing workload and
	// InvalidSpec when the backend rejects spec.
	Create(ctx context.Context, ref Ref, spec Spec) (State, error)

	// Terminate deletes the workload named by ref, or fails with NotFound.
	Terminate(ctx context.Context, ref Ref) error

	// WaitUntil polls Describe until pred holds or timeout elapses.
	WaitUntil(ctx context.Context, ref Ref, pred Predicate, timeout time.Duration) (State, error)

	// HealthCheck verifies the backend API is reachable.
	HealthCheck(ctx context.Context) error
}

// LogReader is optionally implemented by adapters that can read workload output.
type LogReader interface {
	Logs(ctx context.Context, ref Ref, opts LogOptions) (io.ReadCloser, error)
}

// Lister is optionally implemented by adapters that can enumerate the
// workloads created through this module.
type Lister interface {
	List(ctx context.Context, filter ListFilter) ([]State, error)
}

// ListFilter selects workloads for List. Only workloads carrying the
// managed-by label are listed.
type ListFilter struct {
	// Namespace scopes a cluster listing; empty uses the adapter's default.
	// It must be empty for engine workloads.
	Namespace string `json:"namespace,omitempty"`
	// Labels must all be present with equal values.
	Labels map[string]string `json:"labels,omitempty"`
	// Phase keeps only workloads in this phase; empty keeps all.
	Phase Phase `json:"phase,omitempty"`
}

// Validate checks the namespace rule for kind.
func (f ListFilter) Validate(kind BackendKind) error {
	v := validation.New()
	switch kind {
	case KindCluster:
		if f.Namespace != "" {
			v.DNSLabel("namespace", f.Namespace)
		}
	case KindEngine:
		v.Empty("namespace", f.Namespace, "must be empty for engine workloads")
	}
	if appErr := v.Validate(); appErr != nil {
		return appErr
	}
	return nil
}

// Selector returns the label selector for the filter, managed-by included.
func (f ListFilter) Selector() map[string]string {
	return MergeLabels(nil, f.Labels)
}

// Keep reports whether s passes the phase filter.
func (f ListFilter) Keep(s State) bool {
	return f.Phase == "" || s.Phase == f.Phase
}

// LogOptions configures log retrieval.
type LogOptions struct {
	Follow bool          `json:"follow"`
	Tail   int           `json:"tail"`
	Since  time.Duration `json:"since"`
}

// Predicate reports whether an observed state satisfies a wait condition.
type Predicate func(State) bool

// PhaseIs returns a predicate matching a single phase.
func PhaseIs(p Phase) Predicate {
	return func(s State) bool { return s.Phase == p }
}

// PhaseIn returns a predicate matching any of the given phases.
func PhaseIn(phases ...Phase) Predicate {
	return func(s State) bool {
		for _, p := range phases {
			if s.Phase == p {
				return true
			}
		}
		return false
	}
}

// Settled matches any phase other than Pending.
func Settled(s State) bool { return s.Phase != PhasePending }

// Operation names used in errors, logs and spans.
const (
	OpDescribe    = "describe"
	OpCreate      = "create"
	OpTerminate   = "terminate"
	OpWaitUntil   = "wait_until"
	OpHealthCheck = "health_check"
	OpLogs        = "logs"
	OpList        = "list"
)
