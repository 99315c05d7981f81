package workload

import (
	"fmt"
	"maps"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kbukum/workloadops/errors"
	"github.com/kbukum/workloadops/validation"
)

// BackendKind selects the adapter that serves a workload.
type BackendKind string

// Backend kinds.
const (
	KindCluster BackendKind = "cluster"
	KindEngine  BackendKind = "engine"
)

// ParseKind parses a backend kind, accepting the runtime names as aliases.
func ParseKind(s string) (BackendKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(KindCluster), "kubernetes", "k8s":
		return KindCluster, nil
	case string(KindEngine), "docker":
		return KindEngine, nil
	}
	return "", errors.UnsupportedBackend(s)
}

// Phase is the backend-independent lifecycle phase of a workload.
type Phase string

// Workload phases.
const (
	PhasePending     Phase = "Pending"
	PhaseRunning     Phase = "Running"
	PhaseDegraded    Phase = "Degraded"
	PhaseTerminating Phase = "Terminating"
	PhaseGone        Phase = "Gone"
)

// Phases lists every phase in lifecycle order.
var Phases = []Phase{PhasePending, PhaseRunning, PhaseDegraded, PhaseTerminating, PhaseGone}

// ParsePhase matches a phase name case-insensitively.
func ParsePhase(s string) (Phase, error) {
	for _, p := range Phases {
		if strings.EqualFold(strings.TrimSpace(s), string(p)) {
			return p, nil
		}
	}
	return "", errors.InvalidSpec(fmt.Sprintf("unknown phase %q (want one of %v)", s, Phases))
}

// ParsePhases parses each name with ParsePhase.
func ParsePhases(names []string) ([]Phase, error) {
	out := make([]Phase, 0, len(names))
	for _, s := range names {
		p, err := ParsePhase(s)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// identityNamespace scopes name-based identity tokens.
var identityNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("workloadops/ref"))

// Ref identifies a workload on one backend.
type Ref struct {
	Kind          BackendKind `json:"kind"`
	Namespace     string      `json:"namespace,omitempty"`
	Name          string      `json:"name"`
	IdentityToken string      `json:"identity_token"`
}

// NewRef builds a Ref with a deterministic identity token derived from kind, namespace and name.
func NewRef(kind BackendKind, namespace, name string) Ref {
	r := Ref{Kind: kind, Namespace: namespace, Name: name}
	r.IdentityToken = uuid.NewSHA1(identityNamespace, []byte(r.String())).String()
	return r
}

// String renders the ref as kind/namespace/name.
func (r Ref) String() string {
	return fmt.Sprintf("%s/%s/%s", r.Kind, r.Namespace, r.Name)
}

// Key returns the cache key for the ref.
func (r Ref) Key() string {
	if r.IdentityToken != "" {
		return r.IdentityToken
	}
	return NewRef(r.Kind, r.Namespace, r.Name).IdentityToken
}

// engineName matches the container names the engine accepts.
var engineName = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_.-]*$`)

// Validate checks the namespace rule and the name format.
// The kind itself is checked by the router, which owns the adapter table.
func (r Ref) Validate() error {
	v := validation.New().Required("name", r.Name)
	switch r.Kind {
	case KindCluster:
		v.Required("namespace", r.Namespace).
			DNSLabel("namespace", r.Namespace).
			DNSLabel("name", r.Name)
	case KindEngine:
		v.Empty("namespace", r.Namespace, "must be empty for engine workloads").
			Custom(r.Name == "" || engineName.MatchString(r.Name), "name", "must be a valid container name")
	}
	v.OptionalUUID("identity_token", r.IdentityToken)
	if appErr := v.Validate(); appErr != nil {
		return appErr
	}
	return nil
}

// State is one observation of a workload. Adapters return fresh values.
type State struct {
	Ref            Ref               `json:"ref"`
	Phase          Phase             `json:"phase"`
	LastObservedAt time.Time         `json:"last_observed_at"`
	Detail         map[string]string `json:"detail,omitempty"`
}

// NewState returns a state observed now.
func NewState(ref Ref, phase Phase, detail map[string]string) State {
	return State{Ref: ref, Phase: phase, LastObservedAt: time.Now().UTC(), Detail: detail}
}

// Clone returns a copy that shares no maps with s.
func (s State) Clone() State {
	s.Detail = maps.Clone(s.Detail)
	return s
}

// Restart policies accepted in a Spec.
const (
	RestartNever     = "never"
	RestartOnFailure = "on-failure"
	RestartAlways    = "always"
)

// Spec holds the parameters used to create a workload.
type Spec struct {
	Image         string            `json:"image" mapstructure:"image" validate:"required"`
	Command       []string          `json:"command,omitempty" mapstructure:"command"`
	Args          []string          `json:"args,omitempty" mapstructure:"args"`
	Env           map[string]string `json:"env,omitempty" mapstructure:"env" validate:"omitempty,dive,keys,env_name,endkeys"`
	Labels        map[string]string `json:"labels,omitempty" mapstructure:"labels" validate:"omitempty,dive,keys,required,endkeys"`
	Resources     *Resources        `json:"resources,omitempty" mapstructure:"resources"`
	Ports         []PortMapping     `json:"ports,omitempty" mapstructure:"ports" validate:"omitempty,dive"`
	RestartPolicy string            `json:"restart_policy,omitempty" mapstructure:"restart_policy" validate:"omitempty,oneof=never on-failure always"`
	WorkDir       string            `json:"work_dir,omitempty" mapstructure:"work_dir"`
}

// Resources declares CPU and memory bounds as Kubernetes quantities.
type Resources struct {
	CPURequest    string `json:"cpu_request,omitempty" mapstructure:"cpu_request" validate:"omitempty,quantity"`
	CPULimit      string `json:"cpu_limit,omitempty" mapstructure:"cpu_limit" validate:"omitempty,quantity"`
	MemoryRequest string `json:"memory_request,omitempty" mapstructure:"memory_request" validate:"omitempty,quantity"`
	MemoryLimit   string `json:"memory_limit,omitempty" mapstructure:"memory_limit" validate:"omitempty,quantity"`
}

// PortMapping exposes a container port, optionally bound on the host.
type PortMapping struct {
	Container int    `json:"container_port" mapstructure:"container_port" validate:"required,min=1,max=65535"`
	Host      int    `json:"host_port,omitempty" mapstructure:"host_port" validate:"omitempty,min=1,max=65535"`
	Protocol  string `json:"protocol,omitempty" mapstructure:"protocol" validate:"omitempty,oneof=tcp udp sctp"`
}

// Validate checks the spec and reports violations as InvalidSpec.
func (s Spec) Validate() error {
	return validation.Validate(s)
}
