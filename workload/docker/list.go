package docker

import (
	"context"
	"slices"
	"strings"

	cerrdefs "github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"

	"github.com/kbukum/workloadops/workload"
)

var _ workload.Lister = (*Adapter)(nil)

// List returns the containers carrying the managed-by label and every filter
// label, sorted by name. Each one is inspected so phases match Describe.
// A container removed between the listing and its inspect is skipped.
func (a *Adapter) List(ctx context.Context, filter workload.ListFilter) ([]workload.State, error) {
	scope := workload.Ref{Kind: workload.KindEngine}
	if err := filter.Validate(workload.KindEngine); err != nil {
		return nil, classify(err, workload.OpList, scope)
	}

	args := filters.NewArgs()
	for k, v := range filter.Selector() {
		args.Add("label", k+"="+v)
	}
	summaries, err := a.engine.ContainerList(ctx, container.ListOptions{All: true, Filters: args})
	if err != nil {
		return nil, classify(err, workload.OpList, scope)
	}

	states := make([]workload.State, 0, len(summaries))
	for _, s := range summaries {
		ref := summaryRef(s)
		info, err := a.engine.ContainerInspect(ctx, s.ID)
		if err != nil {
			if cerrdefs.IsNotFound(err) {
				continue
			}
			return nil, classify(err, workload.OpList, ref)
		}
		phase, detail := containerPhase(info)
		if state := workload.NewState(ref, phase, detail); filter.Keep(state) {
			states = append(states, state)
		}
	}
	slices.SortFunc(states, func(x, y workload.State) int { return strings.Compare(x.Ref.Name, y.Ref.Name) })
	return states, nil
}

// summaryRef rebuilds the ref of a listed container from its name and
// identity label.
func summaryRef(s container.Summary) workload.Ref {
	name := s.ID
	if len(s.Names) > 0 {
		name = strings.TrimPrefix(s.Names[0], "/")
	}
	ref := workload.NewRef(workload.KindEngine, "", name)
	if token := s.Labels[workload.IdentityLabel]; token != "" {
		ref.IdentityToken = token
	}
	return ref
}
