package kubernetes

import (
	"context"
	"slices"
	"strings"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/labels"

	"github.com/kbukum/workloadops/workload"
)

var _ workload.Lister = (*Adapter)(nil)

// List returns the Jobs or Pods in the filter namespace that carry the
// managed-by label and every filter label, sorted by name. Job phases use
// the newest pod of each job, as Describe does.
func (a *Adapter) List(ctx context.Context, filter workload.ListFilter) ([]workload.State, error) {
	ns := filter.Namespace
	if ns == "" {
		ns = a.cfg.Namespace
	}
	scope := workload.Ref{Kind: workload.KindCluster, Namespace: ns}
	if err := filter.Validate(workload.KindCluster); err != nil {
		return nil, classify(err, workload.OpList, a.resource(), scope)
	}

	opts := metav1.ListOptions{LabelSelector: labels.SelectorFromSet(filter.Selector()).String()}
	pods, err := a.client.CoreV1().Pods(ns).List(ctx, opts)
	if err != nil {
		return nil, classify(err, workload.OpList, "pod", scope)
	}

	var states []workload.State
	keep := func(meta metav1.ObjectMeta, phase workload.Phase, detail map[string]string) {
		if state := workload.NewState(objectRef(meta), phase, detail); filter.Keep(state) {
			states = append(states, state)
		}
	}

	if !a.isJob() {
		for i := range pods.Items {
			pod := &pods.Items[i]
			if _, owned := pod.Labels[jobNameLabel]; owned {
				continue
			}
			phase, detail := podPhase(pod)
			keep(pod.ObjectMeta, phase, detail)
		}
	} else {
		jobs, err := a.client.BatchV1().Jobs(ns).List(ctx, opts)
		if err != nil {
			return nil, classify(err, workload.OpList, "job", scope)
		}
		byJob := make(map[string][]corev1.Pod, len(jobs.Items))
		for _, pod := range pods.Items {
			if name := pod.Labels[jobNameLabel]; name != "" {
				byJob[name] = append(byJob[name], pod)
			}
		}
		for i := range jobs.Items {
			job := &jobs.Items[i]
			phase, detail := jobPhase(job, newestPod(byJob[job.Name]))
			keep(job.ObjectMeta, phase, detail)
		}
	}

	slices.SortFunc(states, func(x, y workload.State) int { return strings.Compare(x.Ref.Name, y.Ref.Name) })
	return states, nil
}

// objectRef rebuilds the ref of a listed object from its metadata and
// identity label.
func objectRef(meta metav1.ObjectMeta) workload.Ref {
	ref := workload.NewRef(workload.KindCluster, meta.Namespace, meta.Name)
	if token := meta.Labels[workload.IdentityLabel]; token != "" {
		ref.IdentityToken = token
	}
	return ref
}
