package kubernetes

import (
	"sort"

	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/kbukum/workloadops/workload"
)

// jobNameLabel is set by the Job controller on every pod it creates.
const jobNameLabel = "job-name"

// buildJob creates a single-container Job. Its pod is not restarted unless
// the spec asks for on-failure; a Job cannot restart an exited pod always.
func (a *Adapter) buildJob(ref workload.Ref, spec workload.Spec) *batchv1.Job {
	podSpec := a.buildPodSpec(ref, spec)
	podSpec.RestartPolicy = corev1.RestartPolicyNever
	if spec.RestartPolicy == workload.RestartOnFailure {
		podSpec.RestartPolicy = corev1.RestartPolicyOnFailure
	}

	labels := a.labels(ref, spec)
	// on-failure restarts count against the backoff limit, so it keeps the
	// cluster default; otherwise the Job fails with its first pod.
	var backoffLimit *int32
	if podSpec.RestartPolicy == corev1.RestartPolicyNever {
		backoffLimit = new(int32)
	}
	return &batchv1.Job{
		ObjectMeta: metav1.ObjectMeta{
			Name:      ref.Name,
			Namespace: ref.Namespace,
			Labels:    labels,
		},
		Spec: batchv1.JobSpec{
			BackoffLimit:            backoffLimit,
			TTLSecondsAfterFinished: a.cfg.TTLAfterFinished,
			ActiveDeadlineSeconds:   a.cfg.ActiveDeadlineSeconds,
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{Labels: labels},
				Spec:       podSpec,
			},
		},
	}
}

// buildPod creates a bare Pod honouring the spec's restart policy.
func (a *Adapter) buildPod(ref workload.Ref, spec workload.Spec) *corev1.Pod {
	podSpec := a.buildPodSpec(ref, spec)
	switch spec.RestartPolicy {
	case workload.RestartAlways:
		podSpec.RestartPolicy = corev1.RestartPolicyAlways
	case workload.RestartOnFailure:
		podSpec.RestartPolicy = corev1.RestartPolicyOnFailure
	default:
		podSpec.RestartPolicy = corev1.RestartPolicyNever
	}
	return &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Name:      ref.Name,
			Namespace: ref.Namespace,
			Labels:    a.labels(ref, spec),
		},
		Spec: podSpec,
	}
}

func (a *Adapter) labels(ref workload.Ref, spec workload.Spec) map[string]string {
	labels := workload.MergeLabels(a.defaultLabels, spec.Labels)
	labels[workload.IdentityLabel] = ref.Key()
	return labels
}

func (a *Adapter) buildPodSpec(ref workload.Ref, spec workload.Spec) corev1.PodSpec {
	c := corev1.Container{
		Name:            ref.Name,
		Image:           spec.Image,
		ImagePullPolicy: corev1.PullPolicy(a.cfg.ImagePullPolicy),
		Command:         spec.Command,
		Args:            spec.Args,
		WorkingDir:      spec.WorkDir,
	}

	// Sorted so repeated creates produce identical objects.
	names := make([]string, 0, len(spec.Env))
	for k := range spec.Env {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		c.Env = append(c.Env, corev1.EnvVar{Name: k, Value: spec.Env[k]})
	}

	if spec.Resources != nil {
		c.Resources = buildResourceRequirements(spec.Resources)
	}

	for _, p := range spec.Ports {
		proto := corev1.ProtocolTCP
		switch p.Protocol {
		case "udp":
			proto = corev1.ProtocolUDP
		case "sctp":
			proto = corev1.ProtocolSCTP
		}
		port := corev1.ContainerPort{ContainerPort: int32(p.Container), Protocol: proto}
		if p.Host > 0 {
			port.HostPort = int32(p.Host)
		}
		c.Ports = append(c.Ports, port)
	}

	ps := corev1.PodSpec{
		Containers:         []corev1.Container{c},
		ServiceAccountName: a.cfg.ServiceAccount,
	}
	for _, s := range a.cfg.ImagePullSecrets {
		ps.ImagePullSecrets = append(ps.ImagePullSecrets, corev1.LocalObjectReference{Name: s})
	}
	return ps
}

// buildResourceRequirements converts validated quantities into requests and limits.
func buildResourceRequirements(r *workload.Resources) corev1.ResourceRequirements {
	reqs := corev1.ResourceRequirements{}
	set := func(list *corev1.ResourceList, name corev1.ResourceName, value string) {
		if value == "" {
			return
		}
		q, err := resource.ParseQuantity(value)
		if err != nil {
			return
		}
		if *list == nil {
			*list = corev1.ResourceList{}
		}
		(*list)[name] = q
	}
	set(&reqs.Limits, corev1.ResourceCPU, r.CPULimit)
	set(&reqs.Limits, corev1.ResourceMemory, r.MemoryLimit)
	set(&reqs.Requests, corev1.ResourceCPU, r.CPURequest)
	set(&reqs.Requests, corev1.ResourceMemory, r.MemoryRequest)
	return reqs
}
