package kubernetes

import (
	"strconv"

	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"

	"github.com/kbukum/workloadops/workload"
)

// Detail keys reported in workload.State.Detail.
const (
	DetailResource = "resource"
	DetailPod      = "pod"
	DetailNode     = "node"
	DetailReason   = "reason"
	DetailMessage  = "message"
	DetailRestarts = "restarts"
	DetailImage    = "image"
)

// degradedWaitingReasons are container waiting reasons that will not resolve without intervention.
var degradedWaitingReasons = map[string]bool{
	"CrashLoopBackOff":           true,
	"ImagePullBackOff":           true,
	"ErrImagePull":               true,
	"CreateContainerConfigError": true,
	"CreateContainerError":       true,
	"RunContainerError":          true,
	"InvalidImageName":           true,
}

// jobPhase maps a Job and its newest pod (nil when none exist) onto a phase.
func jobPhase(job *batchv1.Job, pod *corev1.Pod) (workload.Phase, map[string]string) {
	detail := map[string]string{DetailResource: "job"}
	if job.DeletionTimestamp != nil {
		return workload.PhaseTerminating, detail
	}

	for _, c := range job.Status.Conditions {
		if c.Status != corev1.ConditionTrue {
			continue
		}
		switch c.Type {
		case batchv1.JobFailed, batchv1.JobFailureTarget:
			detail[DetailReason], detail[DetailMessage] = c.Reason, c.Message
			return workload.PhaseDegraded, detail
		case batchv1.JobComplete, batchv1.JobSuccessCriteriaMet:
			detail[DetailReason] = string(c.Type)
			return workload.PhaseGone, detail
		}
	}

	if pod == nil {
		return workload.PhasePending, detail
	}
	phase, podDetail := podPhase(pod)
	for k, v := range podDetail {
		if k != DetailResource {
			detail[k] = v
		}
	}
	return phase, detail
}

// podPhase maps a pod's status onto a phase.
func podPhase(pod *corev1.Pod) (workload.Phase, map[string]string) {
	detail := map[string]string{DetailResource: "pod", DetailPod: pod.Name}
	if pod.Spec.NodeName != "" {
		detail[DetailNode] = pod.Spec.NodeName
	}
	if len(pod.Spec.Containers) > 0 {
		detail[DetailImage] = pod.Spec.Containers[0].Image
	}
	if pod.DeletionTimestamp != nil {
		return workload.PhaseTerminating, detail
	}

	var restarts int32
	statuses := append(append([]corev1.ContainerStatus{}, pod.Status.InitContainerStatuses...), pod.Status.ContainerStatuses...)
	for _, cs := range statuses {
		restarts += cs.RestartCount
		if w := cs.State.Waiting; w != nil && degradedWaitingReasons[w.Reason] {
			detail[DetailReason], detail[DetailMessage] = w.Reason, w.Message
			detail[DetailRestarts] = strconv.Itoa(int(cs.RestartCount))
			return workload.PhaseDegraded, detail
		}
		if t := cs.State.Terminated; t != nil && t.Reason == "OOMKilled" {
			detail[DetailReason] = t.Reason
			return workload.PhaseDegraded, detail
		}
	}
	detail[DetailRestarts] = strconv.Itoa(int(restarts))

	switch pod.Status.Phase {
	case corev1.PodFailed:
		detail[DetailReason], detail[DetailMessage] = pod.Status.Reason, pod.Status.Message
		return workload.PhaseDegraded, detail
	case corev1.PodSucceeded:
		return workload.PhaseGone, detail
	case corev1.PodRunning:
		if podReady(pod) {
			return workload.PhaseRunning, detail
		}
		if restarts > 0 {
			detail[DetailReason] = "NotReady"
			return workload.PhaseDegraded, detail
		}
		return workload.PhasePending, detail
	default:
		return workload.PhasePending, detail
	}
}

func podReady(pod *corev1.Pod) bool {
	for _, c := range pod.Status.Conditions {
		if c.Type == corev1.PodReady {
			return c.Status == corev1.ConditionTrue
		}
	}
	return false
}

// newestPod returns the most recently created pod, or nil.
func newestPod(pods []corev1.Pod) *corev1.Pod {
	var newest *corev1.Pod
	for i := range pods {
		if newest == nil || newest.CreationTimestamp.Before(&pods[i].CreationTimestamp) {
			newest = &pods[i]
		}
	}
	return newest
}
