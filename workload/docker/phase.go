package docker

import (
	"strconv"
	"strings"

	"github.com/docker/docker/api/types/container"

	"github.com/kbukum/workloadops/workload"
)

// Detail keys reported in workload.State.Detail.
const (
	DetailContainerID = "container_id"
	DetailStatus      = "status"
	DetailHealth      = "health"
	DetailExitCode    = "exit_code"
	DetailImage       = "image"
	DetailRestarts    = "restarts"
	DetailError       = "error"
	DetailReason      = "reason"
	DetailMemoryLimit = "memory_limit"
	DetailCPULimit    = "cpu_limit"
)

// containerPhase maps an inspected container onto a phase.
func containerPhase(info container.InspectResponse) (workload.Phase, map[string]string) {
	detail := map[string]string{}
	if info.ContainerJSONBase == nil || info.State == nil {
		return workload.PhasePending, detail
	}
	st := info.State
	detail[DetailContainerID] = shortID(info.ID)
	detail[DetailStatus] = st.Status
	detail[DetailRestarts] = strconv.Itoa(info.RestartCount)
	if info.Config != nil {
		detail[DetailImage] = info.Config.Image
	}
	if hc := info.HostConfig; hc != nil {
		if hc.Memory > 0 {
			detail[DetailMemoryLimit] = workload.FormatMemory(hc.Memory)
		}
		if hc.NanoCPUs > 0 {
			detail[DetailCPULimit] = workload.FormatCPU(hc.NanoCPUs)
		}
	}
	if st.Error != "" {
		detail[DetailError] = st.Error
	}
	health := ""
	if st.Health != nil {
		health = st.Health.Status
		detail[DetailHealth] = health
	}

	switch {
	case st.Status == container.StateCreated:
		return workload.PhasePending, detail
	case st.Status == container.StateRemoving:
		return workload.PhaseTerminating, detail
	case st.OOMKilled:
		detail[DetailReason] = "OOMKilled"
		detail[DetailExitCode] = strconv.Itoa(st.ExitCode)
		return workload.PhaseDegraded, detail
	case st.Status == container.StateRestarting, st.Status == container.StatePaused, st.Status == container.StateDead:
		detail[DetailReason] = st.Status
		return workload.PhaseDegraded, detail
	case health == container.Unhealthy:
		detail[DetailReason] = "Unhealthy"
		return workload.PhaseDegraded, detail
	case st.Status == container.StateRunning:
		if health == container.Starting {
			return workload.PhasePending, detail
		}
		return workload.PhaseRunning, detail
	case st.Status == container.StateExited:
		detail[DetailExitCode] = strconv.Itoa(st.ExitCode)
		if st.ExitCode == 0 {
			return workload.PhaseGone, detail
		}
		detail[DetailReason] = "NonZeroExit"
		return workload.PhaseDegraded, detail
	default:
		return workload.PhasePending, detail
	}
}

func shortID(id string) string {
	id = strings.TrimPrefix(id, "sha256:")
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
