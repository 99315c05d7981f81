package docker

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	cerrdefs "github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/go-connections/nat"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/kbukum/workloadops/logger"
	"github.com/kbukum/workloadops/workload"
)

// buildContainerConfig converts a ref and spec into Docker-specific configs.
func (a *Adapter) buildContainerConfig(ref workload.Ref, spec workload.Spec) (*container.Config, *container.HostConfig, *network.NetworkingConfig, *ocispec.Platform, error) {
	labels := workload.MergeLabels(a.defaultLabels, spec.Labels)
	labels[workload.IdentityLabel] = ref.Key()

	keys := make([]string, 0, len(spec.Env))
	for k := range spec.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	env := make([]string, 0, len(keys))
	for _, k := range keys {
		env = append(env, k+"="+spec.Env[k])
	}

	containerCfg := &container.Config{
		Image:      spec.Image,
		Env:        env,
		Labels:     labels,
		WorkingDir: spec.WorkDir,
	}
	// Command replaces the image entrypoint, Args its default command.
	if len(spec.Command) > 0 {
		containerCfg.Entrypoint = spec.Command
	}
	if len(spec.Args) > 0 {
		containerCfg.Cmd = spec.Args
	}

	exposedPorts := nat.PortSet{}
	portBindings := nat.PortMap{}
	for _, p := range spec.Ports {
		proto := p.Protocol
		if proto == "" {
			proto = "tcp"
		}
		port, err := nat.NewPort(proto, strconv.Itoa(p.Container))
		if err != nil {
			return nil, nil, nil, nil, err
		}
		exposedPorts[port] = struct{}{}
		if p.Host > 0 {
			portBindings[port] = []nat.PortBinding{{HostPort: strconv.Itoa(p.Host)}}
		}
	}
	if len(exposedPorts) > 0 {
		containerCfg.ExposedPorts = exposedPorts
	}

	hostCfg := &container.HostConfig{PortBindings: portBindings}
	switch spec.RestartPolicy {
	case workload.RestartAlways:
		hostCfg.RestartPolicy = container.RestartPolicy{Name: container.RestartPolicyAlways}
	case workload.RestartOnFailure:
		hostCfg.RestartPolicy = container.RestartPolicy{Name: container.RestartPolicyOnFailure}
	}

	if r := spec.Resources; r != nil {
		if r.MemoryLimit != "" {
			mem, err := workload.ParseMemory(r.MemoryLimit)
			if err != nil {
				return nil, nil, nil, nil, err
			}
			hostCfg.Memory = mem
		}
		if r.MemoryRequest != "" {
			mem, err := workload.ParseMemory(r.MemoryRequest)
			if err != nil {
				return nil, nil, nil, nil, err
			}
			hostCfg.MemoryReservation = mem
		}
		if r.CPULimit != "" {
			cpu, err := workload.ParseCPU(r.CPULimit)
			if err != nil {
				return nil, nil, nil, nil, err
			}
			hostCfg.NanoCPUs = cpu
		}
	}

	var networkCfg *network.NetworkingConfig
	switch netName := a.cfg.Network; netName {
	case "", "bridge", "none":
		if netName != "" {
			hostCfg.NetworkMode = container.NetworkMode(netName)
		}
	case "host":
		hostCfg.NetworkMode = "host"
	default:
		networkCfg = &network.NetworkingConfig{
			EndpointsConfig: map[string]*network.EndpointSettings{netName: {}},
		}
	}

	return containerCfg, hostCfg, networkCfg, a.platform(), nil
}

// ensureImage pulls the image if it is not present locally.
func (a *Adapter) ensureImage(ctx context.Context, ref string) error {
	_, err := a.engine.ImageInspect(ctx, ref)
	if err == nil {
		return nil
	}
	if !cerrdefs.IsNotFound(err) {
		return err
	}

	a.log.Info("pulling image", logger.Fields("image", ref))
	reader, err := a.engine.ImagePull(ctx, ref, image.PullOptions{Platform: a.cfg.Platform})
	if err != nil {
		return fmt.Errorf("pull %s: %w", ref, err)
	}
	defer reader.Close() //nolint:errcheck // read-only stream
	// The pull completes only once its progress stream is drained.
	if _, err := io.Copy(io.Discard, reader); err != nil {
		return fmt.Errorf("pull %s: %w", ref, err)
	}
	return nil
}

// platform parses "os/arch" into an OCI platform spec.
func (a *Adapter) platform() *ocispec.Platform {
	parts := strings.SplitN(a.cfg.Platform, "/", 2)
	if len(parts) != 2 {
		return nil
	}
	return &ocispec.Platform{OS: parts[0], Architecture: parts[1]}
}
