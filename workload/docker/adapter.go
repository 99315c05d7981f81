package docker

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	cerrdefs "github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/pkg/stdcopy"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/kbukum/workloadops/errors"
	"github.com/kbukum/workloadops/logger"
	"github.com/kbukum/workloadops/workload"
)

func init() {
	workload.RegisterFactory(workload.KindEngine, func(cfg workload.Config, backendCfg any, log *logger.Logger) (workload.Adapter, error) {
		c := &Config{}
		if backendCfg != nil {
			bc, ok := backendCfg.(*Config)
			if !ok {
				return nil, fmt.Errorf("docker: expected *docker.Config, got %T", backendCfg)
			}
			c = bc
		}
		c.ApplyDefaults()
		if err := c.Validate(); err != nil {
			return nil, err
		}
		return New(c, cfg, log)
	})
}

// Adapter implements workload.Adapter on a single Docker engine.
type Adapter struct {
	engine        EngineAPI
	cfg           *Config
	defaultLabels map[string]string
	interval      time.Duration
	log           *logger.Logger
}

// New creates an adapter connected to the configured Docker host.
func New(cfg *Config, wcfg workload.Config, log *logger.Logger) (*Adapter, error) {
	cli, err := newEngineClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("docker: create client: %w", err)
	}
	return NewWithEngine(cli, cfg, wcfg, log), nil
}

// NewWithEngine creates an adapter over an existing engine client.
func NewWithEngine(engine EngineAPI, cfg *Config, wcfg workload.Config, log *logger.Logger) *Adapter {
	if cfg == nil {
		cfg = &Config{}
	}
	cfg.ApplyDefaults()
	if log == nil {
		log = logger.Nop()
	}
	return &Adapter{
		engine:        engine,
		cfg:           cfg,
		defaultLabels: wcfg.DefaultLabels,
		interval:      wcfg.Interval(),
		log:           log,
	}
}

var (
	_ workload.Adapter   = (*Adapter)(nil)
	_ workload.LogReader = (*Adapter)(nil)
)

// Kind returns workload.KindEngine.
func (a *Adapter) Kind() workload.BackendKind { return workload.KindEngine }

// Describe inspects the container named by ref.
func (a *Adapter) Describe(ctx context.Context, ref workload.Ref) (workload.State, error) {
	info, err := a.engine.ContainerInspect(ctx, ref.Name)
	if err != nil {
		return workload.State{}, classify(err, workload.OpDescribe, ref)
	}
	phase, detail := containerPhase(info)
	return workload.NewState(ref, phase, detail), nil
}

// Create pulls the image when missing, then creates and starts the container.
// A container that fails to start is removed. A name conflict with a
// container this ref created but never started resumes that container.
func (a *Adapter) Create(ctx context.Context, ref workload.Ref, spec workload.Spec) (workload.State, error) {
	if err := spec.Validate(); err != nil {
		return workload.State{}, classify(err, workload.OpCreate, ref)
	}
	containerCfg, hostCfg, networkCfg, platform, err := a.buildContainerConfig(ref, spec)
	if err != nil {
		return workload.State{}, errors.InvalidSpec(err.Error()).WithCause(err).WithOperation(workload.OpCreate, ref.String())
	}

	a.log.Info("creating workload", logger.Fields(logger.FieldName, ref.Name, "image", spec.Image))

	if err := a.ensureImage(ctx, spec.Image); err != nil {
		return workload.State{}, classify(err, workload.OpCreate, ref)
	}

	id, err := a.createContainer(ctx, ref, containerCfg, hostCfg, networkCfg, platform)
	if err != nil {
		return workload.State{}, classify(err, workload.OpCreate, ref)
	}

	if err := a.engine.ContainerStart(ctx, id, container.StartOptions{}); err != nil {
		if rmErr := a.engine.ContainerRemove(context.WithoutCancel(ctx), id, container.RemoveOptions{Force: true}); rmErr != nil {
			a.log.Warn("cleanup after failed start", logger.Fields(
				logger.FieldName, ref.Name,
				DetailContainerID, shortID(id),
				logger.FieldError, rmErr.Error(),
			))
		}
		return workload.State{}, startFailed(err, id, ref)
	}

	state, err := a.Describe(ctx, ref)
	if err != nil {
		a.log.Warn("describe after create failed", logger.ErrorFields(workload.OpDescribe, err))
		return workload.NewState(ref, workload.PhasePending, map[string]string{DetailContainerID: shortID(id)}), nil
	}
	return state, nil
}

// createContainer creates the container and returns its id. On a name
// conflict it returns the existing container when that container carries
// ref's identity and was never started.
func (a *Adapter) createContainer(ctx context.Context, ref workload.Ref, cfg *container.Config, hostCfg *container.HostConfig, networkCfg *network.NetworkingConfig, platform *ocispec.Platform) (string, error) {
	resp, err := a.engine.ContainerCreate(ctx, cfg, hostCfg, networkCfg, platform, ref.Name)
	if err == nil {
		for _, w := range resp.Warnings {
			a.log.Warn("engine warning", logger.Fields(logger.FieldName, ref.Name, "warning", w))
		}
		return resp.ID, nil
	}
	if !cerrdefs.IsConflict(err) && !cerrdefs.IsAlreadyExists(err) {
		return "", err
	}

	info, inspectErr := a.engine.ContainerInspect(ctx, ref.Name)
	if inspectErr != nil || info.ContainerJSONBase == nil || info.State == nil || info.Config == nil {
		return "", err
	}
	if info.Config.Labels[workload.IdentityLabel] != ref.Key() || info.State.Status != container.StateCreated {
		return "", err
	}
	a.log.Info("resuming created container", logger.Fields(logger.FieldName, ref.Name, DetailContainerID, shortID(info.ID)))
	return info.ID, nil
}

// Terminate stops the container within the grace period, then force-removes it.
func (a *Adapter) Terminate(ctx context.Context, ref workload.Ref) error {
	timeout := a.cfg.stopTimeoutSeconds()
	if err := a.engine.ContainerStop(ctx, ref.Name, container.StopOptions{Timeout: &timeout}); err != nil {
		return classify(err, workload.OpTerminate, ref)
	}
	err := a.engine.ContainerRemove(ctx, ref.Name, container.RemoveOptions{RemoveVolumes: true, Force: true})
	// Containers started with auto-remove may already be gone.
	if err != nil && !cerrdefs.IsNotFound(err) {
		return classify(err, workload.OpTerminate, ref)
	}
	a.log.Info("workload terminated", logger.Fields(logger.FieldName, ref.Name))
	return nil
}

// WaitUntil polls Describe on the configured interval.
func (a *Adapter) WaitUntil(ctx context.Context, ref workload.Ref, pred workload.Predicate, timeout time.Duration) (workload.State, error) {
	state, err := workload.Poll(ctx, a.Describe, ref, pred, timeout, a.interval, a.log)
	if err != nil {
		return workload.State{}, classify(err, workload.OpWaitUntil, ref)
	}
	return state, nil
}

// HealthCheck pings the engine.
func (a *Adapter) HealthCheck(ctx context.Context) error {
	if _, err := a.engine.Ping(ctx); err != nil {
		return classify(err, workload.OpHealthCheck, workload.Ref{Kind: workload.KindEngine})
	}
	return nil
}

// Logs streams container output with stdout and stderr merged.
func (a *Adapter) Logs(ctx context.Context, ref workload.Ref, opts workload.LogOptions) (io.ReadCloser, error) {
	info, err := a.engine.ContainerInspect(ctx, ref.Name)
	if err != nil {
		return nil, classify(err, workload.OpLogs, ref)
	}

	logOpts := container.LogsOptions{ShowStdout: true, ShowStderr: true, Follow: opts.Follow}
	if opts.Tail > 0 {
		logOpts.Tail = strconv.Itoa(opts.Tail)
	}
	if opts.Since > 0 {
		logOpts.Since = time.Now().Add(-opts.Since).Format(time.RFC3339)
	}

	rc, err := a.engine.ContainerLogs(ctx, ref.Name, logOpts)
	if err != nil {
		return nil, classify(err, workload.OpLogs, ref)
	}
	if info.Config != nil && info.Config.Tty {
		return rc, nil
	}

	// Non-TTY output is multiplexed with 8-byte frame headers.
	pr, pw := io.Pipe()
	go func() {
		_, err := stdcopy.StdCopy(pw, pw, rc)
		rc.Close() //nolint:errcheck // read-only stream
		pw.CloseWithError(err)
	}()
	return pr, nil
}
