package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/kbukum/workloadops/component"
	"github.com/kbukum/workloadops/errors"
	"github.com/kbukum/workloadops/tracelog"
	"github.com/kbukum/workloadops/version"
	"github.com/kbukum/workloadops/workload"
)

func newDescribeCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "describe REF",
		Short: "Show the observed state of a workload",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := parseRef(args[0])
			if err != nil {
				return err
			}
			return withRouter(cmd.Context(), opts, func(ctx context.Context, rt *runtime) error {
				state, err := rt.router.Describe(ctx, ref)
				if err != nil {
					return err
				}
				return printState(cmd.OutOrStdout(), opts.output, state)
			})
		},
	}
}

// createFlags holds the raw create flags before they become a workload.Spec.
type createFlags struct {
	image         string
	command       []string
	env           []string
	labels        []string
	ports         []string
	cpuRequest    string
	cpuLimit      string
	memoryRequest string
	memoryLimit   string
	restart       string
	workDir       string
	wait          string
	timeout       time.Duration
}

// spec builds the workload spec. args are passed to the container after the command.
func (f *createFlags) spec(args []string) (workload.Spec, error) {
	spec := workload.Spec{
		Image:         f.image,
		Command:       f.command,
		Args:          args,
		RestartPolicy: f.restart,
		WorkDir:       f.workDir,
	}
	var err error
	if spec.Env, err = parseKeyValues("env", f.env); err != nil {
		return workload.Spec{}, err
	}
	if spec.Labels, err = parseKeyValues("label", f.labels); err != nil {
		return workload.Spec{}, err
	}
	for _, p := range f.ports {
		pm, err := parsePort(p)
		if err != nil {
			return workload.Spec{}, err
		}
		spec.Ports = append(spec.Ports, pm)
	}
	if f.cpuRequest != "" || f.cpuLimit != "" || f.memoryRequest != "" || f.memoryLimit != "" {
		spec.Resources = &workload.Resources{
			CPURequest:    f.cpuRequest,
			CPULimit:      f.cpuLimit,
			MemoryRequest: f.memoryRequest,
			MemoryLimit:   f.memoryLimit,
		}
	}
	if err := spec.Validate(); err != nil {
		return workload.Spec{}, err
	}
	return spec, nil
}

func newCreateCommand(opts *globalOptions) *cobra.Command {
	f := &createFlags{}
	cmd := &cobra.Command{
		Use:   "create REF --image IMAGE [-- ARGS...]",
		Short: "Create a workload and optionally wait for a phase",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := parseRef(args[0])
			if err != nil {
				return err
			}
			spec, err := f.spec(args[1:])
			if err != nil {
				return err
			}
			var target workload.Phase
			if f.wait != "" {
				if target, err = workload.ParsePhase(f.wait); err != nil {
					return err
				}
			}
			return withRouter(cmd.Context(), opts, func(ctx context.Context, rt *runtime) error {
				state, err := rt.router.Create(ctx, ref, spec)
				if err != nil {
					return err
				}
				if target != "" && state.Phase != target {
					state, err = rt.router.WaitUntil(ctx, ref, workload.PhaseIs(target), f.timeout)
					if err != nil {
						return err
					}
				}
				return printState(cmd.OutOrStdout(), opts.output, state)
			})
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.image, "image", "", "container image (required)")
	fl.StringSliceVar(&f.command, "command", nil, "entrypoint override, comma-separated")
	fl.StringArrayVarP(&f.env, "env", "e", nil, "environment variable KEY=VALUE (repeatable)")
	fl.StringArrayVarP(&f.labels, "label", "l", nil, "label KEY=VALUE (repeatable)")
	fl.StringArrayVarP(&f.ports, "port", "p", nil, "port container[:host][/protocol] (repeatable)")
	fl.StringVar(&f.cpuRequest, "cpu-request", "", "CPU request, e.g. 250m")
	fl.StringVar(&f.cpuLimit, "cpu-limit", "", "CPU limit, e.g. 1")
	fl.StringVar(&f.memoryRequest, "memory-request", "", "memory request, e.g. 128Mi")
	fl.StringVar(&f.memoryLimit, "memory-limit", "", "memory limit, e.g. 512Mi")
	fl.StringVar(&f.restart, "restart", "", "restart policy: never, on-failure or always")
	fl.StringVarP(&f.workDir, "workdir", "w", "", "working directory inside the container")
	fl.StringVar(&f.wait, "wait", "", "phase to wait for after creation, e.g. Running")
	fl.DurationVar(&f.timeout, "timeout", 0, "wait timeout (default router.wait_timeout)")
	_ = cmd.MarkFlagRequired("image")
	return cmd
}

func newTerminateCommand(opts *globalOptions) *cobra.Command {
	var (
		wait    bool
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "terminate REF",
		Short: "Delete a workload",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := parseRef(args[0])
			if err != nil {
				return err
			}
			return withRouter(cmd.Context(), opts, func(ctx context.Context, rt *runtime) error {
				if err := rt.router.Terminate(ctx, ref); err != nil {
					return err
				}
				if !wait {
					fmt.Fprintf(cmd.OutOrStdout(), "%s terminated\n", ref)
					return nil
				}
				state, err := rt.router.WaitUntil(ctx, ref, workload.PhaseIs(workload.PhaseGone), timeout)
				if err != nil {
					return err
				}
				return printState(cmd.OutOrStdout(), opts.output, state)
			})
		},
	}
	cmd.Flags().BoolVar(&wait, "wait", false, "wait until the workload is gone")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "wait timeout (default router.wait_timeout)")
	return cmd
}

func newWaitCommand(opts *globalOptions) *cobra.Command {
	var (
		phaseNames []string
		settled    bool
		timeout    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "wait REF (--phase PHASE[,PHASE] | --settled)",
		Short: "Wait until a workload reaches one of the given phases",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := parseRef(args[0])
			if err != nil {
				return err
			}
			var pred workload.Predicate
			switch {
			case settled:
				pred = workload.Settled
			case len(phaseNames) > 0:
				ps, err := workload.ParsePhases(phaseNames)
				if err != nil {
					return err
				}
				pred = workload.PhaseIn(ps...)
			default:
				return errors.InvalidSpec("wait needs --phase or --settled")
			}
			return withRouter(cmd.Context(), opts, func(ctx context.Context, rt *runtime) error {
				state, err := rt.router.WaitUntil(ctx, ref, pred, timeout)
				if err != nil {
					return err
				}
				return printState(cmd.OutOrStdout(), opts.output, state)
			})
		},
	}
	cmd.Flags().StringSliceVar(&phaseNames, "phase", nil, "target phases, comma-separated")
	cmd.Flags().BoolVar(&settled, "settled", false, "wait for any phase other than Pending")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "wait timeout (default router.wait_timeout)")
	cmd.MarkFlagsMutuallyExclusive("phase", "settled")
	return cmd
}

func newListCommand(opts *globalOptions) *cobra.Command {
	var (
		namespace string
		phase     string
		labels    []string
	)
	cmd := &cobra.Command{
		Use:   "list KIND",
		Short: "List the workloads of one backend created by workloadctl",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := workload.ParseKind(args[0])
			if err != nil {
				return err
			}
			filter := workload.ListFilter{Namespace: namespace}
			if phase != "" {
				if filter.Phase, err = workload.ParsePhase(phase); err != nil {
					return err
				}
			}
			if filter.Labels, err = parseKeyValues("label", labels); err != nil {
				return err
			}
			return withRouter(cmd.Context(), opts, func(ctx context.Context, rt *runtime) error {
				states, err := rt.router.List(ctx, kind, filter)
				if err != nil {
					return err
				}
				return printStates(cmd.OutOrStdout(), opts.output, states)
			})
		},
	}
	cmd.Flags().StringVarP(&namespace, "namespace", "n", "", "cluster namespace (default kubernetes.namespace)")
	cmd.Flags().StringVar(&phase, "phase", "", "only list workloads in this phase")
	cmd.Flags().StringArrayVarP(&labels, "label", "l", nil, "label selector KEY=VALUE, repeatable")
	return cmd
}

func newLogsCommand(opts *globalOptions) *cobra.Command {
	var lo workload.LogOptions
	cmd := &cobra.Command{
		Use:   "logs REF",
		Short: "Print workload output",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := parseRef(args[0])
			if err != nil {
				return err
			}
			return withRouter(cmd.Context(), opts, func(ctx context.Context, rt *runtime) error {
				rc, err := rt.router.Logs(ctx, ref, lo)
				if err != nil {
					return err
				}
				defer rc.Close()
				if _, err := io.Copy(cmd.OutOrStdout(), rc); err != nil && ctx.Err() == nil {
					return err
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&lo.Follow, "follow", "f", false, "stream new output")
	cmd.Flags().IntVar(&lo.Tail, "tail", 0, "lines from the end to show (0 for all)")
	cmd.Flags().DurationVar(&lo.Since, "since", 0, "only output newer than this duration")
	return cmd
}

func newHealthCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check every backend and supporting component",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRouter(cmd.Context(), opts, func(ctx context.Context, rt *runtime) error {
				hs := rt.health(ctx)
				if err := printHealth(cmd.OutOrStdout(), opts.output, hs); err != nil {
					return err
				}
				for _, h := range hs {
					if h.Status == component.StatusUnhealthy {
						return errors.New(errors.ErrCodeServiceUnavailable, h.Name+" is unhealthy")
					}
				}
				return nil
			})
		},
	}
}

func newTracesCommand(opts *globalOptions) *cobra.Command {
	var span, traceID string
	cmd := &cobra.Command{
		Use:   "traces",
		Short: "List log records captured with their span context",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRouter(cmd.Context(), opts, func(ctx context.Context, rt *runtime) error {
				if rt.redis == nil {
					return errors.New(errors.ErrCodeInvalidSpec, "traces needs redis.enabled")
				}
				cfg := rt.app.Cfg.TraceLog
				v := tracelog.NewViewer(rt.redis, cfg.KeyPrefix)

				var (
					recs []tracelog.Record
					err  error
				)
				switch {
				case traceID != "":
					recs, err = v.ByTrace(ctx, cfg.App, traceID)
				case span != "":
					recs, err = v.BySpanName(ctx, cfg.App, span)
				default:
					recs, err = v.ByApp(ctx, cfg.App)
				}
				if err != nil {
					return err
				}
				return printRecords(cmd.OutOrStdout(), opts.output, recs)
			})
		},
	}
	cmd.Flags().StringVar(&span, "span", "", "only records from spans with this name")
	cmd.Flags().StringVar(&traceID, "trace", "", "only records from this trace")
	return cmd
}

func newVersionCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := version.Get()
			if opts.output == outputJSON {
				return writeJSON(cmd.OutOrStdout(), info)
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), info.String())
			return err
		},
	}
}
