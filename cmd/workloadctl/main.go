// Command workloadctl manages workloads on a Kubernetes cluster or a Docker
// engine through one interface.
//
//	workloadctl describe cluster/jobs/nightly-etl
//	workloadctl create engine//redis-test --image redis:7 --port 6379 --wait Running
//	workloadctl logs cluster/jobs/nightly-etl --follow
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kbukum/workloadops/errors"
	"github.com/kbukum/workloadops/version"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "workloadctl:", err)
		os.Exit(exitCode(err))
	}
}

// globalOptions are the persistent flags shared by every subcommand.
type globalOptions struct {
	configFile string
	envFile    string
	logLevel   string
	output     string
}

func newRootCommand() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:   "workloadctl",
		Short: "Manage workloads on Kubernetes and Docker through one interface",
		Long: `workloadctl creates, inspects, waits on and terminates workloads on a
Kubernetes cluster (kind "cluster") or a Docker engine (kind "engine").
Workloads are addressed as kind/namespace/name; engine workloads leave the
namespace empty, as in engine//redis-test.`,
		Version:       version.Get().String(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return validateOutput(opts.output)
		},
	}

	f := cmd.PersistentFlags()
	f.StringVarP(&opts.configFile, "config", "c", "", "path to the config file")
	f.StringVar(&opts.envFile, "env-file", "", "path to a .env file")
	f.StringVar(&opts.logLevel, "log-level", "", "override logging.level")
	f.StringVarP(&opts.output, "output", "o", outputText, "output format: text or json")

	cmd.AddCommand(
		newDescribeCommand(opts),
		newCreateCommand(opts),
		newTerminateCommand(opts),
		newWaitCommand(opts),
		newListCommand(opts),
		newLogsCommand(opts),
		newHealthCommand(opts),
		newTracesCommand(opts),
		newServeCommand(opts),
		newTokenCommand(opts),
		newVersionCommand(opts),
	)
	return cmd
}

// exitCode maps error codes to distinct process exit statuses.
func exitCode(err error) int {
	switch errors.CodeOf(err) {
	case errors.ErrCodeNotFound:
		return 3
	case errors.ErrCodeTimeout:
		return 4
	case errors.ErrCodeInvalidSpec, errors.ErrCodeUnsupportedBackend:
		return 2
	}
	return 1
}
