package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kbukum/workloadops/logger"
	"github.com/kbukum/workloadops/server"
)

func newServeCommand(opts *globalOptions) *cobra.Command {
	var host string
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the workload operations over HTTP until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRouter(cmd.Context(), opts, func(ctx context.Context, rt *runtime) error {
				cfg := rt.app.Cfg.Server
				if cmd.Flags().Changed("host") {
					cfg.Host = host
				}
				if cmd.Flags().Changed("port") {
					cfg.Port = port
				}
				if err := cfg.Validate(); err != nil {
					return err
				}

				srv := server.New(cfg, rt.app.Logger)
				srv.ApplyMiddleware()
				srv.RegisterDefaultEndpoints(rt.app.Cfg.Name, rt.health)
				srv.RegisterWorkloads(rt.router)
				if err := srv.Start(ctx); err != nil {
					return err
				}
				rt.app.Logger.Info("serving workload API", logger.Fields("addr", srv.Addr()))

				<-ctx.Done()
				return srv.Stop(context.WithoutCancel(ctx))
			})
		},
	}
	cmd.Flags().StringVar(&host, "host", "", "override server.host")
	cmd.Flags().IntVar(&port, "port", 0, "override server.port")
	return cmd
}

func newTokenCommand(opts *globalOptions) *cobra.Command {
	var subject string
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for the HTTP API using server.auth",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			tokens, err := server.NewTokens(cfg.Server.Auth)
			if err != nil {
				return err
			}
			token, err := tokens.Issue(subject, ttl)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "workloadctl", "token subject")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	return cmd
}
