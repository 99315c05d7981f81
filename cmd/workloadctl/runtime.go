package main

import (
	"context"
	"fmt"

	"github.com/kbukum/workloadops/bootstrap"
	"github.com/kbukum/workloadops/cache"
	"github.com/kbukum/workloadops/component"
	"github.com/kbukum/workloadops/config"
	"github.com/kbukum/workloadops/logger"
	"github.com/kbukum/workloadops/observability"
	"github.com/kbukum/workloadops/redis"
	"github.com/kbukum/workloadops/router"
	"github.com/kbukum/workloadops/tracelog"
	"github.com/kbukum/workloadops/workload"

	// Backend adapters register their factories from init.
	_ "github.com/kbukum/workloadops/workload/docker"
	_ "github.com/kbukum/workloadops/workload/kubernetes"
)

// runtime holds what a command needs once startup has finished.
type runtime struct {
	app    *bootstrap.App[*CLIConfig]
	router *router.Router
	redis  *redis.Client
}

// health reports the started components followed by each backend adapter.
func (rt *runtime) health(ctx context.Context) []component.Health {
	return append(rt.app.Components.HealthAll(ctx), rt.router.Health(ctx)...)
}

func loadConfig(opts *globalOptions) (*CLIConfig, error) {
	cfg := &CLIConfig{}
	var loaderOpts []config.LoaderOption
	if opts.configFile != "" {
		loaderOpts = append(loaderOpts, config.WithConfigFile(opts.configFile))
	}
	if opts.envFile != "" {
		loaderOpts = append(loaderOpts, config.WithEnvFile(opts.envFile))
	}
	if err := config.LoadConfig("workloadctl", cfg, loaderOpts...); err != nil {
		return nil, err
	}
	if opts.logLevel != "" {
		cfg.Logging.Level = opts.logLevel
	}
	return cfg, nil
}

// withRouter loads config, starts the components, builds the router and runs
// fn. Telemetry is flushed on the way out; a failed flush is logged only.
func withRouter(ctx context.Context, opts *globalOptions, fn func(ctx context.Context, rt *runtime) error) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	app, err := bootstrap.NewApp(cfg)
	if err != nil {
		return err
	}

	pipeline, err := observability.NewPipeline(ctx, cfg.Telemetry, observability.WithLogger(app.Logger))
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}

	var redisComp *redis.Component
	if cfg.Redis.Enabled {
		redisComp = redis.NewComponent(cfg.Redis, app.Logger)
		if err := app.RegisterComponent(redisComp); err != nil {
			return err
		}
	}
	if err := app.RegisterComponent(pipeline); err != nil {
		return err
	}

	rt := &runtime{app: app}
	app.OnStart(func(ctx context.Context) error {
		log := app.Logger
		if redisComp != nil {
			rt.redis = redisComp.Client()
		}
		if redisComp != nil && cfg.TraceLog.Enabled {
			sink, err := tracelog.NewSink(redisComp.Client(), cfg.TraceLog, log)
			if err != nil {
				return err
			}
			app.OnStop(sink.Close)
			log = log.Hook(sink)
			app.Logger = log
		}

		adapters := buildAdapters(cfg, log)
		if len(adapters) == 0 {
			return fmt.Errorf("no backend adapter could be built for %v", cfg.Backends)
		}

		deps := router.Deps{Adapters: adapters, Pipeline: pipeline, Logger: log}
		if redisComp != nil {
			sc, err := cache.New(redisComp.Client(), cfg.Cache, log, cache.WithMetrics(pipeline.Metrics()))
			if err != nil {
				return err
			}
			deps.Cache = sc
		}

		r, err := router.New(cfg.Router, deps)
		if err != nil {
			return err
		}
		rt.router = r
		return nil
	})

	return app.RunTask(ctx, func(ctx context.Context) error {
		return fn(ctx, rt)
	})
}

// buildAdapters builds one adapter per configured backend. A backend that
// cannot be reached from this host is skipped with a warning; its refs then
// fail with UNSUPPORTED_BACKEND.
func buildAdapters(cfg *CLIConfig, log *logger.Logger) []workload.Adapter {
	var adapters []workload.Adapter
	for _, name := range cfg.Backends {
		kind, _ := workload.ParseKind(name)

		var backendCfg any
		switch kind {
		case workload.KindCluster:
			backendCfg = &cfg.Kubernetes
		case workload.KindEngine:
			backendCfg = &cfg.Docker
		}

		a, err := workload.NewAdapter(kind, cfg.Workload, backendCfg, log)
		if err != nil {
			log.Warn("backend disabled", logger.Fields(logger.FieldKind, string(kind), logger.FieldError, err.Error()))
			continue
		}
		adapters = append(adapters, a)
	}
	return adapters
}
