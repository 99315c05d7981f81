package observability

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/multierr"

	"github.com/kbukum/workloadops/errors"
	"github.com/kbukum/workloadops/logger"
)

const instrumentationName = "github.com/kbukum/workloadops"

// Pipeline is an owned tracer and meter provider pair plus the instruments
// recorded for every workload operation.
type Pipeline struct {
	cfg     Config
	tp      *sdktrace.TracerProvider
	mp      *sdkmetric.MeterProvider
	tracer  trace.Tracer
	metrics *Metrics
	log     *logger.Logger

	shutdownOnce sync.Once
	shutdownErr  error
}

// Option customises NewPipeline.
type Option func(*pipelineOptions)

type pipelineOptions struct {
	spanExporter sdktrace.SpanExporter
	syncExport   bool
	metricReader sdkmetric.Reader
	log          *logger.Logger
}

// WithSpanExporter replaces the OTLP span exporter.
func WithSpanExporter(exp sdktrace.SpanExporter) Option {
	return func(o *pipelineOptions) { o.spanExporter = exp }
}

// WithSyncExport exports each span as it ends instead of batching.
func WithSyncExport() Option {
	return func(o *pipelineOptions) { o.syncExport = true }
}

// WithMetricReader replaces the periodic OTLP metric reader.
func WithMetricReader(r sdkmetric.Reader) Option {
	return func(o *pipelineOptions) { o.metricReader = r }
}

// WithLogger sets the logger used for pipeline diagnostics.
func WithLogger(l *logger.Logger) Option {
	return func(o *pipelineOptions) { o.log = l }
}

// NewPipeline builds the tracer and meter providers described by cfg.
func NewPipeline(ctx context.Context, cfg Config, opts ...Option) (*Pipeline, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, errors.InvalidSpec(err.Error())
	}

	o := pipelineOptions{log: logger.Nop()}
	for _, opt := range opts {
		opt(&o)
	}

	res := newResource(cfg)

	spanExp := o.spanExporter
	if spanExp == nil && cfg.Enabled {
		exp, err := newSpanExporter(ctx, cfg)
		if err != nil {
			return nil, errors.ConnectionFailed("otlp collector", fmt.Errorf("creating span exporter: %w", err))
		}
		spanExp = exp
	}

	reader := o.metricReader
	if reader == nil && cfg.Enabled {
		exp, err := newMetricExporter(ctx, cfg)
		if err != nil {
			if spanExp != nil {
				_ = spanExp.Shutdown(ctx)
			}
			return nil, errors.ConnectionFailed("otlp collector", fmt.Errorf("creating metric exporter: %w", err))
		}
		reader = sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(cfg.MetricInterval))
	}

	tpOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler(cfg.SampleRate)),
	}
	if spanExp != nil {
		if o.syncExport {
			tpOpts = append(tpOpts, sdktrace.WithSyncer(spanExp))
		} else {
			tpOpts = append(tpOpts, sdktrace.WithBatcher(spanExp, sdktrace.WithBatchTimeout(cfg.BatchTimeout)))
		}
	}
	tp := sdktrace.NewTracerProvider(tpOpts...)

	mpOpts := []sdkmetric.Option{sdkmetric.WithResource(res)}
	if reader != nil {
		mpOpts = append(mpOpts, sdkmetric.WithReader(reader))
	}
	mp := sdkmetric.NewMeterProvider(mpOpts...)

	metrics, err := NewMetrics(mp.Meter(instrumentationName))
	if err != nil {
		return nil, multierr.Append(err, multierr.Combine(tp.Shutdown(ctx), mp.Shutdown(ctx)))
	}

	if cfg.SetGlobal {
		otel.SetTracerProvider(tp)
		otel.SetMeterProvider(mp)
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		))
	}

	log := o.log.WithComponent("telemetry")
	log.Debug("telemetry pipeline initialized", logger.Fields(
		"service", cfg.ServiceName,
		"enabled", cfg.Enabled,
		"protocol", cfg.Protocol,
		"endpoint", cfg.Endpoint,
		"sample_rate", cfg.SampleRate,
	))

	return &Pipeline{
		cfg:     cfg,
		tp:      tp,
		mp:      mp,
		tracer:  tp.Tracer(instrumentationName),
		metrics: metrics,
		log:     log,
	}, nil
}

func newResource(cfg Config) *resource.Resource {
	return resource.NewSchemaless(
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
		semconv.DeploymentEnvironment(cfg.Environment),
		attribute.String("telemetry.protocol", cfg.Protocol),
	)
}

func sampler(rate float64) sdktrace.Sampler {
	switch {
	case rate >= 1.0:
		return sdktrace.AlwaysSample()
	case rate <= 0:
		return sdktrace.NeverSample()
	default:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(rate))
	}
}

// Tracer returns the pipeline's tracer.
func (p *Pipeline) Tracer() trace.Tracer { return p.tracer }

// Meter returns a meter from the pipeline's provider.
func (p *Pipeline) Meter(name string) metric.Meter { return p.mp.Meter(name) }

// Metrics returns the workload instruments.
func (p *Pipeline) Metrics() *Metrics { return p.metrics }

// ForceFlush exports every pending span and metric.
func (p *Pipeline) ForceFlush(ctx context.Context) error {
	return multierr.Combine(p.tp.ForceFlush(ctx), p.mp.ForceFlush(ctx))
}

// Shutdown flushes then shuts down both providers within timeout. It returns
// a FLUSH_TIMEOUT error when the deadline elapses first. Later calls return
// the first call's result.
func (p *Pipeline) Shutdown(timeout time.Duration) error {
	p.shutdownOnce.Do(func() {
		p.shutdownErr = p.shutdown(timeout)
	})
	return p.shutdownErr
}

func (p *Pipeline) shutdown(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	err := multierr.Combine(
		p.tp.ForceFlush(ctx),
		p.mp.ForceFlush(ctx),
		p.tp.Shutdown(ctx),
		p.mp.Shutdown(ctx),
	)
	if err == nil {
		return nil
	}
	if stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
		return errors.FlushTimeout(timeout, err)
	}
	return errors.Wrap(errors.ErrCodeInternal, "telemetry shutdown failed", err)
}
