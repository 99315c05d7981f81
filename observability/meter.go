package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Instrument names.
const (
	MetricOperationTotal    = "workload.operation.total"
	MetricOperationDuration = "workload.operation.duration"
	MetricRetryAttempts     = "workload.retry.attempts"
	MetricCacheLookups      = "workload.cache.lookups"
	MetricCacheErrors       = "workload.cache.errors"
)

// Metrics holds the workload instruments. A nil *Metrics records nothing.
type Metrics struct {
	operationTotal    metric.Int64Counter
	operationDuration metric.Float64Histogram
	retryAttempts     metric.Int64Counter
	cacheLookups      metric.Int64Counter
	cacheErrors       metric.Int64Counter
}

// NewMetrics creates metric instruments on the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	operationTotal, err := meter.Int64Counter(MetricOperationTotal,
		metric.WithDescription("Workload operations by kind, operation and outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating %s counter: %w", MetricOperationTotal, err)
	}

	operationDuration, err := meter.Float64Histogram(MetricOperationDuration,
		metric.WithDescription("Duration of workload operations in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating %s histogram: %w", MetricOperationDuration, err)
	}

	retryAttempts, err := meter.Int64Counter(MetricRetryAttempts,
		metric.WithDescription("Retries scheduled after a retryable backend failure"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating %s counter: %w", MetricRetryAttempts, err)
	}

	cacheLookups, err := meter.Int64Counter(MetricCacheLookups,
		metric.WithDescription("State cache lookups by result"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating %s counter: %w", MetricCacheLookups, err)
	}

	cacheErrors, err := meter.Int64Counter(MetricCacheErrors,
		metric.WithDescription("State cache store failures absorbed"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating %s counter: %w", MetricCacheErrors, err)
	}

	return &Metrics{
		operationTotal:    operationTotal,
		operationDuration: operationDuration,
		retryAttempts:     retryAttempts,
		cacheLookups:      cacheLookups,
		cacheErrors:       cacheErrors,
	}, nil
}

// RecordOperation records a finished workload operation.
func (m *Metrics) RecordOperation(ctx context.Context, operation, kind, code string, duration time.Duration) {
	if m == nil {
		return
	}
	status := "ok"
	if code != "" {
		status = "error"
	}
	m.operationTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrOperation, operation),
		attribute.String(AttrKind, kind),
		attribute.String(AttrStatus, status),
		attribute.String(AttrErrorCode, code),
	))
	m.operationDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String(AttrOperation, operation),
		attribute.String(AttrKind, kind),
	))
}

// RecordRetry records one scheduled retry.
func (m *Metrics) RecordRetry(ctx context.Context, operation, kind string) {
	if m == nil {
		return
	}
	m.retryAttempts.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrOperation, operation),
		attribute.String(AttrKind, kind),
	))
}

// RecordCacheLookup records a cache hit or miss.
func (m *Metrics) RecordCacheLookup(ctx context.Context, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrCacheResult, result)))
}

// RecordCacheError records an absorbed cache store failure.
func (m *Metrics) RecordCacheError(ctx context.Context, op string) {
	if m == nil {
		return
	}
	m.cacheErrors.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrCacheOp, op)))
}
