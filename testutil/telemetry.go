package testutil

import (
	"context"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/kbukum/workloadops/observability"
)

// Telemetry is a pipeline whose spans and metrics stay in memory. Spans are
// exported synchronously, so they are visible as soon as an operation ends.
type Telemetry struct {
	Pipeline *observability.Pipeline
	Spans    *tracetest.InMemoryExporter
	Reader   *sdkmetric.ManualReader
}

// NewTelemetry builds an in-memory pipeline shut down when the test ends.
func NewTelemetry(t testing.TB) *Telemetry {
	t.Helper()
	spans := tracetest.NewInMemoryExporter()
	reader := sdkmetric.NewManualReader()
	p, err := observability.NewPipeline(context.Background(), observability.Config{ServiceName: t.Name()},
		observability.WithSpanExporter(spans),
		observability.WithSyncExport(),
		observability.WithMetricReader(reader))
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	t.Cleanup(func() { _ = p.Shutdown(time.Second) })
	return &Telemetry{Pipeline: p, Spans: spans, Reader: reader}
}

// SpanNames lists ended spans in export order.
func (tel *Telemetry) SpanNames() []string {
	var names []string
	for _, s := range tel.Spans.GetSpans() {
		names = append(names, s.Name)
	}
	return names
}

// Counter sums the int64 counter name over data points whose attrKey equals
// attrValue. An empty attrKey sums every data point.
func (tel *Telemetry) Counter(t testing.TB, name, attrKey, attrValue string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := tel.Reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				if attrKey == "" {
					total += dp.Value
					continue
				}
				if v, ok := dp.Attributes.Value(attribute.Key(attrKey)); ok && v.AsString() == attrValue {
					total += dp.Value
				}
			}
		}
	}
	return total
}
