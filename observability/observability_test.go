package observability

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/kbukum/workloadops/errors"
)

func newTestPipeline(t *testing.T) (*Pipeline, *tracetest.InMemoryExporter, *sdkmetric.ManualReader) {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	reader := sdkmetric.NewManualReader()
	p, err := NewPipeline(context.Background(), Config{ServiceName: "test"},
		WithSpanExporter(exporter), WithSyncExport(), WithMetricReader(reader))
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	t.Cleanup(func() { _ = p.Shutdown(time.Second) })
	return p, exporter, reader
}

func sumFor(t *testing.T, reader *sdkmetric.ManualReader, name string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range sum.DataPoints {
					total += dp.Value
				}
			}
		}
	}
	return total
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{Protocol: ProtocolGRPC}
	cfg.ApplyDefaults()
	if cfg.Endpoint != "localhost:4317" {
		t.Errorf("grpc endpoint = %s", cfg.Endpoint)
	}
	if cfg.SampleRate != 1.0 || cfg.MetricInterval != 15*time.Second {
		t.Errorf("defaults = %+v", cfg)
	}

	http := Config{}
	http.ApplyDefaults()
	if http.Protocol != ProtocolHTTP || http.Endpoint != "localhost:4318" {
		t.Errorf("http defaults = %+v", http)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"http", Config{Protocol: ProtocolHTTP, SampleRate: 1}, false},
		{"grpc", Config{Protocol: ProtocolGRPC, SampleRate: 0.5}, false},
		{"unknown protocol", Config{Protocol: "udp", SampleRate: 1}, true},
		{"bad sample rate", Config{Protocol: ProtocolHTTP, SampleRate: 2}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNewPipeline_InvalidConfig(t *testing.T) {
	_, err := NewPipeline(context.Background(), Config{Protocol: "udp"})
	if !errors.IsCode(err, errors.ErrCodeInvalidSpec) {
		t.Fatalf("expected INVALID_SPEC, got %v", err)
	}
}

func TestNewPipeline_OTLPTransports(t *testing.T) {
	for _, proto := range []string{ProtocolHTTP, ProtocolGRPC} {
		t.Run(proto, func(t *testing.T) {
			p, err := NewPipeline(context.Background(), Config{
				Enabled:  true,
				Protocol: proto,
				Endpoint: "127.0.0.1:1",
				Insecure: true,
			})
			if err != nil {
				t.Fatalf("NewPipeline(%s): %v", proto, err)
			}
			_ = p.Shutdown(100 * time.Millisecond)
		})
	}
}

func TestOperation_EndExactlyOnce(t *testing.T) {
	p, exporter, reader := newTestPipeline(t)

	_, op := p.StartOperation(context.Background(), "describe", RefAttributes("cluster", "ns1", "job-7")...)
	op.End(nil)
	op.End(fmt.Errorf("ignored"))

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Status.Code != codes.Ok {
		t.Errorf("status = %v, want Ok", spans[0].Status.Code)
	}
	if got := sumFor(t, reader, MetricOperationTotal); got != 1 {
		t.Errorf("%s = %d, want 1", MetricOperationTotal, got)
	}
}

func TestOperation_EndWithError(t *testing.T) {
	p, exporter, _ := newTestPipeline(t)

	_, op := p.StartOperation(context.Background(), "create")
	op.End(errors.AlreadyExists("container", "web-1"))

	span := exporter.GetSpans()[0]
	if span.Status.Code != codes.Error {
		t.Errorf("status = %v, want Error", span.Status.Code)
	}
	found := false
	for _, kv := range span.Attributes {
		if kv.Key == AttrErrorCode && kv.Value.AsString() == "ALREADY_EXISTS" {
			found = true
		}
	}
	if !found {
		t.Errorf("missing error.code attribute: %v", span.Attributes)
	}
}

func TestOperation_AttributesOrdered(t *testing.T) {
	p, _, _ := newTestPipeline(t)

	ctx, op := p.StartOperation(context.Background(), "wait_until", attribute.String(AttrKind, "engine"))
	op.SetAttributes(attribute.String(AttrPhase, "Running"), attribute.Int(AttrAttempt, 2))
	defer op.End(nil)

	got := op.Attributes()
	wantKeys := []attribute.Key{AttrOperation, AttrKind, AttrPhase, AttrAttempt}
	if len(got) != len(wantKeys) {
		t.Fatalf("attributes = %v", got)
	}
	for i, k := range wantKeys {
		if got[i].Key != k {
			t.Errorf("attr[%d] = %s, want %s", i, got[i].Key, k)
		}
	}

	if OperationFromContext(ctx) != op {
		t.Error("OperationFromContext should return the started operation")
	}
	if op.TraceID() == "" {
		t.Error("expected a trace id")
	}
}

func TestOperationFromContext_NotSet(t *testing.T) {
	if OperationFromContext(context.Background()) != nil {
		t.Error("expected nil when no operation was started")
	}
}

func TestOperation_ConcurrentOwnership(t *testing.T) {
	p, exporter, _ := newTestPipeline(t)

	var wg sync.WaitGroup
	ids := make([]string, 10)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, op := p.StartOperation(context.Background(), "describe")
			ids[i] = op.TraceID()
			op.End(nil)
		}(i)
	}
	wg.Wait()

	seen := map[string]bool{}
	for _, id := range ids {
		if seen[id] {
			t.Errorf("trace id %s shared between operations", id)
		}
		seen[id] = true
	}
	if got := len(exporter.GetSpans()); got != 10 {
		t.Errorf("spans = %d, want 10", got)
	}
}

func TestMetrics_CacheAndRetry(t *testing.T) {
	p, _, reader := newTestPipeline(t)
	ctx := context.Background()

	m := p.Metrics()
	m.RecordCacheLookup(ctx, true)
	m.RecordCacheLookup(ctx, false)
	m.RecordCacheError(ctx, "get")
	m.RecordRetry(ctx, "describe", "cluster")

	if got := sumFor(t, reader, MetricCacheLookups); got != 2 {
		t.Errorf("lookups = %d", got)
	}
	if got := sumFor(t, reader, MetricCacheErrors); got != 1 {
		t.Errorf("cache errors = %d", got)
	}
	if got := sumFor(t, reader, MetricRetryAttempts); got != 1 {
		t.Errorf("retries = %d", got)
	}
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	m.RecordCacheLookup(context.Background(), true)
	m.RecordOperation(context.Background(), "x", "y", "", time.Second)
}

// blockingExporter holds every export until its context ends or release is closed.
type blockingExporter struct {
	release chan struct{}
}

func (b *blockingExporter) ExportSpans(ctx context.Context, _ []sdktrace.ReadOnlySpan) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-b.release:
		return nil
	}
}

func (b *blockingExporter) Shutdown(context.Context) error { return nil }

func TestShutdown_FlushTimeout(t *testing.T) {
	exp := &blockingExporter{release: make(chan struct{})}
	t.Cleanup(func() { close(exp.release) })

	p, err := NewPipeline(context.Background(), Config{}, WithSpanExporter(exp),
		WithMetricReader(sdkmetric.NewManualReader()))
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	_, op := p.StartOperation(context.Background(), "terminate")
	op.End(nil)

	err = p.Shutdown(50 * time.Millisecond)
	if !errors.IsCode(err, errors.ErrCodeFlushTimeout) {
		t.Fatalf("expected FLUSH_TIMEOUT, got %v", err)
	}
	if again := p.Shutdown(time.Second); again != err {
		t.Errorf("second Shutdown = %v, want first result", again)
	}
}

func TestShutdown_Clean(t *testing.T) {
	p, _, _ := newTestPipeline(t)
	_, op := p.StartOperation(context.Background(), "describe")
	op.End(nil)

	if err := p.Shutdown(time.Second); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}

func TestPipeline_Component(t *testing.T) {
	p, _, _ := newTestPipeline(t)
	if p.Name() != "telemetry" {
		t.Errorf("Name() = %s", p.Name())
	}
	if h := p.Health(context.Background()); h.Message != "export disabled" {
		t.Errorf("Health() = %+v", h)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := p.Stop(ctx); err != nil {
		t.Errorf("Stop: %v", err)
	}
}
