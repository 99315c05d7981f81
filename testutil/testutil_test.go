package testutil

import (
	"context"
	"strings"
	"testing"

	"github.com/kbukum/workloadops/component"
	"github.com/kbukum/workloadops/observability"
)

func TestRedisServerLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewRedisServer()
	if h := s.Health(ctx); h.Status != component.StatusUnhealthy {
		t.Fatalf("health before start = %+v", h)
	}
	if err := s.Reset(ctx); err == nil {
		t.Fatal("Reset before Start should fail")
	}

	Setup(t, s)
	if err := s.Client().Set(ctx, "k", "v", 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if h := s.Health(ctx); h.Status != component.StatusHealthy {
		t.Fatalf("health = %+v", h)
	}

	Reset(t, s)
	if s.Mini().Exists("k") {
		t.Error("key survived Reset")
	}
}

func TestRedisServerStopIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := NewRedisServer()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("second Stop: %v", err)
	}
	if s.Client() != nil {
		t.Error("client kept after Stop")
	}
}

func TestTelemetryRecordsInMemory(t *testing.T) {
	tel := NewTelemetry(t)
	ctx, op := tel.Pipeline.StartOperation(context.Background(), "describe")
	tel.Pipeline.Metrics().RecordCacheLookup(ctx, true)
	tel.Pipeline.Metrics().RecordCacheLookup(ctx, false)
	tel.Pipeline.Metrics().RecordCacheLookup(ctx, true)
	op.End(nil)

	if got := tel.SpanNames(); len(got) != 1 || got[0] != "describe" {
		t.Errorf("spans = %v", got)
	}
	if got := tel.Counter(t, observability.MetricCacheLookups, observability.AttrCacheResult, "hit"); got != 2 {
		t.Errorf("hits = %d, want 2", got)
	}
	if got := tel.Counter(t, observability.MetricCacheLookups, "", ""); got != 3 {
		t.Errorf("lookups = %d, want 3", got)
	}
}

func TestLogs(t *testing.T) {
	log, buf := Logs("svc")
	log.Warn("state cache unavailable")
	if out := buf.String(); !strings.Contains(out, `"level":"warn"`) || !strings.Contains(out, "state cache unavailable") {
		t.Errorf("log output = %s", out)
	}
}
