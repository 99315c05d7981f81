package tracelog

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/workloadops/component"
	"github.com/kbukum/workloadops/logger"
	"github.com/kbukum/workloadops/redis"
	"github.com/kbukum/workloadops/testutil"
)

func newClient(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	srv := testutil.Redis(t)
	return srv.Client(), srv.Mini()
}

func newLogger() *logger.Logger {
	return logger.NewWithWriter(&logger.Config{Level: "debug", Format: "json"}, "tracelog-test", io.Discard)
}

func TestSink_WritesRecordsWithSpanContext(t *testing.T) {
	client, mini := newClient(t)
	sink, err := NewSink(client, Config{App: "workloadctl"}, nil)
	if err != nil {
		t.Fatalf("NewSink: %v", err)
	}
	log := newLogger().Hook(sink)

	tel := testutil.NewTelemetry(t)
	ctx, op := tel.Pipeline.StartOperation(context.Background(), "describe")
	span := trace.SpanFromContext(ctx)

	log.Info("outside any span")
	time.Sleep(2 * time.Millisecond)
	log.WithContext(ctx).Warn("inside describe")
	log.Debug("below min level")
	op.End(nil)

	if err := sink.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if !mini.Exists("traces:workloadctl") {
		t.Fatal("sorted set traces:workloadctl not written")
	}

	viewer := NewViewer(client, "")
	records, err := viewer.ByApp(context.Background(), "workloadctl")
	if err != nil {
		t.Fatalf("ByApp: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("records = %d, want 2: %+v", len(records), records)
	}
	if records[0].Message != "outside any span" || records[0].TraceID != "" {
		t.Errorf("first record = %+v", records[0])
	}
	second := records[1]
	if second.Message != "inside describe" || second.Level != "warn" {
		t.Errorf("second record = %+v", second)
	}
	if second.TraceID != span.SpanContext().TraceID().String() || second.SpanID != span.SpanContext().SpanID().String() {
		t.Errorf("span ids not recorded: %+v", second)
	}
	if second.SpanName != "describe" {
		t.Errorf("span name = %q, want describe", second.SpanName)
	}

	bySpan, err := viewer.BySpanName(context.Background(), "workloadctl", "describe")
	if err != nil || len(bySpan) != 1 || bySpan[0].Message != "inside describe" {
		t.Errorf("BySpanName = %+v, %v", bySpan, err)
	}
	byTrace, err := viewer.ByTrace(context.Background(), "workloadctl", second.TraceID)
	if err != nil || len(byTrace) != 1 {
		t.Errorf("ByTrace = %+v, %v", byTrace, err)
	}

	written, dropped, failed := sink.Stats()
	if written != 2 || dropped != 0 || failed != 0 {
		t.Errorf("stats = %d/%d/%d", written, dropped, failed)
	}
}

func TestSink_CloseIsIdempotentAndDropsLateRecords(t *testing.T) {
	client, _ := newClient(t)
	sink, err := NewSink(client, Config{App: "a"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	log := newLogger().Hook(sink)

	if err := sink.Close(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := sink.Close(context.Background()); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	log.Info("too late")
	if _, dropped, _ := sink.Stats(); dropped != 1 {
		t.Errorf("dropped = %d, want 1", dropped)
	}
	if h := sink.Health(context.Background()); h.Status != component.StatusDegraded {
		t.Errorf("health = %+v", h)
	}
}

func TestSink_StoreDownCountsFailures(t *testing.T) {
	client, mini := newClient(t)
	sink, err := NewSink(client, Config{App: "a", WriteTimeout: "200ms"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	mini.Close()

	log := newLogger().Hook(sink)
	log.Error("lost")

	if err := sink.Stop(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, _, failed := sink.Stats(); failed != 1 {
		t.Errorf("failed = %d, want 1", failed)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"disabled", Config{}, false},
		{"ok", Config{Enabled: true, App: "x"}, false},
		{"missing app", Config{Enabled: true}, true},
		{"bad level", Config{Enabled: true, App: "x", MinLevel: "loud"}, true},
		{"bad timeout", Config{Enabled: true, App: "x", WriteTimeout: "soon"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.cfg.ApplyDefaults()
			if err := tt.cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNewSink_RequiresClient(t *testing.T) {
	if _, err := NewSink(nil, Config{App: "x"}, nil); err == nil {
		t.Error("expected error")
	}
}
