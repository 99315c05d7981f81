package tracelog

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/workloadops/component"
	"github.com/kbukum/workloadops/logger"
	"github.com/kbukum/workloadops/redis"
)

// Record is one log line as stored in Redis.
type Record struct {
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	TraceID   string    `json:"trace_id,omitempty"`
	SpanID    string    `json:"span_id,omitempty"`
	SpanName  string    `json:"span_name,omitempty"`
}

// Sink is a zerolog hook that copies log records into a Redis sorted set,
// scored by unix milliseconds. Writes happen on one background goroutine;
// Run never blocks the logging call.
type Sink struct {
	client   *redis.Client
	key      string
	minLevel zerolog.Level
	timeout  time.Duration
	log      *logger.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan Record
	done   chan struct{}

	written atomic.Int64
	dropped atomic.Int64
	failed  atomic.Int64
}

var (
	_ zerolog.Hook        = (*Sink)(nil)
	_ component.Component = (*Sink)(nil)
)

// NewSink starts a sink writing to client. log receives the sink's own
// write failures and must not itself be hooked to the sink.
func NewSink(client *redis.Client, cfg Config, log *logger.Logger) (*Sink, error) {
	if client == nil {
		return nil, fmt.Errorf("tracelog: redis client is required")
	}
	cfg.Enabled = true
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.Nop()
	}

	level, _ := zerolog.ParseLevel(cfg.MinLevel)
	timeout, _ := time.ParseDuration(cfg.WriteTimeout)
	s := &Sink{
		client:   client,
		key:      Key(cfg.KeyPrefix, cfg.App),
		minLevel: level,
		timeout:  timeout,
		log:      log.WithComponent("tracelog"),
		queue:    make(chan Record, cfg.QueueSize),
		done:     make(chan struct{}),
	}
	go s.run()
	return s, nil
}

// Run implements zerolog.Hook.
func (s *Sink) Run(e *zerolog.Event, level zerolog.Level, msg string) {
	if level < s.minLevel || level == zerolog.NoLevel || level == zerolog.Disabled {
		return
	}
	rec := Record{
		Timestamp: time.Now().UTC(),
		Level:     level.String(),
		Message:   msg,
	}
	if span := trace.SpanFromContext(e.GetCtx()); span.SpanContext().IsValid() {
		sc := span.SpanContext()
		rec.TraceID = sc.TraceID().String()
		rec.SpanID = sc.SpanID().String()
		if named, ok := span.(interface{ Name() string }); ok {
			rec.SpanName = named.Name()
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		s.dropped.Add(1)
		return
	}
	select {
	case s.queue <- rec:
	default:
		s.dropped.Add(1)
	}
}

func (s *Sink) run() {
	defer close(s.done)
	for rec := range s.queue {
		s.write(rec)
	}
}

func (s *Sink) write(rec Record) {
	data, err := json.Marshal(rec)
	if err != nil {
		s.failed.Add(1)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	score := float64(rec.Timestamp.UnixMicro()) / 1000
	if err := s.client.ZAdd(ctx, s.key, score, string(data)); err != nil {
		if s.failed.Add(1) == 1 {
			s.log.Warn("trace log write failed", logger.Fields(logger.FieldKey, s.key, logger.FieldError, err.Error()))
		}
		return
	}
	s.written.Add(1)
}

// Close stops accepting records and waits until the queue is drained or
// ctx is done. It is safe to call more than once.
func (s *Sink) Close(ctx context.Context) error {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.queue)
	}
	s.mu.Unlock()

	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("tracelog: drain interrupted with %d records queued: %w", len(s.queue), ctx.Err())
	}
}

// Stats reports records written, dropped on a full queue or after Close,
// and failed writes.
func (s *Sink) Stats() (written, dropped, failed int64) {
	return s.written.Load(), s.dropped.Load(), s.failed.Load()
}

func (s *Sink) Name() string { return "tracelog" }

func (s *Sink) Start(context.Context) error { return nil }

func (s *Sink) Stop(ctx context.Context) error { return s.Close(ctx) }

func (s *Sink) Health(context.Context) component.Health {
	_, dropped, failed := s.Stats()
	if failed > 0 || dropped > 0 {
		return component.Health{
			Name:    s.Name(),
			Status:  component.StatusDegraded,
			Message: fmt.Sprintf("%d dropped, %d failed", dropped, failed),
		}
	}
	return component.Health{Name: s.Name(), Status: component.StatusHealthy}
}
