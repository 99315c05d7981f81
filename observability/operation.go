package observability

import (
	"context"
	"slices"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/workloadops/errors"
)

// Attribute keys recorded on operation spans and metrics.
const (
	AttrOperation   = "workload.operation"
	AttrKind        = "workload.kind"
	AttrNamespace   = "workload.namespace"
	AttrName        = "workload.name"
	AttrIdentity    = "workload.identity"
	AttrPhase       = "workload.phase"
	AttrStatus      = "status"
	AttrErrorCode   = "error.code"
	AttrCacheResult = "cache.result"
	AttrCacheOp     = "cache.op"
	AttrAttempt     = "retry.attempt"
	AttrDurationMs  = "duration_ms"
)

// RefAttributes returns the attributes that identify a workload.
func RefAttributes(kind, namespace, name string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(AttrKind, kind),
		attribute.String(AttrName, name),
	}
	if namespace != "" {
		attrs = append(attrs, attribute.String(AttrNamespace, namespace))
	}
	return attrs
}

// Operation is the telemetry context of one router call. It is owned by the
// call that started it and closed exactly once by End.
type Operation struct {
	name    string
	start   time.Time
	span    trace.Span
	metrics *Metrics

	mu    sync.Mutex
	attrs []attribute.KeyValue
	once  sync.Once
}

type operationKey struct{}

// StartOperation starts a span named name and returns a context carrying both
// the span and the Operation.
func (p *Pipeline) StartOperation(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, *Operation) {
	all := append([]attribute.KeyValue{attribute.String(AttrOperation, name)}, attrs...)
	ctx, span := p.tracer.Start(ctx, name, trace.WithAttributes(all...))
	op := &Operation{
		name:    name,
		start:   time.Now(),
		span:    span,
		metrics: p.metrics,
		attrs:   all,
	}
	return context.WithValue(ctx, operationKey{}, op), op
}

// OperationFromContext returns the Operation started for ctx, or nil.
func OperationFromContext(ctx context.Context) *Operation {
	if op, ok := ctx.Value(operationKey{}).(*Operation); ok {
		return op
	}
	return nil
}

// Name returns the operation name.
func (o *Operation) Name() string { return o.name }

// TraceID returns the hex trace id, or "" when the span is not sampled.
func (o *Operation) TraceID() string {
	sc := o.span.SpanContext()
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}

// Attributes returns a copy of the attributes in the order they were set.
func (o *Operation) Attributes() []attribute.KeyValue {
	o.mu.Lock()
	defer o.mu.Unlock()
	return slices.Clone(o.attrs)
}

// SetAttributes appends attributes to the operation and its span.
func (o *Operation) SetAttributes(attrs ...attribute.KeyValue) {
	o.mu.Lock()
	o.attrs = append(o.attrs, attrs...)
	o.mu.Unlock()
	o.span.SetAttributes(attrs...)
}

// AddEvent records a span event.
func (o *Operation) AddEvent(name string, attrs ...attribute.KeyValue) {
	o.span.AddEvent(name, trace.WithAttributes(attrs...))
}

// End closes the span and records the operation metrics. Only the first
// call has any effect.
func (o *Operation) End(err error) {
	o.once.Do(func() {
		duration := time.Since(o.start)
		code := ""
		if err != nil {
			code = string(errors.CodeOf(err))
			o.span.RecordError(err)
			o.span.SetStatus(codes.Error, err.Error())
			o.span.SetAttributes(attribute.String(AttrErrorCode, code))
		} else {
			o.span.SetStatus(codes.Ok, "")
		}
		o.span.SetAttributes(attribute.Int64(AttrDurationMs, duration.Milliseconds()))
		o.span.End()

		o.metrics.RecordOperation(context.Background(), o.name, o.kind(), code, duration)
	})
}

func (o *Operation) kind() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, kv := range o.attrs {
		if kv.Key == AttrKind {
			return kv.Value.AsString()
		}
	}
	return ""
}
