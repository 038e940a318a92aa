// Package telemetry provides OpenTelemetry tracing for bus traffic.
// Spans cover publishes forwarded across process boundaries and
// request/reply round trips; trace context rides in Message headers.
package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// Tracer wraps OpenTelemetry tracing with bus-specific helpers.
type Tracer struct {
	tracer trace.Tracer
}

var (
	globalTracer *Tracer
	tracerMu     sync.RWMutex
)

// SetGlobalTracer sets the global tracer instance.
func SetGlobalTracer(t *Tracer) {
	tracerMu.Lock()
	defer tracerMu.Unlock()
	globalTracer = t
}

// GetTracer returns the global tracer, or a no-op tracer if not set.
func GetTracer() *Tracer {
	tracerMu.RLock()
	defer tracerMu.RUnlock()
	if globalTracer == nil {
		return &Tracer{tracer: trace.NewNoopTracerProvider().Tracer("")}
	}
	return globalTracer
}

// NewTracer creates a new tracer with the given name.
func NewTracer(name string) *Tracer {
	return &Tracer{
		tracer: otel.Tracer(name),
	}
}

// StartSpan starts a new span with the given name.
func (t *Tracer) StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, name, opts...)
}

// --- Forward Spans ---

// StartForwardSpan starts a span for a message forwarded across a
// bridge. Direction is "out" (bus to transport) or "in".
func (t *Tracer) StartForwardSpan(ctx context.Context, topic, direction string) (context.Context, trace.Span) {
	ctx, span := t.tracer.Start(ctx, "bridge.forward", trace.WithSpanKind(trace.SpanKindProducer))
	span.SetAttributes(
		attribute.String("bus.topic", topic),
		attribute.String("bridge.direction", direction),
	)
	return ctx, span
}

// --- Request Spans ---

// StartRequestSpan starts a span for a request/reply round trip.
func (t *Tracer) StartRequestSpan(ctx context.Context, topic, correlationID string) (context.Context, trace.Span) {
	ctx, span := t.tracer.Start(ctx, "bus.request", trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(
		attribute.String("bus.topic", topic),
		attribute.String("bus.correlation_id", correlationID),
	)
	return ctx, span
}

// EndSpan ends a span, recording err as its status when non-nil.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// --- Context Propagation ---

// InjectHeaders injects trace context into message headers so a
// bridged message carries its trace across the serialization boundary.
// The headers map must be non-nil.
func InjectHeaders(ctx context.Context, headers map[string]string) {
	otel.GetTextMapPropagator().Inject(ctx, propagation.MapCarrier(headers))
}

// ExtractHeaders extracts trace context from message headers.
func ExtractHeaders(ctx context.Context, headers map[string]string) context.Context {
	if headers == nil {
		return ctx
	}
	return otel.GetTextMapPropagator().Extract(ctx, propagation.MapCarrier(headers))
}
