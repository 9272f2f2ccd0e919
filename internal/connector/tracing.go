package connector

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// TracerWrapper wraps an OpenTelemetry tracer so callers never need to
// nil-check the injected provider. When no provider is configured the wrapper
// falls back to the noop implementation, so span creation stays safe and
// essentially free with tracing disabled.
type TracerWrapper struct {
	tracer trace.Tracer
}

// NewTracerWrapper creates a wrapper around the given TracerProvider.
// A nil provider selects the noop tracer.
//
// Parameters:
//   - tp: The TracerProvider to create tracers from (may be nil)
//   - name: Instrumentation scope name (e.g., "prometheus_connector/http-client")
//
// Returns a TracerWrapper that is always safe to use.
func NewTracerWrapper(tp trace.TracerProvider, name string) *TracerWrapper {
	if tp == nil {
		tp = noop.NewTracerProvider()
	}
	return &TracerWrapper{tracer: tp.Tracer(name)}
}

// StartSpan starts a new span with the given operation name and span kind.
// With the noop tracer the returned span discards everything recorded on it.
//
// Example:
//
//	ctx, span := c.tracing.StartSpan(ctx, "http.request", trace.SpanKindClient)
//	defer span.End()
func (t *TracerWrapper) StartSpan(ctx context.Context, operation string, kind trace.SpanKind) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, operation, trace.WithSpanKind(kind))
}
