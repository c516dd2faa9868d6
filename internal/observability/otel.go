package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// OtelFactory is a SpanFactory backed by an OpenTelemetry TracerProvider,
// the same dependency (go.opentelemetry.io/otel + .../otel/sdk) the
// AltairaLabs-PromptKit and ManuGH-xg2g examples use for tracing.
type OtelFactory struct {
	tracer oteltrace.Tracer
}

// NewOtelFactory builds a factory from a caller-provided TracerProvider (a
// resource-configured one in production, sdktrace.NewTracerProvider() with no
// exporter in tests).
func NewOtelFactory(tp *sdktrace.TracerProvider, instrumentationName string) *OtelFactory {
	return &OtelFactory{tracer: tp.Tracer(instrumentationName)}
}

func (f *OtelFactory) CreateSpan(name string, parent Span) Span {
	ctx := context.Background()
	if p, ok := parent.(*otelSpan); ok && p != nil {
		ctx = p.ctx
	}
	ctx, span := f.tracer.Start(ctx, name)
	return &otelSpan{ctx: ctx, span: span}
}

type otelSpan struct {
	ctx  context.Context
	span oteltrace.Span
}

func (s *otelSpan) SetAttribute(key string, value any) {
	s.span.SetAttributes(toAttribute(key, value))
}

func (s *otelSpan) SetError(msg string) {
	s.span.SetStatus(codes.Error, msg)
}

func (s *otelSpan) SetSuccess() {
	s.span.SetStatus(codes.Ok, "")
}

func (s *otelSpan) RecordException(err error) {
	s.span.RecordError(err)
}

func (s *otelSpan) End() {
	s.span.End()
}

func toAttribute(key string, value any) attribute.KeyValue {
	switch v := value.(type) {
	case string:
		return attribute.String(key, v)
	case bool:
		return attribute.Bool(key, v)
	case int:
		return attribute.Int(key, v)
	case int64:
		return attribute.Int64(key, v)
	case uint64:
		return attribute.Int64(key, int64(v))
	case float64:
		return attribute.Float64(key, v)
	default:
		return attribute.String(key, fmt.Sprintf("%v", v))
	}
}
