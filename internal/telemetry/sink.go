package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Span kinds, named after the run types used for LLM tracing.
const (
	KindChain     = "chain"
	KindLLM       = "llm"
	KindEmbedding = "embedding"
	KindRetriever = "retriever"
	KindTool      = "tool"
	KindPrompt    = "prompt"
)

const instrumentationName = "github.com/Chative-core-poc-v1/shopping-agent"

// Sink records spans. It never blocks or fails the caller.
type Sink struct {
	tracer trace.Tracer
}

// NewSink creates a Sink on tp; a nil tp yields a noop sink.
func NewSink(tp trace.TracerProvider) *Sink {
	if tp == nil {
		tp = noop.NewTracerProvider()
	}
	return &Sink{tracer: tp.Tracer(instrumentationName)}
}

// Span is an open span created by Start.
type Span struct {
	span trace.Span
}

// Start opens a span of the given kind as a child of the span on ctx.
func (s *Sink) Start(ctx context.Context, name, kind string) (context.Context, *Span) {
	if s == nil {
		return ctx, &Span{}
	}
	ctx, span := s.tracer.Start(ctx, name, trace.WithAttributes(attribute.String("run_type", kind)))
	return ctx, &Span{span: span}
}

// End closes the span, attaching metadata and marking err when present.
func (sp *Span) End(err error, metadata map[string]any) {
	if sp == nil || sp.span == nil {
		return
	}
	sp.span.SetAttributes(toAttributes(metadata)...)
	if err != nil {
		sp.span.RecordError(err)
		sp.span.SetStatus(codes.Error, err.Error())
	}
	sp.span.End()
}

// RecordSpan emits a completed span carrying metadata.
func (s *Sink) RecordSpan(ctx context.Context, name, kind string, metadata map[string]any) {
	_, sp := s.Start(ctx, name, kind)
	sp.End(nil, metadata)
}

// TraceID returns the hex trace id of the span on ctx, or "" when ctx is not
// being sampled.
func TraceID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}

func toAttributes(metadata map[string]any) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(metadata))
	for k, v := range metadata {
		switch t := v.(type) {
		case string:
			attrs = append(attrs, attribute.String(k, t))
		case int:
			attrs = append(attrs, attribute.Int(k, t))
		case int64:
			attrs = append(attrs, attribute.Int64(k, t))
		case float64:
			attrs = append(attrs, attribute.Float64(k, t))
		case bool:
			attrs = append(attrs, attribute.Bool(k, t))
		case []string:
			attrs = append(attrs, attribute.StringSlice(k, t))
		default:
			attrs = append(attrs, attribute.String(k, fmt.Sprint(t)))
		}
	}
	return attrs
}
