package tracer

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	dErrors "lockgate/pkg/domain-errors"
)

// InstrumentationName is the OpenTelemetry scope lockgate spans are created under.
const InstrumentationName = "lockgate"

// OTelTracer adapts an OpenTelemetry tracer to Tracer.
type OTelTracer struct {
	tracer trace.Tracer
}

// OTelOption configures the OTelTracer.
type OTelOption func(*OTelTracer)

// WithOTelTracer injects a preconfigured OpenTelemetry tracer.
func WithOTelTracer(t trace.Tracer) OTelOption {
	return func(o *OTelTracer) {
		o.tracer = t
	}
}

// NewOTel returns a tracer on the global provider unless one is injected.
func NewOTel(opts ...OTelOption) *OTelTracer {
	t := &OTelTracer{}
	for _, opt := range opts {
		opt(t)
	}
	if t.tracer == nil {
		t.tracer = otel.Tracer(InstrumentationName)
	}
	return t
}

// Start opens an internal span and makes it the context's current span.
func (t *OTelTracer) Start(ctx context.Context, name string, attrs ...Attribute) (context.Context, Span) {
	ctx, span := t.tracer.Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(convert(attrs)...),
	)
	wrapped := &otelSpan{span: span}
	return ContextWithSpan(ctx, wrapped), wrapped
}

type otelSpan struct {
	span trace.Span
}

// End closes the span. Expected rejections (lockout, wrong credentials,
// invalid input) only tag the error code; anything else marks the span
// failed so it shows up in error views.
func (s *otelSpan) End(err error) {
	if err != nil {
		code := dErrors.CodeOf(err)
		s.span.SetAttributes(attribute.String(AttrErrorCode, string(code)))
		if !IsExpected(code) {
			s.span.RecordError(err)
			s.span.SetStatus(codes.Error, string(code))
		}
	}
	s.span.End()
}

func (s *otelSpan) SetAttributes(attrs ...Attribute) {
	s.span.SetAttributes(convert(attrs)...)
}

func (s *otelSpan) AddEvent(name string, attrs ...Attribute) {
	s.span.AddEvent(name, trace.WithAttributes(convert(attrs)...))
}

// IsExpected reports whether a failure with code is a normal outcome of
// authentication rather than a fault.
func IsExpected(code dErrors.Code) bool {
	switch code {
	case dErrors.CodeLocked, dErrors.CodeUnauthorized, dErrors.CodeInvalidToken,
		dErrors.CodeValidation, dErrors.CodeBadRequest, dErrors.CodeNotFound, dErrors.CodeConflict:
		return true
	default:
		return false
	}
}

func convert(attrs []Attribute) []attribute.KeyValue {
	if len(attrs) == 0 {
		return nil
	}
	out := make([]attribute.KeyValue, 0, len(attrs))
	for _, a := range attrs {
		key := attribute.Key(a.Key)
		switch v := a.Value.(type) {
		case string:
			out = append(out, key.String(v))
		case bool:
			out = append(out, key.Bool(v))
		case int64:
			out = append(out, key.Int64(v))
		case int:
			out = append(out, key.Int(v))
		case float64:
			out = append(out, key.Float64(v))
		}
	}
	return out
}

var (
	_ Tracer = (*OTelTracer)(nil)
	_ Span   = (*otelSpan)(nil)
)
