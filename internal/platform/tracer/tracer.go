// Package tracer is a small tracing abstraction over OpenTelemetry. Services
// hold a Tracer: OTelTracer in production, NoopTracer by default and Recorder
// in tests.
package tracer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// Span represents an active trace span. End must be called exactly once.
type Span interface {
	// End completes the span. A non-nil err marks it failed.
	End(err error)
	SetAttributes(attrs ...Attribute)
	AddEvent(name string, attrs ...Attribute)
}

// Tracer creates spans. Implementations must be safe for concurrent use.
type Tracer interface {
	Start(ctx context.Context, name string, attrs ...Attribute) (context.Context, Span)
}

type spanKey struct{}

// ContextWithSpan returns ctx carrying span.
func ContextWithSpan(ctx context.Context, span Span) context.Context {
	return context.WithValue(ctx, spanKey{}, span)
}

// SpanFromContext returns the span started by the nearest Start call, or a
// no-op span when there is none.
func SpanFromContext(ctx context.Context) Span {
	if span, ok := ctx.Value(spanKey{}).(Span); ok {
		return span
	}
	return noopSpan{}
}

// Attribute is a key-value pair attached to spans.
type Attribute struct {
	Key   string
	Value any
}

func String(key, value string) Attribute {
	return Attribute{Key: key, Value: value}
}

func Bool(key string, value bool) Attribute {
	return Attribute{Key: key, Value: value}
}

func Int64(key string, value int64) Attribute {
	return Attribute{Key: key, Value: value}
}

func Float64(key string, value float64) Attribute {
	return Attribute{Key: key, Value: value}
}

// Duration records value in milliseconds.
func Duration(key string, value time.Duration) Attribute {
	return Attribute{Key: key, Value: value.Milliseconds()}
}

// HashEmail returns a short SHA-256 prefix of a normalized email so spans can
// be correlated without carrying the address.
func HashEmail(email string) string {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(email))
	return hex.EncodeToString(sum[:8])
}

// Span names used by the authentication orchestrator.
const (
	SpanLogin          = "auth.login"
	SpanRefresh        = "auth.refresh"
	SpanResetRequest   = "auth.password_reset_request"
	SpanResetPassword  = "auth.password_reset"
	SpanChangePassword = "auth.password_change"
	SpanDeleteAccount  = "auth.account_delete"
	SpanCreateAccount  = "auth.account_create"
)

// Attribute keys.
const (
	AttrEmailHash = "email.hash"
	AttrOutcome   = "outcome"
	AttrAxis      = "lockout.axis"
	AttrKind      = "lockout.kind"
	AttrErrorCode = "error.code"
)

// Event names.
const (
	EventLockTransition = "lockout.transition"
)
