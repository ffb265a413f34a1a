// Package requesttime pins one "now" per HTTP request, so the ledger update,
// token claims and audit events of a single login agree on the time.
package requesttime

import (
	"context"
	"net/http"
	"time"
)

type requestTimeKey struct{}

// Clock resolves the current time for a context. Services hold a Clock so
// tests can swap in a controllable source.
type Clock func(ctx context.Context) time.Time

// Fixed returns a Clock that always answers t.
func Fixed(t time.Time) Clock {
	t = normalize(t)
	return func(context.Context) time.Time { return t }
}

// Middleware stamps the request context with the time it arrived.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(WithTime(r.Context(), time.Now())))
	})
}

// Now returns the request-scoped time, or the wall clock outside a request
// (sweeper, seeder, CLI). Either way the result is UTC without a monotonic
// reading, so it compares equal after a round trip through Postgres or Redis.
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(requestTimeKey{}).(time.Time); ok {
		return t
	}
	return normalize(time.Now())
}

// WithTime pins t as the request time.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, requestTimeKey{}, normalize(t))
}

func normalize(t time.Time) time.Time {
	return t.UTC().Round(0)
}
