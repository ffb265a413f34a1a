// Package admin guards operator endpoints (lockout clears, account deletion)
// behind a shared admin token.
package admin

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	dErrors "lockgate/pkg/domain-errors"
	"lockgate/pkg/platform/httputil"
	"lockgate/pkg/requestcontext"
)

const (
	tokenHeader = "X-Admin-Token"
	actorHeader = "X-Admin-Actor-ID"

	// maxActorLength bounds the operator id copied into audit events.
	maxActorLength = 64
)

type actorKey struct{}

// GetAdminActorID returns the operator id supplied with an admin request,
// or "" when none was sent.
func GetAdminActorID(ctx context.Context) string {
	actor, _ := ctx.Value(actorKey{}).(string)
	return actor
}

// WithAdminActorID stores an operator id, as RequireAdminToken does.
func WithAdminActorID(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// RequireAdminToken rejects requests whose X-Admin-Token does not match
// expectedToken with 401. An empty expectedToken disables the admin surface.
// The optional X-Admin-Actor-ID is trimmed, capped and recorded for audit.
func RequireAdminToken(expectedToken string, logger *slog.Logger) func(http.Handler) http.Handler {
	expected := []byte(expectedToken)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if len(expected) == 0 || subtle.ConstantTimeCompare([]byte(r.Header.Get(tokenHeader)), expected) != 1 {
				logger.WarnContext(ctx, "admin token rejected",
					"path", r.URL.Path,
					"origin", requestcontext.ClientIP(ctx),
					"request_id", requestcontext.RequestID(ctx),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "admin token required"))
				return
			}

			actor := strings.TrimSpace(r.Header.Get(actorHeader))
			if len(actor) > maxActorLength {
				actor = actor[:maxActorLength]
			}
			if actor != "" {
				ctx = WithAdminActorID(ctx, actor)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
