// Package auth provides bearer-token middleware for authenticated endpoints.
package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	dErrors "lockgate/pkg/domain-errors"
	"lockgate/pkg/platform/httputil"
	"lockgate/pkg/requestcontext"
)

// AccessTokenVerifier validates an access token and returns its claims.
type AccessTokenVerifier interface {
	VerifyAccess(ctx context.Context, token string) (*Claims, error)
}

// Claims is the subset of access-token claims the middleware needs.
type Claims struct {
	Subject string
	Role    string
	JTI     string
}

const (
	msgMissingToken = "Missing or invalid Authorization header"
	msgBadToken     = "Invalid or expired token"
)

// bearerToken extracts the credential from an Authorization header. The
// scheme compares case-insensitively.
func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// RequireAuth verifies the bearer access token and stores the principal in
// the request context. Every rejection is a 401 that does not say why.
func RequireAuth(verifier AccessTokenVerifier, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			reject := func(reason, msg string, err error) {
				logger.WarnContext(ctx, "bearer token rejected",
					"reason", reason,
					"error", err,
					"origin", requestcontext.ClientIP(ctx),
					"request_id", requestcontext.RequestID(ctx),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, msg))
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				reject("missing", msgMissingToken, nil)
				return
			}

			claims, err := verifier.VerifyAccess(ctx, token)
			switch {
			case err != nil:
				reject("invalid", msgBadToken, err)
				return
			case claims == nil || claims.Subject == "":
				reject("no_subject", msgBadToken, nil)
				return
			}

			ctx = requestcontext.WithPrincipal(ctx, requestcontext.Principal{
				Subject: claims.Subject,
				Role:    claims.Role,
				TokenID: claims.JTI,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
