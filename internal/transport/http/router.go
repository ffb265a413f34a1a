// Package httptransport composes the HTTP surface: middleware, domain
// handlers, health checks and the metrics endpoint.
package httptransport

import (
	"log/slog"
	"net/http"
	"net/netip"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	authHandler "lockgate/internal/auth/handler"
	lockoutHandler "lockgate/internal/lockout/handler"
	"lockgate/internal/platform/health"
	"lockgate/pkg/platform/middleware/admin"
	"lockgate/pkg/platform/middleware/auth"
	"lockgate/pkg/platform/middleware/metadata"
	"lockgate/pkg/platform/middleware/request"
	"lockgate/pkg/platform/middleware/requesttime"
	"lockgate/pkg/platform/validation"
)

const (
	requestTimeout = 30 * time.Second
)

// Deps are the collaborators the router mounts.
type Deps struct {
	Auth     *authHandler.Handler
	Lockout  *lockoutHandler.Handler
	Health   *health.Handler
	Verifier auth.AccessTokenVerifier

	AdminToken     string
	TrustedProxies []netip.Prefix

	// Registry backs /metrics and the HTTP request collectors. Nil disables both.
	Registry *prometheus.Registry
	Logger   *slog.Logger
}

// NewRouter wires all endpoints with the shared middleware stack.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	var httpMetrics *request.Metrics
	if d.Registry != nil {
		httpMetrics = request.NewMetrics(d.Registry)
	}

	r.Use(request.RequestID)
	r.Use(metadata.Origin(d.TrustedProxies))
	r.Use(request.Observe(d.Logger, httpMetrics))
	r.Use(request.Recovery(d.Logger))
	r.Use(requesttime.Middleware)
	r.Use(request.Timeout(requestTimeout))
	r.Use(request.BodyLimit(validation.MaxBodySize))
	r.Use(request.ContentTypeJSON)

	if d.Health != nil {
		d.Health.Register(r)
	}
	if d.Registry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.Registry, promhttp.HandlerOpts{Registry: d.Registry}))
	}

	d.Auth.Register(r)
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(d.Verifier, d.Logger))
		d.Auth.RegisterAuthenticated(r)
	})
	r.Group(func(r chi.Router) {
		r.Use(admin.RequireAdminToken(d.AdminToken, d.Logger))
		d.Auth.RegisterAdmin(r)
		if d.Lockout != nil {
			d.Lockout.RegisterAdmin(r)
		}
	})

	return r
}
