package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for authentication flows.
type Metrics struct {
	LoginAttempts     *prometheus.CounterVec
	TokensIssued      *prometheus.CounterVec
	TokenVerifyFailed *prometheus.CounterVec
	ResetRequests     *prometheus.CounterVec
	PasswordChanges   *prometheus.CounterVec
	LoginLatency      prometheus.Histogram

	Notifications        *prometheus.CounterVec
	NotificationsDropped *prometheus.CounterVec
}

// New creates and registers the authentication metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		LoginAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "lockgate_login_attempts_total",
			Help: "Login attempts by result",
		}, []string{"result"}),
		TokensIssued: f.NewCounterVec(prometheus.CounterOpts{
			Name: "lockgate_tokens_issued_total",
			Help: "Signed tokens issued by class",
		}, []string{"class"}),
		TokenVerifyFailed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "lockgate_token_verify_failures_total",
			Help: "Token verification failures by reason",
		}, []string{"reason"}),
		ResetRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "lockgate_reset_requests_total",
			Help: "Password reset requests by outcome",
		}, []string{"outcome"}),
		PasswordChanges: f.NewCounterVec(prometheus.CounterOpts{
			Name: "lockgate_password_changes_total",
			Help: "Password changes and resets by outcome",
		}, []string{"outcome"}),
		LoginLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "lockgate_login_duration_seconds",
			Help:    "Login orchestration latency in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		Notifications: f.NewCounterVec(prometheus.CounterOpts{
			Name: "lockgate_notifications_total",
			Help: "Notification deliveries by type, sink and result",
		}, []string{"type", "sink", "result"}),
		NotificationsDropped: f.NewCounterVec(prometheus.CounterOpts{
			Name: "lockgate_notifications_dropped_total",
			Help: "Notifications dropped because the dispatch queue was full",
		}, []string{"type"}),
	}
}

func (m *Metrics) IncLogin(result string) {
	if m == nil {
		return
	}
	m.LoginAttempts.WithLabelValues(result).Inc()
}

func (m *Metrics) IncTokenIssued(class string) {
	if m == nil {
		return
	}
	m.TokensIssued.WithLabelValues(class).Inc()
}

func (m *Metrics) IncTokenVerifyFailed(reason string) {
	if m == nil {
		return
	}
	m.TokenVerifyFailed.WithLabelValues(reason).Inc()
}

func (m *Metrics) IncResetRequest(outcome string) {
	if m == nil {
		return
	}
	m.ResetRequests.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncPasswordChange(outcome string) {
	if m == nil {
		return
	}
	m.PasswordChanges.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveLogin(seconds float64) {
	if m == nil {
		return
	}
	m.LoginLatency.Observe(seconds)
}

func (m *Metrics) IncNotification(typ, sink, result string) {
	if m == nil {
		return
	}
	m.Notifications.WithLabelValues(typ, sink, result).Inc()
}

func (m *Metrics) IncNotificationDropped(typ string) {
	if m == nil {
		return
	}
	m.NotificationsDropped.WithLabelValues(typ).Inc()
}
