// Package metrics instruments the audit publisher.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Event results recorded on lockgate_audit_events_total.
const (
	ResultEnqueued  = "enqueued"
	ResultDropped   = "dropped"
	ResultPersisted = "persisted"
	ResultFailed    = "failed"
)

// Metrics tracks audit events per action (login_failed, account_locked, ...)
// and result. A nil *Metrics records nothing.
type Metrics struct {
	Events          *prometheus.CounterVec
	QueueDepth      prometheus.Gauge
	PersistDuration prometheus.Histogram
}

// New registers the audit collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Events: f.NewCounterVec(prometheus.CounterOpts{
			Name: "lockgate_audit_events_total",
			Help: "Audit events by action and result (enqueued, dropped, persisted, failed)",
		}, []string{"action", "result"}),
		QueueDepth: f.NewGauge(prometheus.GaugeOpts{
			Name: "lockgate_audit_queue_depth",
			Help: "Audit events waiting for the async writer",
		}),
		PersistDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "lockgate_audit_persist_duration_seconds",
			Help:    "Time to append one audit event to the store",
			Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5, 1},
		}),
	}
}

// Enqueued counts an event accepted into the async buffer.
func (m *Metrics) Enqueued(action string) {
	if m == nil {
		return
	}
	m.QueueDepth.Inc()
	m.Events.WithLabelValues(action, ResultEnqueued).Inc()
}

// Dequeued marks an event taken off the buffer by the writer.
func (m *Metrics) Dequeued() {
	if m != nil {
		m.QueueDepth.Dec()
	}
}

// Dropped counts an event discarded because the buffer was full.
func (m *Metrics) Dropped(action string) {
	if m != nil {
		m.Events.WithLabelValues(action, ResultDropped).Inc()
	}
}

// Persisted records the outcome and latency of one store append.
func (m *Metrics) Persisted(action string, seconds float64, err error) {
	if m == nil {
		return
	}
	m.PersistDuration.Observe(seconds)
	result := ResultPersisted
	if err != nil {
		result = ResultFailed
	}
	m.Events.WithLabelValues(action, result).Inc()
}
