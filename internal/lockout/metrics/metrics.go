package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the attempt ledger collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	FailuresRecorded *prometheus.CounterVec
	LockTransitions  *prometheus.CounterVec
	LockedRejections *prometheus.CounterVec
	LazyExpiries     *prometheus.CounterVec
	Clears           *prometheus.CounterVec
	StoreErrors      *prometheus.CounterVec

	SweepRuns     *prometheus.CounterVec
	SweepReset    prometheus.Counter
	SweepDuration prometheus.Histogram
}

// New registers the collectors on reg. Pass prometheus.NewRegistry() in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		FailuresRecorded: f.NewCounterVec(prometheus.CounterOpts{
			Name: "lockgate_lockout_failures_recorded_total",
			Help: "Failed attempts recorded, by event kind and axis",
		}, []string{"kind", "axis"}),
		LockTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "lockgate_lockout_transitions_total",
			Help: "Subjects moved into a lock, by event kind and axis",
		}, []string{"kind", "axis"}),
		LockedRejections: f.NewCounterVec(prometheus.CounterOpts{
			Name: "lockgate_lockout_locked_checks_total",
			Help: "Lock checks that found the subject locked",
		}, []string{"kind", "axis"}),
		LazyExpiries: f.NewCounterVec(prometheus.CounterOpts{
			Name: "lockgate_lockout_lazy_expiries_total",
			Help: "Expired locks reset on read",
		}, []string{"kind", "axis"}),
		Clears: f.NewCounterVec(prometheus.CounterOpts{
			Name: "lockgate_lockout_clears_total",
			Help: "Records cleared by success or administrative action",
		}, []string{"kind", "reason"}),
		StoreErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "lockgate_lockout_store_errors_total",
			Help: "Ledger storage failures by operation",
		}, []string{"op"}),
		SweepRuns: f.NewCounterVec(prometheus.CounterOpts{
			Name: "lockgate_lockout_sweep_runs_total",
			Help: "Expired-lock sweep runs by status",
		}, []string{"status"}),
		SweepReset: f.NewCounter(prometheus.CounterOpts{
			Name: "lockgate_lockout_sweep_reset_total",
			Help: "Records reset by the expired-lock sweep",
		}),
		SweepDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "lockgate_lockout_sweep_duration_seconds",
			Help:    "Duration of expired-lock sweep runs",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) IncFailure(kind, axis string) {
	if m == nil {
		return
	}
	m.FailuresRecorded.WithLabelValues(kind, axis).Inc()
}

func (m *Metrics) IncTransition(kind, axis string) {
	if m == nil {
		return
	}
	m.LockTransitions.WithLabelValues(kind, axis).Inc()
}

func (m *Metrics) IncLocked(kind, axis string) {
	if m == nil {
		return
	}
	m.LockedRejections.WithLabelValues(kind, axis).Inc()
}

func (m *Metrics) IncLazyExpiry(kind, axis string) {
	if m == nil {
		return
	}
	m.LazyExpiries.WithLabelValues(kind, axis).Inc()
}

func (m *Metrics) IncClear(kind, reason string) {
	if m == nil {
		return
	}
	m.Clears.WithLabelValues(kind, reason).Inc()
}

func (m *Metrics) IncStoreError(op string) {
	if m == nil {
		return
	}
	m.StoreErrors.WithLabelValues(op).Inc()
}

func (m *Metrics) ObserveSweep(status string, reset int, seconds float64) {
	if m == nil {
		return
	}
	m.SweepRuns.WithLabelValues(status).Inc()
	m.SweepReset.Add(float64(reset))
	m.SweepDuration.Observe(seconds)
}
