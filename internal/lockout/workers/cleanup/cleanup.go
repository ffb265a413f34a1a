// Package cleanup runs the optional expired-lock sweep. Lazy expiry on read
// stays the correctness path; the sweep only keeps stored state tidy.
package cleanup

import (
	"context"
	"log/slog"
	"time"

	"lockgate/internal/lockout/metrics"
	"lockgate/pkg/platform/middleware/requesttime"
)

// Result reports one sweep run.
type Result struct {
	Reset    int
	Duration time.Duration
}

type Store interface {
	ResetExpired(ctx context.Context, now time.Time) (int, error)
}

type Option func(*Sweeper)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Sweeper) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithInterval(interval time.Duration) Option {
	return func(s *Sweeper) {
		if interval > 0 {
			s.interval = interval
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Sweeper) {
		s.metrics = m
	}
}

func WithClock(c requesttime.Clock) Option {
	return func(s *Sweeper) {
		if c != nil {
			s.clock = c
		}
	}
}

type Sweeper struct {
	store    Store
	logger   *slog.Logger
	interval time.Duration
	metrics  *metrics.Metrics
	clock    requesttime.Clock
}

func New(store Store, opts ...Option) *Sweeper {
	s := &Sweeper{
		store:    store,
		logger:   slog.Default(),
		interval: 5 * time.Minute,
		clock:    requesttime.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start sweeps every interval until ctx is cancelled. Failed runs are logged
// and retried on the next tick.
func (s *Sweeper) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			res, err := s.RunOnce(ctx)
			if err != nil {
				s.logger.Error("lockout_sweep_failed", "error", err)
				continue
			}
			if res.Reset > 0 {
				s.logger.Info("lockout_sweep_completed",
					"records_reset", res.Reset,
					"duration_ms", res.Duration.Milliseconds(),
				)
			}
		case <-ctx.Done():
			s.logger.Info("lockout sweep worker stopping", "reason", ctx.Err())
			return ctx.Err()
		}
	}
}

// RunOnce resets every record whose lock has run out.
func (s *Sweeper) RunOnce(ctx context.Context) (*Result, error) {
	start := time.Now()
	n, err := s.store.ResetExpired(ctx, s.clock(ctx))
	duration := time.Since(start)
	if err != nil {
		s.metrics.ObserveSweep("error", 0, duration.Seconds())
		return nil, err
	}
	s.metrics.ObserveSweep("success", n, duration.Seconds())
	return &Result{Reset: n, Duration: duration}, nil
}
