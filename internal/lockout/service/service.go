// Package service is the attempt ledger: it counts failed attempts per
// (event kind, subject), applies the lockout policy and reports lock state.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"lockgate/internal/lockout/metrics"
	"lockgate/internal/lockout/models"
	"lockgate/internal/lockout/policy"
	dErrors "lockgate/pkg/domain-errors"
	"lockgate/pkg/platform/audit"
	"lockgate/pkg/platform/middleware/requesttime"
)

// Store persists attempt records. RecordFailure must apply the increment and
// the threshold check atomically and report whether it made the lock transition.
// Get returns nil, nil when no record exists.
type Store interface {
	RecordFailure(ctx context.Context, key models.Key, rule models.Rule, origin string, now time.Time) (*models.AttemptRecord, bool, error)
	Get(ctx context.Context, key models.Key) (*models.AttemptRecord, error)
	Reset(ctx context.Context, key models.Key) error
	ResetIfExpired(ctx context.Context, key models.Key, now time.Time) (bool, error)
	ResetExpired(ctx context.Context, now time.Time) (int, error)
}

type Ledger struct {
	store   Store
	policy  *policy.Table
	clock   requesttime.Clock
	logger  *slog.Logger
	auditor *audit.Logger
	metrics *metrics.Metrics
}

type Option func(*Ledger)

func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		if logger != nil {
			l.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Ledger) {
		l.metrics = m
	}
}

func WithPolicy(t *policy.Table) Option {
	return func(l *Ledger) {
		if t != nil {
			l.policy = t
		}
	}
}

func WithClock(c requesttime.Clock) Option {
	return func(l *Ledger) {
		if c != nil {
			l.clock = c
		}
	}
}

// WithAuditLogger records administrative clears.
func WithAuditLogger(a *audit.Logger) Option {
	return func(l *Ledger) {
		l.auditor = a
	}
}

func New(store Store, opts ...Option) (*Ledger, error) {
	if store == nil {
		return nil, fmt.Errorf("attempt store is required")
	}
	l := &Ledger{
		store:  store,
		policy: policy.Default(),
		clock:  requesttime.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Policy exposes the table the ledger applies.
func (l *Ledger) Policy() *policy.Table {
	return l.policy
}

// RecordFailure counts one failed attempt. The outcome says whether the subject
// is now locked and whether this call made the transition.
func (l *Ledger) RecordFailure(ctx context.Context, subject models.Subject, kind models.EventKind, origin string) (*models.Outcome, error) {
	if err := subject.Validate(); err != nil {
		return nil, err
	}
	now := l.clock(ctx)
	rule := l.policy.Lookup(kind, subject.Axis)
	key := models.NewKey(kind, subject)

	record, transitioned, err := l.store.RecordFailure(ctx, key, rule, origin, now)
	if err != nil {
		l.metrics.IncStoreError("record_failure")
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record attempt")
	}

	l.metrics.IncFailure(string(kind), string(subject.Axis))
	if transitioned {
		l.metrics.IncTransition(string(kind), string(subject.Axis))
		l.logger.InfoContext(ctx, "lockout engaged",
			"kind", kind,
			"axis", subject.Axis,
			"failed_count", record.FailedCount,
			"locked_until", record.LockedUntil,
		)
	}
	return models.NewOutcome(record, rule, now, transitioned), nil
}

// RecordSuccess resets the counter for subject and kind.
func (l *Ledger) RecordSuccess(ctx context.Context, subject models.Subject, kind models.EventKind) error {
	if err := l.store.Reset(ctx, models.NewKey(kind, subject)); err != nil {
		l.metrics.IncStoreError("reset")
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to reset attempts")
	}
	l.metrics.IncClear(string(kind), "success")
	return nil
}

// IsLocked reports an active lock. A lock found expired is reset on the way out.
func (l *Ledger) IsLocked(ctx context.Context, subject models.Subject, kind models.EventKind) (bool, error) {
	now := l.clock(ctx)
	key := models.NewKey(kind, subject)

	record, err := l.store.Get(ctx, key)
	if err != nil {
		l.metrics.IncStoreError("get")
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read attempts")
	}
	if record == nil {
		return false, nil
	}
	if record.IsLocked(now) {
		l.metrics.IncLocked(string(kind), string(subject.Axis))
		return true, nil
	}
	if record.LockExpired(now) {
		if _, err := l.clearIfExpired(ctx, key, now); err != nil {
			return false, err
		}
	}
	return false, nil
}

// ClearIfExpired resets the record when its lock has run out.
func (l *Ledger) ClearIfExpired(ctx context.Context, subject models.Subject, kind models.EventKind) (bool, error) {
	return l.clearIfExpired(ctx, models.NewKey(kind, subject), l.clock(ctx))
}

func (l *Ledger) clearIfExpired(ctx context.Context, key models.Key, now time.Time) (bool, error) {
	reset, err := l.store.ResetIfExpired(ctx, key, now)
	if err != nil {
		l.metrics.IncStoreError("reset_if_expired")
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to expire lock")
	}
	if reset {
		l.metrics.IncLazyExpiry(string(key.Kind), string(key.Subject.Axis))
	}
	return reset, nil
}

// Clear is the administrative unlock. It is audited with the acting operator.
func (l *Ledger) Clear(ctx context.Context, subject models.Subject, kind models.EventKind, actorID string) error {
	if err := subject.Validate(); err != nil {
		return err
	}
	if err := l.store.Reset(ctx, models.NewKey(kind, subject)); err != nil {
		l.metrics.IncStoreError("reset")
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to clear lockout")
	}
	l.metrics.IncClear(string(kind), "admin")

	e := audit.Event{
		Timestamp: l.clock(ctx),
		Decision:  "cleared",
		Reason:    string(kind),
		ActorID:   actorID,
	}
	if subject.Axis == models.AxisAccount {
		e.SubjectID = subject.Value
	} else {
		e.Origin = subject.Value
	}
	l.auditor.Log(ctx, audit.EventLockoutCleared, e)
	return nil
}

// Get returns the record as currently stored, or nil.
func (l *Ledger) Get(ctx context.Context, subject models.Subject, kind models.EventKind) (*models.AttemptRecord, error) {
	record, err := l.store.Get(ctx, models.NewKey(kind, subject))
	if err != nil {
		l.metrics.IncStoreError("get")
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read attempts")
	}
	return record, nil
}
