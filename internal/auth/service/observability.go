package service

import (
	"context"
	"errors"

	"lockgate/internal/auth/device"
	"lockgate/internal/auth/models"
	lmodels "lockgate/internal/lockout/models"
	"lockgate/internal/notify"
	"lockgate/internal/platform/tracer"
	dErrors "lockgate/pkg/domain-errors"
	"lockgate/pkg/platform/audit"
	"lockgate/pkg/platform/validation"
	"lockgate/pkg/requestcontext"
)

// Client-facing messages stay generic so responses never reveal which
// accounts exist or which axis tripped a lock.
const (
	msgInvalidCredentials = "invalid credentials"
	msgInvalidLink        = "invalid or expired link"
	msgLocked             = "account or origin temporarily restricted; try later"
	msgInternal           = "internal error"

	unknownOrigin = "unknown"
)

func errInvalidCredentials() error {
	return dErrors.New(dErrors.CodeUnauthorized, msgInvalidCredentials)
}

func errLocked() error {
	return dErrors.New(dErrors.CodeLocked, msgLocked)
}

func errInvalidToken() error {
	return dErrors.New(dErrors.CodeInvalidToken, "invalid token")
}

func errInvalidLink() error {
	return dErrors.New(dErrors.CodeInvalidToken, msgInvalidLink)
}

// origin is the client network origin from the request context.
func origin(ctx context.Context) string {
	ip := requestcontext.ClientIP(ctx)
	if ip == "" {
		return unknownOrigin
	}
	return validation.Truncate(ip, validation.MaxOriginLength)
}

// failClosed logs a dependency failure and converts it into an internal error.
// Callers deny the operation rather than proceed without lockout state.
func (s *Service) failClosed(ctx context.Context, op string, err error) error {
	s.logger.ErrorContext(ctx, "auth dependency failed",
		"operation", op,
		"error", err,
		"request_id", requestcontext.RequestID(ctx),
	)
	return dErrors.Wrap(err, dErrors.CodeInternal, msgInternal)
}

func (s *Service) logAudit(ctx context.Context, event audit.AuditEvent, e audit.Event) {
	e.Timestamp = s.clock(ctx)
	if e.Device == "" {
		e.Device = device.FromContext(ctx)
	}
	s.audit.Log(ctx, event, e)
}

// anyLocked reports whether any of the subjects is locked for kind.
func (s *Service) anyLocked(ctx context.Context, kind lmodels.EventKind, subjects ...lmodels.Subject) (bool, error) {
	for _, subject := range subjects {
		locked, err := s.ledger.IsLocked(ctx, subject, kind)
		if err != nil {
			return false, err
		}
		if locked {
			return true, nil
		}
	}
	return false, nil
}

// attempt is one failure counted against a request before the credential it
// guards is checked. Only a request whose own increment found every subject
// unlocked may go on to verify; the rest are turned away as locked. The
// outcome of a transition is reported once the caller knows the attempt
// really failed.
type attempt struct {
	kind    lmodels.EventKind
	from    string
	account *models.Account
	onAcct  *lmodels.Outcome
	onOrig  *lmodels.Outcome
}

// countAttempt records kind against the account (when non-nil) and, with
// withOrigin, the origin. Both writes are attempted even if one fails.
func (s *Service) countAttempt(ctx context.Context, kind lmodels.EventKind, from string, account *models.Account, withOrigin bool) (*attempt, error) {
	a := &attempt{kind: kind, from: from, account: account}
	var accountErr, originErr error
	if account != nil {
		a.onAcct, accountErr = s.ledger.RecordFailure(ctx, lmodels.AccountSubject(account.ID.String()), kind, from)
	}
	if withOrigin {
		a.onOrig, originErr = s.ledger.RecordFailure(ctx, lmodels.OriginSubject(from), kind, from)
	}
	if err := errors.Join(accountErr, originErr); err != nil {
		return nil, err
	}
	return a, nil
}

// blocked reports a subject that was already locked when this attempt was
// counted.
func (a *attempt) blocked() bool {
	for _, o := range []*lmodels.Outcome{a.onAcct, a.onOrig} {
		if o != nil && o.Locked && !o.Transitioned {
			return true
		}
	}
	return false
}

// reportLocks raises one notification per axis this attempt moved into a lock.
func (s *Service) reportLocks(ctx context.Context, a *attempt) {
	if a.onAcct != nil && a.onAcct.Transitioned {
		account := a.account
		s.notifier.NotifyAccountLocked(ctx, notify.AccountLocked{
			AccountID: account.ID.String(),
			Email:     account.Email,
			Role:      account.Role,
			Kind:      string(a.kind),
			Until:     a.onAcct.Until,
			Origin:    a.from,
			At:        s.clock(ctx),
		})
		s.logAudit(ctx, audit.EventAccountLocked, audit.Event{
			SubjectID: account.ID.String(),
			Email:     account.Email,
			Role:      account.Role,
			Decision:  "locked",
			Reason:    string(a.kind),
		})
		s.annotateLock(ctx, lmodels.AxisAccount, a.kind)
	}
	if a.onOrig != nil && a.onOrig.Transitioned {
		s.notifier.NotifyOriginLocked(ctx, notify.OriginLocked{
			Origin: a.from,
			Kind:   string(a.kind),
			Until:  a.onOrig.Until,
			At:     s.clock(ctx),
		})
		s.logAudit(ctx, audit.EventOriginLocked, audit.Event{
			Origin:   a.from,
			Decision: "locked",
			Reason:   string(a.kind),
		})
		s.annotateLock(ctx, lmodels.AxisOrigin, a.kind)
	}
}

// clearAttempt resets every subject the attempt was counted against. A lock
// the attempt itself engaged goes with it, unreported.
func (s *Service) clearAttempt(ctx context.Context, a *attempt) error {
	var accountErr, originErr error
	if a.onAcct != nil {
		accountErr = s.ledger.RecordSuccess(ctx, lmodels.AccountSubject(a.account.ID.String()), a.kind)
	}
	if a.onOrig != nil {
		originErr = s.ledger.RecordSuccess(ctx, lmodels.OriginSubject(a.from), a.kind)
	}
	return errors.Join(accountErr, originErr)
}

func (s *Service) annotateLock(ctx context.Context, axis lmodels.Axis, kind lmodels.EventKind) {
	span := tracer.SpanFromContext(ctx)
	span.AddEvent(tracer.EventLockTransition,
		tracer.String(tracer.AttrAxis, string(axis)),
		tracer.String(tracer.AttrKind, string(kind)),
	)
}
