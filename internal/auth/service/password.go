package service

import (
	"context"
	"errors"

	"lockgate/internal/auth/models"
	lmodels "lockgate/internal/lockout/models"
	"lockgate/internal/platform/tracer"
	dErrors "lockgate/pkg/domain-errors"
	"lockgate/pkg/platform/audit"
	"lockgate/pkg/platform/sentinel"
	"lockgate/pkg/secrets"
)

// ChangePassword replaces the password of the authenticated account after
// checking the current one. Rejected attempts and completed changes are
// counted separately so repeated changes lock further ones. Each count is
// taken before the step it guards.
func (s *Service) ChangePassword(ctx context.Context, subjectEmail, currentPassword, newPassword string) (err error) {
	subjectEmail = models.NormalizeEmail(subjectEmail)
	from := origin(ctx)

	ctx, span := s.tracer.Start(ctx, tracer.SpanChangePassword,
		tracer.String(tracer.AttrEmailHash, tracer.HashEmail(subjectEmail)),
	)
	outcome := "internal_error"
	defer func() {
		span.SetAttributes(tracer.String(tracer.AttrOutcome, outcome))
		span.End(err)
		s.metrics.IncPasswordChange(outcome)
	}()

	account, err := s.users.FindByEmail(ctx, subjectEmail)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			outcome = "unknown_subject"
			return errInvalidToken()
		}
		return s.failClosed(ctx, "change.find_account", err)
	}
	subject := lmodels.AccountSubject(account.ID.String())

	for _, kind := range []lmodels.EventKind{lmodels.KindPasswordChangeRejected, lmodels.KindPasswordChangeCompleted} {
		locked, err := s.ledger.IsLocked(ctx, subject, kind)
		if err != nil {
			return s.failClosed(ctx, "change.lock_check", err)
		}
		if locked {
			outcome = "locked"
			s.rejectChangeLocked(ctx, account, kind)
			return errLocked()
		}
	}

	rejected, err := s.countAttempt(ctx, lmodels.KindPasswordChangeRejected, from, account, false)
	if err != nil {
		return s.failClosed(ctx, "change.record_attempt", err)
	}
	if rejected.blocked() {
		outcome = "locked"
		s.rejectChangeLocked(ctx, account, lmodels.KindPasswordChangeRejected)
		return errLocked()
	}

	if err := secrets.VerifyPassword(currentPassword, account.PasswordHash); err != nil {
		if !dErrors.HasCode(err, dErrors.CodeUnauthorized) {
			return s.failClosed(ctx, "change.verify_password", err)
		}
		s.reportLocks(ctx, rejected)
		outcome = "rejected"
		s.logAudit(ctx, audit.EventPasswordChangeRejected, audit.Event{
			SubjectID: account.ID.String(),
			Email:     account.Email,
			Decision:  "denied",
			Reason:    "bad current password",
		})
		return errInvalidCredentials()
	}
	if err := s.clearAttempt(ctx, rejected); err != nil {
		return s.failClosed(ctx, "change.record_success", err)
	}

	// The completion is counted before the new hash is written: a change
	// past the limit, or one whose count cannot be stored, never lands.
	completed, err := s.countAttempt(ctx, lmodels.KindPasswordChangeCompleted, from, account, false)
	if err != nil {
		return s.failClosed(ctx, "change.record_completion", err)
	}
	if completed.blocked() {
		outcome = "locked"
		s.rejectChangeLocked(ctx, account, lmodels.KindPasswordChangeCompleted)
		return errLocked()
	}

	hash, err := secrets.HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return s.failClosed(ctx, "change.hash", err)
	}
	account.PasswordHash = hash
	account.UpdatedAt = s.clock(ctx)
	if err := s.users.Save(ctx, account); err != nil {
		return s.failClosed(ctx, "change.save", err)
	}
	s.reportLocks(ctx, completed)

	// Outstanding reset links predate the new password.
	if err := s.resets.DeleteForAccount(ctx, account.ID); err != nil {
		return s.failClosed(ctx, "change.revoke_reset_tokens", err)
	}

	outcome = "changed"
	s.logAudit(ctx, audit.EventPasswordChanged, audit.Event{
		SubjectID: account.ID.String(),
		Email:     account.Email,
		Decision:  "granted",
	})
	return nil
}

func (s *Service) rejectChangeLocked(ctx context.Context, account *models.Account, kind lmodels.EventKind) {
	s.logAudit(ctx, audit.EventPasswordChangeRejected, audit.Event{
		SubjectID: account.ID.String(),
		Email:     account.Email,
		Decision:  "denied",
		Reason:    string(kind) + " locked",
	})
}
