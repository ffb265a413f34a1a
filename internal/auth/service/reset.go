package service

import (
	"context"
	"errors"

	"lockgate/internal/auth/models"
	lmodels "lockgate/internal/lockout/models"
	"lockgate/internal/notify"
	"lockgate/internal/platform/tracer"
	dErrors "lockgate/pkg/domain-errors"
	"lockgate/pkg/platform/audit"
	"lockgate/pkg/platform/sentinel"
	"lockgate/pkg/secrets"
)

// RequestPasswordReset starts the reset flow for email. The caller always
// sees the same result whether or not the account exists or a lock applies;
// only dependency failures surface as errors.
//
// Every request counts RESET_REQUEST_UNVERIFIED against the origin and, when
// the account exists, the account. While either is locked the request is
// dropped without issuing a token.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) (err error) {
	email = models.NormalizeEmail(email)
	from := origin(ctx)
	kind := lmodels.KindResetRequestUnverified

	ctx, span := s.tracer.Start(ctx, tracer.SpanResetRequest,
		tracer.String(tracer.AttrEmailHash, tracer.HashEmail(email)),
	)
	outcome := "internal_error"
	defer func() {
		span.SetAttributes(tracer.String(tracer.AttrOutcome, outcome))
		span.End(err)
		s.metrics.IncResetRequest(outcome)
	}()

	account, err := s.users.FindByEmail(ctx, email)
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		account = nil
	case err != nil:
		return s.failClosed(ctx, "reset_request.find_account", err)
	}

	subjects := []lmodels.Subject{lmodels.OriginSubject(from)}
	if account != nil {
		subjects = append(subjects, lmodels.AccountSubject(account.ID.String()))
	}
	locked, err := s.anyLocked(ctx, kind, subjects...)
	if err != nil {
		return s.failClosed(ctx, "reset_request.lock_check", err)
	}
	if locked {
		outcome = "dropped"
		s.logAudit(ctx, audit.EventResetRequestDropped, audit.Event{
			SubjectID: subjectID(account),
			Email:     email,
			Decision:  "denied",
			Reason:    "locked",
		})
		return nil
	}

	attempt, err := s.countAttempt(ctx, kind, from, account, true)
	if err != nil {
		return s.failClosed(ctx, "reset_request.record", err)
	}
	s.reportLocks(ctx, attempt)
	if attempt.blocked() {
		outcome = "dropped"
		s.logAudit(ctx, audit.EventResetRequestDropped, audit.Event{
			SubjectID: subjectID(account),
			Email:     email,
			Decision:  "denied",
			Reason:    "locked by concurrent request",
		})
		return nil
	}

	if account == nil {
		outcome = "unknown_account"
		s.logAudit(ctx, audit.EventResetRequested, audit.Event{Email: email, Decision: "ignored", Reason: "unknown account"})
		return nil
	}

	issued, err := s.resets.Issue(ctx, account.ID)
	if err != nil {
		return s.failClosed(ctx, "reset_request.issue", err)
	}
	s.notifier.NotifyResetRequested(ctx, notify.ResetRequested{
		AccountID: account.ID.String(),
		Email:     account.Email,
		Token:     issued.Token,
		ExpiresAt: issued.ExpiresAt,
	})

	outcome = "issued"
	s.logAudit(ctx, audit.EventResetRequested, audit.Event{
		SubjectID: account.ID.String(),
		Email:     account.Email,
		Decision:  "granted",
	})
	return nil
}

// ResetPassword completes the reset flow. Unknown, expired and orphaned
// tokens all count RESET_TOKEN_INVALID against the origin and return the same
// generic error. The token is redeemed before the password is written, so a
// link completes at most one reset even under concurrent use.
func (s *Service) ResetPassword(ctx context.Context, rawToken, newPassword string) (err error) {
	from := origin(ctx)
	kind := lmodels.KindResetTokenInvalid
	originSubject := lmodels.OriginSubject(from)

	ctx, span := s.tracer.Start(ctx, tracer.SpanResetPassword)
	defer func() { span.End(err) }()

	locked, err := s.ledger.IsLocked(ctx, originSubject, kind)
	if err != nil {
		return s.failClosed(ctx, "reset.origin_lock", err)
	}
	if locked {
		s.logAudit(ctx, audit.EventResetTokenInvalid, audit.Event{Decision: "denied", Reason: "origin locked"})
		return errLocked()
	}

	attempt, err := s.countAttempt(ctx, kind, from, nil, true)
	if err != nil {
		return s.failClosed(ctx, "reset.record_attempt", err)
	}
	if attempt.blocked() {
		s.reportLocks(ctx, attempt)
		s.logAudit(ctx, audit.EventResetTokenInvalid, audit.Event{Decision: "denied", Reason: "origin locked"})
		return errLocked()
	}

	account, reason, err := s.redeemResetToken(ctx, rawToken)
	if err != nil {
		return s.failClosed(ctx, "reset.redeem", err)
	}
	if account == nil {
		s.reportLocks(ctx, attempt)
		s.logAudit(ctx, audit.EventResetTokenInvalid, audit.Event{Decision: "denied", Reason: reason})
		return errInvalidLink()
	}

	hash, err := secrets.HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return s.failClosed(ctx, "reset.hash", err)
	}
	account.PasswordHash = hash
	account.UpdatedAt = s.clock(ctx)
	if err := s.users.Save(ctx, account); err != nil {
		return s.failClosed(ctx, "reset.save", err)
	}

	accountSubject := lmodels.AccountSubject(account.ID.String())
	if err := errors.Join(
		s.clearAttempt(ctx, attempt),
		s.ledger.RecordSuccess(ctx, accountSubject, lmodels.KindResetRequestUnverified),
		s.ledger.RecordSuccess(ctx, accountSubject, lmodels.KindLoginFailure),
	); err != nil {
		return s.failClosed(ctx, "reset.record_success", err)
	}

	s.logAudit(ctx, audit.EventPasswordReset, audit.Event{
		SubjectID: account.ID.String(),
		Email:     account.Email,
		Decision:  "granted",
	})
	return nil
}

// redeemResetToken takes the token out of the store and returns its account
// when it was still live. A nil account with a reason means the token was
// unusable, already redeemed included; err is reserved for dependency
// failures.
func (s *Service) redeemResetToken(ctx context.Context, rawToken string) (*models.Account, string, error) {
	rt, err := s.resets.Redeem(ctx, rawToken)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			return nil, "unknown token", nil
		}
		return nil, "", err
	}
	if rt.IsExpired(s.clock(ctx)) {
		return nil, "expired token", nil
	}
	account, err := s.users.FindByID(ctx, rt.AccountID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, "account missing", nil
		}
		return nil, "", err
	}
	return account, "", nil
}

func subjectID(account *models.Account) string {
	if account == nil {
		return ""
	}
	return account.ID.String()
}
