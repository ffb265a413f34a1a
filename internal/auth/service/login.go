package service

import (
	"context"
	"errors"
	"time"

	"lockgate/internal/auth/models"
	lmodels "lockgate/internal/lockout/models"
	"lockgate/internal/platform/tracer"
	"lockgate/internal/token"
	dErrors "lockgate/pkg/domain-errors"
	"lockgate/pkg/platform/audit"
	"lockgate/pkg/platform/sentinel"
	"lockgate/pkg/secrets"
)

// Login verifies credentials and issues an access/refresh token pair.
//
// Both the origin and the account must be unlocked for LOGIN_FAILURE. A
// locked subject short-circuits before the password is checked. The attempt is
// counted on each axis before verification, so concurrent guesses past the
// threshold are refused unverified; a success clears both counters.
func (s *Service) Login(ctx context.Context, email, password string) (pair *models.TokenPair, err error) {
	start := time.Now()
	email = models.NormalizeEmail(email)
	from := origin(ctx)

	ctx, span := s.tracer.Start(ctx, tracer.SpanLogin,
		tracer.String(tracer.AttrEmailHash, tracer.HashEmail(email)),
	)
	outcome := "internal_error"
	defer func() {
		span.SetAttributes(tracer.String(tracer.AttrOutcome, outcome))
		span.End(err)
		s.metrics.IncLogin(outcome)
		s.metrics.ObserveLogin(time.Since(start).Seconds())
	}()

	originSubject := lmodels.OriginSubject(from)
	locked, err := s.ledger.IsLocked(ctx, originSubject, lmodels.KindLoginFailure)
	if err != nil {
		return nil, s.failClosed(ctx, "login.origin_lock", err)
	}
	if locked {
		outcome = "locked"
		s.logAudit(ctx, audit.EventLoginRejectedLocked, audit.Event{Email: email, Decision: "denied", Reason: "origin locked"})
		return nil, errLocked()
	}

	account, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, sentinel.ErrNotFound) {
			return nil, s.failClosed(ctx, "login.find_account", err)
		}
		return nil, s.rejectUnknownAccount(ctx, email, password, from, &outcome)
	}

	accountSubject := lmodels.AccountSubject(account.ID.String())
	locked, err = s.ledger.IsLocked(ctx, accountSubject, lmodels.KindLoginFailure)
	if err != nil {
		return nil, s.failClosed(ctx, "login.account_lock", err)
	}
	if locked {
		outcome = "locked"
		s.logAudit(ctx, audit.EventLoginRejectedLocked, audit.Event{
			SubjectID: account.ID.String(),
			Email:     email,
			Decision:  "denied",
			Reason:    "account locked",
		})
		return nil, errLocked()
	}

	attempt, err := s.countAttempt(ctx, lmodels.KindLoginFailure, from, account, true)
	if err != nil {
		return nil, s.failClosed(ctx, "login.record_attempt", err)
	}
	if attempt.blocked() {
		s.reportLocks(ctx, attempt)
		outcome = "locked"
		s.logAudit(ctx, audit.EventLoginRejectedLocked, audit.Event{
			SubjectID: account.ID.String(),
			Email:     email,
			Decision:  "denied",
			Reason:    "locked by concurrent attempt",
		})
		return nil, errLocked()
	}

	if err := secrets.VerifyPassword(password, account.PasswordHash); err != nil {
		if !dErrors.HasCode(err, dErrors.CodeUnauthorized) {
			return nil, s.failClosed(ctx, "login.verify_password", err)
		}
		s.reportLocks(ctx, attempt)
		outcome = "invalid_credentials"
		s.logAudit(ctx, audit.EventLoginFailed, audit.Event{
			SubjectID: account.ID.String(),
			Email:     email,
			Decision:  "denied",
			Reason:    "bad password",
		})
		return nil, errInvalidCredentials()
	}

	if err := s.clearAttempt(ctx, attempt); err != nil {
		return nil, s.failClosed(ctx, "login.record_success", err)
	}

	pair, err = s.issuePair(ctx, account)
	if err != nil {
		return nil, s.failClosed(ctx, "login.issue_tokens", err)
	}

	outcome = "success"
	s.logAudit(ctx, audit.EventLoginSucceeded, audit.Event{
		SubjectID: account.ID.String(),
		Email:     email,
		Role:      account.Role,
		Decision:  "granted",
	})
	return pair, nil
}

// rejectUnknownAccount counts the failure against the origin only, then spends
// a bcrypt comparison so the response time does not reveal whether the email
// exists. Nonexistent accounts never get a ledger record.
func (s *Service) rejectUnknownAccount(ctx context.Context, email, password, from string, outcome *string) error {
	attempt, err := s.countAttempt(ctx, lmodels.KindLoginFailure, from, nil, true)
	if err != nil {
		return s.failClosed(ctx, "login.record_attempt", err)
	}
	s.reportLocks(ctx, attempt)
	if attempt.blocked() {
		*outcome = "locked"
		s.logAudit(ctx, audit.EventLoginRejectedLocked, audit.Event{Email: email, Decision: "denied", Reason: "origin locked"})
		return errLocked()
	}

	_ = secrets.VerifyPassword(password, s.dummyHash)
	*outcome = "invalid_credentials"
	s.logAudit(ctx, audit.EventUnknownAccount, audit.Event{Email: email, Decision: "denied", Reason: "unknown account"})
	return errInvalidCredentials()
}

func (s *Service) issuePair(ctx context.Context, account *models.Account) (*models.TokenPair, error) {
	access, err := s.tokens.IssueAccessToken(ctx, account.Email, account.Role)
	if err != nil {
		return nil, err
	}
	s.metrics.IncTokenIssued(string(token.ClassAccess))
	refresh, err := s.tokens.IssueRefreshToken(ctx, account.Email)
	if err != nil {
		return nil, err
	}
	s.metrics.IncTokenIssued(string(token.ClassRefresh))
	return &models.TokenPair{
		AccessToken:      access.Token,
		RefreshToken:     refresh.Token,
		AccessExpiresAt:  access.ExpiresAt,
		RefreshExpiresAt: refresh.ExpiresAt,
		Role:             account.Role,
	}, nil
}
