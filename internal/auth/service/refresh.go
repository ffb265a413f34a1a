package service

import (
	"context"
	"errors"

	"lockgate/internal/auth/models"
	"lockgate/internal/platform/tracer"
	"lockgate/internal/token"
	"lockgate/pkg/platform/audit"
	"lockgate/pkg/platform/sentinel"
)

// Refresh exchanges a valid refresh token for a new access token. The refresh
// token itself is returned unchanged; there is no rotation. Lock state is not
// consulted here.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (pair *models.TokenPair, err error) {
	ctx, span := s.tracer.Start(ctx, tracer.SpanRefresh)
	defer func() { span.End(err) }()

	claims, err := s.tokens.Verify(ctx, refreshToken, "", token.ClassRefresh)
	if err != nil {
		reason := token.Reason(err)
		s.metrics.IncTokenVerifyFailed(reason)
		s.logAudit(ctx, audit.EventTokenRejected, audit.Event{Decision: "denied", Reason: reason})
		return nil, err
	}

	account, err := s.users.FindByEmail(ctx, claims.Subject)
	if err != nil {
		if !errors.Is(err, sentinel.ErrNotFound) {
			return nil, s.failClosed(ctx, "refresh.find_account", err)
		}
		s.metrics.IncTokenVerifyFailed("unknown_subject")
		s.logAudit(ctx, audit.EventTokenRejected, audit.Event{Email: claims.Subject, Decision: "denied", Reason: "unknown subject"})
		return nil, errInvalidToken()
	}

	access, err := s.tokens.IssueAccessToken(ctx, account.Email, account.Role)
	if err != nil {
		return nil, s.failClosed(ctx, "refresh.issue_access", err)
	}
	s.metrics.IncTokenIssued(string(token.ClassAccess))

	pair = &models.TokenPair{
		AccessToken:     access.Token,
		RefreshToken:    refreshToken,
		AccessExpiresAt: access.ExpiresAt,
		Role:            account.Role,
	}
	if claims.ExpiresAt != nil {
		pair.RefreshExpiresAt = claims.ExpiresAt.Time
	}

	s.logAudit(ctx, audit.EventTokenRefreshed, audit.Event{
		SubjectID: account.ID.String(),
		Email:     account.Email,
		Decision:  "granted",
	})
	return pair, nil
}
