package service

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/mock/gomock"

	"lockgate/internal/auth/models"
	"lockgate/internal/token"
	dErrors "lockgate/pkg/domain-errors"
	"lockgate/pkg/platform/audit"
	"lockgate/pkg/platform/sentinel"
)

func (s *ServiceSuite) TestRefresh() {
	s.Run("issues a fresh access token and keeps the refresh token", func() {
		account := s.newAccount()
		account.Role = models.RoleAdmin
		refreshExp := s.clock.Now(s.ctx()).Add(7 * 24 * time.Hour)
		actions := s.expectAudit()
		s.mockTokens.EXPECT().Verify(gomock.Any(), "refresh-raw", "", token.ClassRefresh).Return(&token.Claims{
			Type: token.ClassRefresh,
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   account.Email,
				ExpiresAt: jwt.NewNumericDate(refreshExp),
			},
		}, nil)
		s.mockUsers.EXPECT().FindByEmail(gomock.Any(), account.Email).Return(account, nil)
		s.mockTokens.EXPECT().IssueAccessToken(gomock.Any(), account.Email, models.RoleAdmin).
			Return(&token.Issued{Token: "new-access", Class: token.ClassAccess}, nil)

		pair, err := s.service.Refresh(s.ctx(), "refresh-raw")

		s.Require().NoError(err)
		s.Equal("new-access", pair.AccessToken)
		s.Equal("refresh-raw", pair.RefreshToken)
		s.Equal(models.RoleAdmin, pair.Role, "role is re-resolved from the directory")
		s.Equal(refreshExp, pair.RefreshExpiresAt)
		s.Contains(*actions, string(audit.EventTokenRefreshed))
	})

	s.Run("verification failure is returned as an invalid token", func() {
		actions := s.expectAudit()
		s.mockTokens.EXPECT().Verify(gomock.Any(), "bad", "", token.ClassRefresh).
			Return(nil, &dErrors.Error{Code: dErrors.CodeInvalidToken, Message: "invalid token", Err: token.ErrExpired})

		_, err := s.service.Refresh(s.ctx(), "bad")

		s.True(dErrors.HasCode(err, dErrors.CodeInvalidToken))
		s.Contains(*actions, string(audit.EventTokenRejected))
	})

	s.Run("deleted account cannot refresh", func() {
		s.expectAudit()
		s.mockTokens.EXPECT().Verify(gomock.Any(), "orphan", "", token.ClassRefresh).Return(&token.Claims{
			RegisteredClaims: jwt.RegisteredClaims{Subject: "gone@example.com"},
		}, nil)
		s.mockUsers.EXPECT().FindByEmail(gomock.Any(), "gone@example.com").Return(nil, sentinel.ErrNotFound)

		_, err := s.service.Refresh(s.ctx(), "orphan")

		s.True(dErrors.HasCode(err, dErrors.CodeInvalidToken))
	})
}
