package service

import (
	"errors"
	"time"

	"go.uber.org/mock/gomock"

	"lockgate/internal/auth/models"
	lmodels "lockgate/internal/lockout/models"
	"lockgate/internal/notify"
	"lockgate/internal/token"
	dErrors "lockgate/pkg/domain-errors"
	"lockgate/pkg/platform/audit"
	"lockgate/pkg/platform/sentinel"
)

const login = lmodels.KindLoginFailure

func (s *ServiceSuite) TestLogin() {
	s.Run("origin locked short-circuits before account lookup", func() {
		actions := s.expectAudit()
		s.mockLedger.EXPECT().IsLocked(gomock.Any(), originSubject(), login).Return(true, nil)

		pair, err := s.service.Login(s.ctx(), "alice@example.com", testPassword)

		s.Nil(pair)
		s.True(dErrors.HasCode(err, dErrors.CodeLocked))
		s.Equal(msgLocked, err.Error())
		s.Contains(*actions, string(audit.EventLoginRejectedLocked))
	})

	s.Run("unknown account counts against origin only", func() {
		actions := s.expectAudit()
		s.mockLedger.EXPECT().IsLocked(gomock.Any(), originSubject(), login).Return(false, nil)
		s.mockUsers.EXPECT().FindByEmail(gomock.Any(), "ghost@example.com").Return(nil, sentinel.ErrNotFound)
		s.mockLedger.EXPECT().RecordFailure(gomock.Any(), originSubject(), login, testOrigin).Return(stillOpen(4), nil)

		_, err := s.service.Login(s.ctx(), "  Ghost@Example.com ", "whatever")

		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
		s.Equal(msgInvalidCredentials, err.Error())
		s.Contains(*actions, string(audit.EventUnknownAccount))
	})

	s.Run("account locked short-circuits without verifying the password", func() {
		account := s.newAccount()
		account.PasswordHash = "not-a-bcrypt-hash"
		s.expectAudit()
		s.mockLedger.EXPECT().IsLocked(gomock.Any(), originSubject(), login).Return(false, nil)
		s.mockUsers.EXPECT().FindByEmail(gomock.Any(), account.Email).Return(account, nil)
		s.mockLedger.EXPECT().IsLocked(gomock.Any(), accountSubject(account), login).Return(true, nil)

		_, err := s.service.Login(s.ctx(), account.Email, testPassword)

		s.True(dErrors.HasCode(err, dErrors.CodeLocked))
	})

	s.Run("attempt counted into an existing lock is refused unverified", func() {
		account := s.newAccount()
		account.PasswordHash = "not-a-bcrypt-hash"
		actions := s.expectAudit()
		s.mockLedger.EXPECT().IsLocked(gomock.Any(), originSubject(), login).Return(false, nil)
		s.mockUsers.EXPECT().FindByEmail(gomock.Any(), account.Email).Return(account, nil)
		s.mockLedger.EXPECT().IsLocked(gomock.Any(), accountSubject(account), login).Return(false, nil)
		s.mockLedger.EXPECT().RecordFailure(gomock.Any(), accountSubject(account), login, testOrigin).
			Return(&lmodels.Outcome{Locked: true, Count: 6}, nil)
		s.mockLedger.EXPECT().RecordFailure(gomock.Any(), originSubject(), login, testOrigin).Return(stillOpen(3), nil)

		_, err := s.service.Login(s.ctx(), account.Email, testPassword)

		s.True(dErrors.HasCode(err, dErrors.CodeLocked), "an unparseable hash would have surfaced as internal")
		s.Contains(*actions, string(audit.EventLoginRejectedLocked))
	})

	s.Run("crossing the threshold with the right password still succeeds", func() {
		account := s.newAccount()
		until := s.clock.Now(s.ctx()).Add(15 * time.Minute)
		s.expectAudit()
		s.mockLedger.EXPECT().IsLocked(gomock.Any(), originSubject(), login).Return(false, nil)
		s.mockUsers.EXPECT().FindByEmail(gomock.Any(), account.Email).Return(account, nil)
		s.mockLedger.EXPECT().IsLocked(gomock.Any(), accountSubject(account), login).Return(false, nil)
		s.mockLedger.EXPECT().RecordFailure(gomock.Any(), accountSubject(account), login, testOrigin).Return(transitioned(until), nil)
		s.mockLedger.EXPECT().RecordFailure(gomock.Any(), originSubject(), login, testOrigin).Return(stillOpen(2), nil)
		s.mockLedger.EXPECT().RecordSuccess(gomock.Any(), accountSubject(account), login).Return(nil)
		s.mockLedger.EXPECT().RecordSuccess(gomock.Any(), originSubject(), login).Return(nil)
		s.mockNotifier.EXPECT().NotifyAccountLocked(gomock.Any(), gomock.Any()).Times(0)
		s.mockTokens.EXPECT().IssueAccessToken(gomock.Any(), account.Email, models.RoleUser).
			Return(&token.Issued{Token: "access", Class: token.ClassAccess}, nil)
		s.mockTokens.EXPECT().IssueRefreshToken(gomock.Any(), account.Email).
			Return(&token.Issued{Token: "refresh", Class: token.ClassRefresh}, nil)

		_, err := s.service.Login(s.ctx(), account.Email, testPassword)

		s.NoError(err)
	})

	s.Run("wrong password counts both axes", func() {
		account := s.newAccount()
		actions := s.expectAudit()
		s.mockLedger.EXPECT().IsLocked(gomock.Any(), originSubject(), login).Return(false, nil)
		s.mockUsers.EXPECT().FindByEmail(gomock.Any(), account.Email).Return(account, nil)
		s.mockLedger.EXPECT().IsLocked(gomock.Any(), accountSubject(account), login).Return(false, nil)
		s.mockLedger.EXPECT().RecordFailure(gomock.Any(), accountSubject(account), login, testOrigin).Return(stillOpen(2), nil)
		s.mockLedger.EXPECT().RecordFailure(gomock.Any(), originSubject(), login, testOrigin).Return(stillOpen(3), nil)

		_, err := s.service.Login(s.ctx(), account.Email, "wrong")

		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
		s.Contains(*actions, string(audit.EventLoginFailed))
		s.NotContains(*actions, string(audit.EventAccountLocked))
	})

	s.Run("transitions notify each axis once", func() {
		account := s.newAccount()
		until := s.clock.Now(s.ctx()).Add(15 * time.Minute)
		actions := s.expectAudit()
		s.mockLedger.EXPECT().IsLocked(gomock.Any(), originSubject(), login).Return(false, nil)
		s.mockUsers.EXPECT().FindByEmail(gomock.Any(), account.Email).Return(account, nil)
		s.mockLedger.EXPECT().IsLocked(gomock.Any(), accountSubject(account), login).Return(false, nil)
		s.mockLedger.EXPECT().RecordFailure(gomock.Any(), accountSubject(account), login, testOrigin).Return(transitioned(until), nil)
		s.mockLedger.EXPECT().RecordFailure(gomock.Any(), originSubject(), login, testOrigin).Return(transitioned(until), nil)
		s.mockNotifier.EXPECT().NotifyAccountLocked(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ any, n notify.AccountLocked) {
				s.Equal(account.ID.String(), n.AccountID)
				s.Equal(account.Email, n.Email)
				s.Equal(models.RoleUser, n.Role)
				s.Equal(string(login), n.Kind)
				s.Equal(until, n.Until)
				s.Equal(testOrigin, n.Origin)
			}).Times(1)
		s.mockNotifier.EXPECT().NotifyOriginLocked(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ any, n notify.OriginLocked) {
				s.Equal(testOrigin, n.Origin)
			}).Times(1)

		_, err := s.service.Login(s.ctx(), account.Email, "wrong")

		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized), "the crossing attempt still reads as bad credentials")
		s.Contains(*actions, string(audit.EventAccountLocked))
		s.Contains(*actions, string(audit.EventOriginLocked))
	})

	s.Run("success clears both axes and issues a token pair", func() {
		account := s.newAccount()
		exp := s.clock.Now(s.ctx()).Add(15 * time.Minute)
		actions := s.expectAudit()
		s.mockLedger.EXPECT().IsLocked(gomock.Any(), originSubject(), login).Return(false, nil)
		s.mockUsers.EXPECT().FindByEmail(gomock.Any(), account.Email).Return(account, nil)
		s.mockLedger.EXPECT().IsLocked(gomock.Any(), accountSubject(account), login).Return(false, nil)
		s.mockLedger.EXPECT().RecordFailure(gomock.Any(), accountSubject(account), login, testOrigin).Return(stillOpen(4), nil)
		s.mockLedger.EXPECT().RecordFailure(gomock.Any(), originSubject(), login, testOrigin).Return(stillOpen(4), nil)
		s.mockLedger.EXPECT().RecordSuccess(gomock.Any(), accountSubject(account), login).Return(nil)
		s.mockLedger.EXPECT().RecordSuccess(gomock.Any(), originSubject(), login).Return(nil)
		s.mockTokens.EXPECT().IssueAccessToken(gomock.Any(), account.Email, models.RoleUser).
			Return(&token.Issued{Token: "access", Class: token.ClassAccess, ExpiresAt: exp}, nil)
		s.mockTokens.EXPECT().IssueRefreshToken(gomock.Any(), account.Email).
			Return(&token.Issued{Token: "refresh", Class: token.ClassRefresh}, nil)

		pair, err := s.service.Login(s.ctx(), account.Email, testPassword)

		s.Require().NoError(err)
		s.Equal("access", pair.AccessToken)
		s.Equal("refresh", pair.RefreshToken)
		s.Equal(exp, pair.AccessExpiresAt)
		s.Equal(models.RoleUser, pair.Role)
		s.Contains(*actions, string(audit.EventLoginSucceeded))
	})

	s.Run("ledger read failure fails closed", func() {
		s.mockLedger.EXPECT().IsLocked(gomock.Any(), originSubject(), login).Return(false, errors.New("redis down"))

		_, err := s.service.Login(s.ctx(), "alice@example.com", testPassword)

		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})

	s.Run("ledger write failure fails closed", func() {
		account := s.newAccount()
		s.expectAudit()
		s.mockLedger.EXPECT().IsLocked(gomock.Any(), originSubject(), login).Return(false, nil)
		s.mockUsers.EXPECT().FindByEmail(gomock.Any(), account.Email).Return(account, nil)
		s.mockLedger.EXPECT().IsLocked(gomock.Any(), accountSubject(account), login).Return(false, nil)
		s.mockLedger.EXPECT().RecordFailure(gomock.Any(), accountSubject(account), login, testOrigin).
			Return(nil, dErrors.New(dErrors.CodeInternal, "storage"))
		s.mockLedger.EXPECT().RecordFailure(gomock.Any(), originSubject(), login, testOrigin).Return(stillOpen(4), nil)

		_, err := s.service.Login(s.ctx(), account.Email, "wrong")

		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})

	s.Run("user directory failure fails closed", func() {
		s.mockLedger.EXPECT().IsLocked(gomock.Any(), originSubject(), login).Return(false, nil)
		s.mockUsers.EXPECT().FindByEmail(gomock.Any(), "alice@example.com").Return(nil, errors.New("db down"))

		_, err := s.service.Login(s.ctx(), "alice@example.com", testPassword)

		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})
}

func (s *ServiceSuite) TestLoginWithoutClientOrigin() {
	s.expectAudit()
	unknown := lmodels.OriginSubject(unknownOrigin)
	s.mockLedger.EXPECT().IsLocked(gomock.Any(), unknown, login).Return(true, nil)

	_, err := s.service.Login(s.T().Context(), "alice@example.com", testPassword)

	s.True(dErrors.HasCode(err, dErrors.CodeLocked))
}
