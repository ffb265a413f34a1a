package service

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/mock/gomock"

	lmodels "lockgate/internal/lockout/models"
	"lockgate/internal/notify"
	rmodels "lockgate/internal/resettoken/models"
	dErrors "lockgate/pkg/domain-errors"
	"lockgate/pkg/platform/audit"
	"lockgate/pkg/platform/sentinel"
)

const (
	resetRequest = lmodels.KindResetRequestUnverified
	resetInvalid = lmodels.KindResetTokenInvalid
)

func (s *ServiceSuite) TestRequestPasswordReset() {
	s.Run("known account gets a token and a notification", func() {
		account := s.newAccount()
		exp := s.clock.Now(s.ctx()).Add(rmodels.TTL)
		actions := s.expectAudit()
		s.mockUsers.EXPECT().FindByEmail(gomock.Any(), account.Email).Return(account, nil)
		s.mockLedger.EXPECT().IsLocked(gomock.Any(), originSubject(), resetRequest).Return(false, nil)
		s.mockLedger.EXPECT().IsLocked(gomock.Any(), accountSubject(account), resetRequest).Return(false, nil)
		s.mockLedger.EXPECT().RecordFailure(gomock.Any(), accountSubject(account), resetRequest, testOrigin).Return(stillOpen(2), nil)
		s.mockLedger.EXPECT().RecordFailure(gomock.Any(), originSubject(), resetRequest, testOrigin).Return(stillOpen(2), nil)
		s.mockResets.EXPECT().Issue(gomock.Any(), account.ID).
			Return(&rmodels.Issued{Token: "link-token", AccountID: account.ID, ExpiresAt: exp}, nil)
		s.mockNotifier.EXPECT().NotifyResetRequested(gomock.Any(), notify.ResetRequested{
			AccountID: account.ID.String(),
			Email:     account.Email,
			Token:     "link-token",
			ExpiresAt: exp,
		})

		s.NoError(s.service.RequestPasswordReset(s.ctx(), "ALICE@example.com"))
		s.Contains(*actions, string(audit.EventResetRequested))
	})

	s.Run("unknown account looks identical to the caller", func() {
		s.expectAudit()
		s.mockUsers.EXPECT().FindByEmail(gomock.Any(), "ghost@example.com").Return(nil, sentinel.ErrNotFound)
		s.mockLedger.EXPECT().IsLocked(gomock.Any(), originSubject(), resetRequest).Return(false, nil)
		s.mockLedger.EXPECT().RecordFailure(gomock.Any(), originSubject(), resetRequest, testOrigin).Return(stillOpen(2), nil)

		s.NoError(s.service.RequestPasswordReset(s.ctx(), "ghost@example.com"))
	})

	s.Run("locked account drops the request silently", func() {
		account := s.newAccount()
		actions := s.expectAudit()
		s.mockUsers.EXPECT().FindByEmail(gomock.Any(), account.Email).Return(account, nil)
		s.mockLedger.EXPECT().IsLocked(gomock.Any(), originSubject(), resetRequest).Return(false, nil)
		s.mockLedger.EXPECT().IsLocked(gomock.Any(), accountSubject(account), resetRequest).Return(true, nil)

		s.NoError(s.service.RequestPasswordReset(s.ctx(), account.Email))
		s.Contains(*actions, string(audit.EventResetRequestDropped))
	})

	s.Run("request racing into a lock is dropped", func() {
		account := s.newAccount()
		actions := s.expectAudit()
		s.mockUsers.EXPECT().FindByEmail(gomock.Any(), account.Email).Return(account, nil)
		s.mockLedger.EXPECT().IsLocked(gomock.Any(), originSubject(), resetRequest).Return(false, nil)
		s.mockLedger.EXPECT().IsLocked(gomock.Any(), accountSubject(account), resetRequest).Return(false, nil)
		s.mockLedger.EXPECT().RecordFailure(gomock.Any(), accountSubject(account), resetRequest, testOrigin).
			Return(&lmodels.Outcome{Locked: true, Count: 4}, nil)
		s.mockLedger.EXPECT().RecordFailure(gomock.Any(), originSubject(), resetRequest, testOrigin).Return(stillOpen(1), nil)

		s.NoError(s.service.RequestPasswordReset(s.ctx(), account.Email))
		s.Contains(*actions, string(audit.EventResetRequestDropped))
	})

	s.Run("ledger failure surfaces as internal", func() {
		s.mockUsers.EXPECT().FindByEmail(gomock.Any(), "ghost@example.com").Return(nil, sentinel.ErrNotFound)
		s.mockLedger.EXPECT().IsLocked(gomock.Any(), originSubject(), resetRequest).Return(false, errors.New("down"))

		err := s.service.RequestPasswordReset(s.ctx(), "ghost@example.com")
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})
}

func (s *ServiceSuite) TestResetPassword() {
	notFound := dErrors.New(dErrors.CodeNotFound, "reset token not found")

	s.Run("valid token sets the password and clears counters", func() {
		account := s.newAccount()
		oldHash := account.PasswordHash
		actions := s.expectAudit()
		s.mockLedger.EXPECT().IsLocked(gomock.Any(), originSubject(), resetInvalid).Return(false, nil)
		s.mockLedger.EXPECT().RecordFailure(gomock.Any(), originSubject(), resetInvalid, testOrigin).Return(stillOpen(4), nil)
		redeem := s.mockResets.EXPECT().Redeem(gomock.Any(), "link").Return(&rmodels.ResetToken{
			AccountID: account.ID,
			ExpiresAt: s.clock.Now(s.ctx()).Add(time.Minute),
		}, nil)
		s.mockUsers.EXPECT().FindByID(gomock.Any(), account.ID).Return(account, nil)
		s.mockUsers.EXPECT().Save(gomock.Any(), account).Return(nil).After(redeem)
		s.mockLedger.EXPECT().RecordSuccess(gomock.Any(), originSubject(), resetInvalid).Return(nil)
		s.mockLedger.EXPECT().RecordSuccess(gomock.Any(), accountSubject(account), resetRequest).Return(nil)
		s.mockLedger.EXPECT().RecordSuccess(gomock.Any(), accountSubject(account), lmodels.KindLoginFailure).Return(nil)

		s.Require().NoError(s.service.ResetPassword(s.ctx(), "link", "a brand new password"))
		s.NotEqual(oldHash, account.PasswordHash)
		s.Contains(*actions, string(audit.EventPasswordReset))
	})

	s.Run("unknown token counts against the origin", func() {
		actions := s.expectAudit()
		s.mockLedger.EXPECT().IsLocked(gomock.Any(), originSubject(), resetInvalid).Return(false, nil)
		s.mockLedger.EXPECT().RecordFailure(gomock.Any(), originSubject(), resetInvalid, testOrigin).Return(stillOpen(4), nil)
		s.mockResets.EXPECT().Redeem(gomock.Any(), "nope").Return(nil, notFound)

		err := s.service.ResetPassword(s.ctx(), "nope", "a brand new password")

		s.True(dErrors.HasCode(err, dErrors.CodeInvalidToken))
		s.Equal(msgInvalidLink, err.Error())
		s.Contains(*actions, string(audit.EventResetTokenInvalid))
	})

	s.Run("token already redeemed elsewhere leaves the password alone", func() {
		s.expectAudit()
		s.mockLedger.EXPECT().IsLocked(gomock.Any(), originSubject(), resetInvalid).Return(false, nil)
		s.mockLedger.EXPECT().RecordFailure(gomock.Any(), originSubject(), resetInvalid, testOrigin).Return(stillOpen(3), nil)
		s.mockResets.EXPECT().Redeem(gomock.Any(), "link").Return(nil, notFound)
		s.mockUsers.EXPECT().Save(gomock.Any(), gomock.Any()).Times(0)

		err := s.service.ResetPassword(s.ctx(), "link", "a brand new password")

		s.True(dErrors.HasCode(err, dErrors.CodeInvalidToken))
	})

	s.Run("expired token is consumed and rejected", func() {
		s.expectAudit()
		s.mockLedger.EXPECT().IsLocked(gomock.Any(), originSubject(), resetInvalid).Return(false, nil)
		s.mockLedger.EXPECT().RecordFailure(gomock.Any(), originSubject(), resetInvalid, testOrigin).Return(stillOpen(4), nil)
		s.mockResets.EXPECT().Redeem(gomock.Any(), "stale").Return(&rmodels.ResetToken{
			AccountID: uuid.New(),
			ExpiresAt: s.clock.Now(s.ctx()).Add(-time.Second),
		}, nil)

		err := s.service.ResetPassword(s.ctx(), "stale", "a brand new password")

		s.True(dErrors.HasCode(err, dErrors.CodeInvalidToken))
	})

	s.Run("origin lock blocks token probing", func() {
		s.expectAudit()
		s.mockLedger.EXPECT().IsLocked(gomock.Any(), originSubject(), resetInvalid).Return(true, nil)

		err := s.service.ResetPassword(s.ctx(), "anything", "a brand new password")

		s.True(dErrors.HasCode(err, dErrors.CodeLocked))
	})

	s.Run("origin locked by concurrent token guesses skips redemption", func() {
		s.expectAudit()
		s.mockLedger.EXPECT().IsLocked(gomock.Any(), originSubject(), resetInvalid).Return(false, nil)
		s.mockLedger.EXPECT().RecordFailure(gomock.Any(), originSubject(), resetInvalid, testOrigin).
			Return(&lmodels.Outcome{Locked: true, Count: 6}, nil)

		err := s.service.ResetPassword(s.ctx(), "link", "a brand new password")

		s.True(dErrors.HasCode(err, dErrors.CodeLocked))
	})

	s.Run("fifth invalid token notifies once", func() {
		s.expectAudit()
		s.mockLedger.EXPECT().IsLocked(gomock.Any(), originSubject(), resetInvalid).Return(false, nil)
		s.mockLedger.EXPECT().RecordFailure(gomock.Any(), originSubject(), resetInvalid, testOrigin).
			Return(transitioned(s.clock.Now(s.ctx()).Add(15*time.Minute)), nil)
		s.mockResets.EXPECT().Redeem(gomock.Any(), "nope").Return(nil, notFound)
		s.mockNotifier.EXPECT().NotifyOriginLocked(gomock.Any(), gomock.Any()).Times(1)

		err := s.service.ResetPassword(s.ctx(), "nope", "a brand new password")
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidToken))
	})
}
