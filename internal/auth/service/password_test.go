package service

import (
	"time"

	"go.uber.org/mock/gomock"

	lmodels "lockgate/internal/lockout/models"
	dErrors "lockgate/pkg/domain-errors"
	"lockgate/pkg/platform/audit"
	"lockgate/pkg/platform/sentinel"
	"lockgate/pkg/secrets"
)

const (
	changeRejected  = lmodels.KindPasswordChangeRejected
	changeCompleted = lmodels.KindPasswordChangeCompleted
)

func (s *ServiceSuite) TestChangePassword() {
	s.Run("completed change is counted and revokes reset links", func() {
		account := s.newAccount()
		actions := s.expectAudit()
		s.mockUsers.EXPECT().FindByEmail(gomock.Any(), account.Email).Return(account, nil)
		s.mockLedger.EXPECT().IsLocked(gomock.Any(), accountSubject(account), changeRejected).Return(false, nil)
		s.mockLedger.EXPECT().IsLocked(gomock.Any(), accountSubject(account), changeCompleted).Return(false, nil)
		s.mockLedger.EXPECT().RecordFailure(gomock.Any(), accountSubject(account), changeRejected, testOrigin).Return(stillOpen(2), nil)
		s.mockLedger.EXPECT().RecordSuccess(gomock.Any(), accountSubject(account), changeRejected).Return(nil)
		completion := s.mockLedger.EXPECT().RecordFailure(gomock.Any(), accountSubject(account), changeCompleted, testOrigin).Return(stillOpen(1), nil)
		s.mockUsers.EXPECT().Save(gomock.Any(), account).Return(nil).After(completion)
		s.mockResets.EXPECT().DeleteForAccount(gomock.Any(), account.ID).Return(nil)

		s.Require().NoError(s.service.ChangePassword(s.ctx(), account.Email, testPassword, "another long password"))
		s.NoError(secrets.VerifyPassword("another long password", account.PasswordHash))
		s.Contains(*actions, string(audit.EventPasswordChanged))
	})

	s.Run("wrong current password is counted as rejected", func() {
		account := s.newAccount()
		actions := s.expectAudit()
		s.mockUsers.EXPECT().FindByEmail(gomock.Any(), account.Email).Return(account, nil)
		s.mockLedger.EXPECT().IsLocked(gomock.Any(), accountSubject(account), changeRejected).Return(false, nil)
		s.mockLedger.EXPECT().IsLocked(gomock.Any(), accountSubject(account), changeCompleted).Return(false, nil)
		s.mockLedger.EXPECT().RecordFailure(gomock.Any(), accountSubject(account), changeRejected, testOrigin).
			Return(transitioned(s.clock.Now(s.ctx()).Add(15*time.Minute)), nil)
		s.mockNotifier.EXPECT().NotifyAccountLocked(gomock.Any(), gomock.Any()).Times(1)

		err := s.service.ChangePassword(s.ctx(), account.Email, "wrong", "another long password")

		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
		s.Contains(*actions, string(audit.EventPasswordChangeRejected))
	})

	s.Run("completion that cannot be counted never lands", func() {
		account := s.newAccount()
		oldHash := account.PasswordHash
		s.expectAudit()
		s.mockUsers.EXPECT().FindByEmail(gomock.Any(), account.Email).Return(account, nil)
		s.mockLedger.EXPECT().IsLocked(gomock.Any(), accountSubject(account), changeRejected).Return(false, nil)
		s.mockLedger.EXPECT().IsLocked(gomock.Any(), accountSubject(account), changeCompleted).Return(false, nil)
		s.mockLedger.EXPECT().RecordFailure(gomock.Any(), accountSubject(account), changeRejected, testOrigin).Return(stillOpen(2), nil)
		s.mockLedger.EXPECT().RecordSuccess(gomock.Any(), accountSubject(account), changeRejected).Return(nil)
		s.mockLedger.EXPECT().RecordFailure(gomock.Any(), accountSubject(account), changeCompleted, testOrigin).
			Return(nil, dErrors.New(dErrors.CodeInternal, "storage"))
		s.mockUsers.EXPECT().Save(gomock.Any(), gomock.Any()).Times(0)

		err := s.service.ChangePassword(s.ctx(), account.Email, testPassword, "another long password")

		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
		s.Equal(oldHash, account.PasswordHash)
	})

	s.Run("change racing past the completion limit is refused", func() {
		account := s.newAccount()
		s.expectAudit()
		s.mockUsers.EXPECT().FindByEmail(gomock.Any(), account.Email).Return(account, nil)
		s.mockLedger.EXPECT().IsLocked(gomock.Any(), accountSubject(account), changeRejected).Return(false, nil)
		s.mockLedger.EXPECT().IsLocked(gomock.Any(), accountSubject(account), changeCompleted).Return(false, nil)
		s.mockLedger.EXPECT().RecordFailure(gomock.Any(), accountSubject(account), changeRejected, testOrigin).Return(stillOpen(2), nil)
		s.mockLedger.EXPECT().RecordSuccess(gomock.Any(), accountSubject(account), changeRejected).Return(nil)
		s.mockLedger.EXPECT().RecordFailure(gomock.Any(), accountSubject(account), changeCompleted, testOrigin).
			Return(&lmodels.Outcome{Locked: true, Count: 3}, nil)
		s.mockUsers.EXPECT().Save(gomock.Any(), gomock.Any()).Times(0)

		err := s.service.ChangePassword(s.ctx(), account.Email, testPassword, "another long password")

		s.True(dErrors.HasCode(err, dErrors.CodeLocked))
	})

	s.Run("completion lock blocks further changes", func() {
		account := s.newAccount()
		s.expectAudit()
		s.mockUsers.EXPECT().FindByEmail(gomock.Any(), account.Email).Return(account, nil)
		s.mockLedger.EXPECT().IsLocked(gomock.Any(), accountSubject(account), changeRejected).Return(false, nil)
		s.mockLedger.EXPECT().IsLocked(gomock.Any(), accountSubject(account), changeCompleted).Return(true, nil)

		err := s.service.ChangePassword(s.ctx(), account.Email, testPassword, "another long password")

		s.True(dErrors.HasCode(err, dErrors.CodeLocked))
	})

	s.Run("subject without an account is an invalid token", func() {
		s.mockUsers.EXPECT().FindByEmail(gomock.Any(), "gone@example.com").Return(nil, sentinel.ErrNotFound)

		err := s.service.ChangePassword(s.ctx(), "gone@example.com", testPassword, "another long password")

		s.True(dErrors.HasCode(err, dErrors.CodeInvalidToken))
	})
}
