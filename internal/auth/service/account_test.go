package service

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/mock/gomock"

	"lockgate/internal/auth/models"
	dErrors "lockgate/pkg/domain-errors"
	"lockgate/pkg/platform/audit"
	"lockgate/pkg/platform/sentinel"
	"lockgate/pkg/secrets"
)

func (s *ServiceSuite) TestCreateAccount() {
	s.Run("hashes the password and defaults the role", func() {
		var saved *models.Account
		s.mockUsers.EXPECT().Save(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, a *models.Account) error {
				saved = a
				return nil
			})

		account, err := s.service.CreateAccount(s.ctx(), " Bob@Example.com", "a long password", "")

		s.Require().NoError(err)
		s.Same(saved, account)
		s.Equal("bob@example.com", account.Email)
		s.Equal(models.RoleUser, account.Role)
		s.NotEqual(uuid.Nil, account.ID)
		s.NoError(secrets.VerifyPassword("a long password", account.PasswordHash))
	})

	s.Run("duplicate email is a conflict", func() {
		s.mockUsers.EXPECT().Save(gomock.Any(), gomock.Any()).Return(sentinel.ErrDuplicate)

		_, err := s.service.CreateAccount(s.ctx(), "bob@example.com", "a long password", models.RoleAdmin)

		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})
}

func (s *ServiceSuite) TestDeleteAccount() {
	s.Run("removes the account and its reset tokens", func() {
		account := s.newAccount()
		var deleted audit.Event
		s.mockPublisher.EXPECT().Emit(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, e audit.Event) error {
				deleted = e
				return nil
			})
		s.mockUsers.EXPECT().FindByID(gomock.Any(), account.ID).Return(account, nil)
		s.mockResets.EXPECT().DeleteForAccount(gomock.Any(), account.ID).Return(nil)
		s.mockUsers.EXPECT().Delete(gomock.Any(), account.ID).Return(nil)

		s.Require().NoError(s.service.DeleteAccount(s.ctx(), account.ID, "ops@example.com"))
		s.Equal(string(audit.EventAccountDeleted), deleted.Action)
		s.Equal("ops@example.com", deleted.ActorID)
		s.Equal(account.ID.String(), deleted.SubjectID)
	})

	s.Run("missing account is not found", func() {
		id := uuid.New()
		s.mockUsers.EXPECT().FindByID(gomock.Any(), id).Return(nil, sentinel.ErrNotFound)

		err := s.service.DeleteAccount(s.ctx(), id, "ops@example.com")

		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}
