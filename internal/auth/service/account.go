package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"lockgate/internal/auth/models"
	"lockgate/internal/platform/tracer"
	dErrors "lockgate/pkg/domain-errors"
	"lockgate/pkg/platform/audit"
	"lockgate/pkg/platform/sentinel"
	"lockgate/pkg/secrets"
)

// CreateAccount adds an account to the User Directory. Used by the admin
// surface and development seeding.
func (s *Service) CreateAccount(ctx context.Context, email, password, role string) (account *models.Account, err error) {
	email = models.NormalizeEmail(email)
	ctx, span := s.tracer.Start(ctx, tracer.SpanCreateAccount,
		tracer.String(tracer.AttrEmailHash, tracer.HashEmail(email)),
	)
	defer func() { span.End(err) }()

	if role == "" {
		role = models.RoleUser
	}
	hash, err := secrets.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, s.failClosed(ctx, "create_account.hash", err)
	}
	now := s.clock(ctx)
	account = &models.Account{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Save(ctx, account); err != nil {
		if errors.Is(err, sentinel.ErrDuplicate) {
			return nil, dErrors.New(dErrors.CodeConflict, "account already exists")
		}
		return nil, s.failClosed(ctx, "create_account.save", err)
	}
	return account, nil
}

// DeleteAccount removes an account and every outstanding reset token it
// owns. Ledger records are left to expire.
func (s *Service) DeleteAccount(ctx context.Context, id uuid.UUID, actorID string) (err error) {
	ctx, span := s.tracer.Start(ctx, tracer.SpanDeleteAccount)
	defer func() { span.End(err) }()

	account, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "account not found")
		}
		return s.failClosed(ctx, "delete_account.find", err)
	}
	if err := s.resets.DeleteForAccount(ctx, id); err != nil {
		return s.failClosed(ctx, "delete_account.reset_tokens", err)
	}
	if err := s.users.Delete(ctx, id); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "account not found")
		}
		return s.failClosed(ctx, "delete_account.delete", err)
	}

	s.logAudit(ctx, audit.EventAccountDeleted, audit.Event{
		SubjectID: account.ID.String(),
		Email:     account.Email,
		ActorID:   actorID,
		Decision:  "granted",
	})
	return nil
}
