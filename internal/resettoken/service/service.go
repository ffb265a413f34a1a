// Package service issues and redeems single-use password reset tokens.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"lockgate/internal/resettoken/models"
	dErrors "lockgate/pkg/domain-errors"
	"lockgate/pkg/platform/middleware/requesttime"
	"lockgate/pkg/platform/sentinel"
	"lockgate/pkg/secrets"
)

// Store persists tokens by digest. FindByDigest and TakeByDigest return
// sentinel.ErrNotFound when absent; deletes of missing tokens are no-ops.
// TakeByDigest removes and returns the token in one step, so of concurrent
// callers at most one gets it.
type Store interface {
	ReplaceForAccount(ctx context.Context, t *models.ResetToken) error
	FindByDigest(ctx context.Context, digest string) (*models.ResetToken, error)
	TakeByDigest(ctx context.Context, digest string) (*models.ResetToken, error)
	DeleteByDigest(ctx context.Context, digest string) error
	DeleteForAccount(ctx context.Context, accountID uuid.UUID) (int, error)
}

type Service struct {
	store    Store
	ttl      time.Duration
	clock    requesttime.Clock
	logger   *slog.Logger
	generate func() (string, error)
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithClock(c requesttime.Clock) Option {
	return func(s *Service) {
		if c != nil {
			s.clock = c
		}
	}
}

func WithTTL(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.ttl = d
		}
	}
}

func New(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("reset token store is required")
	}
	s := &Service{
		store:    store,
		ttl:      models.TTL,
		clock:    requesttime.Now,
		logger:   slog.Default(),
		generate: secrets.NewToken,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Issue creates a new token for the account and revokes every earlier one.
func (s *Service) Issue(ctx context.Context, accountID uuid.UUID) (*models.Issued, error) {
	raw, err := s.generate()
	if err != nil {
		return nil, err
	}
	now := s.clock(ctx)
	t := &models.ResetToken{
		Digest:    secrets.Digest(raw),
		AccountID: accountID,
		ExpiresAt: now.Add(s.ttl),
		CreatedAt: now,
	}
	if err := s.store.ReplaceForAccount(ctx, t); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store reset token")
	}
	return &models.Issued{Token: raw, AccountID: accountID, ExpiresAt: t.ExpiresAt}, nil
}

// Lookup finds the token without enforcing expiry; callers decide what an
// expired token means. Unknown tokens return CodeNotFound.
func (s *Service) Lookup(ctx context.Context, raw string) (*models.ResetToken, error) {
	return s.fetch(ctx, raw, s.store.FindByDigest)
}

// Redeem removes the token and returns it, expired or not. When the same
// token is redeemed concurrently exactly one call gets it; the others see
// CodeNotFound, like an unknown token.
func (s *Service) Redeem(ctx context.Context, raw string) (*models.ResetToken, error) {
	return s.fetch(ctx, raw, s.store.TakeByDigest)
}

func (s *Service) fetch(ctx context.Context, raw string, by func(context.Context, string) (*models.ResetToken, error)) (*models.ResetToken, error) {
	if raw == "" {
		return nil, dErrors.New(dErrors.CodeNotFound, "reset token not found")
	}
	t, err := by(ctx, secrets.Digest(raw))
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "reset token not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read reset token")
	}
	return t, nil
}

// Consume deletes the token. Consuming a missing token is a no-op.
func (s *Service) Consume(ctx context.Context, raw string) error {
	if raw == "" {
		return nil
	}
	if err := s.store.DeleteByDigest(ctx, secrets.Digest(raw)); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to consume reset token")
	}
	return nil
}

// DeleteForAccount removes every token owned by the account.
func (s *Service) DeleteForAccount(ctx context.Context, accountID uuid.UUID) error {
	n, err := s.store.DeleteForAccount(ctx, accountID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete reset tokens")
	}
	if n > 0 {
		s.logger.InfoContext(ctx, "reset tokens purged", "account_id", accountID, "count", n)
	}
	return nil
}
