package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"lockgate/internal/resettoken/models"
	"lockgate/pkg/platform/sentinel"
)

// Store persists reset token digests in PostgreSQL.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// ReplaceForAccount purges the account's tokens and inserts t in one
// transaction. A transaction-scoped advisory lock on the account serializes
// concurrent issues so at most one token survives.
func (s *Store) ReplaceForAccount(ctx context.Context, t *models.ResetToken) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace reset token: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, t.AccountID.String()); err != nil {
		return fmt.Errorf("lock account reset tokens: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM reset_tokens WHERE account_id = $1`, t.AccountID); err != nil {
		return fmt.Errorf("purge reset tokens: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO reset_tokens (token_digest, account_id, expires_at, created_at)
		VALUES ($1, $2, $3, $4)
	`, t.Digest, t.AccountID, t.ExpiresAt, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert reset token: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace reset token: %w", err)
	}
	return nil
}

func (s *Store) FindByDigest(ctx context.Context, digest string) (*models.ResetToken, error) {
	var t models.ResetToken
	err := s.db.QueryRowContext(ctx, `
		SELECT token_digest, account_id, expires_at, created_at
		FROM reset_tokens
		WHERE token_digest = $1
	`, digest).Scan(&t.Digest, &t.AccountID, &t.ExpiresAt, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find reset token: %w", err)
	}
	return &t, nil
}

// TakeByDigest deletes the row and returns what it held. Concurrent takers
// race on the row lock; only the one whose DELETE removed it sees a row.
func (s *Store) TakeByDigest(ctx context.Context, digest string) (*models.ResetToken, error) {
	var t models.ResetToken
	err := s.db.QueryRowContext(ctx, `
		DELETE FROM reset_tokens
		WHERE token_digest = $1
		RETURNING token_digest, account_id, expires_at, created_at
	`, digest).Scan(&t.Digest, &t.AccountID, &t.ExpiresAt, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("take reset token: %w", err)
	}
	return &t, nil
}

func (s *Store) DeleteByDigest(ctx context.Context, digest string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM reset_tokens WHERE token_digest = $1`, digest); err != nil {
		return fmt.Errorf("delete reset token: %w", err)
	}
	return nil
}

func (s *Store) DeleteForAccount(ctx context.Context, accountID uuid.UUID) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM reset_tokens WHERE account_id = $1`, accountID)
	if err != nil {
		return 0, fmt.Errorf("delete account reset tokens: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete account reset tokens: %w", err)
	}
	return int(n), nil
}
