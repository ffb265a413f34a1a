package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"lockgate/internal/lockout/models"
)

// Store persists attempt records in PostgreSQL. RecordFailure holds the row
// lock for the whole read-modify-write so concurrent failures on one key
// serialize at the database.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

const recordColumns = `event_kind, axis, subject, failed_count, window_start, locked_until, last_origin, last_attempt_at`

func (s *Store) RecordFailure(ctx context.Context, key models.Key, rule models.Rule, origin string, now time.Time) (*models.AttemptRecord, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("begin record failure: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO attempt_records (event_kind, axis, subject)
		VALUES ($1, $2, $3)
		ON CONFLICT (event_kind, axis, subject) DO NOTHING
	`, key.Kind, key.Subject.Axis, key.Subject.Value)
	if err != nil {
		return nil, false, fmt.Errorf("ensure attempt record: %w", err)
	}

	record, err := scanRecord(tx.QueryRowContext(ctx, `
		SELECT `+recordColumns+`
		FROM attempt_records
		WHERE event_kind = $1 AND axis = $2 AND subject = $3
		FOR UPDATE
	`, key.Kind, key.Subject.Axis, key.Subject.Value))
	if err != nil {
		return nil, false, fmt.Errorf("lock attempt record: %w", err)
	}

	transitioned := record.ApplyFailure(now, rule, origin)

	if err := update(ctx, tx, record); err != nil {
		return nil, false, err
	}
	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("commit record failure: %w", err)
	}
	return record, transitioned, nil
}

func (s *Store) Get(ctx context.Context, key models.Key) (*models.AttemptRecord, error) {
	record, err := scanRecord(s.db.QueryRowContext(ctx, `
		SELECT `+recordColumns+`
		FROM attempt_records
		WHERE event_kind = $1 AND axis = $2 AND subject = $3
	`, key.Kind, key.Subject.Axis, key.Subject.Value))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get attempt record: %w", err)
	}
	return record, nil
}

func (s *Store) Reset(ctx context.Context, key models.Key) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE attempt_records
		SET failed_count = 0, window_start = NULL, locked_until = NULL
		WHERE event_kind = $1 AND axis = $2 AND subject = $3
	`, key.Kind, key.Subject.Axis, key.Subject.Value)
	if err != nil {
		return fmt.Errorf("reset attempt record: %w", err)
	}
	return nil
}

// ResetIfExpired clears the record only when its lock ended at or before now.
// The predicate lives in the UPDATE so a concurrent relock is never wiped.
func (s *Store) ResetIfExpired(ctx context.Context, key models.Key, now time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE attempt_records
		SET failed_count = 0, window_start = NULL, locked_until = NULL
		WHERE event_kind = $1 AND axis = $2 AND subject = $3
		  AND locked_until IS NOT NULL AND locked_until <= $4
	`, key.Kind, key.Subject.Axis, key.Subject.Value, now)
	if err != nil {
		return false, fmt.Errorf("reset expired attempt record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reset expired attempt record: %w", err)
	}
	return n > 0, nil
}

func (s *Store) ResetExpired(ctx context.Context, now time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE attempt_records
		SET failed_count = 0, window_start = NULL, locked_until = NULL
		WHERE locked_until IS NOT NULL AND locked_until <= $1
	`, now)
	if err != nil {
		return 0, fmt.Errorf("reset expired attempt records: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reset expired attempt records: %w", err)
	}
	return int(n), nil
}

func update(ctx context.Context, tx *sql.Tx, r *models.AttemptRecord) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE attempt_records
		SET failed_count = $4, window_start = $5, locked_until = $6, last_origin = $7, last_attempt_at = $8
		WHERE event_kind = $1 AND axis = $2 AND subject = $3
	`, r.Kind, r.Subject.Axis, r.Subject.Value, r.FailedCount, r.WindowStart, r.LockedUntil, r.LastOrigin, r.LastAttemptAt)
	if err != nil {
		return fmt.Errorf("update attempt record: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*models.AttemptRecord, error) {
	var (
		r           models.AttemptRecord
		kind, axis  string
		windowStart sql.NullTime
		lockedUntil sql.NullTime
		lastAttempt sql.NullTime
	)
	if err := row.Scan(&kind, &axis, &r.Subject.Value, &r.FailedCount, &windowStart, &lockedUntil, &r.LastOrigin, &lastAttempt); err != nil {
		return nil, err
	}
	r.Kind = models.EventKind(kind)
	r.Subject.Axis = models.Axis(axis)
	if windowStart.Valid {
		r.WindowStart = &windowStart.Time
	}
	if lockedUntil.Valid {
		r.LockedUntil = &lockedUntil.Time
	}
	if lastAttempt.Valid {
		r.LastAttemptAt = &lastAttempt.Time
	}
	return &r, nil
}
