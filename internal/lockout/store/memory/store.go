// Package memory keeps attempt records in process. Suitable for single-instance
// deployments and tests; records do not survive a restart.
package memory

import (
	"context"
	"sync"
	"time"

	"lockgate/internal/lockout/models"
	lsync "lockgate/pkg/platform/sync"
)

// Store is an in-memory attempt ledger. The read-modify-write of each record
// runs under that record's shard lock so concurrent failures on one key
// serialize while unrelated keys proceed in parallel.
type Store struct {
	mu      sync.RWMutex
	records map[string]*models.AttemptRecord
	locks   *lsync.ShardedMutex
}

func New() *Store {
	return &Store{
		records: make(map[string]*models.AttemptRecord),
		locks:   lsync.NewShardedMutex(),
	}
}

func (s *Store) lookup(key string) (*models.AttemptRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[key]
	return r, ok
}

func (s *Store) getOrCreate(key models.Key) *models.AttemptRecord {
	k := key.String()
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[k]
	if !ok {
		r = models.NewAttemptRecord(key)
		s.records[k] = r
	}
	return r
}

// RecordFailure increments the counter and applies the threshold in one step.
func (s *Store) RecordFailure(_ context.Context, key models.Key, rule models.Rule, origin string, now time.Time) (*models.AttemptRecord, bool, error) {
	var (
		out          models.AttemptRecord
		transitioned bool
	)
	s.locks.WithLock(key.String(), func() {
		r := s.getOrCreate(key)
		transitioned = r.ApplyFailure(now, rule, origin)
		out = *r
	})
	return &out, transitioned, nil
}

// Get returns a copy of the record, or nil when none exists.
func (s *Store) Get(_ context.Context, key models.Key) (*models.AttemptRecord, error) {
	return lsync.Guard(s.locks, key.String(), func() *models.AttemptRecord {
		r, ok := s.lookup(key.String())
		if !ok {
			return nil
		}
		cp := *r
		return &cp
	}), nil
}

// Reset clears the counter and lock. Missing records are left absent.
func (s *Store) Reset(_ context.Context, key models.Key) error {
	s.locks.WithLock(key.String(), func() {
		if r, ok := s.lookup(key.String()); ok {
			r.Reset()
		}
	})
	return nil
}

// ResetIfExpired clears the record when its lock has run out at now.
func (s *Store) ResetIfExpired(_ context.Context, key models.Key, now time.Time) (bool, error) {
	return lsync.Guard(s.locks, key.String(), func() bool {
		r, ok := s.lookup(key.String())
		if !ok || !r.LockExpired(now) {
			return false
		}
		r.Reset()
		return true
	}), nil
}

// ResetExpired clears every record whose lock has run out at now.
func (s *Store) ResetExpired(_ context.Context, now time.Time) (int, error) {
	s.mu.RLock()
	keys := make([]string, 0, len(s.records))
	for k := range s.records {
		keys = append(keys, k)
	}
	s.mu.RUnlock()

	count := 0
	for _, k := range keys {
		s.locks.WithLock(k, func() {
			if r, ok := s.lookup(k); ok && r.LockExpired(now) {
				r.Reset()
				count++
			}
		})
	}
	return count, nil
}
