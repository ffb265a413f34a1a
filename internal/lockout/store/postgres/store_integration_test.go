//go:build integration

package postgres_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"lockgate/internal/lockout/models"
	"lockgate/internal/lockout/store/postgres"
	"lockgate/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *postgres.Store
	rule     models.Rule
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = postgres.New(s.postgres.DB)
	s.rule = models.Rule{MaxAttempts: 5, LockoutDuration: 15 * time.Minute, ResetOnExpiry: true}
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.Truncate(context.Background(), "attempt_records"))
}

func (s *PostgresStoreSuite) key() models.Key {
	return models.NewKey(models.KindLoginFailure, models.AccountSubject(uuid.NewString()))
}

func (s *PostgresStoreSuite) TestGetMissing() {
	rec, err := s.store.Get(context.Background(), s.key())
	s.Require().NoError(err)
	s.Nil(rec)
}

func (s *PostgresStoreSuite) TestRecordFailureRoundTrip() {
	ctx := context.Background()
	key := s.key()
	now := time.Now().UTC().Truncate(time.Microsecond)

	for i := 1; i <= 4; i++ {
		rec, transitioned, err := s.store.RecordFailure(ctx, key, s.rule, "192.0.2.10", now)
		s.Require().NoError(err)
		s.False(transitioned)
		s.Equal(i, rec.FailedCount)
	}
	rec, transitioned, err := s.store.RecordFailure(ctx, key, s.rule, "192.0.2.11", now)
	s.Require().NoError(err)
	s.True(transitioned)

	stored, err := s.store.Get(ctx, key)
	s.Require().NoError(err)
	s.Equal(5, stored.FailedCount)
	s.Equal("192.0.2.11", stored.LastOrigin)
	s.Require().NotNil(stored.LockedUntil)
	s.WithinDuration(*rec.LockedUntil, *stored.LockedUntil, time.Millisecond)
}

func (s *PostgresStoreSuite) TestResetIfExpired() {
	ctx := context.Background()
	key := s.key()
	now := time.Now().UTC()
	for range 5 {
		_, _, err := s.store.RecordFailure(ctx, key, s.rule, "", now)
		s.Require().NoError(err)
	}

	reset, err := s.store.ResetIfExpired(ctx, key, now.Add(time.Minute))
	s.Require().NoError(err)
	s.False(reset)

	reset, err = s.store.ResetIfExpired(ctx, key, now.Add(16*time.Minute))
	s.Require().NoError(err)
	s.True(reset)

	stored, err := s.store.Get(ctx, key)
	s.Require().NoError(err)
	s.Zero(stored.FailedCount)
	s.Nil(stored.LockedUntil)
}

func (s *PostgresStoreSuite) TestResetExpired() {
	ctx := context.Background()
	now := time.Now().UTC()
	rule := models.Rule{MaxAttempts: 1, LockoutDuration: time.Minute, ResetOnExpiry: true}
	for range 3 {
		_, _, err := s.store.RecordFailure(ctx, s.key(), rule, "", now)
		s.Require().NoError(err)
	}

	n, err := s.store.ResetExpired(ctx, now.Add(2*time.Minute))
	s.Require().NoError(err)
	s.Equal(3, n)
}

func (s *PostgresStoreSuite) TestConcurrentFailuresTransitionOnce() {
	ctx := context.Background()
	key := s.key()
	now := time.Now().UTC()
	const goroutines = 50

	var (
		wg          sync.WaitGroup
		errs        atomic.Int32
		transitions atomic.Int32
	)
	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, transitioned, err := s.store.RecordFailure(ctx, key, s.rule, "", now)
			if err != nil {
				errs.Add(1)
				return
			}
			if transitioned {
				transitions.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(0), errs.Load())
	s.Equal(int32(1), transitions.Load())

	stored, err := s.store.Get(ctx, key)
	s.Require().NoError(err)
	s.Equal(goroutines, stored.FailedCount)
}
