package redis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lockgate/internal/lockout/models"
)

func TestRecordKeyUsesHashTag(t *testing.T) {
	key := models.NewKey(models.KindLoginFailure, models.OriginSubject("203.0.113.5"))
	assert.Equal(t, "lockgate:{attempts}:LOGIN_FAILURE|origin|203.0.113.5", recordKey(key))
}

func TestParseRecord(t *testing.T) {
	key := models.NewKey(models.KindResetTokenInvalid, models.OriginSubject("203.0.113.5"))
	locked := time.Date(2026, 5, 4, 10, 15, 0, 0, time.UTC)

	r, err := parseRecord(key, map[string]string{
		"count":        "5",
		"window_start": "0",
		"locked_until": "1777889700000",
		"last_origin":  "203.0.113.5",
		"last_attempt": "1777888800000",
	})
	require.NoError(t, err)
	assert.Equal(t, 5, r.FailedCount)
	assert.Nil(t, r.WindowStart)
	require.NotNil(t, r.LockedUntil)
	assert.Equal(t, locked, *r.LockedUntil)
	assert.Equal(t, "203.0.113.5", r.LastOrigin)
	assert.Equal(t, key, r.Key())
}

func TestParseRecordRejectsGarbage(t *testing.T) {
	key := models.NewKey(models.KindLoginFailure, models.AccountSubject("acct"))
	_, err := parseRecord(key, map[string]string{"count": "many"})
	assert.Error(t, err)
}

func TestRecordFromReply(t *testing.T) {
	key := models.NewKey(models.KindLoginFailure, models.AccountSubject("acct"))
	now := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	until := now.Add(15 * time.Minute)

	t.Run("transition carries the lock end it wrote", func(t *testing.T) {
		r, transitioned, err := recordFromReply(key, []int64{1, 5, now.Add(-time.Minute).UnixMilli(), until.UnixMilli()}, "203.0.113.5", now)
		require.NoError(t, err)
		assert.True(t, transitioned)
		assert.Equal(t, 5, r.FailedCount)
		require.NotNil(t, r.LockedUntil)
		assert.Equal(t, until, *r.LockedUntil)
		assert.True(t, r.IsLocked(now))
		assert.Equal(t, "203.0.113.5", r.LastOrigin)
		require.NotNil(t, r.LastAttemptAt)
		assert.Equal(t, now, *r.LastAttemptAt)

		out := models.NewOutcome(r, models.Rule{MaxAttempts: 5}, now, transitioned)
		assert.Equal(t, until, out.Until)
	})

	t.Run("open record has no lock", func(t *testing.T) {
		r, transitioned, err := recordFromReply(key, []int64{0, 2, now.UnixMilli(), 0}, "", now)
		require.NoError(t, err)
		assert.False(t, transitioned)
		assert.Nil(t, r.LockedUntil)
		require.NotNil(t, r.WindowStart)
	})

	t.Run("short reply is an error", func(t *testing.T) {
		_, _, err := recordFromReply(key, []int64{1}, "", now)
		assert.Error(t, err)
	})
}
