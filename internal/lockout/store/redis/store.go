// Package redis stores attempt records as Redis hashes. Every mutation runs as
// a Lua script so the increment and threshold check are one atomic step even
// across service instances.
package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"lockgate/internal/lockout/models"
)

const (
	// The hash tag keeps records and the lock index in one cluster slot.
	keyPrefix = "lockgate:{attempts}:"
	indexKey  = keyPrefix + "locked"
)

// recordFailureScript mirrors AttemptRecord.ApplyFailure. Times are unix
// milliseconds; zero means unset. It returns the written state as
// {transitioned, count, window_start, locked_until} so the caller never reads
// the hash back.
var recordFailureScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local max_attempts = tonumber(ARGV[2])
local duration = tonumber(ARGV[3])
local reset_on_expiry = ARGV[4] == '1'
local window = tonumber(ARGV[5])
local origin = ARGV[6]

local count = tonumber(redis.call('HGET', KEYS[1], 'count') or '0')
local window_start = tonumber(redis.call('HGET', KEYS[1], 'window_start') or '0')
local locked_until = tonumber(redis.call('HGET', KEYS[1], 'locked_until') or '0')

if locked_until > 0 and now >= locked_until then
  locked_until = 0
  if reset_on_expiry then
    count = 0
    window_start = 0
  end
end
if window > 0 and window_start > 0 and locked_until == 0 and now >= window_start + window then
  count = 0
  window_start = 0
end
if count == 0 or window_start == 0 then
  window_start = now
end

count = count + 1
local transitioned = 0
if locked_until == 0 and count >= max_attempts then
  locked_until = now + duration
  transitioned = 1
end

redis.call('HSET', KEYS[1], 'count', count, 'window_start', window_start,
  'locked_until', locked_until, 'last_origin', origin, 'last_attempt', now)
if locked_until > 0 then
  redis.call('ZADD', KEYS[2], locked_until, KEYS[1])
else
  redis.call('ZREM', KEYS[2], KEYS[1])
end
return {transitioned, count, window_start, locked_until}
`)

// resetScript clears a record. With ARGV[1] set it only clears a lock that
// ended at or before that time.
var resetScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return 0
end
if ARGV[1] ~= '' then
  local locked_until = tonumber(redis.call('HGET', KEYS[1], 'locked_until') or '0')
  if locked_until == 0 or tonumber(ARGV[1]) < locked_until then
    return 0
  end
end
redis.call('HSET', KEYS[1], 'count', 0, 'window_start', 0, 'locked_until', 0)
redis.call('ZREM', KEYS[2], KEYS[1])
return 1
`)

// Store is a Redis-backed attempt ledger.
type Store struct {
	client redis.Cmdable
}

func New(client redis.Cmdable) *Store {
	return &Store{client: client}
}

func recordKey(key models.Key) string {
	return keyPrefix + key.String()
}

func (s *Store) RecordFailure(ctx context.Context, key models.Key, rule models.Rule, origin string, now time.Time) (*models.AttemptRecord, bool, error) {
	resetOnExpiry := "0"
	if rule.ResetOnExpiry {
		resetOnExpiry = "1"
	}
	reply, err := recordFailureScript.Run(ctx, s.client,
		[]string{recordKey(key), indexKey},
		now.UnixMilli(),
		rule.MaxAttempts,
		rule.LockoutDuration.Milliseconds(),
		resetOnExpiry,
		rule.Window.Milliseconds(),
		origin,
	).Int64Slice()
	if err != nil {
		return nil, false, fmt.Errorf("record failure: %w", err)
	}
	return recordFromReply(key, reply, origin, now)
}

// recordFromReply rebuilds the record recordFailureScript wrote.
func recordFromReply(key models.Key, reply []int64, origin string, now time.Time) (*models.AttemptRecord, bool, error) {
	if len(reply) != 4 {
		return nil, false, fmt.Errorf("record failure: unexpected script reply %v", reply)
	}
	r := models.NewAttemptRecord(key)
	r.FailedCount = int(reply[1])
	r.WindowStart = unixMilli(reply[2])
	r.LockedUntil = unixMilli(reply[3])
	r.LastOrigin = origin
	at := time.UnixMilli(now.UnixMilli()).UTC()
	r.LastAttemptAt = &at
	return r, reply[0] == 1, nil
}

func unixMilli(ms int64) *time.Time {
	if ms <= 0 {
		return nil
	}
	t := time.UnixMilli(ms).UTC()
	return &t
}

func (s *Store) Get(ctx context.Context, key models.Key) (*models.AttemptRecord, error) {
	fields, err := s.client.HGetAll(ctx, recordKey(key)).Result()
	if err != nil {
		return nil, fmt.Errorf("get attempt record: %w", err)
	}
	if len(fields) == 0 {
		return nil, nil
	}
	return parseRecord(key, fields)
}

func (s *Store) Reset(ctx context.Context, key models.Key) error {
	if err := resetScript.Run(ctx, s.client, []string{recordKey(key), indexKey}, "").Err(); err != nil {
		return fmt.Errorf("reset attempt record: %w", err)
	}
	return nil
}

func (s *Store) ResetIfExpired(ctx context.Context, key models.Key, now time.Time) (bool, error) {
	return s.resetIfExpired(ctx, recordKey(key), now)
}

func (s *Store) resetIfExpired(ctx context.Context, hashKey string, now time.Time) (bool, error) {
	n, err := resetScript.Run(ctx, s.client, []string{hashKey, indexKey}, now.UnixMilli()).Int()
	if err != nil {
		return false, fmt.Errorf("reset expired attempt record: %w", err)
	}
	return n == 1, nil
}

// ResetExpired walks the lock index up to now. Each member is rechecked by the
// script, so a record relocked after the range read is left alone.
func (s *Store) ResetExpired(ctx context.Context, now time.Time) (int, error) {
	members, err := s.client.ZRangeByScore(ctx, indexKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("list expired attempt records: %w", err)
	}

	count := 0
	for _, member := range members {
		reset, err := s.resetIfExpired(ctx, member, now)
		if err != nil {
			return count, err
		}
		if reset {
			count++
		}
	}
	return count, nil
}

func parseRecord(key models.Key, fields map[string]string) (*models.AttemptRecord, error) {
	r := models.NewAttemptRecord(key)
	r.LastOrigin = fields["last_origin"]

	count, err := parseInt(fields["count"])
	if err != nil {
		return nil, fmt.Errorf("parse count: %w", err)
	}
	r.FailedCount = int(count)

	for name, dst := range map[string]**time.Time{
		"window_start": &r.WindowStart,
		"locked_until": &r.LockedUntil,
		"last_attempt": &r.LastAttemptAt,
	} {
		ms, err := parseInt(fields[name])
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		*dst = unixMilli(ms)
	}
	return r, nil
}

func parseInt(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseInt(s, 10, 64)
}
