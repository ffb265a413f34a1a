// Package sync provides keyed locking for the in-memory lockout ledger, where
// each attempt record needs read-modify-write atomicity without one global
// lock across all subjects.
package sync

import (
	"hash/maphash"
	"sync"
)

const shardCount = 64

// ShardedMutex maps keys onto a fixed set of mutexes. A key always lands on
// the same shard; unrelated keys that collide merely serialize.
type ShardedMutex struct {
	seed   maphash.Seed
	shards [shardCount]sync.Mutex
}

// NewShardedMutex returns a ShardedMutex with a per-process hash seed.
func NewShardedMutex() *ShardedMutex {
	return &ShardedMutex{seed: maphash.MakeSeed()}
}

// WithLock runs fn while holding key's shard.
func (m *ShardedMutex) WithLock(key string, fn func()) {
	mu := &m.shards[m.shardFor(key)]
	mu.Lock()
	defer mu.Unlock()
	fn()
}

// Guard runs fn under key's shard and returns its result.
func Guard[T any](m *ShardedMutex, key string, fn func() T) T {
	var out T
	m.WithLock(key, func() { out = fn() })
	return out
}

func (m *ShardedMutex) shardFor(key string) int {
	return int(maphash.String(m.seed, key) % shardCount)
}
