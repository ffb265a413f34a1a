//go:build integration

// Package containers starts the backing services lockgate's integration
// suites run against. Each container is started once per test binary and
// shared by every suite in the package.
package containers

import (
	"sync"
	"testing"
)

// Manager hands out shared containers, starting each on first use.
type Manager struct {
	mu       sync.Mutex
	postgres *PostgresContainer
	kafka    *KafkaContainer
	redis    *RedisContainer
}

var (
	globalManager *Manager
	initOnce      sync.Once
)

// GetManager returns the process-wide manager.
func GetManager() *Manager {
	initOnce.Do(func() {
		globalManager = &Manager{}
	})
	return globalManager
}

// GetPostgres returns the shared Postgres container with lockgate's schema applied.
func (m *Manager) GetPostgres(t *testing.T) *PostgresContainer {
	t.Helper()
	return lazy(m, &m.postgres, t, NewPostgresContainer)
}

// GetKafka returns the shared Kafka-compatible broker.
func (m *Manager) GetKafka(t *testing.T) *KafkaContainer {
	t.Helper()
	return lazy(m, &m.kafka, t, NewKafkaContainer)
}

// GetRedis returns the shared Redis container backing the lockout ledger tests.
func (m *Manager) GetRedis(t *testing.T) *RedisContainer {
	t.Helper()
	return lazy(m, &m.redis, t, NewRedisContainer)
}

func lazy[T any](m *Manager, slot **T, t *testing.T, start func(*testing.T) *T) *T {
	t.Helper()

	m.mu.Lock()
	defer m.mu.Unlock()

	if *slot == nil {
		*slot = start(t)
	}
	return *slot
}
