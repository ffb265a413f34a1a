package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/thedevsaddam/retry"
)

// ErrNotConfigured is returned by Health when no DSN was supplied.
var ErrNotConfigured = errors.New("database not configured")

// Config holds Postgres pool settings for the ledger, audit, user and reset
// token stores.
type Config struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	// ConnectAttempts and RetryDelay govern the startup ping, so the server
	// can come up alongside its database in compose or k8s.
	ConnectAttempts uint
	RetryDelay      time.Duration
	PingTimeout     time.Duration
}

// DefaultConfig returns the pool settings used by cmd/server.
func DefaultConfig(url string) Config {
	return Config{
		URL:             url,
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		ConnectAttempts: 5,
		RetryDelay:      time.Second,
		PingTimeout:     5 * time.Second,
	}
}

// Pool owns the *sql.DB shared by every Postgres-backed store.
type Pool struct {
	db *sql.DB
}

// New opens the pool and pings it until it answers or ConnectAttempts runs
// out. An empty URL yields a nil pool and no error.
func New(ctx context.Context, cfg Config) (*Pool, error) {
	if cfg.URL == "" {
		return nil, nil
	}

	db, err := sql.Open("pgx", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	attempts := max(cfg.ConnectAttempts, 1)
	err = retry.DoFunc(attempts, cfg.RetryDelay, func() error {
		if ctx.Err() != nil {
			return nil
		}
		pctx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
		defer cancel()
		return db.PingContext(pctx)
	})
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		db.Close() //nolint:errcheck // best-effort cleanup on init failure
		return nil, fmt.Errorf("ping database after %d attempts: %w", attempts, err)
	}

	return &Pool{db: db}, nil
}

// DB returns the underlying *sql.DB.
func (p *Pool) DB() *sql.DB {
	return p.db
}

// Collector exposes sql.DBStats under the lockgate namespace.
func (p *Pool) Collector() prometheus.Collector {
	return collectors.NewDBStatsCollector(p.db, "lockgate")
}

// Health is the readiness check for the pool.
func (p *Pool) Health(ctx context.Context) error {
	if p == nil || p.db == nil {
		return ErrNotConfigured
	}
	return p.db.PingContext(ctx)
}

// Close closes the pool. It is safe on a nil pool.
func (p *Pool) Close() error {
	if p == nil || p.db == nil {
		return nil
	}
	return p.db.Close()
}
