//go:build integration

package containers

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"lockgate/internal/platform/database"
	"lockgate/migrations"
)

// lockgateTables lists every table the embedded migrations create, children
// before parents.
var lockgateTables = []string{"audit_events", "reset_tokens", "attempt_records", "accounts"}

// PostgresContainer is a Postgres instance migrated with lockgate's schema.
type PostgresContainer struct {
	Container testcontainers.Container
	DSN       string
	DB        *sql.DB
}

// NewPostgresContainer starts Postgres and applies migrations.FS through
// database.Migrate, exactly as cmd/server does. The container outlives the
// test and is reaped by Ryuk when the process exits.
func NewPostgresContainer(t *testing.T) *PostgresContainer {
	t.Helper()

	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:18-alpine",
		postgres.WithDatabase("lockgate_test"),
		postgres.WithUsername("lockgate"),
		postgres.WithPassword("lockgate_test_password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	fail := func(step string, err error) {
		_ = container.Terminate(ctx)
		t.Fatalf("postgres %s: %v", step, err)
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		fail("connection string", err)
	}

	pool, err := database.New(ctx, database.DefaultConfig(dsn))
	if err != nil {
		fail("connect", err)
	}

	if _, err := database.Migrate(ctx, pool.DB(), migrations.FS); err != nil {
		_ = pool.Close()
		fail("migrate", err)
	}

	return &PostgresContainer{Container: container, DSN: dsn, DB: pool.DB()}
}

// Truncate empties the named tables in one statement.
func (p *PostgresContainer) Truncate(ctx context.Context, tables ...string) error {
	if len(tables) == 0 {
		return nil
	}
	_, err := p.DB.ExecContext(ctx, "TRUNCATE TABLE "+strings.Join(tables, ", ")+" CASCADE")
	return err
}

// Reset empties every lockgate table.
func (p *PostgresContainer) Reset(ctx context.Context) error {
	return p.Truncate(ctx, lockgateTables...)
}

// QueryRow runs a query expected to return a single row.
func (p *PostgresContainer) QueryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return p.DB.QueryRowContext(ctx, query, args...)
}
