package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	authHandler "lockgate/internal/auth/handler"
	authModels "lockgate/internal/auth/models"
	authService "lockgate/internal/auth/service"
	userStore "lockgate/internal/auth/store/user"
	lockoutHandler "lockgate/internal/lockout/handler"
	lockoutMetrics "lockgate/internal/lockout/metrics"
	lockoutService "lockgate/internal/lockout/service"
	lockoutMemory "lockgate/internal/lockout/store/memory"
	lockoutPostgres "lockgate/internal/lockout/store/postgres"
	lockoutRedis "lockgate/internal/lockout/store/redis"
	"lockgate/internal/lockout/workers/cleanup"
	"lockgate/internal/notify"
	"lockgate/internal/platform/config"
	"lockgate/internal/platform/database"
	"lockgate/internal/platform/health"
	"lockgate/internal/platform/kafka"
	"lockgate/internal/platform/kafka/producer"
	"lockgate/internal/platform/metrics"
	redisPlatform "lockgate/internal/platform/redis"
	"lockgate/internal/platform/tracer"
	resetService "lockgate/internal/resettoken/service"
	resetMemory "lockgate/internal/resettoken/store/memory"
	resetPostgres "lockgate/internal/resettoken/store/postgres"
	"lockgate/internal/seeder"
	"lockgate/internal/token"
	"lockgate/migrations"
	"lockgate/pkg/platform/audit"
	auditMetrics "lockgate/pkg/platform/audit/metrics"
	auditPublisher "lockgate/pkg/platform/audit/publisher"
	auditMemory "lockgate/pkg/platform/audit/store/memory"
	auditPostgres "lockgate/pkg/platform/audit/store/postgres"
	"lockgate/pkg/platform/circuit"
)

const (
	auditBuffer  = 1024
	checkTimeout = 2 * time.Second

	breakerFailures = 5
	breakerCooldown = 30 * time.Second
)

// application holds the wired components run and the router need.
type application struct {
	authHandler    *authHandler.Handler
	lockoutHandler *lockoutHandler.Handler
	health         *health.Handler
	verifier       *token.MiddlewareVerifier
	dispatcher     *notify.Dispatcher
	sweeper        *cleanup.Sweeper

	closers []func()
}

// close releases resources in reverse acquisition order.
func (a *application) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func build(ctx context.Context, cfg config.Server, log *slog.Logger, reg *prometheus.Registry) (_ *application, err error) {
	app := &application{health: health.New(cfg.Environment,
		health.WithCheckTimeout(checkTimeout),
		health.WithInfo("lockout_backend", string(cfg.Lockout.Backend)),
	)}
	defer func() {
		if err != nil {
			app.close()
		}
	}()

	db, err := openDatabase(ctx, cfg, log, reg, app)
	if err != nil {
		return nil, err
	}

	ledgerStore, err := openLedgerStore(cfg, db, reg, app)
	if err != nil {
		return nil, err
	}

	// Audit trail
	var auditStore audit.Store = auditMemory.NewInMemoryStore()
	if db != nil {
		if auditStore, err = auditPostgres.New(db); err != nil {
			return nil, err
		}
	}
	publisher := auditPublisher.NewPublisher(auditStore,
		auditPublisher.WithAsyncBuffer(auditBuffer),
		auditPublisher.WithPublisherLogger(log),
		auditPublisher.WithMetrics(auditMetrics.New(reg)),
	)
	app.closers = append(app.closers, publisher.Close)

	// Lockout ledger
	lockoutM := lockoutMetrics.New(reg)
	ledger, err := lockoutService.New(ledgerStore,
		lockoutService.WithLogger(log),
		lockoutService.WithMetrics(lockoutM),
		lockoutService.WithAuditLogger(audit.NewLogger(log, publisher, "lockgate")),
	)
	if err != nil {
		return nil, fmt.Errorf("lockout ledger: %w", err)
	}
	if cfg.Lockout.SweepInterval > 0 {
		app.sweeper = cleanup.New(ledgerStore,
			cleanup.WithLogger(log),
			cleanup.WithInterval(cfg.Lockout.SweepInterval),
			cleanup.WithMetrics(lockoutM),
		)
	}

	// Credentials
	issuer, err := token.New([]byte(cfg.Auth.JWTSigningKey),
		token.WithAccessTTL(cfg.Auth.AccessTTL),
		token.WithRefreshTTL(cfg.Auth.RefreshTTL),
		token.WithClockSkew(cfg.Auth.ClockSkew),
	)
	if err != nil {
		return nil, fmt.Errorf("token issuer: %w", err)
	}
	app.verifier = token.NewMiddlewareVerifier(issuer)

	var resetStore resetService.Store = resetMemory.New()
	var users authService.UserStore = userStore.New()
	if db != nil {
		resetStore = resetPostgres.New(db)
		users = userStore.NewPostgres(db)
	}
	resets, err := resetService.New(resetStore,
		resetService.WithLogger(log),
		resetService.WithTTL(cfg.Auth.ResetTokenTTL),
	)
	if err != nil {
		return nil, fmt.Errorf("reset tokens: %w", err)
	}

	// Notifications
	authM := metrics.New(reg)
	sinks, err := notificationSinks(cfg, log, app)
	if err != nil {
		return nil, err
	}
	app.dispatcher, err = notify.NewDispatcher(sinks,
		notify.WithLogger(log),
		notify.WithMetrics(authM),
		notify.WithQueueSize(cfg.Notify.QueueSize),
		notify.WithErrorReporter(notify.CaptureWithSentry),
	)
	if err != nil {
		return nil, fmt.Errorf("notification dispatcher: %w", err)
	}

	svc, err := authService.New(users, ledger, issuer, resets, app.dispatcher,
		authService.WithLogger(log),
		authService.WithAuditPublisher(publisher),
		authService.WithMetrics(authM),
		authService.WithTracer(tracer.NewOTel()),
		authService.WithBcryptCost(cfg.Auth.BcryptCost),
	)
	if err != nil {
		return nil, fmt.Errorf("auth service: %w", err)
	}

	if err := seed(ctx, cfg, svc, log); err != nil {
		return nil, err
	}

	app.authHandler = authHandler.New(svc, log)
	app.lockoutHandler = lockoutHandler.New(ledger, publisher, log)
	return app, nil
}

// openDatabase connects when DATABASE_URL is set and applies pending
// migrations. It returns nil when no database is configured.
func openDatabase(ctx context.Context, cfg config.Server, log *slog.Logger, reg prometheus.Registerer, app *application) (*sql.DB, error) {
	pool, err := database.New(ctx, database.DefaultConfig(cfg.Database.URL))
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	if pool == nil {
		return nil, nil
	}
	app.closers = append(app.closers, func() { _ = pool.Close() })
	reg.MustRegister(pool.Collector())
	app.health.RegisterCheck("postgres", pool.Health)

	if cfg.Database.AutoMigrate {
		applied, err := database.Migrate(ctx, pool.DB(), migrations.FS)
		if err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
		if len(applied) > 0 {
			log.Info("database migrations applied", "migrations", applied)
		}
	}
	return pool.DB(), nil
}

func openLedgerStore(cfg config.Server, db *sql.DB, reg prometheus.Registerer, app *application) (lockoutService.Store, error) {
	switch cfg.Lockout.Backend {
	case config.LedgerPostgres:
		return lockoutPostgres.New(db), nil
	case config.LedgerRedis:
		client, err := redisPlatform.New(cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
		if client == nil {
			return nil, fmt.Errorf("redis: lockout backend %q needs REDIS_URL", cfg.Lockout.Backend)
		}
		reg.MustRegister(client.Collector())
		app.closers = append(app.closers, func() { _ = client.Close() })
		app.health.RegisterCheck("redis", client.Health)
		return lockoutRedis.New(client.Client), nil
	default:
		return lockoutMemory.New(), nil
	}
}

func notificationSinks(cfg config.Server, log *slog.Logger, app *application) ([]notify.Sink, error) {
	sinks := []notify.Sink{notify.NewLogSink(log)}
	if cfg.Kafka.Brokers == "" {
		return sinks, nil
	}

	p, err := producer.New(kafka.DefaultProducerConfig(cfg.Kafka.Brokers), log)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	app.closers = append(app.closers, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = p.Close(ctx)
	})
	app.health.RegisterCheck("kafka", p.Healthy)

	kafkaSink, err := notify.NewKafkaSink(p, cfg.Kafka.NotifyTopic)
	if err != nil {
		return nil, err
	}
	guarded := notify.NewGuardedSink(kafkaSink, log,
		circuit.WithFailureThreshold(breakerFailures),
		circuit.WithCooldown(breakerCooldown),
	)
	return append(sinks, guarded), nil
}

func seed(ctx context.Context, cfg config.Server, svc seeder.AccountCreator, log *slog.Logger) error {
	var accounts []seeder.Account
	if cfg.Seed.AdminEmail != "" {
		accounts = append(accounts, seeder.Account{
			Email:    cfg.Seed.AdminEmail,
			Password: cfg.Seed.AdminPassword,
			Role:     authModels.RoleAdmin,
		})
	}
	if cfg.Seed.Demo && cfg.Environment == "development" {
		accounts = append(accounts, seeder.DemoAccounts()...)
	}
	if len(accounts) == 0 {
		return nil
	}
	if _, err := seeder.New(svc, log).Seed(ctx, accounts); err != nil {
		return err
	}
	return nil
}
