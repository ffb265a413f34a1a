package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"lockgate/internal/platform/config"
	"lockgate/internal/platform/health"
	"lockgate/internal/platform/logger"
	"lockgate/internal/platform/reporting"
	httptransport "lockgate/internal/transport/http"
)

const shutdownTimeout = 10 * time.Second

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	_ = godotenv.Load() //nolint:errcheck // .env is optional

	cfg, err := config.FromEnv()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Environment)

	if err := run(cfg, log); err != nil {
		log.Error("server exited with error", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

func run(cfg config.Server, log *slog.Logger) error {
	flush, err := reporting.Init(cfg.Sentry, cfg.Environment, health.Version)
	if err != nil {
		return err
	}
	defer flush()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	log.Info("initializing lockgate",
		"addr", cfg.Addr,
		"environment", cfg.Environment,
		"lockout_backend", cfg.Lockout.Backend,
	)

	app, err := build(ctx, cfg, log, reg)
	if err != nil {
		return err
	}
	defer app.close()

	router := httptransport.NewRouter(httptransport.Deps{
		Auth:           app.authHandler,
		Lockout:        app.lockoutHandler,
		Health:         app.health,
		Verifier:       app.verifier,
		AdminToken:     cfg.AdminToken,
		TrustedProxies: cfg.TrustedProxies,
		Registry:       reg,
		Logger:         log,
	})
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      35 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting http server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		return ignoreCanceled(app.dispatcher.Start(gctx))
	})
	if app.sweeper != nil {
		g.Go(func() error {
			return ignoreCanceled(app.sweeper.Start(gctx))
		})
	}

	return g.Wait()
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
