// Package reporting initializes crash and error reporting.
package reporting

import (
	"time"

	"github.com/getsentry/sentry-go"

	"lockgate/internal/platform/config"
)

const flushTimeout = 2 * time.Second

// Init configures the global Sentry hub. With no DSN it is a no-op and the
// returned flush does nothing. Call flush before exit so buffered events ship.
func Init(cfg config.SentryConfig, environment, release string) (flush func(), err error) {
	if cfg.DSN == "" {
		return func() {}, nil
	}
	err = sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      environment,
		Release:          release,
		AttachStacktrace: true,
	})
	if err != nil {
		return func() {}, err
	}
	return func() { sentry.Flush(flushTimeout) }, nil
}
