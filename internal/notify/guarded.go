package notify

import (
	"context"
	"errors"
	"log/slog"

	"lockgate/pkg/platform/circuit"
)

// ErrSinkSuspended is returned while a guarded sink's circuit is open. The
// dispatcher counts it without reporting it.
var ErrSinkSuspended = errors.New("notification sink suspended")

// GuardedSink stops calling a failing sink for a cooldown so a dead broker
// does not cost every notification a full delivery timeout.
type GuardedSink struct {
	sink    Sink
	breaker *circuit.Breaker
}

// NewGuardedSink wraps sink in a breaker named after it. Transitions are
// logged: opening at warn, everything else at info.
func NewGuardedSink(sink Sink, logger *slog.Logger, opts ...circuit.Option) *GuardedSink {
	if logger == nil {
		logger = slog.Default()
	}
	logChange := func(name string, from, to circuit.State) {
		level := slog.LevelInfo
		if to == circuit.StateOpen {
			level = slog.LevelWarn
		}
		logger.Log(context.Background(), level, "notification sink circuit changed",
			"sink", name,
			"from", from.String(),
			"to", to.String(),
		)
	}
	opts = append(opts, circuit.WithStateChange(logChange))
	return &GuardedSink{sink: sink, breaker: circuit.New(sink.Name(), opts...)}
}

func (g *GuardedSink) Name() string { return g.sink.Name() }

// State exposes the breaker state for health reporting and tests.
func (g *GuardedSink) State() circuit.State { return g.breaker.State() }

func (g *GuardedSink) Deliver(ctx context.Context, n Notification) error {
	err := g.breaker.Do(func() error { return g.sink.Deliver(ctx, n) })
	if errors.Is(err, circuit.ErrOpen) {
		return ErrSinkSuspended
	}
	return err
}
