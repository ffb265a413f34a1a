// Package notify delivers lockout and reset notifications off the request
// path. The orchestrator enqueues; workers fan each notification out to the
// configured sinks. Delivery is best-effort: failures are logged and
// reported, never returned to the caller.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"lockgate/internal/platform/metrics"
	"lockgate/pkg/requestcontext"
)

// Notification types.
const (
	TypeAccountLocked  = "account_locked"
	TypeOriginLocked   = "origin_locked"
	TypeResetRequested = "reset_requested"
)

const (
	defaultQueueSize      = 256
	defaultWorkers        = 2
	defaultDeliverTimeout = 5 * time.Second
	defaultDrainTimeout   = 10 * time.Second
)

// Notification is one queued message. Key groups related messages (account
// ID or origin) and is used as the Kafka record key.
type Notification struct {
	Type      string
	Key       string
	RequestID string
	Payload   any
}

// Sink delivers notifications to one destination.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, n Notification) error
}

// ErrorReporter receives delivery failures, e.g. CaptureWithSentry.
type ErrorReporter func(ctx context.Context, err error, tags map[string]string)

type Dispatcher struct {
	sinks          []Sink
	queue          chan queued
	workers        int
	deliverTimeout time.Duration
	drainTimeout   time.Duration
	logger         *slog.Logger
	metrics        *metrics.Metrics
	report         ErrorReporter
}

type queued struct {
	ctx context.Context
	n   Notification
}

type Option func(*Dispatcher)

func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

func WithQueueSize(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.queue = make(chan queued, n)
		}
	}
}

func WithWorkers(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.workers = n
		}
	}
}

func WithDeliverTimeout(t time.Duration) Option {
	return func(d *Dispatcher) {
		if t > 0 {
			d.deliverTimeout = t
		}
	}
}

func WithErrorReporter(r ErrorReporter) Option {
	return func(d *Dispatcher) {
		d.report = r
	}
}

func NewDispatcher(sinks []Sink, opts ...Option) (*Dispatcher, error) {
	if len(sinks) == 0 {
		return nil, fmt.Errorf("at least one notification sink is required")
	}
	d := &Dispatcher{
		sinks:          sinks,
		queue:          make(chan queued, defaultQueueSize),
		workers:        defaultWorkers,
		deliverTimeout: defaultDeliverTimeout,
		drainTimeout:   defaultDrainTimeout,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	return d, nil
}

func (d *Dispatcher) NotifyAccountLocked(ctx context.Context, n AccountLocked) {
	d.enqueue(ctx, Notification{Type: TypeAccountLocked, Key: n.AccountID, Payload: n})
}

func (d *Dispatcher) NotifyOriginLocked(ctx context.Context, n OriginLocked) {
	d.enqueue(ctx, Notification{Type: TypeOriginLocked, Key: n.Origin, Payload: n})
}

func (d *Dispatcher) NotifyResetRequested(ctx context.Context, n ResetRequested) {
	d.enqueue(ctx, Notification{Type: TypeResetRequested, Key: n.AccountID, Payload: n})
}

// enqueue never blocks. A full queue drops the notification.
func (d *Dispatcher) enqueue(ctx context.Context, n Notification) {
	n.RequestID = requestcontext.RequestID(ctx)
	// Delivery outlives the request; keep its values but not its deadline.
	item := queued{ctx: context.WithoutCancel(ctx), n: n}
	select {
	case d.queue <- item:
	default:
		d.metrics.IncNotificationDropped(n.Type)
		d.logger.WarnContext(ctx, "notification dropped, queue full",
			"type", n.Type,
			"request_id", n.RequestID,
		)
	}
}

// Start runs the workers until ctx is cancelled, then drains what is already
// queued within the drain timeout.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.logger.InfoContext(ctx, "notification dispatcher started",
		"workers", d.workers,
		"sinks", len(d.sinks),
	)

	g, gctx := errgroup.WithContext(ctx)
	for range d.workers {
		g.Go(func() error {
			for {
				select {
				case <-gctx.Done():
					return nil
				case item := <-d.queue:
					d.deliver(item)
				}
			}
		})
	}
	_ = g.Wait()

	d.drain()
	d.logger.Info("notification dispatcher stopped")
	return nil
}

func (d *Dispatcher) drain() {
	deadline := time.After(d.drainTimeout)
	for {
		select {
		case item := <-d.queue:
			d.deliver(item)
		case <-deadline:
			d.logger.Warn("notification drain timed out", "pending", len(d.queue))
			return
		default:
			return
		}
	}
}

func (d *Dispatcher) deliver(item queued) {
	for _, sink := range d.sinks {
		ctx, cancel := context.WithTimeout(item.ctx, d.deliverTimeout)
		err := sink.Deliver(ctx, item.n)
		cancel()
		if err == nil {
			d.metrics.IncNotification(item.n.Type, sink.Name(), "delivered")
			continue
		}

		if errors.Is(err, ErrSinkSuspended) {
			d.metrics.IncNotification(item.n.Type, sink.Name(), "suspended")
			continue
		}

		d.metrics.IncNotification(item.n.Type, sink.Name(), "failed")
		d.logger.ErrorContext(item.ctx, "notification delivery failed",
			"type", item.n.Type,
			"sink", sink.Name(),
			"error", err,
			"request_id", item.n.RequestID,
		)
		if d.report != nil {
			d.report(item.ctx, err, map[string]string{
				"notification_type": item.n.Type,
				"sink":              sink.Name(),
				"request_id":        item.n.RequestID,
			})
		}
	}
}
