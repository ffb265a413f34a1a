// Package publisher feeds lockout and credential events (failed logins,
// locks, resets, operator clears) into an audit.Store.
package publisher

import (
	"context"
	"log/slog"
	"sync"
	"time"

	dErrors "lockgate/pkg/domain-errors"
	audit "lockgate/pkg/platform/audit"
	"lockgate/pkg/platform/audit/metrics"
)

const defaultPersistTimeout = 5 * time.Second

var (
	errClosed     = dErrors.New(dErrors.CodeInternal, "audit publisher closed")
	errBufferFull = dErrors.New(dErrors.CodeInternal, "audit buffer full")
)

// Publisher writes synchronously by default. With WithAsyncBuffer a single
// writer drains a bounded queue, so a slow store never delays a login
// response; a full queue drops the event instead.
type Publisher struct {
	store   audit.Store
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
	timeout time.Duration

	queue chan audit.Event
	wg    sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

type PublisherOption func(*Publisher)

// WithAsyncBuffer queues up to size events for the background writer.
func WithAsyncBuffer(size int) PublisherOption {
	return func(p *Publisher) {
		if size > 0 {
			p.queue = make(chan audit.Event, size)
		}
	}
}

func WithPublisherLogger(logger *slog.Logger) PublisherOption {
	return func(p *Publisher) { p.logger = logger }
}

func WithMetrics(m *metrics.Metrics) PublisherOption {
	return func(p *Publisher) { p.metrics = m }
}

// WithPersistTimeout bounds each background Append.
func WithPersistTimeout(d time.Duration) PublisherOption {
	return func(p *Publisher) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithClock stamps events that arrive without a timestamp.
func WithClock(now func() time.Time) PublisherOption {
	return func(p *Publisher) {
		if now != nil {
			p.now = now
		}
	}
}

func NewPublisher(store audit.Store, opts ...PublisherOption) *Publisher {
	p := &Publisher{
		store:   store,
		logger:  slog.New(slog.DiscardHandler),
		now:     time.Now,
		timeout: defaultPersistTimeout,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.queue != nil {
		p.wg.Go(p.drain)
	}
	return p
}

func (p *Publisher) drain() {
	for event := range p.queue {
		p.metrics.Dequeued()
		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		_ = p.persist(ctx, event) //nolint:errcheck // logged and counted in persist
		cancel()
	}
}

func (p *Publisher) persist(ctx context.Context, event audit.Event) error {
	start := time.Now()
	err := p.store.Append(ctx, event)
	p.metrics.Persisted(event.Action, time.Since(start).Seconds(), err)
	if err != nil {
		p.logger.Error("failed to persist audit event",
			"error", err,
			"action", event.Action,
			"request_id", event.RequestID,
		)
	}
	return err
}

// Emit records an event, stamping it when Timestamp is zero.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = p.now().UTC()
	}
	if p.queue == nil {
		return p.persist(ctx, event)
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return errClosed
	}
	select {
	case p.queue <- event:
		p.metrics.Enqueued(event.Action)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		p.metrics.Dropped(event.Action)
		p.logger.Warn("audit buffer full, event dropped",
			"action", event.Action,
			"request_id", event.RequestID,
		)
		return errBufferFull
	}
}

// List reads back persisted events. Events still queued are not visible.
func (p *Publisher) List(ctx context.Context, filter audit.Filter) ([]audit.Event, error) {
	return p.store.List(ctx, filter)
}

// Close stops accepting events and waits for the queue to drain. It is
// idempotent.
func (p *Publisher) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	if p.queue != nil {
		close(p.queue)
		p.wg.Wait()
	}
}
