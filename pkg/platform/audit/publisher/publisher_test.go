package publisher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "lockgate/pkg/domain-errors"
	audit "lockgate/pkg/platform/audit"
	"lockgate/pkg/platform/audit/metrics"
	"lockgate/pkg/platform/audit/store/memory"
)

type failingStore struct {
	memory.InMemoryStore
	err error
}

func (s *failingStore) Append(_ context.Context, _ audit.Event) error {
	return s.err
}

// blockingStore holds every Append until release is closed.
type blockingStore struct {
	memory.InMemoryStore
	release chan struct{}
}

func (s *blockingStore) Append(ctx context.Context, e audit.Event) error {
	<-s.release
	return s.InMemoryStore.Append(ctx, e)
}

func TestPublisher_EmitStoresEvent(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store)

	err := pub.Emit(context.Background(), audit.Event{
		Email:  "a@x.com",
		Action: string(audit.EventLoginSucceeded),
	})
	require.NoError(t, err)

	events, err := pub.List(context.Background(), audit.Filter{Email: "a@x.com"})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, string(audit.EventLoginSucceeded), events[0].Action)
	assert.False(t, events[0].Timestamp.IsZero())
}

func TestPublisher_PreservesExistingTimestamp(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store)
	custom := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, pub.Emit(context.Background(), audit.Event{Email: "a@x.com", Timestamp: custom}))

	events, err := pub.List(context.Background(), audit.Filter{Email: "a@x.com"})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, custom, events[0].Timestamp)
}

func TestPublisher_ClockStampsUTC(t *testing.T) {
	store := memory.NewInMemoryStore()
	at := time.Date(2026, 2, 3, 4, 5, 6, 0, time.FixedZone("CET", 3600))
	pub := NewPublisher(store, WithClock(func() time.Time { return at }))

	require.NoError(t, pub.Emit(context.Background(), audit.Event{Action: "x"}))

	events, err := store.List(context.Background(), audit.Filter{})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, time.UTC, events[0].Timestamp.Location())
	assert.True(t, at.Equal(events[0].Timestamp))
}

// deadlineStore records whether Append saw a deadline.
type deadlineStore struct {
	memory.InMemoryStore
	sawDeadline chan bool
}

func (s *deadlineStore) Append(ctx context.Context, _ audit.Event) error {
	_, ok := ctx.Deadline()
	s.sawDeadline <- ok
	return nil
}

func TestPublisher_AsyncPersistIsBounded(t *testing.T) {
	store := &deadlineStore{sawDeadline: make(chan bool, 1)}
	pub := NewPublisher(store, WithAsyncBuffer(1), WithPersistTimeout(time.Second))

	require.NoError(t, pub.Emit(context.Background(), audit.Event{Action: "x"}))
	pub.Close()

	assert.True(t, <-store.sawDeadline)
}

func TestPublisher_SyncErrorPropagates(t *testing.T) {
	pub := NewPublisher(&failingStore{err: errors.New("disk full")})

	err := pub.Emit(context.Background(), audit.Event{Action: "x"})
	assert.Error(t, err)
}

func TestPublisher_AsyncDrainsOnClose(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(16))

	for range 10 {
		require.NoError(t, pub.Emit(context.Background(), audit.Event{Email: "a@x.com", Action: "login_failed"}))
	}
	pub.Close()

	events, err := store.List(context.Background(), audit.Filter{Email: "a@x.com"})
	require.NoError(t, err)
	assert.Len(t, events, 10)
}

func TestPublisher_AsyncDropsWhenFull(t *testing.T) {
	store := &blockingStore{release: make(chan struct{})}
	m := metrics.New(prometheus.NewRegistry())
	pub := NewPublisher(store, WithAsyncBuffer(1), WithMetrics(m))

	// The worker takes the first event and blocks; the second fills the buffer.
	require.NoError(t, pub.Emit(context.Background(), audit.Event{Action: "a"}))
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(m.QueueDepth) == 0
	}, time.Second, 5*time.Millisecond)
	require.NoError(t, pub.Emit(context.Background(), audit.Event{Action: "b"}))

	err := pub.Emit(context.Background(), audit.Event{Action: "c"})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInternal))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Events.WithLabelValues("c", metrics.ResultDropped)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Events.WithLabelValues("b", metrics.ResultEnqueued)))

	close(store.release)
	pub.Close()
}

func TestPublisher_EmitAfterClose(t *testing.T) {
	pub := NewPublisher(memory.NewInMemoryStore(), WithAsyncBuffer(4))
	pub.Close()
	pub.Close()

	err := pub.Emit(context.Background(), audit.Event{Action: "late"})
	assert.Error(t, err)
}
