package producer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lockgate/internal/platform/kafka"
)

func TestNewRequiresBrokers(t *testing.T) {
	_, err := New(kafka.ProducerConfig{}, nil)
	assert.Error(t, err)
}

func TestClientOptionsByAckLevel(t *testing.T) {
	base := kafka.DefaultProducerConfig("127.0.0.1:9092")
	full := len(clientOptions(base))

	for _, acks := range []string{"0", "1"} {
		cfg := base
		cfg.Acks = acks
		assert.Len(t, clientOptions(cfg), full+1, "acks=%s also disables idempotent writes", acks)
	}

	cfg := base
	cfg.ClientID = ""
	cfg.DeliveryTimeout = 0
	assert.Len(t, clientOptions(cfg), full-2)
}

func TestMessageRecord(t *testing.T) {
	msg := &Message{
		Topic:   "lockgate.notifications",
		Key:     []byte("acct-1"),
		Value:   []byte(`{}`),
		Headers: map[string]string{"kind": "account_locked"},
	}
	r := msg.record()
	assert.Equal(t, "lockgate.notifications", r.Topic)
	assert.Equal(t, []byte("acct-1"), r.Key)
	require.Len(t, r.Headers, 1)
	assert.Equal(t, "kind", r.Headers[0].Key)
	assert.Equal(t, []byte("account_locked"), r.Headers[0].Value)
}

func TestClosedProducer(t *testing.T) {
	// kgo.NewClient does not dial until the first request.
	p, err := New(kafka.DefaultProducerConfig("127.0.0.1:1"), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, p.Close(ctx))
	require.NoError(t, p.Close(ctx))

	assert.ErrorIs(t, p.Produce(ctx, &Message{Topic: "t"}), ErrClosed)
	assert.ErrorIs(t, p.Healthy(ctx), ErrClosed)
}
