package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/getsentry/sentry-go"

	"lockgate/internal/platform/kafka/producer"
)

// LogSink writes notifications as structured log lines. Reset tokens are
// never written; only the owning account and expiry are.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Deliver(ctx context.Context, n Notification) error {
	args := []any{
		"event", n.Type,
		"log_type", "notification",
		"request_id", n.RequestID,
	}
	switch p := n.Payload.(type) {
	case AccountLocked:
		args = append(args, "account_id", p.AccountID, "kind", p.Kind, "until", p.Until, "origin", p.Origin)
	case OriginLocked:
		args = append(args, "origin", p.Origin, "kind", p.Kind, "until", p.Until)
	case ResetRequested:
		args = append(args, "account_id", p.AccountID, "expires_at", p.ExpiresAt)
	default:
		return fmt.Errorf("unsupported notification payload %T", n.Payload)
	}
	s.logger.InfoContext(ctx, "notification", args...)
	return nil
}

// Producer is the subset of the Kafka producer the sink uses.
type Producer interface {
	Produce(ctx context.Context, msg *producer.Message) error
}

// KafkaSink publishes notifications as JSON envelopes to one topic for the
// downstream mailer and operator alerting.
type KafkaSink struct {
	producer Producer
	topic    string
	now      func() time.Time
}

// Envelope is the Kafka record value.
type Envelope struct {
	Type      string          `json:"type"`
	RequestID string          `json:"request_id,omitempty"`
	EmittedAt time.Time       `json:"emitted_at"`
	Payload   json.RawMessage `json:"payload"`
}

func NewKafkaSink(p Producer, topic string) (*KafkaSink, error) {
	if p == nil {
		return nil, fmt.Errorf("kafka producer is required")
	}
	if topic == "" {
		return nil, fmt.Errorf("notification topic is required")
	}
	return &KafkaSink{producer: p, topic: topic, now: time.Now}, nil
}

func (s *KafkaSink) Name() string { return "kafka" }

func (s *KafkaSink) Deliver(ctx context.Context, n Notification) error {
	payload, err := json.Marshal(n.Payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", n.Type, err)
	}
	value, err := json.Marshal(Envelope{
		Type:      n.Type,
		RequestID: n.RequestID,
		EmittedAt: s.now().UTC(),
		Payload:   payload,
	})
	if err != nil {
		return fmt.Errorf("encode %s envelope: %w", n.Type, err)
	}
	return s.producer.Produce(ctx, &producer.Message{
		Topic:   s.topic,
		Key:     []byte(n.Key),
		Value:   value,
		Headers: map[string]string{"type": n.Type},
	})
}

// CaptureWithSentry reports a delivery failure to Sentry. It is a no-op when
// Sentry was never initialised.
func CaptureWithSentry(ctx context.Context, err error, tags map[string]string) {
	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub()
	}
	hub.WithScope(func(scope *sentry.Scope) {
		for k, v := range tags {
			scope.SetTag(k, v)
		}
		hub.CaptureException(err)
	})
}
