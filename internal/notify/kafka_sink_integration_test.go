//go:build integration

package notify_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"lockgate/internal/notify"
	"lockgate/internal/platform/kafka"
	"lockgate/internal/platform/kafka/producer"
	"lockgate/pkg/testutil/containers"
)

type KafkaSinkIntegrationSuite struct {
	suite.Suite
	kafka    *containers.KafkaContainer
	producer *producer.Producer
}

func TestKafkaSinkIntegrationSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(KafkaSinkIntegrationSuite))
}

func (s *KafkaSinkIntegrationSuite) SetupSuite() {
	s.kafka = containers.GetManager().GetKafka(s.T())
	prod, err := producer.New(kafka.DefaultProducerConfig(s.kafka.Brokers), nil)
	s.Require().NoError(err)
	s.producer = prod
}

func (s *KafkaSinkIntegrationSuite) TearDownSuite() {
	_ = s.producer.Close(context.Background())
}

func (s *KafkaSinkIntegrationSuite) TestDispatcherPublishesLockAlert() {
	ctx := context.Background()
	topic := "lockgate-notifications-test"
	s.Require().NoError(s.kafka.CreateTopic(ctx, topic))

	sink, err := notify.NewKafkaSink(s.producer, topic)
	s.Require().NoError(err)
	d, err := notify.NewDispatcher([]notify.Sink{sink}, notify.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	s.Require().NoError(err)

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		_ = d.Start(runCtx)
		close(done)
	}()
	d.NotifyOriginLocked(ctx, notify.OriginLocked{Origin: "198.51.100.7", Kind: "LOGIN_FAILURE", Until: time.Now().Add(15 * time.Minute)})

	consumer := s.kafka.Consume(s.T(), "lockgate-notify-test", topic)

	record := containers.AwaitKey(ctx, consumer, "198.51.100.7", 15*time.Second)
	cancel()
	<-done

	s.Require().NotNil(record)
	var env notify.Envelope
	s.Require().NoError(json.Unmarshal(record.Value, &env))
	s.Equal(notify.TypeOriginLocked, env.Type)
	var payload notify.OriginLocked
	s.Require().NoError(json.Unmarshal(env.Payload, &payload))
	s.Equal("LOGIN_FAILURE", payload.Kind)
}
