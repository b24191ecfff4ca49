//go:build integration

package kafka_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kgo"

	auditkafka "registra/pkg/platform/audit/kafka"
	"registra/pkg/testutil/containers"
)

type KafkaSinkSuite struct {
	suite.Suite
	broker string
}

func TestKafkaSinkSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(KafkaSinkSuite))
}

func (s *KafkaSinkSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.broker = mgr.GetRedpanda(s.T()).Broker
}

// TestPublishRoundTrip produces through the sink and consumes the record back
// off the broker.
func (s *KafkaSinkSuite) TestPublishRoundTrip() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	topic := "registra.audit.events.test"
	sink, err := auditkafka.NewSink(ctx, []string{s.broker}, auditkafka.WithTopic(topic))
	s.Require().NoError(err)
	defer sink.Close()

	payload := []byte(`{"Action":"invoice.created","EntityID":"inv-1"}`)
	s.Require().NoError(sink.Publish(ctx, "inv-1", payload))

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(s.broker),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	s.Require().NoError(err)
	defer consumer.Close()

	fetches := consumer.PollFetches(ctx)
	s.Require().NoError(fetches.Err())

	records := fetches.Records()
	s.Require().NotEmpty(records)
	s.Equal("inv-1", string(records[0].Key))
	s.JSONEq(string(payload), string(records[0].Value))
}

// TestEnsureTopicIsIdempotent verifies a second sink against the same topic
// starts cleanly.
func (s *KafkaSinkSuite) TestEnsureTopicIsIdempotent() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	topic := "registra.audit.events.idempotent"
	first, err := auditkafka.NewSink(ctx, []string{s.broker}, auditkafka.WithTopic(topic))
	s.Require().NoError(err)
	first.Close()

	second, err := auditkafka.NewSink(ctx, []string{s.broker}, auditkafka.WithTopic(topic))
	s.Require().NoError(err)
	second.Close()
}
