// Package kafka delivers audit events to the external audit sink. The ledger
// core only ever hands events to the outbox; this package owns the broker
// conversation.
package kafka

import (
	"context"
	"errors"
	"fmt"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

// DefaultTopic is the audit event stream consumed by downstream sinks.
const DefaultTopic = "registra.audit.events"

// Sink produces audit payloads to a Kafka topic.
type Sink struct {
	client *kgo.Client
	topic  string
}

// Option configures the Sink.
type Option func(*Sink)

// WithTopic overrides the destination topic.
func WithTopic(topic string) Option {
	return func(s *Sink) {
		s.topic = topic
	}
}

// NewSink connects to the brokers and ensures the audit topic exists.
func NewSink(ctx context.Context, brokers []string, opts ...Option) (*Sink, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("at least one kafka broker is required")
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}

	s := &Sink{client: client, topic: DefaultTopic}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.ensureTopic(ctx); err != nil {
		client.Close()
		return nil, err
	}
	return s, nil
}

func (s *Sink) ensureTopic(ctx context.Context) error {
	adm := kadm.NewClient(s.client)
	resp, err := adm.CreateTopic(ctx, 1, 1, nil, s.topic)
	if err != nil {
		return fmt.Errorf("ensure audit topic: %w", err)
	}
	if resp.Err != nil && !errors.Is(resp.Err, kerr.TopicAlreadyExists) {
		return fmt.Errorf("ensure audit topic: %w", resp.Err)
	}
	return nil
}

// Publish produces one audit payload, keyed by entity id so per-entity
// ordering is preserved.
func (s *Sink) Publish(ctx context.Context, key string, payload []byte) error {
	record := &kgo.Record{Topic: s.topic, Key: []byte(key), Value: payload}
	if err := s.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce audit event: %w", err)
	}
	return nil
}

// Close flushes outstanding produce requests and releases the client.
func (s *Sink) Close() {
	s.client.Close()
}
