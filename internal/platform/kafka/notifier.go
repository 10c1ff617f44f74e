// Package kafka publishes applied workflow transitions to a Kafka topic for
// downstream consumers (reporting, SLA tracking, integrations). Publishing is
// best effort and never blocks or fails a transition.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"procureflow/internal/platform/config"
	"procureflow/internal/workflow/models"
)

// Notifier publishes transition events keyed by record ID so per-record
// ordering is preserved within a partition.
type Notifier struct {
	client *kgo.Client
	topic  string
}

// NewNotifier creates a Kafka-backed notifier from the provided configuration.
// Returns nil if no brokers are configured (Kafka not enabled).
func NewNotifier(cfg config.KafkaConfig) (*Notifier, error) {
	if len(cfg.Brokers) == 0 {
		return nil, nil
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.DefaultProduceTopic(cfg.Topic),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}

	notifier := &Notifier{client: client, topic: cfg.Topic}
	if err := notifier.ensureTopic(); err != nil {
		client.Close()
		return nil, err
	}
	return notifier, nil
}

// ensureTopic creates the transitions topic when the broker allows it.
// An existing topic is fine; anything else fails startup.
func (n *Notifier) ensureTopic() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	adm := kadm.NewClient(n.client)
	responses, err := adm.CreateTopics(ctx, -1, -1, nil, n.topic)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", n.topic, err)
	}
	for _, response := range responses {
		if response.Err != nil && !errors.Is(response.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create topic %s: %w", response.Topic, response.Err)
		}
	}
	return nil
}

// PublishTransition produces one event per applied transition. The record ID
// key keeps all events for a record on the same partition.
func (n *Notifier) PublishTransition(ctx context.Context, event models.TransitionEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal transition event: %w", err)
	}

	record := &kgo.Record{
		Key:   []byte(event.RecordID),
		Value: value,
	}

	if err := n.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce transition event: %w", err)
	}
	return nil
}

// Health pings the brokers.
func (n *Notifier) Health(ctx context.Context) error {
	return n.client.Ping(ctx)
}

// Close flushes buffered records and releases the client.
func (n *Notifier) Close() {
	n.client.Close()
}
