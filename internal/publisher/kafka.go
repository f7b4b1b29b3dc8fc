// internal/publisher/kafka.go

// Package publisher emits terminal job results to Kafka so downstream
// consumers can react to confirmed and failed transactions.
package publisher

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"

	"github.com/cmatc13/txpilot/internal/submitter"
	"github.com/cmatc13/txpilot/pkg/config"
	"github.com/cmatc13/txpilot/pkg/logging"
)

// KafkaPublisher routes confirmed results to the confirmed topic and
// everything else to the failed topic.
type KafkaPublisher struct {
	producer       *kafka.Producer
	confirmedTopic string
	failedTopic    string
	logger         *logging.Logger
}

// NewKafkaPublisher creates a Kafka producer for result publishing.
func NewKafkaPublisher(cfg config.KafkaConfig, logger *logging.Logger) (*KafkaPublisher, error) {
	producer, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers": cfg.Brokers,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}

	return &KafkaPublisher{
		producer:       producer,
		confirmedTopic: cfg.ConfirmedTopic,
		failedTopic:    cfg.FailedTopic,
		logger:         logger.Named("publisher"),
	}, nil
}

// Publish emits a terminal job result keyed by job ID.
func (p *KafkaPublisher) Publish(ctx context.Context, result submitter.JobResult) error {
	topic := p.failedTopic
	if result.Outcome == submitter.OutcomeConfirmed {
		topic = p.confirmedTopic
	}

	value, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("error serializing result: %w", err)
	}

	err = p.producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{
			Topic:     &topic,
			Partition: kafka.PartitionAny,
		},
		Key:   []byte(result.JobID),
		Value: value,
	}, nil)
	if err != nil {
		return fmt.Errorf("error publishing result: %w", err)
	}

	p.logger.Debug("published result", "job_id", result.JobID, "topic", topic, "outcome", string(result.Outcome))
	return nil
}

// Close flushes outstanding messages and shuts the producer down.
func (p *KafkaPublisher) Close() {
	p.producer.Flush(15 * 1000) // 15 seconds timeout
	p.producer.Close()
}
