package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

type KafkaConfig struct {
	Brokers      []string
	Topic        string
	BatchTimeout time.Duration
}

// KafkaBroadcaster publishes session events to the shared topic, keyed by
// device id so one device's events stay ordered.
type KafkaBroadcaster struct {
	writer *kafka.Writer
}

func NewKafkaBroadcaster(cfg KafkaConfig) *KafkaBroadcaster {
	return &KafkaBroadcaster{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.Topic,
			Balancer:     &kafka.LeastBytes{},
			BatchTimeout: cfg.BatchTimeout,
		},
	}
}

func (b *KafkaBroadcaster) Publish(ctx context.Context, e Event) error {
	value, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	err = b.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(e.DeviceID),
		Value: value,
	})
	if err != nil {
		return fmt.Errorf("failed to publish %s event: %w", e.Kind, err)
	}
	return nil
}

func (b *KafkaBroadcaster) Close() error {
	return b.writer.Close()
}
