package alert

import (
	"context"
	"errors"
	"fmt"

	"github.com/segmentio/kafka-go"
)

// KafkaConfig configures the Kafka channel.
type KafkaConfig struct {
	Brokers []string `json:"brokers"`
	Topic   string   `json:"topic"`
}

// Validate checks brokers and topic are set.
func (c KafkaConfig) Validate() error {
	if len(c.Brokers) == 0 {
		return errors.New("kafka: at least one broker is required")
	}
	if c.Topic == "" {
		return errors.New("kafka: topic is required")
	}
	return nil
}

// messageWriter is the part of *kafka.Writer the channel uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaDispatcher produces the alert as a JSON message keyed by alert ID.
type KafkaDispatcher struct {
	name   string
	writer messageWriter
}

// NewKafkaDispatcher creates a Kafka channel. The writer dials lazily.
func NewKafkaDispatcher(name string, cfg KafkaConfig) (*KafkaDispatcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
	}
	return &KafkaDispatcher{name: name, writer: w}, nil
}

func (d *KafkaDispatcher) Name() string { return d.name }

func (d *KafkaDispatcher) Dispatch(ctx context.Context, a Alert) error {
	payload, err := a.Payload()
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Key:   []byte(a.ID),
		Value: payload,
		Time:  a.TriggeredAt,
	}
	if err := d.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka write: %w", err)
	}
	return nil
}

// Close flushes and closes the writer.
func (d *KafkaDispatcher) Close() error {
	return d.writer.Close()
}
