package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSender publishes messages to a topic, keyed by email address
type KafkaSender struct {
	writer messageWriter
	topic  string
}

// NewKafkaSender creates a KafkaSender writing to the given brokers
func NewKafkaSender(brokers []string, topic string) (*KafkaSender, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka sender requires at least one broker")
	}
	if topic == "" {
		return nil, fmt.Errorf("kafka sender requires a topic")
	}
	return &KafkaSender{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			RequiredAcks: kafka.RequireAll,
			Balancer:     &kafka.Hash{},
		},
		topic: topic,
	}, nil
}

func (k *KafkaSender) Send(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	return k.writer.WriteMessages(ctx, kafka.Message{
		Topic: k.topic,
		Key:   []byte(msg.Email),
		Value: payload,
		Time:  time.Now().UTC(),
		Headers: []kafka.Header{
			{Key: "kind", Value: []byte(msg.Kind)},
		},
	})
}

// Close flushes and closes the writer
func (k *KafkaSender) Close() error {
	return k.writer.Close()
}
