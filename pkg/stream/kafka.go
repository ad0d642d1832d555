// backend/pkg/stream/kafka.go
package stream

import (
	"context"
	"time"

	kafka "github.com/segmentio/kafka-go"
)

type Kafka struct {
	writer *kafka.Writer
}

func NewKafka(brokers []string, topic string) *Kafka {
	if topic == "" {
		topic = "funnel.events"
	}
	return &Kafka{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			RequiredAcks: kafka.RequireOne,
			// keyed by session so one session's events stay ordered on a partition
			Balancer:     &kafka.Hash{},
			BatchTimeout: 50 * time.Millisecond,
		},
	}
}

func (k *Kafka) Publish(ctx context.Context, key string, payload []byte) error {
	return k.writer.WriteMessages(ctx, kafka.Message{Key: []byte(key), Value: payload})
}

func (k *Kafka) Close() error {
	return k.writer.Close()
}
