package events

import (
	"context"
	"time"

	kafkago "github.com/segmentio/kafka-go"
)

// KafkaSink writes events with the room id as key so one room stays on one partition.
type KafkaSink struct {
	writer *kafkago.Writer
}

func NewKafkaSink(brokers []string) *KafkaSink {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(brokers...),
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
		WriteTimeout:           sendTimeout,
	}
	return &KafkaSink{writer: w}
}

func (k *KafkaSink) Name() string { return "kafka" }

func (k *KafkaSink) Send(ctx context.Context, topic string, key, payload []byte) error {
	return k.writer.WriteMessages(ctx, kafkago.Message{
		Topic: topic,
		Key:   key,
		Value: payload,
		Time:  time.Now(),
	})
}

func (k *KafkaSink) Close() error {
	return k.writer.Close()
}
