package sink

import (
	"context"
	"fmt"

	"github.com/segmentio/kafka-go"
)

// KafkaWriter publishes artifacts to a Kafka topic keyed by artifact name.
// Pure-Go client (segmentio/kafka-go).
type KafkaWriter struct {
	writer kafkaMessageWriter
}

// kafkaMessageWriter abstracts kafka.Writer for testability.
type kafkaMessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// NewKafkaWriter creates a Kafka writer.
// bootstrap can be a comma-separated list of host:port.
func NewKafkaWriter(bootstrap string, topic string) *KafkaWriter {
	return &KafkaWriter{writer: &kafka.Writer{
		Addr:         kafka.TCP(Brokers(bootstrap)...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Async:        false,
		BatchBytes:   16 << 20,
	}}
}

func (k *KafkaWriter) Write(ctx context.Context, a Artifact) error {
	msg := kafka.Message{Key: []byte(a.Name), Value: a.Data}
	if a.RunID != "" {
		msg.Headers = append(msg.Headers, kafka.Header{Key: "run-id", Value: []byte(a.RunID)})
	}
	if a.ContentType != "" {
		msg.Headers = append(msg.Headers, kafka.Header{Key: "content-type", Value: []byte(a.ContentType)})
	}
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka write %s: %w", a.Name, err)
	}
	return nil
}

// Close releases the underlying writer when it supports closing.
func (k *KafkaWriter) Close() error {
	if c, ok := k.writer.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}

// NewKafkaWriterWith is only for tests to inject a fake writer.
func NewKafkaWriterWith(w kafkaMessageWriter) *KafkaWriter {
	return &KafkaWriter{writer: w}
}
