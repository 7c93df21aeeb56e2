package manifest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/segmentio/kafka-go"
)

// kafkaMessageReader abstracts kafka.Reader for testability.
type kafkaMessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// KafkaReader reads the latest manifest back from the compacted topic.
type KafkaReader struct {
	open    func() kafkaMessageReader
	key     []byte
	timeout time.Duration
}

// NewKafkaReader reads partition 0 of topic from the beginning and keeps the
// last record with key. Fine for compacted manifest topics.
func NewKafkaReader(bootstrap string, topic string, key string) *KafkaReader {
	open := func() kafkaMessageReader {
		return kafka.NewReader(kafka.ReaderConfig{
			Brokers:   Brokers(bootstrap),
			Topic:     topic,
			Partition: 0,
			MinBytes:  1,
			MaxBytes:  10e6,
		})
	}
	return &KafkaReader{open: open, key: []byte(key), timeout: 10 * time.Second}
}

// NewKafkaReaderWith is only for tests to inject a fake reader.
func NewKafkaReaderWith(r kafkaMessageReader, key string, timeout time.Duration) *KafkaReader {
	return &KafkaReader{open: func() kafkaMessageReader { return r }, key: []byte(key), timeout: timeout}
}

func (k *KafkaReader) ReadLatest() (Manifest, error) {
	r := k.open()
	defer r.Close()

	ctx, cancel := context.WithTimeout(context.Background(), k.timeout)
	defer cancel()

	var last Manifest
	for {
		m, err := r.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.EOF) {
				break
			}
			return Manifest{}, fmt.Errorf("read kafka: %w", err)
		}
		if !bytes.Equal(m.Key, k.key) {
			continue
		}
		var man Manifest
		if err := json.Unmarshal(m.Value, &man); err != nil {
			return Manifest{}, fmt.Errorf("unmarshal kafka manifest: %w", err)
		}
		last = man
	}
	if last.RunID == "" {
		return Manifest{}, fmt.Errorf("no manifest found for key %s", k.key)
	}
	return last, nil
}
