package loader

import (
	"context"
	"errors"
	"fmt"
	"time"

	ck "github.com/confluentinc/confluent-kafka-go/v2/kafka"

	"salesanalytics/internal/model"
)

// KafkaConfig selects the raw-orders topic to drain.
type KafkaConfig struct {
	Bootstrap   string
	Topic       string
	GroupID     string
	IdleTimeout time.Duration // the batch ends after this long without a message
	JoinTimeout time.Duration // wait for the first message, covering the group join
	MaxMessages int           // 0 means unbounded
}

// messageReader abstracts ck.Consumer for testability.
type messageReader interface {
	ReadMessage(timeout time.Duration) (*ck.Message, error)
	Close() error
}

// KafkaSource drains a topic from the earliest offset until it goes idle.
// Offsets are never committed, so every run sees the whole topic.
type KafkaSource struct {
	consumer messageReader
	idle     time.Duration
	join     time.Duration
	max      int
}

// DefaultJoinTimeout bounds the wait for partition assignment and the first
// message.
const DefaultJoinTimeout = 30 * time.Second

func NewKafkaSource(cfg KafkaConfig) (*KafkaSource, error) {
	c, err := ck.NewConsumer(&ck.ConfigMap{
		"bootstrap.servers":  cfg.Bootstrap,
		"group.id":           cfg.GroupID,
		"enable.auto.commit": false,
		"isolation.level":    "read_committed",
		"auto.offset.reset":  "earliest",
	})
	if err != nil {
		return nil, fmt.Errorf("consumer: %w", err)
	}
	if err := c.SubscribeTopics([]string{cfg.Topic}, nil); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("subscribe: %w", err)
	}
	ks := NewKafkaSourceWith(c, cfg.IdleTimeout, cfg.MaxMessages)
	if cfg.JoinTimeout > 0 {
		ks.join = cfg.JoinTimeout
	}
	return ks, nil
}

// NewKafkaSourceWith is only for tests to inject a fake consumer.
func NewKafkaSourceWith(r messageReader, idle time.Duration, max int) *KafkaSource {
	if idle <= 0 {
		idle = 5 * time.Second
	}
	return &KafkaSource{consumer: r, idle: idle, join: DefaultJoinTimeout, max: max}
}

func (k *KafkaSource) Records(ctx context.Context) ([]model.RawRecord, error) {
	var out []model.RawRecord
	for k.max <= 0 || len(out) < k.max {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		wait := k.idle
		if len(out) == 0 && k.join > wait {
			wait = k.join
		}
		msg, err := k.consumer.ReadMessage(wait)
		if err != nil {
			var kerr ck.Error
			if errors.As(err, &kerr) && kerr.Code() == ck.ErrTimedOut {
				break
			}
			return nil, fmt.Errorf("read kafka: %w", err)
		}
		out = append(out, DecodeJSONRecord(msg.Value))
	}
	return out, nil
}

func (k *KafkaSource) Close() error { return k.consumer.Close() }
