// Package manifest records which artifact a run produced.
package manifest

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"salesanalytics/internal/sink"
)

const latestFile = "manifest.latest.json"

// LatestKey is the record key of the latest manifest on a compacted topic.
const LatestKey = "salesreport-manifest-latest"

type Manifest struct {
	RunID                string `json:"runId"`
	ArtifactPath         string `json:"artifactPath"`
	Digest               string `json:"digest"`
	OrderCount           int    `json:"orderCount"`
	DroppedRows          int    `json:"droppedRows"`
	CreatedAtEpochSecond int64  `json:"createdAt"`
}

// NowUnix returns current time in epoch seconds. Split for testability.
var NowUnix = func() int64 { return time.Now().UTC().Unix() }

// Brokers splits a comma-separated bootstrap list.
func Brokers(bootstrap string) []string { return sink.Brokers(bootstrap) }

// NewRunID returns a fresh run identifier.
func NewRunID() string { return uuid.NewString() }

// Stamp fills CreatedAtEpochSecond when unset.
func (m Manifest) Stamp() Manifest {
	if m.CreatedAtEpochSecond == 0 {
		m.CreatedAtEpochSecond = NowUnix()
	}
	return m
}

type Publisher interface {
	PublishLatest(ctx context.Context, m Manifest) error
}

// MultiPublisherImpl writes to multiple publishers sequentially.
type MultiPublisherImpl struct {
	pubs []Publisher
}

func MultiPublisher(pubs ...Publisher) Publisher {
	return &MultiPublisherImpl{pubs: pubs}
}

func (m *MultiPublisherImpl) PublishLatest(ctx context.Context, man Manifest) error {
	man = man.Stamp()
	for _, p := range m.pubs {
		if err := p.PublishLatest(ctx, man); err != nil {
			return err
		}
	}
	return nil
}

type Reader interface {
	ReadLatest() (Manifest, error)
}

type FilesystemManifest struct {
	baseDir string
}

func NewFilesystemManifest(baseDir string) *FilesystemManifest {
	return &FilesystemManifest{baseDir: baseDir}
}

func (f *FilesystemManifest) PublishLatest(_ context.Context, m Manifest) error {
	m = m.Stamp()
	b, err := json.MarshalIndent(&m, "", "  ")
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	if err := sink.WriteAtomic(filepath.Join(f.baseDir, latestFile), append(b, '\n')); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

func (f *FilesystemManifest) ReadLatest() (Manifest, error) {
	data, err := os.ReadFile(filepath.Join(f.baseDir, latestFile))
	if err != nil {
		return Manifest{}, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("unmarshal manifest: %w", err)
	}
	return m, nil
}

// KafkaManifest publishes manifest.latest as a compacted Kafka record.
type KafkaManifest struct {
	writer kafkaMessageWriter
	key    []byte
}

// kafkaMessageWriter abstracts kafka.Writer for testability.
type kafkaMessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// NewKafkaManifest creates a Kafka manifest publisher.
// bootstrap can be comma-separated brokers. key is typically "salesreport-manifest-latest".
func NewKafkaManifest(bootstrap string, topic string, key string) *KafkaManifest {
	return &KafkaManifest{writer: &kafka.Writer{
		Addr:         kafka.TCP(Brokers(bootstrap)...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Async:        false,
	}, key: []byte(key)}
}

func (k *KafkaManifest) PublishLatest(ctx context.Context, m Manifest) error {
	m = m.Stamp()
	b, err := json.Marshal(&m)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	return k.writer.WriteMessages(ctx, kafka.Message{Key: k.key, Value: b})
}

// NewKafkaManifestWith is only for tests to inject a fake writer.
func NewKafkaManifestWith(w kafkaMessageWriter, key string) *KafkaManifest {
	return &KafkaManifest{writer: w, key: []byte(key)}
}
