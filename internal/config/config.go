// Package config layers defaults, a YAML file, the environment and command
// line flags, in that order of precedence.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"salesanalytics/internal/model"
	"salesanalytics/internal/rank"
)

// Input formats.
const (
	FormatCSV   = "csv"
	FormatJSONL = "jsonl"
	FormatSQL   = "sql"
	FormatKafka = "kafka"
)

type Kafka struct {
	Bootstrap     string        `yaml:"bootstrap"`
	Topic         string        `yaml:"topic"`
	GroupID       string        `yaml:"group_id"`
	IdleTimeout   time.Duration `yaml:"idle_timeout"`
	JoinTimeout   time.Duration `yaml:"join_timeout"`
	MaxMessages   int           `yaml:"max_messages"`
	ArtifactTopic string        `yaml:"artifact_topic"`
	ManifestTopic string        `yaml:"manifest_topic"`
}

type S3 struct {
	Bucket   string `yaml:"bucket"`
	Prefix   string `yaml:"prefix"`
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint"`
}

type GCS struct {
	Bucket string `yaml:"bucket"`
	Prefix string `yaml:"prefix"`
}

type Redis struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	Key      string        `yaml:"key"`
	TTL      time.Duration `yaml:"ttl"`
}

// Config holds every setting of a salesreport run.
type Config struct {
	ConfigFile string `yaml:"-"`
	EnvFile    string `yaml:"-"`

	Input  string `yaml:"input"`
	Format string `yaml:"format"` // csv|jsonl|sql|kafka, inferred when empty
	DSN    string `yaml:"dsn"`
	Query  string `yaml:"query"`
	Kafka  Kafka  `yaml:"kafka"`

	Output      string `yaml:"output"`
	ExtrasDir   string `yaml:"extras_dir"`
	ManifestDir string `yaml:"manifest_dir"`
	ArchiveDir  string `yaml:"archive_dir"`
	S3          S3     `yaml:"s3"`
	GCS         GCS    `yaml:"gcs"`
	Redis       Redis  `yaml:"redis"`

	TopN             int    `yaml:"top_n"`
	IncludeCancelled bool   `yaml:"include_cancelled"`
	DefaultStatus    string `yaml:"default_status"`
	RequireOrders    bool   `yaml:"require_orders"`

	MetricsPushURL  string `yaml:"metrics_push_url"`
	MetricsTextfile string `yaml:"metrics_textfile"`
	Progress        bool   `yaml:"progress"`
}

// Default returns the built-in defaults.
func Default() Config {
	return Config{
		EnvFile: ".env",
		Input:   "data/sales_data.csv",
		Kafka: Kafka{
			Topic:         "sales.orders",
			GroupID:       "salesreport",
			IdleTimeout:   5 * time.Second,
			JoinTimeout:   30 * time.Second,
			ManifestTopic: "sales.manifest",
		},
		Output:           "output/analytics.json",
		ManifestDir:      "output",
		Redis:            Redis{Key: "salesreport:latest"},
		TopN:             rank.DefaultLimit,
		IncludeCancelled: model.DefaultPolicy.IncludeCancelled,
		DefaultStatus:    string(model.StatusPending),
	}
}

func bind(set *flag.FlagSet, c *Config) {
	set.StringVar(&c.ConfigFile, "config", c.ConfigFile, "YAML config file")
	set.StringVar(&c.EnvFile, "env-file", c.EnvFile, "dotenv file with SALES_* variables")
	set.StringVar(&c.Input, "input", c.Input, "input path, - for stdin, or a database DSN")
	set.StringVar(&c.Format, "format", c.Format, "input format: csv|jsonl|sql|kafka (default inferred)")
	set.StringVar(&c.DSN, "dsn", c.DSN, "database DSN for -format sql (mysql://, mariadb://, sqlite://)")
	set.StringVar(&c.Query, "query", c.Query, "SQL query returning the order columns")
	set.StringVar(&c.Kafka.Bootstrap, "kafka-bootstrap", c.Kafka.Bootstrap, "kafka bootstrap servers, e.g. localhost:9092")
	set.StringVar(&c.Kafka.Topic, "kafka-topic", c.Kafka.Topic, "kafka topic with order records")
	set.StringVar(&c.Kafka.GroupID, "kafka-group", c.Kafka.GroupID, "kafka consumer group id")
	set.DurationVar(&c.Kafka.IdleTimeout, "kafka-idle", c.Kafka.IdleTimeout, "stop reading after this long without messages")
	set.DurationVar(&c.Kafka.JoinTimeout, "kafka-join", c.Kafka.JoinTimeout, "wait this long for the first message (group join)")
	set.IntVar(&c.Kafka.MaxMessages, "kafka-max", c.Kafka.MaxMessages, "stop after this many messages (0 = unbounded)")
	set.StringVar(&c.Kafka.ArtifactTopic, "kafka-artifact-topic", c.Kafka.ArtifactTopic, "publish artifacts to this kafka topic")
	set.StringVar(&c.Kafka.ManifestTopic, "kafka-manifest-topic", c.Kafka.ManifestTopic, "kafka topic for the latest manifest (compacted)")
	set.StringVar(&c.Output, "output", c.Output, "analytics artifact path")
	set.StringVar(&c.ExtrasDir, "extras-dir", c.ExtrasDir, "directory for summary, top lists, clean data and insights")
	set.StringVar(&c.ManifestDir, "manifest-dir", c.ManifestDir, "directory for manifest.latest.json")
	set.StringVar(&c.ArchiveDir, "archive-dir", c.ArchiveDir, "pebble directory for the report archive")
	set.StringVar(&c.S3.Bucket, "s3-bucket", c.S3.Bucket, "upload artifacts to this S3 bucket")
	set.StringVar(&c.S3.Prefix, "s3-prefix", c.S3.Prefix, "S3 key prefix")
	set.StringVar(&c.S3.Region, "s3-region", c.S3.Region, "S3 region")
	set.StringVar(&c.S3.Endpoint, "s3-endpoint", c.S3.Endpoint, "custom S3 endpoint (MinIO, LocalStack)")
	set.StringVar(&c.GCS.Bucket, "gcs-bucket", c.GCS.Bucket, "upload artifacts to this GCS bucket")
	set.StringVar(&c.GCS.Prefix, "gcs-prefix", c.GCS.Prefix, "GCS object prefix")
	set.StringVar(&c.Redis.Addr, "redis-addr", c.Redis.Addr, "store the latest artifacts in redis at this address")
	set.StringVar(&c.Redis.Key, "redis-key", c.Redis.Key, "redis key prefix")
	set.DurationVar(&c.Redis.TTL, "redis-ttl", c.Redis.TTL, "redis key ttl (0 = no expiry)")
	set.IntVar(&c.TopN, "top", c.TopN, "entries in top customer and product rankings")
	set.BoolVar(&c.IncludeCancelled, "include-cancelled", c.IncludeCancelled, "count revenue of cancelled orders")
	set.StringVar(&c.DefaultStatus, "default-status", c.DefaultStatus, "status for rows without one (empty = drop the row)")
	set.BoolVar(&c.RequireOrders, "require-orders", c.RequireOrders, "fail when no valid orders remain")
	set.StringVar(&c.MetricsPushURL, "metrics-push-url", c.MetricsPushURL, "prometheus pushgateway url")
	set.StringVar(&c.MetricsTextfile, "metrics-textfile", c.MetricsTextfile, "write metrics for the node exporter textfile collector")
	set.BoolVar(&c.Progress, "progress", c.Progress, "show a progress bar while reading the input file")
}

// Load resolves the configuration from args. Flags given on the command
// line win over the environment, which wins over the YAML file.
func Load(name string, args []string) (Config, error) {
	pre := Default()
	set := flag.NewFlagSet(name, flag.ContinueOnError)
	bind(set, &pre)
	if err := set.Parse(args); err != nil {
		return Config{}, err
	}

	cfg := Default()
	if pre.ConfigFile != "" {
		if err := LoadYAML(pre.ConfigFile, &cfg); err != nil {
			return Config{}, err
		}
	}
	if pre.EnvFile != "" {
		if err := godotenv.Load(pre.EnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load env file: %w", err)
		}
	}
	if err := ApplyEnv(&cfg, os.LookupEnv); err != nil {
		return Config{}, err
	}

	again := flag.NewFlagSet(name, flag.ContinueOnError)
	bind(again, &cfg)
	if err := again.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

// LoadYAML overlays the YAML file at path onto cfg.
func LoadYAML(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

type envVar struct {
	name string
	set  func(c *Config, v string) error
}

func str(f func(c *Config) *string) func(*Config, string) error {
	return func(c *Config, v string) error { *f(c) = v; return nil }
}

func integer(f func(c *Config) *int) func(*Config, string) error {
	return func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*f(c) = n
		return nil
	}
}

func boolean(f func(c *Config) *bool) func(*Config, string) error {
	return func(c *Config, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		*f(c) = b
		return nil
	}
}

func duration(f func(c *Config) *time.Duration) func(*Config, string) error {
	return func(c *Config, v string) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		*f(c) = d
		return nil
	}
}

var envVars = []envVar{
	{"SALES_INPUT", str(func(c *Config) *string { return &c.Input })},
	{"SALES_FORMAT", str(func(c *Config) *string { return &c.Format })},
	{"SALES_DSN", str(func(c *Config) *string { return &c.DSN })},
	{"SALES_QUERY", str(func(c *Config) *string { return &c.Query })},
	{"SALES_KAFKA_BOOTSTRAP", str(func(c *Config) *string { return &c.Kafka.Bootstrap })},
	{"SALES_KAFKA_TOPIC", str(func(c *Config) *string { return &c.Kafka.Topic })},
	{"SALES_KAFKA_GROUP", str(func(c *Config) *string { return &c.Kafka.GroupID })},
	{"SALES_KAFKA_IDLE", duration(func(c *Config) *time.Duration { return &c.Kafka.IdleTimeout })},
	{"SALES_KAFKA_JOIN", duration(func(c *Config) *time.Duration { return &c.Kafka.JoinTimeout })},
	{"SALES_KAFKA_ARTIFACT_TOPIC", str(func(c *Config) *string { return &c.Kafka.ArtifactTopic })},
	{"SALES_KAFKA_MANIFEST_TOPIC", str(func(c *Config) *string { return &c.Kafka.ManifestTopic })},
	{"SALES_OUTPUT", str(func(c *Config) *string { return &c.Output })},
	{"SALES_EXTRAS_DIR", str(func(c *Config) *string { return &c.ExtrasDir })},
	{"SALES_MANIFEST_DIR", str(func(c *Config) *string { return &c.ManifestDir })},
	{"SALES_ARCHIVE_DIR", str(func(c *Config) *string { return &c.ArchiveDir })},
	{"SALES_S3_BUCKET", str(func(c *Config) *string { return &c.S3.Bucket })},
	{"SALES_S3_PREFIX", str(func(c *Config) *string { return &c.S3.Prefix })},
	{"SALES_S3_REGION", str(func(c *Config) *string { return &c.S3.Region })},
	{"SALES_S3_ENDPOINT", str(func(c *Config) *string { return &c.S3.Endpoint })},
	{"SALES_GCS_BUCKET", str(func(c *Config) *string { return &c.GCS.Bucket })},
	{"SALES_GCS_PREFIX", str(func(c *Config) *string { return &c.GCS.Prefix })},
	{"SALES_REDIS_ADDR", str(func(c *Config) *string { return &c.Redis.Addr })},
	{"SALES_REDIS_PASSWORD", str(func(c *Config) *string { return &c.Redis.Password })},
	{"SALES_REDIS_DB", integer(func(c *Config) *int { return &c.Redis.DB })},
	{"SALES_REDIS_KEY", str(func(c *Config) *string { return &c.Redis.Key })},
	{"SALES_REDIS_TTL", duration(func(c *Config) *time.Duration { return &c.Redis.TTL })},
	{"SALES_TOP_N", integer(func(c *Config) *int { return &c.TopN })},
	{"SALES_INCLUDE_CANCELLED", boolean(func(c *Config) *bool { return &c.IncludeCancelled })},
	{"SALES_DEFAULT_STATUS", str(func(c *Config) *string { return &c.DefaultStatus })},
	{"SALES_REQUIRE_ORDERS", boolean(func(c *Config) *bool { return &c.RequireOrders })},
	{"SALES_METRICS_PUSH_URL", str(func(c *Config) *string { return &c.MetricsPushURL })},
	{"SALES_METRICS_TEXTFILE", str(func(c *Config) *string { return &c.MetricsTextfile })},
}

// ApplyEnv overlays SALES_* variables found by lookup onto cfg.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	for _, e := range envVars {
		v, ok := lookup(e.name)
		if !ok {
			continue
		}
		if err := e.set(cfg, v); err != nil {
			return fmt.Errorf("%s: %w", e.name, err)
		}
	}
	return nil
}

// InputFormat returns the configured format or infers it from the input.
func (c Config) InputFormat() string {
	if c.Format != "" {
		return strings.ToLower(c.Format)
	}
	in := strings.ToLower(c.Input)
	switch {
	case c.DSN != "", strings.HasPrefix(in, "mysql://"), strings.HasPrefix(in, "mariadb://"), strings.HasPrefix(in, "sqlite://"):
		return FormatSQL
	case strings.HasPrefix(in, "kafka://"):
		return FormatKafka
	case filepath.Ext(in) == ".jsonl", filepath.Ext(in) == ".ndjson":
		return FormatJSONL
	}
	return FormatCSV
}

// SQLDSN returns the DSN for the SQL source.
func (c Config) SQLDSN() string {
	if c.DSN != "" {
		return c.DSN
	}
	return c.Input
}

// KafkaTopic returns the source topic, taken from a kafka://topic input when
// given.
func (c Config) KafkaTopic() string {
	if t, ok := strings.CutPrefix(c.Input, "kafka://"); ok && t != "" {
		return t
	}
	return c.Kafka.Topic
}

// Policy returns the revenue policy.
func (c Config) Policy() model.RevenuePolicy {
	return model.RevenuePolicy{IncludeCancelled: c.IncludeCancelled}
}

// Validate rejects inconsistent settings.
func (c Config) Validate() error {
	switch c.InputFormat() {
	case FormatCSV, FormatJSONL:
		if c.Input == "" {
			return errors.New("input is required")
		}
	case FormatSQL:
		if c.SQLDSN() == "" {
			return errors.New("sql format needs -dsn")
		}
	case FormatKafka:
		if c.Kafka.Bootstrap == "" || c.KafkaTopic() == "" {
			return errors.New("kafka format needs -kafka-bootstrap and a topic")
		}
	default:
		return fmt.Errorf("unknown input format %q", c.Format)
	}
	if c.TopN <= 0 {
		return fmt.Errorf("top must be positive, got %d", c.TopN)
	}
	if c.DefaultStatus != "" && !model.Status(strings.ToLower(c.DefaultStatus)).Valid() {
		return fmt.Errorf("invalid default status %q", c.DefaultStatus)
	}
	if c.Output == "" {
		return errors.New("output is required")
	}
	if c.Kafka.ArtifactTopic != "" && c.Kafka.Bootstrap == "" {
		return errors.New("kafka artifact topic needs -kafka-bootstrap")
	}
	return nil
}
