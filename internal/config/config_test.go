package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("salesreport", []string{"-env-file", ""})
	require.NoError(t, err)
	require.Equal(t, "data/sales_data.csv", cfg.Input)
	require.Equal(t, FormatCSV, cfg.InputFormat())
	require.Equal(t, 20, cfg.TopN)
	require.True(t, cfg.IncludeCancelled)
	require.Equal(t, "pending", cfg.DefaultStatus)
	require.Equal(t, 5*time.Second, cfg.Kafka.IdleTimeout)
}

func TestLoad_Precedence(t *testing.T) {
	dir := t.TempDir()
	yml := writeFile(t, dir, "salesreport.yaml", `
input: data/orders.jsonl
output: from-yaml.json
top_n: 5
include_cancelled: false
kafka:
  idle_timeout: 2s
redis:
  addr: localhost:6379
`)
	env := writeFile(t, dir, ".env", "SALES_OUTPUT=from-env.json\nSALES_S3_BUCKET=reports\n")
	t.Cleanup(func() {
		_ = os.Unsetenv("SALES_OUTPUT")
		_ = os.Unsetenv("SALES_S3_BUCKET")
	})

	cfg, err := Load("salesreport", []string{"-config", yml, "-env-file", env, "-top", "7"})
	require.NoError(t, err)
	require.Equal(t, 7, cfg.TopN)
	require.Equal(t, "from-env.json", cfg.Output)
	require.Equal(t, "reports", cfg.S3.Bucket)
	require.Equal(t, FormatJSONL, cfg.InputFormat())
	require.False(t, cfg.Policy().IncludeCancelled)
	require.Equal(t, 2*time.Second, cfg.Kafka.IdleTimeout)
	require.Equal(t, "localhost:6379", cfg.Redis.Addr)
	require.Equal(t, "salesreport:latest", cfg.Redis.Key)
}

func TestLoad_MissingEnvFileIsFine(t *testing.T) {
	_, err := Load("salesreport", []string{"-env-file", filepath.Join(t.TempDir(), "nope.env")})
	require.NoError(t, err)
}

func TestLoad_BadYAML(t *testing.T) {
	p := writeFile(t, t.TempDir(), "bad.yaml", "top_n: [1, 2\n")
	_, err := Load("salesreport", []string{"-config", p, "-env-file", ""})
	require.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"SALES_TOP_N":             "3",
		"SALES_INCLUDE_CANCELLED": "false",
		"SALES_REDIS_TTL":         "1h",
		"SALES_KAFKA_BOOTSTRAP":   "k1:9092",
	}
	lookup := func(k string) (string, bool) { v, ok := env[k]; return v, ok }
	cfg := Default()
	require.NoError(t, ApplyEnv(&cfg, lookup))
	require.Equal(t, 3, cfg.TopN)
	require.False(t, cfg.IncludeCancelled)
	require.Equal(t, time.Hour, cfg.Redis.TTL)
	require.Equal(t, "k1:9092", cfg.Kafka.Bootstrap)

	env["SALES_TOP_N"] = "many"
	require.Error(t, ApplyEnv(&cfg, lookup))
}

func TestInputFormat(t *testing.T) {
	cases := []struct {
		cfg  Config
		want string
	}{
		{Config{Input: "orders.csv"}, FormatCSV},
		{Config{Input: "-"}, FormatCSV},
		{Config{Input: "orders.NDJSON"}, FormatJSONL},
		{Config{Input: "sqlite://orders.db"}, FormatSQL},
		{Config{Input: "x", DSN: "mysql://u:p@h/db"}, FormatSQL},
		{Config{Input: "kafka://sales.orders"}, FormatKafka},
		{Config{Input: "orders.csv", Format: "JSONL"}, FormatJSONL},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, tc.cfg.InputFormat(), tc.cfg.Input)
	}
	require.Equal(t, "sales.orders", Config{Input: "kafka://sales.orders"}.KafkaTopic())
}

func TestValidate(t *testing.T) {
	base := Default()
	require.NoError(t, base.Validate())

	bad := []func(c *Config){
		func(c *Config) { c.Format = "xml" },
		func(c *Config) { c.TopN = 0 },
		func(c *Config) { c.DefaultStatus = "shipped" },
		func(c *Config) { c.Output = "" },
		func(c *Config) { c.Format = FormatKafka },
		func(c *Config) { c.Kafka.ArtifactTopic = "sales.reports" },
	}
	for i, mutate := range bad {
		c := Default()
		mutate(&c)
		require.Error(t, c.Validate(), "case %d", i)
	}

	ok := Default()
	ok.DefaultStatus = ""
	require.NoError(t, ok.Validate())
}
