package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 1024, cfg.Engine.QueueSize)
	assert.Equal(t, InputCSV, cfg.Input.Format)
	assert.False(t, cfg.Kafka.Enabled)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "matchbook", cfg.Redis.Prefix)
}

func TestLoad_FileEnvAndFlags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log:
  level: debug
engine:
  rate_limit: 500
kafka:
  enabled: true
  client: sarama
  topic: from-file
  brokers: [broker-1:9092, broker-2:9092]
redis:
  enabled: true
  prefix: file
`), 0o600))

	t.Setenv("MATCHBOOK_KAFKA_TOPIC", "from-env")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{"--config", path, "--log.format", "pretty"}))

	cfg, err := Load("", fs)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "pretty", cfg.Log.Format)
	assert.Equal(t, 500.0, cfg.Engine.RateLimit)
	assert.True(t, cfg.Kafka.Enabled)
	assert.Equal(t, KafkaClientSarama, cfg.Kafka.Client)
	assert.Equal(t, "from-env", cfg.Kafka.Topic)
	assert.Equal(t, []string{"broker-1:9092", "broker-2:9092"}, cfg.Kafka.Brokers)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "file", cfg.Redis.Prefix)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), nil)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg, err := Load("", nil)
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
		{"zero queue", func(c *Config) { c.Engine.QueueSize = 0 }, "engine.queue_size"},
		{"negative rate", func(c *Config) { c.Engine.RateLimit = -1 }, "engine.rate_limit"},
		{"bad input format", func(c *Config) { c.Input.Format = "parquet" }, "input.format"},
		{"kafka without topic", func(c *Config) { c.Kafka.Enabled = true; c.Kafka.Topic = "" }, "kafka.topic"},
		{"kafka bad client", func(c *Config) { c.Kafka.Enabled = true; c.Kafka.Client = "franz" }, "kafka.client"},
		{"redis without addr", func(c *Config) { c.Redis.Enabled = true; c.Redis.Addr = "" }, "redis.addr"},
		{"otel without endpoint", func(c *Config) { c.Otel.Enabled = true; c.Otel.Endpoint = "" }, "otel.endpoint"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.errMsg)
		})
	}

	assert.NoError(t, valid().Validate())
}
