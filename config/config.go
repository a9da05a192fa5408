package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. MATCHBOOK_KAFKA_TOPIC
const EnvPrefix = "MATCHBOOK"

// Kafka client implementations
const (
	KafkaClientKafkaGo = "kafka-go"
	KafkaClientSarama  = "sarama"
)

// Input formats
const (
	InputCSV  = "csv"
	InputYAML = "yaml"
)

// Config represents the application configuration
type Config struct {
	Log    LogConfig    `mapstructure:"log"`
	Engine EngineConfig `mapstructure:"engine"`
	Input  InputConfig  `mapstructure:"input"`
	Kafka  KafkaConfig  `mapstructure:"kafka"`
	Redis  RedisConfig  `mapstructure:"redis"`
	Otel   OtelConfig   `mapstructure:"otel"`
}

// LogConfig selects the log level and output format
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// EngineConfig tunes the dispatcher
type EngineConfig struct {
	QueueSize        int     `mapstructure:"queue_size"`
	PublishQueueSize int     `mapstructure:"publish_queue_size"`
	RateLimit        float64 `mapstructure:"rate_limit"`
	Burst            int     `mapstructure:"burst"`
}

// InputConfig names the order stream to replay
type InputConfig struct {
	Path   string `mapstructure:"path"`
	Format string `mapstructure:"format"`
}

// KafkaConfig configures done message publishing
type KafkaConfig struct {
	Enabled  bool     `mapstructure:"enabled"`
	Client   string   `mapstructure:"client"`
	Brokers  []string `mapstructure:"brokers"`
	Topic    string   `mapstructure:"topic"`
	GroupID  string   `mapstructure:"group_id"`
	PoolSize int      `mapstructure:"pool_size"`
}

// RedisConfig configures the trade store
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// OtelConfig configures the OTLP collector connection
type OtelConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	Endpoint       string `mapstructure:"endpoint"`
	ServiceName    string `mapstructure:"service_name"`
	ServiceVersion string `mapstructure:"service_version"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("engine.queue_size", 1024)
	v.SetDefault("engine.publish_queue_size", 4096)
	v.SetDefault("engine.rate_limit", 0)
	v.SetDefault("engine.burst", 0)

	v.SetDefault("input.format", InputCSV)

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.client", KafkaClientKafkaGo)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "matchbook-done")
	v.SetDefault("kafka.group_id", "matchbook")
	v.SetDefault("kafka.pool_size", 4)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "matchbook")

	v.SetDefault("otel.enabled", false)
	v.SetDefault("otel.endpoint", "localhost:4317")
	v.SetDefault("otel.service_name", "matchbook")
	v.SetDefault("otel.service_version", "dev")
}

// RegisterFlags adds the command line overrides viper understands
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "Path to config file (YAML)")
	fs.String("log.level", "info", "Log level: debug, info, warn, error")
	fs.String("log.format", "json", "Log format: json, pretty")
	fs.String("input.path", "", "Order stream to replay")
	fs.String("input.format", InputCSV, "Input format: csv, yaml")
	fs.Float64("engine.rate_limit", 0, "Commands per second, 0 for unlimited")
	fs.Bool("kafka.enabled", false, "Publish done messages to Kafka")
	fs.String("kafka.client", KafkaClientKafkaGo, "Kafka client: kafka-go, sarama")
	fs.Bool("redis.enabled", false, "Record trades in Redis")
	fs.Bool("otel.enabled", false, "Export traces and metrics over OTLP")
}

// Load builds the configuration from defaults, the optional YAML file at
// path, MATCHBOOK_* environment variables and any changed flags, in
// increasing order of precedence.
func Load(path string, fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if fs != nil {
		if err := v.BindPFlags(fs); err != nil {
			return nil, fmt.Errorf("failed to bind flags: %w", err)
		}
		if path == "" {
			path, _ = fs.GetString("config")
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate rejects settings the binaries cannot run with
func (c *Config) Validate() error {
	var errs []error

	switch c.Log.Format {
	case "json", "pretty":
	default:
		errs = append(errs, fmt.Errorf("log.format must be json or pretty, got %q", c.Log.Format))
	}

	if c.Engine.QueueSize <= 0 {
		errs = append(errs, errors.New("engine.queue_size must be positive"))
	}
	if c.Engine.PublishQueueSize <= 0 {
		errs = append(errs, errors.New("engine.publish_queue_size must be positive"))
	}
	if c.Engine.RateLimit < 0 {
		errs = append(errs, errors.New("engine.rate_limit must not be negative"))
	}

	switch c.Input.Format {
	case InputCSV, InputYAML:
	default:
		errs = append(errs, fmt.Errorf("input.format must be csv or yaml, got %q", c.Input.Format))
	}

	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			errs = append(errs, errors.New("kafka.brokers must not be empty"))
		}
		if c.Kafka.Topic == "" {
			errs = append(errs, errors.New("kafka.topic must not be empty"))
		}
		switch c.Kafka.Client {
		case KafkaClientKafkaGo, KafkaClientSarama:
		default:
			errs = append(errs, fmt.Errorf("kafka.client must be kafka-go or sarama, got %q", c.Kafka.Client))
		}
	}

	if c.Redis.Enabled && c.Redis.Addr == "" {
		errs = append(errs, errors.New("redis.addr must not be empty"))
	}

	if c.Otel.Enabled && c.Otel.Endpoint == "" {
		errs = append(errs, errors.New("otel.endpoint must not be empty"))
	}

	return errors.Join(errs...)
}
