// Package testutil locates the Redis and Kafka instances live tests run
// against, and skips those tests when the instances are not reachable.
package testutil

import (
	"context"
	"net"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// Environment overrides for the live test dependencies
const (
	EnvRedisAddr   = "MATCHBOOK_TEST_REDIS_ADDR"
	EnvKafkaBroker = "MATCHBOOK_TEST_KAFKA_BROKER"
)

const probeTimeout = 2 * time.Second

// RedisAddr returns the Redis address live tests use
func RedisAddr() string {
	return envOr(EnvRedisAddr, "localhost:6379")
}

// KafkaBroker returns the Kafka bootstrap broker live tests use
func KafkaBroker() string {
	return envOr(EnvKafkaBroker, "localhost:9092")
}

// UniqueName returns prefix with a random suffix, for topics, groups and
// key prefixes that must not collide between runs
func UniqueName(prefix string) string {
	return prefix + "-" + uuid.NewString()[:8]
}

// SkipIfRedisUnavailable skips t unless Redis answers a PING, and returns
// the address it checked
func SkipIfRedisUnavailable(t *testing.T) string {
	t.Helper()

	addr := RedisAddr()
	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()

	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Skipping test: Redis not available at %s - %v", addr, err)
	}
	return addr
}

// SkipIfKafkaUnavailable skips t unless the broker returns cluster
// metadata, and returns the broker address it checked
func SkipIfKafkaUnavailable(t *testing.T) string {
	t.Helper()

	addr := KafkaBroker()
	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()

	conn, err := kafka.DialContext(ctx, "tcp", addr)
	if err != nil {
		t.Skipf("Skipping test: Kafka not available at %s - %v", addr, err)
	}
	defer conn.Close()

	if _, err := conn.Brokers(); err != nil {
		t.Skipf("Skipping test: Kafka at %s is not responding correctly - %v", addr, err)
	}
	return addr
}

// SkipIfDependenciesUnavailable skips t unless both Redis and Kafka are up
func SkipIfDependenciesUnavailable(t *testing.T) (redisAddr, kafkaBroker string) {
	t.Helper()
	return SkipIfRedisUnavailable(t), SkipIfKafkaUnavailable(t)
}

// CreateTopic creates a single-partition topic through the cluster
// controller and deletes it when t finishes
func CreateTopic(t *testing.T, broker, topic string) {
	t.Helper()

	conn, err := kafka.Dial("tcp", broker)
	if err != nil {
		t.Fatalf("dial kafka: %v", err)
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		t.Fatalf("find kafka controller: %v", err)
	}

	ctrl, err := kafka.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	if err != nil {
		t.Fatalf("dial kafka controller: %v", err)
	}

	err = ctrl.CreateTopics(kafka.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	})
	if err != nil {
		_ = ctrl.Close()
		t.Fatalf("create topic %s: %v", topic, err)
	}

	t.Cleanup(func() {
		_ = ctrl.DeleteTopics(topic)
		_ = ctrl.Close()
	})
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
