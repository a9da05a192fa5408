package kafka

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/erain9/matchbook/pkg/messaging"
	"github.com/segmentio/kafka-go"
)

const writeTimeout = 5 * time.Second

// writer is the subset of *kafka.Writer the sender uses
type writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaMessageSender implements MessageSender using Kafka
type KafkaMessageSender struct {
	writer writer
	topic  string
}

// NewKafkaMessageSender creates a new Kafka message sender. Messages are
// partitioned by order id hash.
func NewKafkaMessageSender(brokers []string, topic string) (*KafkaMessageSender, error) {
	brokers = compactBrokers(brokers)
	if len(brokers) == 0 || topic == "" {
		return nil, fmt.Errorf("kafka sender needs a broker and a topic")
	}

	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
	}

	return newKafkaMessageSender(w, topic), nil
}

// compactBrokers drops blank broker addresses
func compactBrokers(brokers []string) []string {
	out := make([]string, 0, len(brokers))
	for _, b := range brokers {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

func newKafkaMessageSender(w writer, topic string) *KafkaMessageSender {
	return &KafkaMessageSender{
		writer: w,
		topic:  topic,
	}
}

// SendDoneMessage sends a done message to Kafka keyed by order id, so
// every message about one order lands on the same partition
func (k *KafkaMessageSender) SendDoneMessage(ctx context.Context, done *messaging.DoneMessage) error {
	data, err := messaging.Encode(done)
	if err != nil {
		return fmt.Errorf("failed to marshal done message: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(strconv.FormatUint(done.OrderID, 10)),
		Value: data,
		Time:  time.Now(),
	}

	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to send message to Kafka topic %s: %w", k.topic, err)
	}

	return nil
}

// Close closes the Kafka writer
func (k *KafkaMessageSender) Close() error {
	return k.writer.Close()
}
