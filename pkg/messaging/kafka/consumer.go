package kafka

import (
	"context"
	"errors"
	"fmt"

	"github.com/erain9/matchbook/pkg/messaging"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

// reader is the subset of *kafka.Reader the consumer uses
type reader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// Consumer reads done messages from a Kafka topic
type Consumer struct {
	reader reader
	logger zerolog.Logger
}

// NewConsumer creates a consumer in the given group
func NewConsumer(brokers []string, topic, groupID string, logger zerolog.Logger) (*Consumer, error) {
	brokers = compactBrokers(brokers)
	if len(brokers) == 0 || topic == "" {
		return nil, fmt.Errorf("kafka consumer needs a broker and a topic")
	}

	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	})

	return newConsumer(r, logger), nil
}

func newConsumer(r reader, logger zerolog.Logger) *Consumer {
	return &Consumer{reader: r, logger: logger}
}

// ConsumeDoneMessages passes every decoded message to handler until ctx
// is done. Undecodable payloads are logged and skipped; a handler error
// stops consumption.
func (c *Consumer) ConsumeDoneMessages(ctx context.Context, handler func(*messaging.DoneMessage) error) error {
	for {
		m, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("failed to read message: %w", err)
		}

		msg, err := messaging.Decode(m.Value)
		if err != nil {
			c.logger.Warn().Err(err).
				Int("partition", m.Partition).
				Int64("offset", m.Offset).
				Msg("Skipping undecodable message")
			continue
		}

		if err := handler(msg); err != nil {
			return fmt.Errorf("handler failed for order %d: %w", msg.OrderID, err)
		}
	}
}

// Close closes the underlying reader
func (c *Consumer) Close() error {
	return c.reader.Close()
}
