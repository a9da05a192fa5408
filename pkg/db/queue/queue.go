package queue

import (
	"context"
	"fmt"
	"strconv"

	"github.com/IBM/sarama"
	"github.com/erain9/matchbook/pkg/messaging"
)

const maxRetry = 5

// newSyncProducer is swapped out in tests
var newSyncProducer = sarama.NewSyncProducer

// QueueMessageSender implements the MessageSender interface
// for sending messages to Kafka through a sarama sync producer
type QueueMessageSender struct {
	producer sarama.SyncProducer
	topic    string
}

// NewQueueMessageSender connects a sync producer to the brokers
func NewQueueMessageSender(brokers []string, topic string) (*QueueMessageSender, error) {
	if len(brokers) == 0 || topic == "" {
		return nil, fmt.Errorf("queue sender needs brokers and a topic")
	}

	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = maxRetry
	config.Producer.Partitioner = sarama.NewHashPartitioner

	producer, err := newSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}

	return &QueueMessageSender{producer: producer, topic: topic}, nil
}

// SendDoneMessage sends the DoneMessage to the Kafka queue
func (q *QueueMessageSender) SendDoneMessage(ctx context.Context, done *messaging.DoneMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := messaging.Encode(done)
	if err != nil {
		return fmt.Errorf("failed to marshal done message: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: q.topic,
		Key:   sarama.StringEncoder(strconv.FormatUint(done.OrderID, 10)),
		Value: sarama.ByteEncoder(data),
	}

	if _, _, err := q.producer.SendMessage(msg); err != nil {
		return fmt.Errorf("failed to send message to Kafka: %w", err)
	}

	return nil
}

// Close closes the producer
func (q *QueueMessageSender) Close() error {
	return q.producer.Close()
}
