package queue

import (
	"context"
	"testing"
	"time"

	"github.com/erain9/matchbook/pkg/messaging"
	"github.com/erain9/matchbook/pkg/testutil"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSenderPool_LiveBroker(t *testing.T) {
	broker := testutil.SkipIfKafkaUnavailable(t)
	topic := testutil.UniqueName("matchbook-queue")
	testutil.CreateTopic(t, broker, topic)

	pool, err := NewSenderPool(2, func() (messaging.MessageSender, error) {
		return NewQueueMessageSender([]string{broker}, topic)
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	sent := messaging.NewCancelMessage(7, true)
	require.NoError(t, pool.SendDoneMessage(ctx, sent))
	require.NoError(t, pool.Close())

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:   []string{broker},
		Topic:     topic,
		Partition: 0,
	})
	defer reader.Close()

	m, err := reader.ReadMessage(ctx)
	require.NoError(t, err)
	assert.Equal(t, "7", string(m.Key))

	got, err := messaging.Decode(m.Value)
	require.NoError(t, err)
	assert.Equal(t, sent, got)
}
