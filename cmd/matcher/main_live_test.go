package main

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/erain9/matchbook/pkg/backend/redis"
	"github.com/erain9/matchbook/pkg/messaging"
	"github.com/erain9/matchbook/pkg/messaging/kafka"
	"github.com/erain9/matchbook/pkg/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_PublishesToKafkaAndRedis(t *testing.T) {
	redisAddr, broker := testutil.SkipIfDependenciesUnavailable(t)
	topic := testutil.UniqueName("matchbook-replay")
	testutil.CreateTopic(t, broker, topic)
	prefix := "test:" + testutil.UniqueName("replay")

	cfgPath := writeFile(t, "matcher.yaml", fmt.Sprintf(`
kafka:
  enabled: true
  brokers: [%q]
  topic: %q
redis:
  enabled: true
  addr: %q
  prefix: %q
`, broker, topic, redisAddr, prefix))

	in := strings.NewReader("trader,side,price,size,type\nalice,S,100,3,LO\nbob,B,100,2,LO\n")
	var out bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"--config", cfgPath, "--log.level", "error"}, &out, in))
	assert.Contains(t, out.String(), "Total trades: 1, volume: 2")

	client := redis.NewClient(redis.RedisOptions{Addr: redisAddr})
	store := redis.NewTradeStore(client, prefix, nil)
	t.Cleanup(func() {
		ctx := context.Background()
		if keys, err := client.Keys(ctx, prefix+":*").Result(); err == nil && len(keys) > 0 {
			client.Del(ctx, keys...)
		}
		_ = store.Close()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	count, err := store.MessageCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	bob, err := store.Volume(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, redis.Volume{Bought: 2}, bob)

	consumer, err := kafka.NewConsumer([]string{broker}, topic, testutil.UniqueName("replay-group"), zerolog.Nop())
	require.NoError(t, err)
	defer consumer.Close()

	var got []*messaging.DoneMessage
	require.NoError(t, consumer.ConsumeDoneMessages(ctx, func(m *messaging.DoneMessage) error {
		got = append(got, m)
		if len(got) == 2 {
			cancel()
		}
		return nil
	}))
	require.Len(t, got, 2)
	assert.Equal(t, uint64(1), got[0].OrderID)
	assert.True(t, got[0].Stored)
	assert.Equal(t, uint64(2), got[1].OrderID)
	require.Len(t, got[1].Trades, 1)
	assert.Equal(t, "100.000", got[1].Trades[0].Price)
}
