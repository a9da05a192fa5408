package redis

import (
	"context"
	"testing"

	"github.com/erain9/matchbook/pkg/messaging"
	"github.com/erain9/matchbook/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// setupTestStore returns a store under a unique prefix so parallel runs
// don't see each other's keys
func setupTestStore(t *testing.T) *TradeStore {
	t.Helper()
	addr := testutil.SkipIfRedisUnavailable(t)

	client := NewClient(RedisOptions{Addr: addr})
	prefix := "test:" + testutil.UniqueName("matchbook")

	t.Cleanup(func() {
		ctx := context.Background()
		keys, err := client.Keys(ctx, prefix+":*").Result()
		if err == nil && len(keys) > 0 {
			client.Del(ctx, keys...)
		}
		_ = client.Close()
	})

	return NewTradeStore(client, prefix, zaptest.NewLogger(t))
}

func TestTradeStore_RecordsTrades(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.Ping(ctx))

	msg := messaging.NewDoneMessage(messaging.KindSubmit, 3)
	msg.Trades = []messaging.Trade{
		{BuyOrderID: 3, SellOrderID: 1, Buyer: "carol", Seller: "alice", Price: "100", Quantity: 2},
		{BuyOrderID: 3, SellOrderID: 2, Buyer: "carol", Seller: "bob", Price: "100", Quantity: 1},
	}
	require.NoError(t, store.SendDoneMessage(ctx, msg))
	require.NoError(t, store.SendDoneMessage(ctx, messaging.NewCancelMessage(2, true)))

	trades, err := store.Trades(ctx)
	require.NoError(t, err)
	assert.Equal(t, msg.Trades, trades)

	carol, err := store.Volume(ctx, "carol")
	require.NoError(t, err)
	assert.Equal(t, Volume{Bought: 3}, carol)

	alice, err := store.Volume(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, Volume{Sold: 2}, alice)

	nobody, err := store.Volume(ctx, "nobody")
	require.NoError(t, err)
	assert.Equal(t, Volume{}, nobody)

	n, err := store.MessageCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestTradeStore_EmptyStore(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	trades, err := store.Trades(ctx)
	require.NoError(t, err)
	assert.Empty(t, trades)

	n, err := store.MessageCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestNewTradeStore_Keys(t *testing.T) {
	store := NewTradeStore(NewClient(RedisOptions{Addr: testutil.RedisAddr()}), "book", nil)
	defer store.Close()

	assert.Equal(t, "book:trades", store.tradesKey)
	assert.Equal(t, "book:messages", store.messagesKey)
	assert.Equal(t, "book:volume:alice", store.traderKey("alice"))
}
