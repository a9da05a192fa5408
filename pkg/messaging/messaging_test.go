package messaging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDoneMessage(t *testing.T) {
	a := NewDoneMessage(KindSubmit, 1)
	b := NewDoneMessage(KindSubmit, 1)

	assert.NotEmpty(t, a.MessageID)
	assert.NotEqual(t, a.MessageID, b.MessageID)
	assert.Equal(t, KindSubmit, a.Kind)
	assert.Equal(t, uint64(1), a.OrderID)
	assert.NotNil(t, a.Trades)
}

func TestNewCancelMessage(t *testing.T) {
	msg := NewCancelMessage(9, true)

	assert.Equal(t, KindCancel, msg.Kind)
	assert.Equal(t, uint64(9), msg.OrderID)
	assert.True(t, msg.Canceled)
	assert.Empty(t, msg.Trades)
}

func TestEncodeDecode(t *testing.T) {
	msg := NewDoneMessage(KindSubmit, 3)
	msg.Trader = "alice"
	msg.Side = "BUY"
	msg.Price = "101.5"
	msg.Quantity = 10
	msg.ExecutedQty = 4
	msg.RemainingQty = 6
	msg.Stored = true
	msg.Trades = []Trade{
		{Timestamp: 77, BuyOrderID: 3, SellOrderID: 1, Buyer: "alice", Seller: "bob", Price: "101", Quantity: 4},
	}

	data, err := Encode(msg)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"buyOrderID":3`)

	decoded, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, msg, decoded)
}

func TestDecode_Invalid(t *testing.T) {
	_, err := Decode([]byte("{not json"))
	assert.Error(t, err)
}
