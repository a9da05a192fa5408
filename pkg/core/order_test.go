package core

import (
	"testing"

	"github.com/nikolaydubina/fpdecimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSide(t *testing.T) {
	assert.Equal(t, "BUY", Buy.String())
	assert.Equal(t, "SELL", Sell.String())
	assert.Equal(t, "UNKNOWN", Side(7).String())

	assert.Equal(t, Sell, Buy.Opposite())
	assert.Equal(t, Buy, Sell.Opposite())

	assert.True(t, Buy.IsValid())
	assert.True(t, Sell.IsValid())
	assert.False(t, Side(-1).IsValid())
}

func TestParseSide(t *testing.T) {
	tests := []struct {
		in      string
		want    Side
		wantErr bool
	}{
		{"B", Buy, false},
		{"buy", Buy, false},
		{" BUY ", Buy, false},
		{"S", Sell, false},
		{"sell", Sell, false},
		{"hold", Sell, true},
		{"", Sell, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseSide(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidSide)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewLimitOrder(t *testing.T) {
	order := NewLimitOrder(1, 1000, "alice", Buy, fpdecimal.FromFloat(100.5), 10)

	assert.Equal(t, uint64(1), order.ID())
	assert.Equal(t, int64(1000), order.Timestamp())
	assert.Equal(t, "alice", order.Trader())
	assert.Equal(t, Buy, order.Side())
	assert.Equal(t, fpdecimal.FromFloat(100.5), order.Price())
	assert.Equal(t, uint32(10), order.OriginalQty())
	assert.Equal(t, uint32(10), order.Quantity())
	assert.Zero(t, order.FilledQty())
	assert.False(t, order.IsFilled())
}

func TestOrder_DecreaseQuantity(t *testing.T) {
	order := NewLimitOrder(1, 0, "alice", Sell, fpdecimal.FromInt(10), 5)

	order.DecreaseQuantity(3)
	assert.Equal(t, uint32(2), order.Quantity())
	assert.Equal(t, uint32(3), order.FilledQty())
	assert.Equal(t, uint32(5), order.OriginalQty())

	order.DecreaseQuantity(2)
	assert.True(t, order.IsFilled())
}

func TestOrder_JSON(t *testing.T) {
	order := NewLimitOrder(9, 77, "bob", Sell, fpdecimal.FromFloat(99.25), 8)
	order.DecreaseQuantity(3)

	data, err := json.Marshal(order)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":9,"timestamp":77,"trader":"bob","side":"SELL","price":"99.250","originalQty":8,"quantity":5}`, string(data))

	var decoded Order
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, *order, decoded)
}

func TestOrder_UnmarshalJSON_Invalid(t *testing.T) {
	var o Order
	assert.ErrorIs(t, o.UnmarshalJSON([]byte(`{"side":"HOLD","price":"1"}`)), ErrInvalidSide)
	assert.ErrorIs(t, o.UnmarshalJSON([]byte(`{"side":"BUY","price":"abc"}`)), ErrInvalidPrice)
	assert.ErrorIs(t, o.UnmarshalJSON([]byte(`{"side":"BUY","price":"100.0002"}`)), ErrInvalidPrice)
}

func TestParsePrice(t *testing.T) {
	tests := []struct {
		in      string
		want    fpdecimal.Decimal
		wantErr bool
	}{
		{"100", fpdecimal.FromInt(100), false},
		{"99.25", fpdecimal.FromFloat(99.25), false},
		{" 1.5 ", fpdecimal.FromFloat(1.5), false},
		{"100.001", fpdecimal.FromIntScaled(100001), false},
		{"100.0000", fpdecimal.FromInt(100), false},
		{"100.0002", fpdecimal.Zero, true},
		{"100.0004", fpdecimal.Zero, true},
		{"100.000x", fpdecimal.Zero, true},
		{"abc", fpdecimal.Zero, true},
		{"", fpdecimal.Zero, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParsePrice(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidPrice)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOrder_String(t *testing.T) {
	order := NewLimitOrder(3, 0, "carol", Buy, fpdecimal.FromInt(101), 4)
	assert.Equal(t, "3 carol BUY 4/4@101.000", order.String())
}
