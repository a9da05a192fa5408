package core

import (
	"fmt"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/nikolaydubina/fpdecimal"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Side represents buy or sell side of the order
type Side int

// Order sides
const (
	Sell Side = iota
	Buy
)

// String returns side as string
func (s Side) String() string {
	switch s {
	case Buy:
		return "BUY"
	case Sell:
		return "SELL"
	default:
		return "UNKNOWN"
	}
}

// Opposite returns the side an order of this side matches against
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// IsValid reports whether s is Buy or Sell
func (s Side) IsValid() bool {
	return s == Buy || s == Sell
}

// ParseSide accepts BUY/B and SELL/S in any case
func ParseSide(s string) (Side, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "B", "BUY":
		return Buy, nil
	case "S", "SELL":
		return Sell, nil
	default:
		return Sell, fmt.Errorf("%w: %q", ErrInvalidSide, s)
	}
}

// Order stores information about a limit order. Everything except the
// remaining quantity is fixed at construction.
type Order struct {
	id           uint64
	timestamp    int64
	trader       string
	side         Side
	price        fpdecimal.Decimal
	originalQty  uint32
	qtyRemaining uint32
}

// NewLimitOrder creates a new limit order with its full quantity remaining.
// No business rules are checked here; OrderBook.Submit rejects malformed orders.
func NewLimitOrder(orderID uint64, timestamp int64, trader string, side Side, price fpdecimal.Decimal, quantity uint32) *Order {
	return &Order{
		id:           orderID,
		timestamp:    timestamp,
		trader:       trader,
		side:         side,
		price:        price,
		originalQty:  quantity,
		qtyRemaining: quantity,
	}
}

// ID returns the order id
func (o *Order) ID() uint64 {
	return o.id
}

// Timestamp returns the submission time supplied by the caller
func (o *Order) Timestamp() int64 {
	return o.timestamp
}

// Trader returns the trader identifier
func (o *Order) Trader() string {
	return o.trader
}

// Side returns side of the Order
func (o *Order) Side() Side {
	return o.side
}

// Price returns the limit price
func (o *Order) Price() fpdecimal.Decimal {
	return o.price
}

// OriginalQty returns the quantity the order was submitted with
func (o *Order) OriginalQty() uint32 {
	return o.originalQty
}

// Quantity returns the remaining quantity
func (o *Order) Quantity() uint32 {
	return o.qtyRemaining
}

// FilledQty returns the quantity matched so far
func (o *Order) FilledQty() uint32 {
	return o.originalQty - o.qtyRemaining
}

// DecreaseQuantity reduces the remaining quantity by a fill.
// Callers never pass more than Quantity().
func (o *Order) DecreaseQuantity(quantity uint32) {
	o.qtyRemaining -= quantity
}

// IsFilled reports whether nothing remains to be matched
func (o *Order) IsFilled() bool {
	return o.qtyRemaining == 0
}

type orderJSON struct {
	ID          uint64 `json:"id"`
	Timestamp   int64  `json:"timestamp"`
	Trader      string `json:"trader"`
	Side        string `json:"side"`
	Price       string `json:"price"`
	OriginalQty uint32 `json:"originalQty"`
	Quantity    uint32 `json:"quantity"`
}

// MarshalJSON implements custom JSON marshaling for Order
func (o *Order) MarshalJSON() ([]byte, error) {
	return json.Marshal(orderJSON{
		ID:          o.id,
		Timestamp:   o.timestamp,
		Trader:      o.trader,
		Side:        o.side.String(),
		Price:       o.price.String(),
		OriginalQty: o.originalQty,
		Quantity:    o.qtyRemaining,
	})
}

// UnmarshalJSON implements custom JSON unmarshaling for Order
func (o *Order) UnmarshalJSON(data []byte) error {
	var v orderJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}

	side, err := ParseSide(v.Side)
	if err != nil {
		return err
	}

	price, err := ParsePrice(v.Price)
	if err != nil {
		return err
	}

	o.id = v.ID
	o.timestamp = v.Timestamp
	o.trader = v.Trader
	o.side = side
	o.price = price
	o.originalQty = v.OriginalQty
	o.qtyRemaining = v.Quantity

	return nil
}

// ParsePrice parses a decimal price. Digits past fpdecimal.FractionDigits
// are an error; they are never truncated.
func ParsePrice(s string) (fpdecimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '.'); i >= 0 {
		if frac := strings.TrimRight(s[i+1:], "0"); len(frac) > int(fpdecimal.FractionDigits) {
			return fpdecimal.Zero, fmt.Errorf("%w: %q has more than %d decimal places", ErrInvalidPrice, s, fpdecimal.FractionDigits)
		}
	}

	price, err := fpdecimal.FromString(s)
	if err != nil {
		return fpdecimal.Zero, fmt.Errorf("%w: %q", ErrInvalidPrice, s)
	}
	return price, nil
}

// String implements Stringer interface
func (o *Order) String() string {
	return fmt.Sprintf("%d %s %s %d/%d@%s", o.id, o.trader, o.side, o.qtyRemaining, o.originalQty, o.price)
}
