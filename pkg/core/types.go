package core

import (
	"fmt"

	"github.com/erain9/matchbook/pkg/messaging"
	"github.com/nikolaydubina/fpdecimal"
)

// Trade is one fill between an incoming order and a resting order.
// It is immutable once created.
type Trade struct {
	timestamp   int64
	buyOrderID  uint64
	sellOrderID uint64
	buyer       string
	seller      string
	price       fpdecimal.Decimal
	quantity    uint32
}

// NewTrade creates a trade record with final values
func NewTrade(timestamp int64, buyOrderID, sellOrderID uint64, buyer, seller string, price fpdecimal.Decimal, quantity uint32) *Trade {
	return &Trade{
		timestamp:   timestamp,
		buyOrderID:  buyOrderID,
		sellOrderID: sellOrderID,
		buyer:       buyer,
		seller:      seller,
		price:       price,
		quantity:    quantity,
	}
}

// newFill builds the trade for incoming matching against resting.
// Buyer and seller come from whichever order is on that side, and the
// price is always the resting order's.
func newFill(incoming, resting *Order, quantity uint32) *Trade {
	buy, sell := incoming, resting
	if incoming.Side() == Sell {
		buy, sell = resting, incoming
	}
	return NewTrade(incoming.Timestamp(), buy.ID(), sell.ID(), buy.Trader(), sell.Trader(), resting.Price(), quantity)
}

// Timestamp returns the incoming order's timestamp at match time
func (t *Trade) Timestamp() int64 {
	return t.timestamp
}

// BuyOrderID returns the id of the buy-side order
func (t *Trade) BuyOrderID() uint64 {
	return t.buyOrderID
}

// SellOrderID returns the id of the sell-side order
func (t *Trade) SellOrderID() uint64 {
	return t.sellOrderID
}

// Buyer returns the buy-side trader
func (t *Trade) Buyer() string {
	return t.buyer
}

// Seller returns the sell-side trader
func (t *Trade) Seller() string {
	return t.seller
}

// Price returns the execution price
func (t *Trade) Price() fpdecimal.Decimal {
	return t.price
}

// Quantity returns the matched quantity
func (t *Trade) Quantity() uint32 {
	return t.quantity
}

// MarshalJSON implements Marshaler interface
func (t *Trade) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.toMessaging())
}

// String implements Stringer interface
func (t *Trade) String() string {
	return fmt.Sprintf("%s<-%s %d@%s", t.buyer, t.seller, t.quantity, t.price)
}

func (t *Trade) toMessaging() messaging.Trade {
	return messaging.Trade{
		Timestamp:   t.timestamp,
		BuyOrderID:  t.buyOrderID,
		SellOrderID: t.sellOrderID,
		Buyer:       t.buyer,
		Seller:      t.seller,
		Price:       t.price.String(),
		Quantity:    t.quantity,
	}
}

// Done contains information about the order execution result
type Done struct {
	// Initial order processed
	Order *Order
	// Original quantity of the order
	Quantity uint32
	// Trades executed, oldest resting counterpart first
	Trades []*Trade
	// Quantity matched by this submission
	Processed uint32
	// Remaining quantity left for the initial order
	Left uint32
	// Whether the remainder now rests in the book
	Stored bool
}

// newDone summarises a completed submission
func newDone(order *Order, trades []*Trade) *Done {
	return &Done{
		Order:     order,
		Quantity:  order.OriginalQty(),
		Trades:    trades,
		Processed: order.FilledQty(),
		Left:      order.Quantity(),
		Stored:    order.Quantity() > 0,
	}
}

// ToMessagingDoneMessage converts the Done object to a messaging.DoneMessage.
func (d *Done) ToMessagingDoneMessage() *messaging.DoneMessage {
	if d == nil || d.Order == nil {
		return nil
	}

	trades := make([]messaging.Trade, len(d.Trades))
	for i, t := range d.Trades {
		trades[i] = t.toMessaging()
	}

	msg := messaging.NewDoneMessage(messaging.KindSubmit, d.Order.ID())
	msg.Trader = d.Order.Trader()
	msg.Side = d.Order.Side().String()
	msg.Price = d.Order.Price().String()
	msg.Quantity = d.Quantity
	msg.ExecutedQty = d.Processed
	msg.RemainingQty = d.Left
	msg.Stored = d.Stored
	msg.Trades = trades
	return msg
}

// MarshalJSON implements json.Marshaler interface for Done
func (d *Done) MarshalJSON() ([]byte, error) {
	trades := make([]messaging.Trade, len(d.Trades))
	for i, t := range d.Trades {
		trades[i] = t.toMessaging()
	}

	return json.Marshal(struct {
		Order     *Order            `json:"order"`
		Trades    []messaging.Trade `json:"trades"`
		Left      uint32            `json:"left"`
		Processed uint32            `json:"processed"`
		Stored    bool              `json:"stored"`
	}{
		Order:     d.Order,
		Trades:    trades,
		Left:      d.Left,
		Processed: d.Processed,
		Stored:    d.Stored,
	})
}
