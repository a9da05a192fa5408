package core

import (
	"container/list"
	"context"
	"fmt"
	"strings"

	"github.com/erain9/matchbook/pkg/otel"
	"github.com/nikolaydubina/fpdecimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// locator points at the exact queue node holding a resting order
type locator struct {
	side  *OrderSide
	level *OrderQueue
	elem  *list.Element
}

// OrderBook implements continuous price-time priority matching for a
// single instrument. It is not safe for concurrent use; callers serialize
// access (see engine.Engine).
type OrderBook struct {
	bids     *OrderSide
	asks     *OrderSide
	locators map[uint64]locator
}

// Depth is an aggregated snapshot of both sides, best levels first
type Depth struct {
	Bids []PriceLevel
	Asks []PriceLevel
}

// NewOrderBook creates an empty order book
func NewOrderBook() *OrderBook {
	return &OrderBook{
		bids:     newOrderSide(Buy),
		asks:     newOrderSide(Sell),
		locators: make(map[uint64]locator),
	}
}

// GetOrder returns a resting Order by id
func (ob *OrderBook) GetOrder(orderID uint64) *Order {
	loc, ok := ob.locators[orderID]
	if !ok {
		return nil
	}
	return loc.elem.Value.(*Order)
}

// Len returns the number of resting orders on both sides
func (ob *OrderBook) Len() int {
	return len(ob.locators)
}

// Submit matches incoming against the opposite side and rests whatever
// is left. Trades are returned in the order they were generated. A
// rejected order leaves the book untouched.
func (ob *OrderBook) Submit(incoming *Order) ([]*Trade, error) {
	if err := ob.validate(incoming); err != nil {
		return nil, err
	}

	opposite := ob.side(incoming.Side().Opposite())
	trades := make([]*Trade, 0)

	for incoming.Quantity() > 0 {
		level, ok := opposite.Best()
		if !ok || !crosses(incoming, level.price) {
			break
		}

		resting := level.front()
		matchQty := min(incoming.Quantity(), resting.Quantity())

		trades = append(trades, newFill(incoming, resting, matchQty))

		incoming.DecreaseQuantity(matchQty)
		resting.DecreaseQuantity(matchQty)
		level.fill(matchQty)

		// a partially filled resting order keeps its place at the front
		if resting.IsFilled() {
			ob.unlink(resting.ID())
		}
	}

	if incoming.Quantity() > 0 {
		ob.rest(incoming)
	}

	return trades, nil
}

// Cancel removes a resting order. It reports false for ids that are
// unknown, already filled or already cancelled.
func (ob *OrderBook) Cancel(orderID uint64) bool {
	return ob.unlink(orderID) != nil
}

// Process submits the order inside a tracing span and summarises the result
func (ob *OrderBook) Process(ctx context.Context, order *Order) (*Done, error) {
	attrs := []attribute.KeyValue{}
	if order != nil {
		attrs = append(attrs,
			attribute.Int64(otel.AttributeOrderID, int64(order.ID())),
			attribute.String(otel.AttributeOrderSide, order.Side().String()),
			attribute.Int64(otel.AttributeOrderQuantity, int64(order.OriginalQty())),
			attribute.String(otel.AttributeOrderPrice, order.Price().String()),
		)
	}
	_, span := otel.StartOrderSpan(ctx, otel.SpanProcessOrder, attrs...)
	defer span.End()

	trades, err := ob.Submit(order)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "order rejected")
		return nil, err
	}

	done := newDone(order, trades)

	otel.AddAttributes(span,
		attribute.Int64(otel.AttributeExecutedQuantity, int64(done.Processed)),
		attribute.Int64(otel.AttributeRemainingQuantity, int64(done.Left)),
		attribute.Int(otel.AttributeTradeCount, len(done.Trades)),
		attribute.Bool(otel.AttributeOrderStored, done.Stored),
	)
	span.SetStatus(codes.Ok, "order processed successfully")

	return done, nil
}

// BestBid returns the highest bid price
func (ob *OrderBook) BestBid() (fpdecimal.Decimal, bool) {
	return bestPrice(ob.bids)
}

// BestAsk returns the lowest ask price
func (ob *OrderBook) BestAsk() (fpdecimal.Decimal, bool) {
	return bestPrice(ob.asks)
}

// Depth aggregates up to n levels per side; n <= 0 returns every level
func (ob *OrderBook) Depth(n int) Depth {
	return Depth{
		Bids: ob.bids.Levels(n),
		Asks: ob.asks.Levels(n),
	}
}

// GetBids returns the bid side of the order book
func (ob *OrderBook) GetBids() *OrderSide {
	return ob.bids
}

// GetAsks returns the ask side of the order book
func (ob *OrderBook) GetAsks() *OrderSide {
	return ob.asks
}

// String implements fmt.Stringer interface
func (ob *OrderBook) String() string {
	builder := strings.Builder{}

	builder.WriteString("Ask:")
	builder.WriteString(ob.asks.String())
	builder.WriteString("\n")

	builder.WriteString("Bid:")
	builder.WriteString(ob.bids.String())
	builder.WriteString("\n")

	return builder.String()
}

// private methods

func (ob *OrderBook) validate(order *Order) error {
	if order == nil {
		return fmt.Errorf("%w: nil order", ErrInvalidOrder)
	}
	if !order.Side().IsValid() {
		return reject(ErrInvalidSide, order.ID())
	}
	if order.OriginalQty() == 0 || order.Quantity() != order.OriginalQty() {
		return reject(ErrInvalidQuantity, order.ID())
	}
	if order.Price().LessThanOrEqual(fpdecimal.Zero) {
		return reject(ErrInvalidPrice, order.ID())
	}
	if _, exists := ob.locators[order.ID()]; exists {
		return reject(ErrOrderExists, order.ID())
	}
	return nil
}

func reject(reason error, orderID uint64) error {
	return fmt.Errorf("%w: %w (order %d)", ErrInvalidOrder, reason, orderID)
}

func (ob *OrderBook) side(side Side) *OrderSide {
	if side == Buy {
		return ob.bids
	}
	return ob.asks
}

// rest appends the order to the back of its own side's level
func (ob *OrderBook) rest(order *Order) {
	side := ob.side(order.Side())
	level, elem := side.append(order)
	ob.locators[order.ID()] = locator{
		side:  side,
		level: level,
		elem:  elem,
	}
}

// unlink removes a resting order from its level and the locator index
func (ob *OrderBook) unlink(orderID uint64) *Order {
	loc, ok := ob.locators[orderID]
	if !ok {
		return nil
	}
	delete(ob.locators, orderID)
	return loc.side.remove(loc.level, loc.elem)
}

// crosses reports whether incoming may trade at the resting level price
func crosses(incoming *Order, levelPrice fpdecimal.Decimal) bool {
	if incoming.Side() == Buy {
		return levelPrice.LessThanOrEqual(incoming.Price())
	}
	return levelPrice.GreaterThanOrEqual(incoming.Price())
}

func bestPrice(side *OrderSide) (fpdecimal.Decimal, bool) {
	q, ok := side.Best()
	if !ok {
		return fpdecimal.Zero, false
	}
	return q.price, true
}
