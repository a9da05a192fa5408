package core

import (
	"container/list"
	"fmt"
	"strings"

	"github.com/google/btree"
	"github.com/nikolaydubina/fpdecimal"
)

const levelTreeDegree = 32

// OrderQueue is one price level: resting orders at a single price in
// arrival order.
type OrderQueue struct {
	price  fpdecimal.Decimal
	orders *list.List
	volume uint64
}

// newOrderQueue creates an empty price level
func newOrderQueue(price fpdecimal.Decimal) *OrderQueue {
	return &OrderQueue{
		price:  price,
		orders: list.New(),
	}
}

// Price returns the level price
func (q *OrderQueue) Price() fpdecimal.Decimal {
	return q.price
}

// Len returns the number of resting orders at this level
func (q *OrderQueue) Len() int {
	return q.orders.Len()
}

// Volume returns the total remaining quantity at this level
func (q *OrderQueue) Volume() uint64 {
	return q.volume
}

// Orders returns the level's orders, oldest first
func (q *OrderQueue) Orders() []*Order {
	orders := make([]*Order, 0, q.orders.Len())
	for e := q.orders.Front(); e != nil; e = e.Next() {
		orders = append(orders, e.Value.(*Order))
	}
	return orders
}

func (q *OrderQueue) front() *Order {
	e := q.orders.Front()
	if e == nil {
		return nil
	}
	return e.Value.(*Order)
}

func (q *OrderQueue) pushBack(order *Order) *list.Element {
	q.volume += uint64(order.Quantity())
	return q.orders.PushBack(order)
}

func (q *OrderQueue) remove(e *list.Element) *Order {
	order := q.orders.Remove(e).(*Order)
	q.volume -= uint64(order.Quantity())
	return order
}

// fill records that quantity was matched against an order at this level
func (q *OrderQueue) fill(quantity uint32) {
	q.volume -= uint64(quantity)
}

// PriceLevel is an aggregated view of one level
type PriceLevel struct {
	Price      fpdecimal.Decimal
	Volume     uint64
	OrderCount int
}

// OrderSide represents one side (bid/ask) of the order book. Levels are
// kept in a B-tree ordered best price first.
type OrderSide struct {
	side      Side
	levels    *btree.BTreeG[*OrderQueue]
	numOrders int
}

// newOrderSide creates an empty side. Bids sort highest price first,
// asks lowest price first, so Min() is always the best level.
func newOrderSide(side Side) *OrderSide {
	less := func(a, b *OrderQueue) bool {
		return a.price.LessThan(b.price)
	}
	if side == Buy {
		less = func(a, b *OrderQueue) bool {
			return a.price.GreaterThan(b.price)
		}
	}

	return &OrderSide{
		side:   side,
		levels: btree.NewG[*OrderQueue](levelTreeDegree, less),
	}
}

// Side returns which side of the book this is
func (os *OrderSide) Side() Side {
	return os.side
}

// Len returns the number of resting orders on this side
func (os *OrderSide) Len() int {
	return os.numOrders
}

// Depth returns the number of price levels on this side
func (os *OrderSide) Depth() int {
	return os.levels.Len()
}

// Best returns the best price level, if any
func (os *OrderSide) Best() (*OrderQueue, bool) {
	return os.levels.Min()
}

// Level returns the price level at price, if any
func (os *OrderSide) Level(price fpdecimal.Decimal) (*OrderQueue, bool) {
	return os.levels.Get(&OrderQueue{price: price})
}

// Prices returns all prices in the order side, best first
func (os *OrderSide) Prices() []fpdecimal.Decimal {
	prices := make([]fpdecimal.Decimal, 0, os.levels.Len())
	os.levels.Ascend(func(q *OrderQueue) bool {
		prices = append(prices, q.price)
		return true
	})
	return prices
}

// Orders returns all orders at a given price level, oldest first
func (os *OrderSide) Orders(price fpdecimal.Decimal) []*Order {
	q, ok := os.Level(price)
	if !ok {
		return []*Order{}
	}
	return q.Orders()
}

// Levels aggregates up to n levels, best first. n <= 0 means all levels.
func (os *OrderSide) Levels(n int) []PriceLevel {
	levels := make([]PriceLevel, 0, os.levels.Len())
	os.levels.Ascend(func(q *OrderQueue) bool {
		if n > 0 && len(levels) >= n {
			return false
		}
		levels = append(levels, PriceLevel{
			Price:      q.price,
			Volume:     q.volume,
			OrderCount: q.Len(),
		})
		return true
	})
	return levels
}

// append adds an order at the back of its price level, creating the
// level if needed
func (os *OrderSide) append(order *Order) (*OrderQueue, *list.Element) {
	q, ok := os.Level(order.Price())
	if !ok {
		q = newOrderQueue(order.Price())
		os.levels.ReplaceOrInsert(q)
	}
	os.numOrders++
	return q, q.pushBack(order)
}

// remove unlinks an order and drops its level once empty
func (os *OrderSide) remove(q *OrderQueue, e *list.Element) *Order {
	order := q.remove(e)
	os.numOrders--
	if q.Len() == 0 {
		os.levels.Delete(q)
	}
	return order
}

// String implements fmt.Stringer interface
func (os *OrderSide) String() string {
	sb := strings.Builder{}
	os.levels.Ascend(func(q *OrderQueue) bool {
		sb.WriteString(fmt.Sprintf("\n%s -> orders: %d volume: %d", q.price, q.Len(), q.volume))
		return true
	})
	return sb.String()
}
