package memory

import (
	"context"
	"sync"

	"github.com/erain9/matchbook/pkg/messaging"
)

// TradeLog is a MessageSender that keeps every published message in
// memory. Safe for concurrent use.
type TradeLog struct {
	sync.RWMutex
	messages []*messaging.DoneMessage
	trades   []messaging.Trade
	filled   map[uint64]uint32
	bought   map[string]uint64
	sold     map[string]uint64
	closed   bool
}

// NewTradeLog creates an empty log
func NewTradeLog() *TradeLog {
	return &TradeLog{
		filled: make(map[uint64]uint32),
		bought: make(map[string]uint64),
		sold:   make(map[string]uint64),
	}
}

// SendDoneMessage appends the message and indexes its trades
func (l *TradeLog) SendDoneMessage(_ context.Context, done *messaging.DoneMessage) error {
	l.Lock()
	defer l.Unlock()

	l.messages = append(l.messages, done)
	for _, trade := range done.Trades {
		l.trades = append(l.trades, trade)
		l.filled[trade.BuyOrderID] += trade.Quantity
		l.filled[trade.SellOrderID] += trade.Quantity
		l.bought[trade.Buyer] += uint64(trade.Quantity)
		l.sold[trade.Seller] += uint64(trade.Quantity)
	}
	return nil
}

// Messages returns a copy of the recorded messages
func (l *TradeLog) Messages() []*messaging.DoneMessage {
	l.RLock()
	defer l.RUnlock()

	out := make([]*messaging.DoneMessage, len(l.messages))
	copy(out, l.messages)
	return out
}

// Trades returns a copy of all trades in execution order
func (l *TradeLog) Trades() []messaging.Trade {
	l.RLock()
	defer l.RUnlock()

	out := make([]messaging.Trade, len(l.trades))
	copy(out, l.trades)
	return out
}

// FilledQty returns the traded quantity of an order on either side
func (l *TradeLog) FilledQty(orderID uint64) uint32 {
	l.RLock()
	defer l.RUnlock()
	return l.filled[orderID]
}

// VolumeByTrader returns what a trader bought and sold
func (l *TradeLog) VolumeByTrader(trader string) (bought, sold uint64) {
	l.RLock()
	defer l.RUnlock()
	return l.bought[trader], l.sold[trader]
}

// Len returns the number of recorded messages
func (l *TradeLog) Len() int {
	l.RLock()
	defer l.RUnlock()
	return len(l.messages)
}

// Close marks the log closed; recorded data stays readable
func (l *TradeLog) Close() error {
	l.Lock()
	defer l.Unlock()
	l.closed = true
	return nil
}

// Closed reports whether Close was called
func (l *TradeLog) Closed() bool {
	l.RLock()
	defer l.RUnlock()
	return l.closed
}
