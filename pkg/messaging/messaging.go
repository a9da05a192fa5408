package messaging

import (
	"context"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Message kinds
const (
	KindSubmit = "submit"
	KindCancel = "cancel"
)

// MessageSender defines an interface for publishing execution results.
// It decouples the engine from specific transports like Kafka or Redis.
type MessageSender interface {
	SendDoneMessage(ctx context.Context, done *DoneMessage) error
	Close() error
}

// DoneMessage describes the outcome of one submit or cancel command
type DoneMessage struct {
	MessageID    string  `json:"messageID"`
	Kind         string  `json:"kind"`
	OrderID      uint64  `json:"orderID"`
	Trader       string  `json:"trader,omitempty"`
	Side         string  `json:"side,omitempty"`
	Price        string  `json:"price,omitempty"`
	Quantity     uint32  `json:"quantity"`
	ExecutedQty  uint32  `json:"executedQty"`
	RemainingQty uint32  `json:"remainingQty"`
	Stored       bool    `json:"stored"`
	Canceled     bool    `json:"canceled"`
	Trades       []Trade `json:"trades"`
}

// Trade represents a single trade execution
type Trade struct {
	Timestamp   int64  `json:"timestamp"`
	BuyOrderID  uint64 `json:"buyOrderID"`
	SellOrderID uint64 `json:"sellOrderID"`
	Buyer       string `json:"buyer"`
	Seller      string `json:"seller"`
	Price       string `json:"price"`
	Quantity    uint32 `json:"quantity"`
}

// NewDoneMessage creates a message with a fresh id
func NewDoneMessage(kind string, orderID uint64) *DoneMessage {
	return &DoneMessage{
		MessageID: uuid.NewString(),
		Kind:      kind,
		OrderID:   orderID,
		Trades:    []Trade{},
	}
}

// NewCancelMessage creates the message for a cancel request
func NewCancelMessage(orderID uint64, canceled bool) *DoneMessage {
	msg := NewDoneMessage(KindCancel, orderID)
	msg.Canceled = canceled
	return msg
}

// Encode serializes a message for the wire
func Encode(msg *DoneMessage) ([]byte, error) {
	return json.Marshal(msg)
}

// Decode parses a message produced by Encode
func Decode(data []byte) (*DoneMessage, error) {
	var msg DoneMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
