package ingest

import (
	"fmt"
	"strings"

	"github.com/erain9/matchbook/pkg/core"
)

// Action is what a Command asks the book to do
type Action string

// Supported actions
const (
	ActionSubmit Action = "submit"
	ActionCancel Action = "cancel"
)

// ParseAction accepts submit/cancel in any case; empty means submit
func ParseAction(s string) (Action, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "submit", "new":
		return ActionSubmit, nil
	case "cancel":
		return ActionCancel, nil
	default:
		return "", fmt.Errorf("unknown action %q", s)
	}
}

// ParseOrderType accepts the limit order type codes. Limit orders are the
// only kind the book matches.
func ParseOrderType(s string) error {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "LO", "LIMIT_ORDER":
		return nil
	default:
		return fmt.Errorf("unsupported order type %q", s)
	}
}

// Command is one instruction read from an input source
type Command struct {
	Action Action
	// Order is set for submits
	Order *core.Order
	// OrderID is the target of a cancel
	OrderID uint64
	// Line is the source position, for error reporting
	Line int
}

// String implements fmt.Stringer interface
func (c Command) String() string {
	if c.Action == ActionCancel {
		return fmt.Sprintf("cancel %d", c.OrderID)
	}
	return fmt.Sprintf("submit %s", c.Order)
}
