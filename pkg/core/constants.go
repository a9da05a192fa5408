package core

import "errors"

// Errors
var (
	ErrInvalidOrder    = errors.New("invalid order")
	ErrInvalidQuantity = errors.New("invalid quantity")
	ErrInvalidPrice    = errors.New("invalid price")
	ErrInvalidSide     = errors.New("invalid side")
	ErrOrderExists     = errors.New("order exists")
)
