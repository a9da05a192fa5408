package core

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrors(t *testing.T) {
	// Verify that all error variables are defined
	errorTests := []struct {
		name string
		err  error
		msg  string
	}{
		{"ErrInvalidOrder", ErrInvalidOrder, "invalid order"},
		{"ErrInvalidQuantity", ErrInvalidQuantity, "invalid quantity"},
		{"ErrInvalidPrice", ErrInvalidPrice, "invalid price"},
		{"ErrInvalidSide", ErrInvalidSide, "invalid side"},
		{"ErrOrderExists", ErrOrderExists, "order exists"},
	}

	for _, tt := range errorTests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err == nil {
				t.Errorf("Error %s is nil", tt.name)
			}

			if tt.err.Error() != tt.msg {
				t.Errorf("Expected error message %q, got %q", tt.msg, tt.err.Error())
			}

			// Check if the error matches itself using errors.Is
			if !errors.Is(tt.err, tt.err) {
				t.Errorf("Error %s does not match itself with errors.Is", tt.name)
			}
		})
	}
}

func TestRejectionWrapsBothSentinels(t *testing.T) {
	err := reject(ErrInvalidPrice, 7)

	if !errors.Is(err, ErrInvalidOrder) {
		t.Errorf("Expected %v to match ErrInvalidOrder", err)
	}
	if !errors.Is(err, ErrInvalidPrice) {
		t.Errorf("Expected %v to match ErrInvalidPrice", err)
	}
	if errors.Is(err, ErrInvalidQuantity) {
		t.Errorf("Expected %v not to match ErrInvalidQuantity", err)
	}

	want := fmt.Sprintf("%s: %s (order 7)", ErrInvalidOrder, ErrInvalidPrice)
	if err.Error() != want {
		t.Errorf("Expected message %q, got %q", want, err.Error())
	}
}
