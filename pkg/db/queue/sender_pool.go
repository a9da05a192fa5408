package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/erain9/matchbook/pkg/messaging"
)

// DefaultPoolSize is sized for bursts of a few thousand messages per second
const DefaultPoolSize = 8

// ErrPoolClosed is returned once Close has been called
var ErrPoolClosed = errors.New("sender pool closed")

// SenderFactory creates one pooled sender
type SenderFactory func() (messaging.MessageSender, error)

// SenderPool spreads sends over a fixed set of senders. A sender that
// fails is closed and replaced with a fresh one from the factory.
type SenderPool struct {
	factory SenderFactory
	senders chan messaging.MessageSender

	mu     sync.RWMutex
	closed bool
}

// NewSenderPool pre-populates a pool of size senders
func NewSenderPool(size int, factory SenderFactory) (*SenderPool, error) {
	if size <= 0 {
		size = DefaultPoolSize
	}

	p := &SenderPool{
		factory: factory,
		senders: make(chan messaging.MessageSender, size),
	}

	for i := 0; i < size; i++ {
		sender, err := factory()
		if err != nil {
			_ = p.Close()
			return nil, fmt.Errorf("failed to create sender %d: %w", i, err)
		}
		p.senders <- sender
	}

	return p, nil
}

// SendDoneMessage sends a message using a pooled sender
func (p *SenderPool) SendDoneMessage(ctx context.Context, msg *messaging.DoneMessage) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}

	var sender messaging.MessageSender
	select {
	case sender = <-p.senders:
	case <-ctx.Done():
		return ctx.Err()
	}

	err := sender.SendDoneMessage(ctx, msg)
	if err == nil {
		p.senders <- sender
		return nil
	}

	replacement, ferr := p.factory()
	if ferr != nil {
		// Keep the pool at full size so later sends don't block forever
		p.senders <- sender
		return errors.Join(err, fmt.Errorf("failed to replace sender: %w", ferr))
	}
	_ = sender.Close()
	p.senders <- replacement

	return err
}

// Close closes every pooled sender
func (p *SenderPool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true

	var errs []error
	for {
		select {
		case sender := <-p.senders:
			if err := sender.Close(); err != nil {
				errs = append(errs, err)
			}
		default:
			return errors.Join(errs...)
		}
	}
}
