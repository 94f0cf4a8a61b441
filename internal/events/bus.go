package events

import (
	"context"
	"fmt"
	"sync"

	"github.com/kursadbilgin/campaign-dispatch/internal/domain"
)

// Handler processes one ledger event. Returning an error signals a
// transport-level failure; domain failures are handled inside.
type Handler func(ctx context.Context, event domain.Event) error

// Bus delivers ledger events to subscribed handlers.
type Bus interface {
	Subscribe(kind domain.EventKind, handler Handler) error
}

// LocalBus is an in-process Bus. Publish runs handlers synchronously in
// subscription order.
type LocalBus struct {
	mu       sync.RWMutex
	handlers map[domain.EventKind][]Handler
}

var _ Bus = (*LocalBus)(nil)

func NewLocalBus() *LocalBus {
	return &LocalBus{handlers: make(map[domain.EventKind][]Handler)}
}

func (b *LocalBus) Subscribe(kind domain.EventKind, handler Handler) error {
	if !kind.IsValid() {
		return fmt.Errorf("%w: invalid event kind %q", domain.ErrValidation, kind)
	}
	if handler == nil {
		return fmt.Errorf("%w: handler is required", domain.ErrValidation)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[kind] = append(b.handlers[kind], handler)
	return nil
}

// Publish delivers event to every handler subscribed to its kind and returns
// the first handler error.
func (b *LocalBus) Publish(ctx context.Context, event domain.Event) error {
	if err := event.Validate(); err != nil {
		return err
	}

	b.mu.RLock()
	handlers := append([]Handler(nil), b.handlers[event.Kind]...)
	b.mu.RUnlock()

	var firstErr error
	for _, handler := range handlers {
		if err := handler(ctx, event); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
