package eventbus

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// SyncBus is a synchronous in-process bus: every listener is invoked in
// registration order on the publisher's goroutine. A listener that errors or
// panics is logged and does not prevent delivery to subsequent listeners.
type SyncBus struct {
	logger *slog.Logger

	mu        sync.RWMutex
	listeners []Listener
}

func NewSyncBus(logger *slog.Logger) *SyncBus {
	return &SyncBus{logger: logger.With("module", "eventbus")}
}

func (b *SyncBus) Subscribe(listener Listener) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.listeners = append(b.listeners, listener)
}

func (b *SyncBus) Publish(ctx context.Context, event Event) {
	b.mu.RLock()
	listeners := make([]Listener, len(b.listeners))
	copy(listeners, b.listeners)
	b.mu.RUnlock()

	for _, listener := range listeners {
		b.deliver(ctx, listener, event)
	}
}

func (b *SyncBus) deliver(ctx context.Context, listener Listener, event Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Event listener panicked",
				"event_type", event.GetType(), "panic", fmt.Sprintf("%v", r))
		}
	}()

	if err := listener(ctx, event); err != nil {
		b.logger.Error("Event listener failed",
			"event_type", event.GetType(), "error", err)
	}
}

func (b *SyncBus) Close() error {
	return nil
}
