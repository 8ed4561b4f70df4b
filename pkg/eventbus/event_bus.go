// Package eventbus provides lifecycle event fan-out for workflow execution.
package eventbus

import (
	"context"

	"github.com/aubira/flowd/pkg/events"
)

// Event is any lifecycle event carrying its type tag.
type Event interface {
	GetType() events.EventType
}

// Listener receives every published event. Listener errors are logged and
// never propagate to the publisher.
type Listener func(ctx context.Context, event Event) error

// Bus delivers execution lifecycle events to registered listeners.
type Bus interface {
	Subscribe(listener Listener)
	Publish(ctx context.Context, event Event)
	Close() error
}
