package eventbus

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/aubira/flowd/pkg/events"
)

// WatermillBus wraps a SyncBus and additionally publishes every event to an
// external message broker through a watermill publisher. In-process delivery
// stays synchronous; broker publishing is best-effort telemetry.
type WatermillBus struct {
	*SyncBus

	publisher message.Publisher
	logger    *slog.Logger
}

func NewWatermillBus(publisher message.Publisher, logger *slog.Logger) *WatermillBus {
	return &WatermillBus{
		SyncBus:   NewSyncBus(logger),
		publisher: publisher,
		logger:    logger.With("module", "eventbus"),
	}
}

func (b *WatermillBus) Publish(ctx context.Context, event Event) {
	b.SyncBus.Publish(ctx, event)

	payload, err := json.Marshal(event)
	if err != nil {
		b.logger.Error("Failed to marshal event for broker publish",
			"event_type", event.GetType(), "error", err)

		return
	}

	msg := message.NewMessage(watermill.NewULID(), payload)
	msg.Metadata.Set("event_type", string(event.GetType()))

	if err := b.publisher.Publish(events.ExecutionTopic, msg); err != nil {
		b.logger.Error("Failed to publish event to broker",
			"event_type", event.GetType(), "error", err)
	}
}

func (b *WatermillBus) Close() error {
	return b.publisher.Close()
}
