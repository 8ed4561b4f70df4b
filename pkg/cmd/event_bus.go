package cmd

import (
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"

	"github.com/aubira/flowd/pkg/channels/gochannel"
	"github.com/aubira/flowd/pkg/channels/kafka"
	"github.com/aubira/flowd/pkg/eventbus"
)

// NewEventBus builds the lifecycle event bus. "sync" keeps events in-process;
// "kafka" and "gochannel" additionally mirror them to a broker channel.
func NewEventBus(provider string, logger *slog.Logger) eventbus.Bus {
	switch provider {
	case "", "sync":
		return eventbus.NewSyncBus(logger)
	case "kafka":
		cfg, err := kafka.ConfigFromEnv("flowd")
		if err != nil {
			panic(fmt.Errorf("failed to configure Kafka pub/sub: %w", err))
		}

		pub, _, err := kafka.CreateChannel(watermill.NewSlogLogger(logger), cfg)
		if err != nil {
			panic(fmt.Errorf("failed to create Kafka pub/sub: %w", err))
		}

		return eventbus.NewWatermillBus(pub, logger)
	case "gochannel":
		pub, _, err := gochannel.CreateChannel(watermill.NewSlogLogger(logger))
		if err != nil {
			panic(fmt.Errorf("failed to create GoChannel pub/sub: %w", err))
		}

		return eventbus.NewWatermillBus(pub, logger)
	default:
		panic("Unsupported event bus provider: " + provider)
	}
}
