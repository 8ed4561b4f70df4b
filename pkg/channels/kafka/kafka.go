// Package kafka provides Kafka-backed publish/subscribe channels for
// workflow lifecycle events.
package kafka

import (
	"errors"
	"os"
	"strings"

	"github.com/IBM/sarama"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v3/pkg/kafka"
)

// Config describes the Kafka connection for one service. Each service joins
// its own consumer group so lifecycle events fan out across services but are
// load-balanced within a service's replicas.
type Config struct {
	Brokers       []string
	ConsumerGroup string
	ReadFromStart bool
}

// ConfigFromEnv builds a Config from KAFKA_BROKERS, KAFKA_CONSUMER_GROUP and
// KAFKA_READ_FROM_START. Without an explicit group the service name picks
// one.
func ConfigFromEnv(serviceName string) (Config, error) {
	brokers := splitBrokers(os.Getenv("KAFKA_BROKERS"))
	if len(brokers) == 0 {
		return Config{}, errors.New("KAFKA_BROKERS environment variable is not set or empty")
	}

	group := os.Getenv("KAFKA_CONSUMER_GROUP")
	if group == "" {
		group = "flowd-" + serviceName
	}

	return Config{
		Brokers:       brokers,
		ConsumerGroup: group,
		ReadFromStart: os.Getenv("KAFKA_READ_FROM_START") != "",
	}, nil
}

func splitBrokers(raw string) []string {
	var brokers []string

	for _, broker := range strings.Split(raw, ",") {
		if broker = strings.TrimSpace(broker); broker != "" {
			brokers = append(brokers, broker)
		}
	}

	return brokers
}

// CreateChannel builds the publisher and subscriber pair for cfg.
func CreateChannel(logger watermill.LoggerAdapter, cfg Config) (*kafka.Publisher, *kafka.Subscriber, error) {
	if len(cfg.Brokers) == 0 {
		return nil, nil, errors.New("no Kafka brokers configured")
	}

	subscriberConfig := kafka.DefaultSaramaSubscriberConfig()
	if cfg.ReadFromStart {
		subscriberConfig.Consumer.Offsets.Initial = sarama.OffsetOldest
	}

	subscriber, err := kafka.NewSubscriber(
		kafka.SubscriberConfig{
			Brokers:               cfg.Brokers,
			Unmarshaler:           kafka.DefaultMarshaler{},
			OverwriteSaramaConfig: subscriberConfig,
			ConsumerGroup:         cfg.ConsumerGroup,
			OTELEnabled:           true,
		},
		logger,
	)
	if err != nil {
		return nil, nil, err
	}

	publisherConfig := sarama.NewConfig()
	publisherConfig.Producer.Return.Successes = true

	publisher, err := kafka.NewPublisher(
		kafka.PublisherConfig{
			Brokers:               cfg.Brokers,
			Marshaler:             kafka.DefaultMarshaler{},
			OverwriteSaramaConfig: publisherConfig,
			OTELEnabled:           true,
		},
		logger,
	)
	if err != nil {
		return nil, nil, err
	}

	return publisher, subscriber, nil
}
