package events

import (
	"errors"

	"github.com/IBM/sarama"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v3/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// NewGoChannel creates an in-process pub/sub used for development and tests.
// The same instance serves as publisher and subscriber.
func NewGoChannel(logger watermill.LoggerAdapter, blockUntilAck bool) *gochannel.GoChannel {
	return gochannel.NewGoChannel(
		gochannel.Config{
			OutputChannelBuffer:            1000,
			Persistent:                     false,
			BlockPublishUntilSubscriberAck: blockUntilAck,
		},
		logger,
	)
}

// NewKafkaChannel creates a Kafka publisher and a subscriber in consumer group "cg-"+serviceName
func NewKafkaChannel(logger watermill.LoggerAdapter, brokers []string, serviceName string, otelEnabled bool) (*kafka.Publisher, *kafka.Subscriber, error) {
	if len(brokers) == 0 || brokers[0] == "" {
		return nil, nil, errors.New("kafka brokers are not configured")
	}

	saramaSubscriberConfig := kafka.DefaultSaramaSubscriberConfig()
	saramaSubscriberConfig.Consumer.Offsets.Initial = sarama.OffsetOldest

	subscriber, err := kafka.NewSubscriber(
		kafka.SubscriberConfig{
			Brokers:               brokers,
			Unmarshaler:           kafka.DefaultMarshaler{},
			OverwriteSaramaConfig: saramaSubscriberConfig,
			ConsumerGroup:         "cg-" + serviceName,
			OTELEnabled:           otelEnabled,
		},
		logger,
	)
	if err != nil {
		return nil, nil, err
	}

	saramaPublisherConfig := sarama.NewConfig()
	saramaPublisherConfig.Producer.Return.Successes = true
	publisher, err := kafka.NewPublisher(
		kafka.PublisherConfig{
			Brokers:               brokers,
			Marshaler:             kafka.DefaultMarshaler{},
			OverwriteSaramaConfig: saramaPublisherConfig,
			OTELEnabled:           otelEnabled,
		},
		logger,
	)
	if err != nil {
		_ = subscriber.Close()
		return nil, nil, err
	}

	return publisher, subscriber, nil
}
