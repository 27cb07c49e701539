package events

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/fleettrack/telematics-be/internal/core/workflow"
)

// Publisher is the port through which state-change detectors emit domain events
type Publisher interface {
	Publish(ctx context.Context, event workflow.DomainEvent) error
}

// WatermillPublisher publishes domain events to a watermill topic
type WatermillPublisher struct {
	publisher message.Publisher
	topic     string
}

func NewWatermillPublisher(publisher message.Publisher, topic string) *WatermillPublisher {
	return &WatermillPublisher{publisher: publisher, topic: topic}
}

func (p *WatermillPublisher) Publish(ctx context.Context, event workflow.DomainEvent) error {
	msg, err := Encode(ctx, event)
	if err != nil {
		return err
	}
	if err := p.publisher.Publish(p.topic, msg); err != nil {
		return fmt.Errorf("publish %s to %s: %w", event.Type, p.topic, err)
	}
	return nil
}
