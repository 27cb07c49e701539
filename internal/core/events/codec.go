package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/fleettrack/telematics-be/internal/core/workflow"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

const (
	EventTypeMetadataKey = "event_type"
	TenantIDMetadataKey  = "tenant_id"
	SubjectMetadataKey   = "subject"
)

// ErrMalformedEvent marks messages that cannot be decoded into a domain event
var ErrMalformedEvent = errors.New("malformed domain event")

// Encode builds a watermill message for event, carrying the trace context of ctx
func Encode(ctx context.Context, event workflow.DomainEvent) (*message.Message, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal domain event: %w", err)
	}

	id := event.ID.String()
	if event.ID == uuid.Nil {
		id = watermill.NewUUID()
	}
	msg := message.NewMessage(id, payload)
	msg.Metadata.Set(EventTypeMetadataKey, string(event.Type))
	msg.Metadata.Set(SubjectMetadataKey, event.Subject.String())
	if event.Subject.TenantID != uuid.Nil {
		msg.Metadata.Set(TenantIDMetadataKey, event.Subject.TenantID.String())
	}

	otel.GetTextMapPropagator().Inject(ctx, propagation.MapCarrier(msg.Metadata))
	msg.SetContext(ctx)
	return msg, nil
}

// Decode reads the domain event carried by msg
func Decode(msg *message.Message) (workflow.DomainEvent, error) {
	var event workflow.DomainEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		return event, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if event.Type == "" {
		event.Type = workflow.EventType(msg.Metadata.Get(EventTypeMetadataKey))
	}
	if event.Type == "" || event.Subject.ID == "" {
		return event, fmt.Errorf("%w: missing type or subject", ErrMalformedEvent)
	}
	if event.Payload == nil {
		event.Payload = map[string]any{}
	}
	return event, nil
}

// MessageContext returns the message context with any propagated trace context
func MessageContext(msg *message.Message) context.Context {
	return otel.GetTextMapPropagator().Extract(msg.Context(), propagation.MapCarrier(msg.Metadata))
}
