package events

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/fleettrack/telematics-be/internal/core/workflow"
	"github.com/rs/zerolog"
)

// Processor consumes decoded domain events; workflow.Engine implements it
type Processor interface {
	ProcessEvent(ctx context.Context, event workflow.DomainEvent) error
}

// Listener bridges delivered messages to a Processor. Errors are logged and
// returned so the delivery layer retries the message.
type Listener struct {
	processor Processor
	logger    zerolog.Logger
}

func NewListener(processor Processor, logger zerolog.Logger) *Listener {
	return &Listener{processor: processor, logger: logger}
}

// HandleMessage is a watermill NoPublishHandlerFunc
func (l *Listener) HandleMessage(msg *message.Message) error {
	event, err := Decode(msg)
	if err != nil {
		l.logger.Error().Err(err).
			Str("message_uuid", msg.UUID).
			Msg("could not decode delivered event")
		return err
	}
	return l.Handle(MessageContext(msg), event)
}

// Handle runs the processor for one event
func (l *Listener) Handle(ctx context.Context, event workflow.DomainEvent) error {
	if err := l.processor.ProcessEvent(ctx, event); err != nil {
		l.logger.Error().Err(err).
			Str("event_id", event.ID.String()).
			Str("event_type", string(event.Type)).
			Str("subject", event.Subject.String()).
			Msg("processing domain event failed, handing back for retry")
		return err
	}
	return nil
}
