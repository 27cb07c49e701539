package services

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/fleettrack/telematics-be/internal/core/events"
	"github.com/fleettrack/telematics-be/internal/core/workflow"
)

// EventRequest is a domain event submitted by another service
type EventRequest struct {
	ID          string         `json:"id" validate:"omitempty,uuid"`
	Type        string         `json:"type" validate:"required,event_type"`
	SubjectType string         `json:"subject_type" validate:"required"`
	SubjectID   string         `json:"subject_id" validate:"required"`
	Payload     map[string]any `json:"payload"`
	Previous    map[string]any `json:"previous"`
	OccurredAt  time.Time      `json:"occurred_at"`
}

// EventService accepts externally produced events onto the bus
type EventService struct {
	publisher events.Publisher
	validate  *validator.Validate
	logger    zerolog.Logger
}

func NewEventService(publisher events.Publisher, validate *validator.Validate, logger zerolog.Logger) *EventService {
	if validate == nil {
		validate = NewValidator()
	}
	return &EventService{publisher: publisher, validate: validate, logger: logger}
}

// Submit validates and publishes the event. Tenant ownership is decided by
// the engine from the subject, never taken from the request.
func (s *EventService) Submit(ctx context.Context, req EventRequest) (workflow.DomainEvent, error) {
	if err := s.validate.Struct(req); err != nil {
		return workflow.DomainEvent{}, validationError(err)
	}

	eventType := workflow.EventType(req.Type)
	if want := eventType.SubjectType(); want != "" && want != req.SubjectType {
		return workflow.DomainEvent{}, fmt.Errorf("%w: %s events need a %s subject, got %s", ErrValidation, eventType, want, req.SubjectType)
	}

	event := workflow.NewDomainEvent(eventType, workflow.EntityRef{Type: req.SubjectType, ID: req.SubjectID}, req.Payload, req.Previous)
	if req.ID != "" {
		event.ID = uuid.MustParse(req.ID)
	}
	if !req.OccurredAt.IsZero() {
		event.OccurredAt = req.OccurredAt.UTC()
	}

	if err := s.publisher.Publish(ctx, event); err != nil {
		return workflow.DomainEvent{}, fmt.Errorf("failed to publish event: %w", err)
	}

	s.logger.Info().
		Str("event_id", event.ID.String()).
		Str("event_type", string(event.Type)).
		Str("subject", event.Subject.String()).
		Msg("event accepted")

	return event, nil
}
