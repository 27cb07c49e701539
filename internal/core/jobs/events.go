package jobs

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fleettrack/telematics-be/internal/core/events"
	"github.com/fleettrack/telematics-be/internal/core/workflow"
	"github.com/google/uuid"
)

const (
	// EventQueue holds domain events awaiting the workflow engine
	EventQueue = "workflow-events"
	// EventJobType is the job type carrying one domain event
	EventJobType = "domain_event"
)

// Enqueuer is the part of Queue used to publish events
type Enqueuer interface {
	Enqueue(ctx context.Context, tenantID *uuid.UUID, jobType string, payload interface{}, opts EnqueueOptions) (*Job, error)
}

// EventPublisher implements events.Publisher on top of the job queue
type EventPublisher struct {
	queue      Enqueuer
	maxRetries int
}

func NewEventPublisher(queue Enqueuer, maxRetries int) *EventPublisher {
	return &EventPublisher{queue: queue, maxRetries: maxRetries}
}

func (p *EventPublisher) Publish(ctx context.Context, event workflow.DomainEvent) error {
	var tenantID *uuid.UUID
	if event.Subject.TenantID != uuid.Nil {
		id := event.Subject.TenantID
		tenantID = &id
	}
	_, err := p.queue.Enqueue(ctx, tenantID, EventJobType, event, EnqueueOptions{
		Queue:      EventQueue,
		Priority:   PriorityNormal,
		MaxRetries: p.maxRetries,
		Metadata: map[string]interface{}{
			"event_type": string(event.Type),
			"subject":    event.Subject.String(),
		},
	})
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", event.Type, err)
	}
	return nil
}

var _ events.Publisher = (*EventPublisher)(nil)

// EventHandler runs queued domain events through a listener
type EventHandler struct {
	listener *events.Listener
}

func NewEventHandler(listener *events.Listener) *EventHandler {
	return &EventHandler{listener: listener}
}

func (h *EventHandler) GetType() string { return EventJobType }

func (h *EventHandler) Handle(ctx context.Context, job *Job) error {
	event, err := DecodeEvent(job)
	if err != nil {
		return err
	}
	return h.listener.Handle(ctx, event)
}

// DecodeEvent reads the domain event stored in job
func DecodeEvent(job *Job) (workflow.DomainEvent, error) {
	var event workflow.DomainEvent
	if err := json.Unmarshal(job.Payload, &event); err != nil {
		return event, fmt.Errorf("%w: %v", events.ErrMalformedEvent, err)
	}
	return event, nil
}

// DeadLetter adapts an events.DeadLetterFunc to worker exhaustion
func DeadLetter(fn events.DeadLetterFunc) ExhaustedFunc {
	return func(ctx context.Context, job *Job, cause error) {
		if job.Type != EventJobType {
			return
		}
		event, err := DecodeEvent(job)
		if err != nil {
			return
		}
		fn(ctx, event, cause.Error())
	}
}
