package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/fleettrack/telematics-be/internal/core/workflow"
	"github.com/fleettrack/telematics-be/internal/modules/fleet/services"
)

type EventSubmitter interface {
	Submit(ctx context.Context, req services.EventRequest) (workflow.DomainEvent, error)
}

type PositionRecorder interface {
	RecordPosition(ctx context.Context, req services.PositionRequest) ([]workflow.DomainEvent, error)
}

// IngestHandler accepts domain events and raw telemetry onto the bus
type IngestHandler struct {
	events    EventSubmitter
	telemetry PositionRecorder
}

func NewIngestHandler(events EventSubmitter, telemetry PositionRecorder) *IngestHandler {
	return &IngestHandler{events: events, telemetry: telemetry}
}

// PostEvent godoc
// @Summary Submit a domain event
// @Description Queue an event for workflow processing. The owning tenant is derived from the subject.
// @Tags Ingest
// @Accept json
// @Produce json
// @Param event body services.EventRequest true "Domain event"
// @Success 202 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Router /events [post]
func (h *IngestHandler) PostEvent(c *fiber.Ctx) error {
	var req services.EventRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	event, err := h.events.Submit(c.UserContext(), req)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"status":   "accepted",
		"event_id": event.ID,
	})
}

// PostTelemetry godoc
// @Summary Record a position sample
// @Description Publishes location, ignition and speed events derived from the sample
// @Tags Ingest
// @Accept json
// @Produce json
// @Param sample body services.PositionRequest true "Telemetry sample"
// @Success 202 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Router /telemetry [post]
func (h *IngestHandler) PostTelemetry(c *fiber.Ctx) error {
	var req services.PositionRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	published, err := h.telemetry.RecordPosition(c.UserContext(), req)
	if err != nil {
		return handleServiceError(c, err)
	}

	types := make([]workflow.EventType, 0, len(published))
	for _, e := range published {
		types = append(types, e.Type)
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"status": "accepted",
		"events": types,
	})
}
