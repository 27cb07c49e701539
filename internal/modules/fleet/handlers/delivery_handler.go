package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/fleettrack/telematics-be/internal/core/jobs"
)

// DeliveryQueue is the job queue behind the database event bus
type DeliveryQueue interface {
	GetStats(ctx context.Context, tenantID *uuid.UUID) (*jobs.JobStats, error)
	ListJobs(ctx context.Context, filter jobs.JobFilter) ([]jobs.Job, error)
	Cancel(ctx context.Context, jobID uuid.UUID) error
}

type DeliveryHandler struct {
	queue DeliveryQueue
}

func NewDeliveryHandler(queue DeliveryQueue) *DeliveryHandler {
	return &DeliveryHandler{queue: queue}
}

type deliveryView struct {
	ID          uuid.UUID  `json:"id"`
	Type        string     `json:"type"`
	Status      string     `json:"status"`
	Attempts    int        `json:"attempts"`
	MaxRetries  int        `json:"max_retries"`
	Error       string     `json:"error,omitempty"`
	ScheduledAt *time.Time `json:"scheduled_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// GetStats godoc
// @Summary Event delivery queue statistics
// @Tags Deliveries
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /deliveries/stats [get]
func (h *DeliveryHandler) GetStats(c *fiber.Ctx) error {
	stats, err := h.queue.GetStats(c.UserContext(), nil)
	if err != nil {
		return internalError(c, err)
	}
	return c.JSON(fiber.Map{
		"status": "success",
		"data":   stats,
	})
}

// ListDeliveries godoc
// @Summary List queued event deliveries
// @Tags Deliveries
// @Produce json
// @Param status query string false "pending, retrying, processing, completed, failed or cancelled"
// @Param limit query int false "Max results (default 50)"
// @Success 200 {object} map[string]interface{}
// @Router /deliveries [get]
func (h *DeliveryHandler) ListDeliveries(c *fiber.Ctx) error {
	status := jobs.JobStatus(c.Query("status"))
	switch status {
	case "", jobs.StatusPending, jobs.StatusRetrying, jobs.StatusProcessing, jobs.StatusCompleted, jobs.StatusFailed, jobs.StatusCancelled:
	default:
		return badRequest(c, "unknown delivery status: "+string(status))
	}

	limit := c.QueryInt("limit", 50)
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	list, err := h.queue.ListJobs(c.UserContext(), jobs.JobFilter{
		Queue:  jobs.EventQueue,
		Type:   jobs.EventJobType,
		Status: status,
		Limit:  limit,
	})
	if err != nil {
		return internalError(c, err)
	}

	views := make([]deliveryView, 0, len(list))
	for _, job := range list {
		views = append(views, deliveryView{
			ID:          job.ID,
			Type:        job.Type,
			Status:      string(job.Status),
			Attempts:    job.Attempts,
			MaxRetries:  job.MaxRetries,
			Error:       job.Error,
			ScheduledAt: job.ScheduledAt,
			CompletedAt: job.CompletedAt,
			CreatedAt:   job.CreatedAt,
		})
	}

	return c.JSON(fiber.Map{
		"status": "success",
		"count":  len(views),
		"data":   views,
	})
}

// CancelDelivery godoc
// @Summary Cancel a pending or retrying event delivery
// @Tags Deliveries
// @Param id path string true "Delivery ID"
// @Success 204
// @Failure 409 {object} map[string]interface{}
// @Router /deliveries/{id} [delete]
func (h *DeliveryHandler) CancelDelivery(c *fiber.Ctx) error {
	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}

	if err := h.queue.Cancel(c.UserContext(), id); err != nil {
		if errors.Is(err, jobs.ErrJobNotCancellable) {
			return writeProblem(c, fiber.StatusConflict,
				problem(c, fiber.StatusConflict, "delivery_not_cancellable").WithDetail("delivery is not pending or retrying"))
		}
		return internalError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
