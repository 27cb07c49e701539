package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/fleettrack/telematics-be/internal/modules/fleet/models"
)

type AlertLister interface {
	ListForEntity(ctx context.Context, tenantID uuid.UUID, entityType, entityID string, limit int) ([]models.Alert, error)
}

type AlertHandler struct {
	alerts AlertLister
}

func NewAlertHandler(alerts AlertLister) *AlertHandler {
	return &AlertHandler{alerts: alerts}
}

// ListAlerts godoc
// @Summary List alerts raised against an entity
// @Tags Alerts
// @Produce json
// @Param X-Tenant-ID header string true "Tenant ID"
// @Param entity_type query string true "Entity type, e.g. vehicle"
// @Param entity_id query string true "Entity ID"
// @Param limit query int false "Max results (default 50)"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Router /alerts [get]
func (h *AlertHandler) ListAlerts(c *fiber.Ctx) error {
	tenant, err := tenantID(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	entityType, entityID := c.Query("entity_type"), c.Query("entity_id")
	if entityType == "" || entityID == "" {
		return badRequest(c, "entity_type and entity_id are required")
	}

	alerts, err := h.alerts.ListForEntity(c.UserContext(), tenant, entityType, entityID, c.QueryInt("limit", 50))
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{
		"status": "success",
		"count":  len(alerts),
		"data":   alerts,
	})
}
