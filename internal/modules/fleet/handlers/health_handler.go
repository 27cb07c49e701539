package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

// HealthCheck probes one dependency
type HealthCheck func(ctx context.Context) error

type HealthHandler struct {
	service string
	bus     string
	checks  map[string]HealthCheck
}

func NewHealthHandler(service, bus string, checks map[string]HealthCheck) *HealthHandler {
	return &HealthHandler{service: service, bus: bus, checks: checks}
}

// GetHealth godoc
// @Summary Service health check
// @Description Check if API and its dependencies are alive
// @Tags Health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{}
// @Router /health [get]
func (h *HealthHandler) GetHealth(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	status := "ok"
	deps := fiber.Map{}
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			status = "degraded"
			deps[name] = err.Error()
			continue
		}
		deps[name] = "ok"
	}

	code := fiber.StatusOK
	if status != "ok" {
		code = fiber.StatusServiceUnavailable
	}
	return c.Status(code).JSON(fiber.Map{
		"status":       status,
		"service":      h.service,
		"event_bus":    h.bus,
		"dependencies": deps,
	})
}
