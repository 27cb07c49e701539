package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/fleettrack/telematics-be/internal/core/audit"
)

// RegisterRoutes mounts the fleet workflow API on router
func RegisterRoutes(router fiber.Router, workflows *WorkflowHandler, ingest *IngestHandler, alerts *AlertHandler, health *HealthHandler) {
	router.Use(actor)

	router.Get("/health", health.GetHealth)
	router.Get("/catalogue", workflows.GetCatalogue)

	router.Get("/workflows", workflows.ListWorkflows)
	router.Post("/workflows", workflows.CreateWorkflow)
	router.Get("/workflows/:id", workflows.GetWorkflow)
	router.Put("/workflows/:id", workflows.UpdateWorkflow)
	router.Delete("/workflows/:id", workflows.DeleteWorkflow)
	router.Get("/workflows/:id/executions", workflows.ListExecutions)
	router.Get("/workflows/:id/history", workflows.GetHistory)
	router.Get("/executions/:id", workflows.GetExecution)

	router.Get("/alerts", alerts.ListAlerts)

	router.Post("/events", ingest.PostEvent)
	router.Post("/telemetry", ingest.PostTelemetry)
}

// RegisterDeliveryRoutes mounts inspection of the database event bus queue
func RegisterDeliveryRoutes(router fiber.Router, deliveries *DeliveryHandler) {
	router.Get("/deliveries", deliveries.ListDeliveries)
	router.Get("/deliveries/stats", deliveries.GetStats)
	router.Delete("/deliveries/:id", deliveries.CancelDelivery)
}

// actor records the X-Actor header as the author of changes made by the request
func actor(c *fiber.Ctx) error {
	if name := c.Get("X-Actor"); name != "" {
		c.SetUserContext(audit.WithActor(c.UserContext(), name))
	}
	return c.Next()
}
