package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/moogar0880/problems"

	"github.com/fleettrack/telematics-be/internal/modules/fleet/repositories"
	"github.com/fleettrack/telematics-be/internal/modules/fleet/services"
)

func problem(c *fiber.Ctx, status int, problemType string) *problems.Problem {
	return problems.NewStatusProblem(status).
		WithInstance(c.Path()).
		WithType(problemType)
}

func writeProblem(c *fiber.Ctx, status int, p *problems.Problem) error {
	return c.Status(status).JSON(p, problems.ProblemMediaType)
}

func badRequest(c *fiber.Ctx, detail string) error {
	return writeProblem(c, fiber.StatusBadRequest, problem(c, fiber.StatusBadRequest, "validation_error").WithDetail(detail))
}

func notFound(c *fiber.Ctx, problemType, detail string) error {
	return writeProblem(c, fiber.StatusNotFound, problem(c, fiber.StatusNotFound, problemType).WithDetail(detail))
}

func internalError(c *fiber.Ctx, err error) error {
	return writeProblem(c, fiber.StatusInternalServerError, problem(c, fiber.StatusInternalServerError, "internal_error").WithError(err))
}

// handleServiceError maps service and repository errors to problem documents
func handleServiceError(c *fiber.Ctx, err error) error {
	switch {
	case services.IsValidationError(err):
		return badRequest(c, strings.TrimPrefix(err.Error(), services.ErrValidation.Error()+": "))
	case errors.Is(err, repositories.ErrWorkflowNotFound):
		return notFound(c, "workflow_not_found", "workflow not found")
	case errors.Is(err, repositories.ErrExecutionNotFound):
		return notFound(c, "execution_not_found", "execution not found")
	default:
		return internalError(c, err)
	}
}

// tenantID reads the caller's tenant from X-Tenant-ID or the tenant_id query
func tenantID(c *fiber.Ctx) (uuid.UUID, error) {
	raw := c.Get("X-Tenant-ID")
	if raw == "" {
		raw = c.Query("tenant_id")
	}
	if raw == "" {
		return uuid.Nil, errors.New("tenant_id is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, errors.New("invalid tenant_id format")
	}
	return id, nil
}

func pathID(c *fiber.Ctx, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(name))
	if err != nil {
		return uuid.Nil, errors.New("invalid " + name + " format")
	}
	return id, nil
}
