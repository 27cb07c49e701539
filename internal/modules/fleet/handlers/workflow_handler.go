package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/fleettrack/telematics-be/internal/core/audit"
	"github.com/fleettrack/telematics-be/internal/core/workflow"
	"github.com/fleettrack/telematics-be/internal/modules/fleet/services"
)

// WorkflowService is the part of services.WorkflowService the handler uses
type WorkflowService interface {
	CreateWorkflow(ctx context.Context, tenantID uuid.UUID, req services.WorkflowRequest) (*workflow.Workflow, error)
	UpdateWorkflow(ctx context.Context, tenantID, id uuid.UUID, req services.WorkflowRequest) (*workflow.Workflow, error)
	DeleteWorkflow(ctx context.Context, tenantID, id uuid.UUID) error
	GetWorkflow(ctx context.Context, tenantID, id uuid.UUID) (*workflow.Workflow, error)
	ListWorkflows(ctx context.Context, tenantID uuid.UUID) ([]workflow.Workflow, error)
	ListExecutions(ctx context.Context, tenantID, workflowID uuid.UUID, limit int) ([]workflow.Execution, error)
	GetExecution(ctx context.Context, tenantID, id uuid.UUID) (*workflow.Execution, error)
	History(ctx context.Context, tenantID, id uuid.UUID, limit int) ([]audit.AuditLog, error)
	Catalogue() workflow.Catalogue
}

// WorkflowHandler handles workflow-related requests
type WorkflowHandler struct {
	workflowService WorkflowService
}

// NewWorkflowHandler creates a new workflow handler
func NewWorkflowHandler(workflowService WorkflowService) *WorkflowHandler {
	return &WorkflowHandler{
		workflowService: workflowService,
	}
}

// CreateWorkflow godoc
// @Summary Create a new workflow
// @Description Create an automation workflow for a tenant
// @Tags Workflows
// @Accept json
// @Produce json
// @Param X-Tenant-ID header string true "Tenant ID"
// @Param workflow body services.WorkflowRequest true "Workflow definition"
// @Success 201 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Failure 500 {object} map[string]interface{}
// @Router /workflows [post]
func (h *WorkflowHandler) CreateWorkflow(c *fiber.Ctx) error {
	tenant, err := tenantID(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	var req services.WorkflowRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	created, err := h.workflowService.CreateWorkflow(c.UserContext(), tenant, req)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"status":  "success",
		"message": "Workflow created successfully",
		"data":    created,
	})
}

// ListWorkflows godoc
// @Summary List workflows
// @Description Retrieve all workflows of a tenant
// @Tags Workflows
// @Produce json
// @Param X-Tenant-ID header string true "Tenant ID"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Router /workflows [get]
func (h *WorkflowHandler) ListWorkflows(c *fiber.Ctx) error {
	tenant, err := tenantID(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	workflows, err := h.workflowService.ListWorkflows(c.UserContext(), tenant)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"status": "success",
		"count":  len(workflows),
		"data":   workflows,
	})
}

// GetWorkflow godoc
// @Summary Get workflow by ID
// @Tags Workflows
// @Produce json
// @Param X-Tenant-ID header string true "Tenant ID"
// @Param id path string true "Workflow ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /workflows/{id} [get]
func (h *WorkflowHandler) GetWorkflow(c *fiber.Ctx) error {
	tenant, err := tenantID(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}

	wf, err := h.workflowService.GetWorkflow(c.UserContext(), tenant, id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"status": "success",
		"data":   wf,
	})
}

// UpdateWorkflow godoc
// @Summary Replace a workflow definition
// @Tags Workflows
// @Accept json
// @Produce json
// @Param X-Tenant-ID header string true "Tenant ID"
// @Param id path string true "Workflow ID"
// @Param workflow body services.WorkflowRequest true "Workflow definition"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /workflows/{id} [put]
func (h *WorkflowHandler) UpdateWorkflow(c *fiber.Ctx) error {
	tenant, err := tenantID(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}

	var req services.WorkflowRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	updated, err := h.workflowService.UpdateWorkflow(c.UserContext(), tenant, id, req)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"status":  "success",
		"message": "Workflow updated successfully",
		"data":    updated,
	})
}

// DeleteWorkflow godoc
// @Summary Delete a workflow
// @Tags Workflows
// @Param X-Tenant-ID header string true "Tenant ID"
// @Param id path string true "Workflow ID"
// @Success 204
// @Failure 404 {object} map[string]interface{}
// @Router /workflows/{id} [delete]
func (h *WorkflowHandler) DeleteWorkflow(c *fiber.Ctx) error {
	tenant, err := tenantID(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}

	if err := h.workflowService.DeleteWorkflow(c.UserContext(), tenant, id); err != nil {
		return handleServiceError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ListExecutions godoc
// @Summary List executions of a workflow
// @Tags Executions
// @Produce json
// @Param X-Tenant-ID header string true "Tenant ID"
// @Param id path string true "Workflow ID"
// @Param limit query int false "Max results (default 50)"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /workflows/{id}/executions [get]
func (h *WorkflowHandler) ListExecutions(c *fiber.Ctx) error {
	tenant, err := tenantID(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}

	executions, err := h.workflowService.ListExecutions(c.UserContext(), tenant, id, c.QueryInt("limit", 50))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"status": "success",
		"count":  len(executions),
		"data":   executions,
	})
}

// GetHistory godoc
// @Summary Change history of a workflow
// @Tags Workflows
// @Produce json
// @Param X-Tenant-ID header string true "Tenant ID"
// @Param id path string true "Workflow ID"
// @Param limit query int false "Max results (default 50)"
// @Success 200 {object} map[string]interface{}
// @Router /workflows/{id}/history [get]
func (h *WorkflowHandler) GetHistory(c *fiber.Ctx) error {
	tenant, err := tenantID(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}

	history, err := h.workflowService.History(c.UserContext(), tenant, id, c.QueryInt("limit", 50))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"status": "success",
		"count":  len(history),
		"data":   history,
	})
}

// GetExecution godoc
// @Summary Get execution by ID
// @Tags Executions
// @Produce json
// @Param X-Tenant-ID header string true "Tenant ID"
// @Param id path string true "Execution ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /executions/{id} [get]
func (h *WorkflowHandler) GetExecution(c *fiber.Ctx) error {
	tenant, err := tenantID(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}

	execution, err := h.workflowService.GetExecution(c.UserContext(), tenant, id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"status": "success",
		"data":   execution,
	})
}

// GetCatalogue godoc
// @Summary Authoring catalogue
// @Description Event types, operators, action types, severities and logical operators with their metadata
// @Tags Workflows
// @Produce json
// @Success 200 {object} workflow.Catalogue
// @Router /catalogue [get]
func (h *WorkflowHandler) GetCatalogue(c *fiber.Ctx) error {
	return c.JSON(h.workflowService.Catalogue())
}
