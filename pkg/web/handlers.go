// Package web provides HTTP handlers and REST API endpoints for workflow execution.
package web

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/aubira/flowd/pkg/aiproxy"
	"github.com/aubira/flowd/pkg/models"
	"github.com/aubira/flowd/pkg/orchestrator"
	"github.com/aubira/flowd/pkg/persistence"
)

const defaultExecutionListLimit = 50

type APIHandlers struct {
	orchestrator *orchestrator.Orchestrator
	gateway      persistence.Gateway
	proxy        *aiproxy.Proxy
	validator    *validator.Validate
	logger       *slog.Logger
}

func NewAPIHandlers(
	orch *orchestrator.Orchestrator,
	gateway persistence.Gateway,
	proxy *aiproxy.Proxy,
	validate *validator.Validate,
	logger *slog.Logger,
) *APIHandlers {
	return &APIHandlers{
		orchestrator: orch,
		gateway:      gateway,
		proxy:        proxy,
		validator:    validate,
		logger:       logger.With("module", "web"),
	}
}

// ExecuteWorkflow validates the submitted workflow definition and runs it to
// completion. The response carries the full execution result, including
// per-node outcomes.
func (h *APIHandlers) ExecuteWorkflow(c fiber.Ctx) error {
	var req ExecuteRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	workflow, err := models.ParseWorkflow(req.Workflow)
	if err != nil {
		return badRequest(c, err.Error())
	}

	result, err := h.orchestrator.Execute(c.Context(), workflow, req.Inputs, req.UserID)
	if err != nil {
		if strings.Contains(err.Error(), "invalid workflow") {
			return badRequest(c, err.Error())
		}

		return handleEngineError(c, err)
	}

	return c.JSON(result)
}

func (h *APIHandlers) GetExecution(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Execution ID is required")
	}

	record, err := h.gateway.ExecutionByID(c.Context(), id)
	if err != nil {
		return handleEngineError(c, err)
	}

	nodes, err := h.gateway.ListNodeExecutions(c.Context(), id)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(fiber.Map{
		"execution":       record,
		"node_executions": nodes,
	})
}

func (h *APIHandlers) GetExecutionStatus(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Execution ID is required")
	}

	status, err := h.orchestrator.Status(c.Context(), id)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(StatusResponse{ExecutionID: id, Status: string(status)})
}

func (h *APIHandlers) ListWorkflowExecutions(c fiber.Ctx) error {
	workflowID := c.Params("id")
	if workflowID == "" {
		return badRequest(c, "Workflow ID is required")
	}

	limit := defaultExecutionListLimit

	if limitStr := c.Query("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 {
			return badRequest(c, "Invalid limit parameter")
		}

		limit = parsed
	}

	records, err := h.gateway.ListExecutions(c.Context(), workflowID, limit)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(fiber.Map{
		"executions":  records,
		"total_count": len(records),
	})
}

func (h *APIHandlers) PauseExecution(c fiber.Ctx) error {
	id := c.Params("id")

	if err := h.orchestrator.Pause(id); err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(ControlResponse{ExecutionID: id, Action: "pause"})
}

func (h *APIHandlers) ResumeExecution(c fiber.Ctx) error {
	id := c.Params("id")

	if err := h.orchestrator.Resume(id); err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(ControlResponse{ExecutionID: id, Action: "resume"})
}

func (h *APIHandlers) CancelExecution(c fiber.Ctx) error {
	id := c.Params("id")

	if err := h.orchestrator.Cancel(id); err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(ControlResponse{ExecutionID: id, Action: "cancel"})
}

func (h *APIHandlers) GetActiveExecutions(c fiber.Ctx) error {
	ids := h.orchestrator.ActiveExecutions()

	return c.JSON(fiber.Map{
		"active": ids,
		"count":  len(ids),
	})
}

// GetUserUsage reports AI usage statistics for a user over a timeframe. An
// unknown timeframe falls back to month, matching the stats aggregation.
func (h *APIHandlers) GetUserUsage(c fiber.Ctx) error {
	userID := c.Params("id")
	if userID == "" {
		return badRequest(c, "User ID is required")
	}

	timeframe := aiproxy.UsageTimeframe(c.Query("timeframe", string(aiproxy.TimeframeMonth)))

	stats := h.proxy.UsageStats(c.Context(), userID, timeframe)

	return c.JSON(stats)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	status := "healthy"
	httpStatus := http.StatusOK

	if err := h.gateway.HealthCheck(c.Context()); err != nil {
		status = "unhealthy"
		httpStatus = http.StatusInternalServerError
	}

	return c.Status(httpStatus).JSON(fiber.Map{"status": status})
}
