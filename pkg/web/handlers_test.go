package web_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aubira/flowd/pkg/aiproxy"
	"github.com/aubira/flowd/pkg/eventbus"
	"github.com/aubira/flowd/pkg/models"
	"github.com/aubira/flowd/pkg/orchestrator"
	"github.com/aubira/flowd/pkg/persistence/file"
	"github.com/aubira/flowd/pkg/processors"
	"github.com/aubira/flowd/pkg/processors/conditional"
	"github.com/aubira/flowd/pkg/processors/datatransform"
	"github.com/aubira/flowd/pkg/processors/trigger"
	"github.com/aubira/flowd/pkg/web"
)

func setupTestApp(t *testing.T) *fiber.App {
	t.Helper()

	logger := slog.Default()
	gateway := file.NewGateway(t.TempDir())

	registry := processors.NewRegistry(logger)
	registry.Register("trigger", trigger.New(logger))
	registry.Register("conditional", conditional.New(logger))
	registry.Register("data-transform", datatransform.New(logger))

	orch := orchestrator.New(registry, eventbus.NewSyncBus(logger), logger,
		orchestrator.WithGateway(gateway))

	proxy := aiproxy.New(map[string]string{}, logger, aiproxy.WithUsageGateway(gateway))

	handlers := web.NewAPIHandlers(orch, gateway, proxy,
		validator.New(validator.WithRequiredStructEnabled()), logger)

	app := fiber.New()

	e := app.Group("/executions")
	e.Post("/", handlers.ExecuteWorkflow)
	e.Get("/active", handlers.GetActiveExecutions)
	e.Get("/:id", handlers.GetExecution)
	e.Get("/:id/status", handlers.GetExecutionStatus)
	e.Post("/:id/pause", handlers.PauseExecution)
	e.Post("/:id/resume", handlers.ResumeExecution)
	e.Post("/:id/cancel", handlers.CancelExecution)

	app.Get("/workflows/:id/executions", handlers.ListWorkflowExecutions)
	app.Get("/users/:id/usage", handlers.GetUserUsage)
	app.Get("/health", handlers.HealthCheck)

	return app
}

func postJSON(t *testing.T, app *fiber.App, path string, body any) *http.Response {
	t.Helper()

	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)

	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out any) {
	t.Helper()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	require.NoError(t, json.Unmarshal(body, out))
}

func simpleWorkflow() map[string]any {
	return map[string]any{
		"id":   "wf-web",
		"name": "web test workflow",
		"nodes": []map[string]any{
			{"id": "start", "type": "trigger"},
			{"id": "branch", "type": "conditional", "config": map[string]any{
				"condition_type": "simple",
				"field":          "count",
				"operator":       ">",
				"value":          5,
			}},
		},
		"edges": []map[string]any{
			{"source": "start", "target": "branch"},
		},
	}
}

func TestExecuteWorkflow(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)

	resp := postJSON(t, app, "/executions/", web.ExecuteRequest{
		Workflow: mustMarshal(t, simpleWorkflow()),
		Inputs:   map[string]any{"count": 10},
		UserID:   "user-1",
	})

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result models.ExecutionResult
	decodeBody(t, resp, &result)

	assert.Equal(t, models.ExecutionStatusCompleted, result.Status)
	assert.NotEmpty(t, result.ExecutionID)
	assert.Len(t, result.NodeResults, 2)
	assert.Equal(t, true, result.Outputs["condition_result"])
}

func TestExecuteWorkflowValidation(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)

	tests := []struct {
		name           string
		requestBody    any
		expectedStatus int
	}{
		{
			name:           "invalid JSON",
			requestBody:    "not an object",
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "missing user id",
			requestBody: web.ExecuteRequest{
				Workflow: mustMarshal(t, simpleWorkflow()),
			},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "workflow without nodes",
			requestBody: web.ExecuteRequest{
				Workflow: mustMarshal(t, map[string]any{"id": "empty", "nodes": []any{}}),
				UserID:   "user-1",
			},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "edge referencing unknown node",
			requestBody: web.ExecuteRequest{
				Workflow: mustMarshal(t, map[string]any{
					"id": "dangling",
					"nodes": []map[string]any{
						{"id": "a", "type": "trigger"},
					},
					"edges": []map[string]any{
						{"source": "a", "target": "ghost"},
					},
				}),
				UserID: "user-1",
			},
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postJSON(t, app, "/executions/", tt.requestBody)
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)
		})
	}
}

func TestExecuteWorkflowCycle(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)

	resp := postJSON(t, app, "/executions/", web.ExecuteRequest{
		Workflow: mustMarshal(t, map[string]any{
			"id": "cyclic",
			"nodes": []map[string]any{
				{"id": "a", "type": "trigger"},
				{"id": "b", "type": "trigger"},
			},
			"edges": []map[string]any{
				{"source": "a", "target": "b"},
				{"source": "b", "target": "a"},
			},
		}),
		UserID: "user-1",
	})

	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestGetExecution(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)

	resp := postJSON(t, app, "/executions/", web.ExecuteRequest{
		Workflow: mustMarshal(t, simpleWorkflow()),
		Inputs:   map[string]any{"count": 1},
		UserID:   "user-1",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result models.ExecutionResult
	decodeBody(t, resp, &result)

	req := httptest.NewRequest(http.MethodGet, "/executions/"+result.ExecutionID, nil)
	getResp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, getResp.StatusCode)

	var payload struct {
		Execution      *models.ExecutionRecord       `json:"execution"`
		NodeExecutions []*models.NodeExecutionRecord `json:"node_executions"`
	}
	decodeBody(t, getResp, &payload)

	assert.Equal(t, result.ExecutionID, payload.Execution.ID)
	assert.Equal(t, models.ExecutionStatusCompleted, payload.Execution.Status)
	assert.Len(t, payload.NodeExecutions, 2)
}

func TestGetExecutionNotFound(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/executions/ghost", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestControlNotActive(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)

	for _, action := range []string{"pause", "resume", "cancel"} {
		resp := postJSON(t, app, "/executions/ghost/"+action, nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, action)
	}
}

func TestListWorkflowExecutions(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)

	for range 2 {
		resp := postJSON(t, app, "/executions/", web.ExecuteRequest{
			Workflow: mustMarshal(t, simpleWorkflow()),
			Inputs:   map[string]any{"count": 10},
			UserID:   "user-1",
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	req := httptest.NewRequest(http.MethodGet, "/workflows/wf-web/executions", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var payload struct {
		Executions []*models.ExecutionRecord `json:"executions"`
		TotalCount int                       `json:"total_count"`
	}
	decodeBody(t, resp, &payload)

	assert.Equal(t, 2, payload.TotalCount)
}

func TestGetUserUsageEmpty(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/users/user-1/usage?timeframe=day", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var stats aiproxy.UsageStats
	decodeBody(t, resp, &stats)

	assert.Zero(t, stats.TotalRequests)
}

func TestHealthCheck(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func mustMarshal(t *testing.T, v any) json.RawMessage {
	t.Helper()

	raw, err := json.Marshal(v)
	require.NoError(t, err)

	return raw
}
