package httpcall

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aubira/flowd/pkg/models"
)

func newExecContext() *models.ExecutionContext {
	return &models.ExecutionContext{
		ExecutionID: "exec-1",
		WorkflowID:  "wf-1",
		UserID:      "user-1",
		Variables:   map[string]any{},
		NodeResults: map[string]*models.NodeExecutionResult{},
		StartedAt:   time.Now(),
	}
}

func TestCanProcess(t *testing.T) {
	p := New(nil, slog.Default())

	for _, tag := range []string{"http", "webhook", "api-call", "rest"} {
		assert.True(t, p.CanProcess(tag), tag)
	}

	assert.False(t, p.CanProcess("email"))
}

func TestGetRequestParsesJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "flowd-workflow-engine/1.0", r.Header.Get("User-Agent"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer server.Close()

	p := New(server.Client(), slog.Default())
	node := &models.Node{ID: "http-1", Type: "http", Config: map[string]any{}}

	result := p.Process(context.Background(), node, map[string]any{
		"url":    server.URL,
		"method": "get",
	}, newExecContext())

	require.Equal(t, models.NodeStatusCompleted, result.Status, result.Error)
	assert.Equal(t, 200, result.Outputs["status_code"])
	assert.Equal(t, true, result.Outputs["success"])

	data := result.Outputs["response_data"].(map[string]any)
	assert.Equal(t, "ok", data["status"])

	headers := result.Outputs["response_headers"].(map[string]string)
	assert.Equal(t, "application/json", headers["content-type"])
}

func TestPostSendsJSONBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)

		var payload map[string]any
		require.NoError(t, json.Unmarshal(raw, &payload))
		assert.Equal(t, "hello", payload["message"])

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("created"))
	}))
	defer server.Close()

	p := New(server.Client(), slog.Default())
	node := &models.Node{ID: "http-1", Type: "api-call", Config: map[string]any{}}

	result := p.Process(context.Background(), node, map[string]any{
		"url":    server.URL,
		"method": "POST",
		"body":   map[string]any{"message": "hello"},
	}, newExecContext())

	require.Equal(t, models.NodeStatusCompleted, result.Status, result.Error)
	assert.Equal(t, 201, result.Outputs["status_code"])
	assert.Equal(t, "created", result.Outputs["response_data"])
}

func TestQueryParamsMerged(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "10", r.URL.Query().Get("limit"))
		assert.Equal(t, "name", r.URL.Query().Get("sort"))

		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	p := New(server.Client(), slog.Default())

	node := &models.Node{
		ID:     "http-1",
		Type:   "http",
		Config: map[string]any{"params": map[string]any{"limit": float64(5), "sort": "name"}},
	}

	result := p.Process(context.Background(), node, map[string]any{
		"url":    server.URL,
		"method": "GET",
		"params": map[string]any{"limit": float64(10)},
	}, newExecContext())

	require.Equal(t, models.NodeStatusCompleted, result.Status, result.Error)
}

func TestAuthVariants(t *testing.T) {
	tests := []struct {
		name   string
		auth   map[string]any
		header string
		value  string
	}{
		{
			"bearer",
			map[string]any{"type": "bearer", "token": "tok123"},
			"Authorization", "Bearer tok123",
		},
		{
			"basic",
			map[string]any{"type": "basic", "username": "u", "password": "p"},
			"Authorization", "Basic dTpw",
		},
		{
			"api key default header",
			map[string]any{"type": "api-key", "key": "secret"},
			"X-API-Key", "secret",
		},
		{
			"api key custom header",
			map[string]any{"type": "api-key", "key": "secret", "header": "X-Custom"},
			"X-Custom", "secret",
		},
		{
			"custom headers",
			map[string]any{"type": "custom", "headers": map[string]any{"X-Trace": "abc"}},
			"X-Trace", "abc",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = r.Header.Get(tt.header)
				w.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			p := New(server.Client(), slog.Default())
			node := &models.Node{ID: "http-1", Type: "http", Config: map[string]any{}}

			result := p.Process(context.Background(), node, map[string]any{
				"url":    server.URL,
				"method": "GET",
				"auth":   tt.auth,
			}, newExecContext())

			require.Equal(t, models.NodeStatusCompleted, result.Status, result.Error)
			assert.Equal(t, tt.value, got)
		})
	}
}

func TestNonSuccessStatusStillCompletes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	defer server.Close()

	p := New(server.Client(), slog.Default())
	node := &models.Node{ID: "http-1", Type: "http", Config: map[string]any{}}

	result := p.Process(context.Background(), node, map[string]any{
		"url":    server.URL,
		"method": "GET",
	}, newExecContext())

	require.Equal(t, models.NodeStatusCompleted, result.Status, result.Error)
	assert.Equal(t, 418, result.Outputs["status_code"])
	assert.Equal(t, false, result.Outputs["success"])
}

func TestTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer server.Close()

	p := New(server.Client(), slog.Default())
	node := &models.Node{ID: "http-1", Type: "http", Config: map[string]any{}}

	result := p.Process(context.Background(), node, map[string]any{
		"url":        server.URL,
		"method":     "GET",
		"timeout_ms": float64(50),
	}, newExecContext())

	require.Equal(t, models.NodeStatusFailed, result.Status)
	assert.Contains(t, result.Error, "request timeout after")
	assert.Equal(t, false, result.Outputs["success"])
}

func TestInvalidInputs(t *testing.T) {
	p := New(nil, slog.Default())
	node := &models.Node{ID: "http-1", Type: "http", Config: map[string]any{}}

	tests := []struct {
		name    string
		inputs  map[string]any
		wantErr string
	}{
		{"missing url", map[string]any{"method": "GET"}, `missing required input "url"`},
		{"missing method", map[string]any{"url": "https://example.com"}, `missing required input "method"`},
		{"bad url", map[string]any{"url": "not a url", "method": "GET"}, "invalid URL"},
		{"bad method", map[string]any{"url": "https://example.com", "method": "FETCH"}, "invalid HTTP method"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := p.Process(context.Background(), node, tt.inputs, newExecContext())

			require.Equal(t, models.NodeStatusFailed, result.Status)
			assert.Contains(t, result.Error, tt.wantErr)
		})
	}
}
