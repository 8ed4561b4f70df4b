// Package web provides HTTP request and response types for the execution API.
package web

import "encoding/json"

// ExecuteRequest represents the request body for starting a workflow run.
// The workflow definition is carried verbatim and validated against the
// workflow schema before execution.
type ExecuteRequest struct {
	Workflow json.RawMessage `json:"workflow" validate:"required"`
	Inputs   map[string]any  `json:"inputs"`
	UserID   string          `json:"user_id"  validate:"required"`
}

// StatusResponse represents the current state of a run.
type StatusResponse struct {
	ExecutionID string `json:"execution_id"`
	Status      string `json:"status"`
}

// ControlResponse acknowledges a pause, resume, or cancel request.
type ControlResponse struct {
	ExecutionID string `json:"execution_id"`
	Action      string `json:"action"`
}
