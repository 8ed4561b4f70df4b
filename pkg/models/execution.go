package models

import "time"

// ExecutionStatus is the lifecycle state of a workflow run. All transitions
// are terminal except running <-> paused.
type ExecutionStatus string

const (
	ExecutionStatusPending   ExecutionStatus = "pending"
	ExecutionStatusRunning   ExecutionStatus = "running"
	ExecutionStatusPaused    ExecutionStatus = "paused"
	ExecutionStatusCompleted ExecutionStatus = "completed"
	ExecutionStatusFailed    ExecutionStatus = "failed"
	ExecutionStatusCancelled ExecutionStatus = "cancelled"
)

// NodeStatus is the terminal state of a single node execution.
type NodeStatus string

const (
	NodeStatusCompleted NodeStatus = "completed"
	NodeStatusFailed    NodeStatus = "failed"
)

// ExecutionContext is the per-run mutable state. It is created at run start,
// mutated only by the orchestrator goroutine driving that run, and discarded
// at run end. Variables is seeded from the caller inputs and extended with
// every completed node's outputs. NodeExecutionIDs maps node IDs to their
// persisted node execution records so processors can reference them.
type ExecutionContext struct {
	ExecutionID      string                          `json:"execution_id"`
	UserID           string                          `json:"user_id"`
	WorkflowID       string                          `json:"workflow_id"`
	Variables        map[string]any                  `json:"variables"`
	NodeResults      map[string]*NodeExecutionResult `json:"node_results"`
	NodeExecutionIDs map[string]string               `json:"node_execution_ids,omitempty"`
	StartedAt        time.Time                       `json:"started_at"`
}

// NodeExecutionResult records the outcome of a single node. Entries are
// immutable once written into the execution context.
type NodeExecutionResult struct {
	NodeID         string         `json:"node_id"`
	NodeType       string         `json:"node_type"`
	Status         NodeStatus     `json:"status"`
	Inputs         map[string]any `json:"inputs"`
	Outputs        map[string]any `json:"outputs"`
	Error          string         `json:"error,omitempty"`
	ProcessingTime time.Duration  `json:"processing_time"`
}

// ExecutionResult is the aggregated outcome of a whole run. Outputs is the
// union of all node outputs, last write wins on key collision.
type ExecutionResult struct {
	ExecutionID string                 `json:"execution_id"`
	Status      ExecutionStatus        `json:"status"`
	Outputs     map[string]any         `json:"outputs"`
	Error       string                 `json:"error,omitempty"`
	StartedAt   time.Time              `json:"started_at"`
	CompletedAt time.Time              `json:"completed_at"`
	NodeResults []*NodeExecutionResult `json:"node_results"`
	AIUsage     []*AIUsage             `json:"ai_usage,omitempty"`
}

// ExecutionRecord is the persisted view of a run, as stored through the
// persistence gateway.
type ExecutionRecord struct {
	ID          string          `json:"id"`
	WorkflowID  string          `json:"workflow_id"`
	UserID      string          `json:"user_id"`
	Status      ExecutionStatus `json:"status"`
	Inputs      map[string]any  `json:"inputs"`
	Outputs     map[string]any  `json:"outputs,omitempty"`
	Error       string          `json:"error,omitempty"`
	StartedAt   *time.Time      `json:"started_at,omitempty"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// NodeExecutionRecord is the persisted view of a single node execution.
type NodeExecutionRecord struct {
	ID          string         `json:"id"`
	ExecutionID string         `json:"execution_id"`
	NodeID      string         `json:"node_id"`
	NodeType    string         `json:"node_type"`
	Status      string         `json:"status"`
	Inputs      map[string]any `json:"inputs"`
	Outputs     map[string]any `json:"outputs,omitempty"`
	Error       string         `json:"error,omitempty"`
	StartedAt   time.Time      `json:"started_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
}
