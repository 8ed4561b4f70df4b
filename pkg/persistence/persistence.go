// Package persistence defines the CRUD gateway contract the engine persists through.
package persistence

import (
	"context"
	"time"

	"github.com/aubira/flowd/pkg/models"
)

// ExecutionUpdate carries the optional fields of an execution status update.
type ExecutionUpdate struct {
	Outputs     map[string]any
	Error       string
	StartedAt   *time.Time
	CompletedAt *time.Time
}

// NodeExecutionUpdate carries the optional fields of a node execution update.
type NodeExecutionUpdate struct {
	Status      string
	Outputs     map[string]any
	Error       string
	CompletedAt *time.Time
}

// Gateway is the persistence contract the engine consumes. Execution and node
// status writes are authoritative and their failures propagate; usage inserts
// are best-effort telemetry and their failures are swallowed by the caller.
type Gateway interface {
	CreateExecution(ctx context.Context, workflowID, userID string, inputs map[string]any) (*models.ExecutionRecord, error)
	UpdateExecution(ctx context.Context, id string, status models.ExecutionStatus, update ExecutionUpdate) error
	ExecutionByID(ctx context.Context, id string) (*models.ExecutionRecord, error)
	ListExecutions(ctx context.Context, workflowID string, limit int) ([]*models.ExecutionRecord, error)

	CreateNodeExecution(ctx context.Context, executionID, nodeID, nodeType string, inputs map[string]any, startedAt time.Time) (*models.NodeExecutionRecord, error)
	UpdateNodeExecution(ctx context.Context, id string, update NodeExecutionUpdate) error
	ListNodeExecutions(ctx context.Context, executionID string) ([]*models.NodeExecutionRecord, error)

	InsertUsage(ctx context.Context, usage *models.AIUsage) error
	ListUsage(ctx context.Context, userID string, since time.Time) ([]*models.AIUsage, error)
	ListExecutionUsage(ctx context.Context, executionID string) ([]*models.AIUsage, error)

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}
