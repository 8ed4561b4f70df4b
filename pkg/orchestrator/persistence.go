package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/aubira/flowd/pkg/models"
	"github.com/aubira/flowd/pkg/persistence"
)

// createExecution obtains the run's identity. Without a gateway a local id is
// generated; with a gateway a create failure aborts the run, since execution
// status writes are authoritative.
func (o *Orchestrator) createExecution(ctx context.Context, workflowID, userID string, inputs map[string]any) (string, error) {
	if o.gateway == nil {
		return uuid.New().String(), nil
	}

	record, err := o.gateway.CreateExecution(ctx, workflowID, userID, inputs)
	if err != nil {
		return "", fmt.Errorf("failed to create execution record: %w", err)
	}

	return record.ID, nil
}

func (o *Orchestrator) markRunning(ctx context.Context, executionID string, startedAt time.Time) {
	if o.gateway == nil {
		return
	}

	update := persistence.ExecutionUpdate{StartedAt: &startedAt}
	if err := o.gateway.UpdateExecution(ctx, executionID, models.ExecutionStatusRunning, update); err != nil {
		o.logger.ErrorContext(ctx, "Failed to mark execution running",
			"execution_id", executionID, "error", err)
	}
}

func (o *Orchestrator) updateStatus(ctx context.Context, executionID string, status models.ExecutionStatus) {
	if o.gateway == nil {
		return
	}

	if err := o.gateway.UpdateExecution(ctx, executionID, status, persistence.ExecutionUpdate{}); err != nil {
		o.logger.ErrorContext(ctx, "Failed to update execution status",
			"execution_id", executionID, "status", status, "error", err)
	}
}

func (o *Orchestrator) createNodeExecution(ctx context.Context, executionID string, node *models.Node, inputs map[string]any, startedAt time.Time) *models.NodeExecutionRecord {
	if o.gateway == nil {
		return nil
	}

	record, err := o.gateway.CreateNodeExecution(ctx, executionID, node.ID, node.Type, inputs, startedAt)
	if err != nil {
		o.logger.ErrorContext(ctx, "Failed to create node execution record",
			"execution_id", executionID, "node_id", node.ID, "error", err)

		return nil
	}

	return record
}

// attachUsage loads the AI usage records emitted during the run onto the
// result. Usage is telemetry, so a lookup failure only logs.
func (o *Orchestrator) attachUsage(ctx context.Context, result *models.ExecutionResult) {
	if o.gateway == nil {
		return
	}

	usage, err := o.gateway.ListExecutionUsage(ctx, result.ExecutionID)
	if err != nil {
		o.logger.ErrorContext(ctx, "Failed to load AI usage for execution",
			"execution_id", result.ExecutionID, "error", err)

		return
	}

	result.AIUsage = usage
}

func (o *Orchestrator) updateNodeExecution(ctx context.Context, record *models.NodeExecutionRecord, result *models.NodeExecutionResult) {
	if o.gateway == nil || record == nil {
		return
	}

	completedAt := time.Now().UTC()
	update := persistence.NodeExecutionUpdate{
		Status:      string(result.Status),
		Outputs:     result.Outputs,
		Error:       result.Error,
		CompletedAt: &completedAt,
	}

	if err := o.gateway.UpdateNodeExecution(ctx, record.ID, update); err != nil {
		o.logger.ErrorContext(ctx, "Failed to update node execution record",
			"node_execution_id", record.ID, "node_id", result.NodeID, "error", err)
	}
}
