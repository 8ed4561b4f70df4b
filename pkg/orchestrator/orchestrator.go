// Package orchestrator drives workflow runs: dependency-aware scheduling,
// processor dispatch, result aggregation, lifecycle events, and run control.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/aubira/flowd/pkg/eventbus"
	"github.com/aubira/flowd/pkg/events"
	"github.com/aubira/flowd/pkg/models"
	"github.com/aubira/flowd/pkg/otelhelper"
	"github.com/aubira/flowd/pkg/persistence"
	"github.com/aubira/flowd/pkg/processors"
)

// Orchestrator executes workflow graphs. A single Orchestrator serves many
// concurrent runs; each run's mutable state lives in its own ExecutionContext
// and run entry.
type Orchestrator struct {
	registry *processors.Registry
	bus      eventbus.Bus
	gateway  persistence.Gateway
	tracer   trace.Tracer
	logger   *slog.Logger

	mu     sync.RWMutex
	active map[string]*run
}

// run is the control block for one in-flight execution.
type run struct {
	mu     sync.Mutex
	cancel context.CancelFunc
	status models.ExecutionStatus
	paused bool
	resume chan struct{}
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithGateway wires the persistence gateway runs are recorded through.
func WithGateway(gateway persistence.Gateway) Option {
	return func(o *Orchestrator) { o.gateway = gateway }
}

// WithTracer enables span emission for runs and node executions.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *Orchestrator) { o.tracer = tracer }
}

func New(registry *processors.Registry, bus eventbus.Bus, logger *slog.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		registry: registry,
		bus:      bus,
		tracer:   noop.NewTracerProvider().Tracer("orchestrator"),
		logger:   logger.With("module", "orchestrator"),
		active:   make(map[string]*run),
	}

	for _, opt := range opts {
		opt(o)
	}

	return o
}

// Execute runs a workflow to completion. It validates the graph, rejects
// cyclic workflows with a CycleError before any node runs, and treats the
// first node failure as fatal to the run.
func (o *Orchestrator) Execute(ctx context.Context, workflow *models.Workflow, inputs map[string]any, userID string) (*models.ExecutionResult, error) {
	if err := workflow.Validate(); err != nil {
		return nil, fmt.Errorf("invalid workflow: %w", err)
	}

	if err := verifyAcyclic(workflow); err != nil {
		return nil, err
	}

	executionID, err := o.createExecution(ctx, workflow.ID, userID, inputs)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	entry := &run{cancel: cancel, status: models.ExecutionStatusRunning}

	o.mu.Lock()
	o.active[executionID] = entry
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		delete(o.active, executionID)
		o.mu.Unlock()
	}()

	ctx, span := otelhelper.StartSpan(ctx, o.tracer, "workflow.execute",
		attribute.String(otelhelper.WorkflowIDKey, workflow.ID),
		attribute.String(otelhelper.ExecutionIDKey, executionID),
		attribute.String(otelhelper.UserIDKey, userID),
	)
	defer span.End()

	execCtx := &models.ExecutionContext{
		ExecutionID:      executionID,
		UserID:           userID,
		WorkflowID:       workflow.ID,
		Variables:        cloneMap(inputs),
		NodeResults:      make(map[string]*models.NodeExecutionResult, len(workflow.Nodes)),
		NodeExecutionIDs: make(map[string]string, len(workflow.Nodes)),
		StartedAt:        time.Now().UTC(),
	}

	o.logger.InfoContext(ctx, "Starting workflow execution",
		"workflow_id", workflow.ID, "execution_id", executionID,
		"node_count", len(workflow.Nodes), "user_id", userID)

	o.bus.Publish(ctx, events.ExecutionStarted{
		BaseEvent: events.NewBaseEvent(events.ExecutionStartedEvent, workflow.ID, executionID),
		Inputs:    inputs,
	})

	o.markRunning(ctx, executionID, execCtx.StartedAt)

	result := o.runLoop(ctx, workflow, execCtx, entry)

	o.finishExecution(ctx, workflow, execCtx, result)

	return result, nil
}

// runLoop drains the ready queue. Each iteration handles pause and
// cancellation before dispatching the next node.
func (o *Orchestrator) runLoop(ctx context.Context, workflow *models.Workflow, execCtx *models.ExecutionContext, entry *run) *models.ExecutionResult {
	sched := newScheduler(workflow)
	order := make([]*models.NodeExecutionResult, 0, len(workflow.Nodes))

	for {
		if cancelled := o.waitIfPaused(ctx, workflow, execCtx, entry); cancelled {
			return o.terminalResult(execCtx, models.ExecutionStatusCancelled, "execution cancelled", order)
		}

		if ctx.Err() != nil {
			return o.terminalResult(execCtx, models.ExecutionStatusCancelled, "execution cancelled", order)
		}

		nodeID, ok := sched.next()
		if !ok {
			return o.terminalResult(execCtx, models.ExecutionStatusCompleted, "", order)
		}

		node := workflow.NodeByID(nodeID)

		result := o.processNode(ctx, workflow, node, execCtx)

		// A result produced while the run was being cancelled is discarded.
		if ctx.Err() != nil && entry.isCancelled() {
			return o.terminalResult(execCtx, models.ExecutionStatusCancelled, "execution cancelled", order)
		}

		execCtx.NodeResults[node.ID] = result
		order = append(order, result)

		o.bus.Publish(ctx, events.ResultSnapshot(workflow.ID, execCtx.ExecutionID, result))

		if result.Status == models.NodeStatusFailed {
			message := fmt.Sprintf("node %s failed: %s", node.ID, result.Error)

			return o.terminalResult(execCtx, models.ExecutionStatusFailed, message, order)
		}

		sched.complete(node.ID)
	}
}

// processNode dispatches one node to its processor. A missing processor is a
// node failure, not an engine error.
func (o *Orchestrator) processNode(ctx context.Context, workflow *models.Workflow, node *models.Node, execCtx *models.ExecutionContext) *models.NodeExecutionResult {
	started := time.Now()

	ctx, span := otelhelper.StartSpan(ctx, o.tracer, "workflow.node",
		attribute.String(otelhelper.NodeIDKey, node.ID),
		attribute.String(otelhelper.NodeTypeKey, node.Type),
		attribute.String(otelhelper.ExecutionIDKey, execCtx.ExecutionID),
	)
	defer span.End()

	o.bus.Publish(ctx, events.NodeStarted{
		BaseEvent: events.NewBaseEvent(events.NodeStartedEvent, workflow.ID, execCtx.ExecutionID),
		NodeID:    node.ID,
		NodeType:  node.Type,
	})

	inputs := o.collectInputs(workflow, node, execCtx)

	record := o.createNodeExecution(ctx, execCtx.ExecutionID, node, inputs, started)
	if record != nil {
		execCtx.NodeExecutionIDs[node.ID] = record.ID
	}

	processor, err := o.registry.Get(node.Type)

	var result *models.NodeExecutionResult
	if err != nil {
		result = &models.NodeExecutionResult{
			NodeID:         node.ID,
			NodeType:       node.Type,
			Status:         models.NodeStatusFailed,
			Inputs:         inputs,
			Outputs:        map[string]any{},
			Error:          err.Error(),
			ProcessingTime: time.Since(started),
		}
	} else {
		result = processor.Process(ctx, node, inputs, execCtx)
	}

	if result.Status == models.NodeStatusFailed {
		otelhelper.SetNodeError(span, node.ID, node.Type, fmt.Errorf("%s", result.Error))
	}

	o.updateNodeExecution(ctx, record, result)

	return result
}

// collectInputs merges the run variables with the outputs of the node's
// completed dependencies. Dependency outputs win over variables; later
// dependencies win over earlier ones.
func (o *Orchestrator) collectInputs(workflow *models.Workflow, node *models.Node, execCtx *models.ExecutionContext) map[string]any {
	inputs := cloneMap(execCtx.Variables)

	for _, depID := range workflow.Dependencies(node.ID) {
		depResult, ok := execCtx.NodeResults[depID]
		if !ok || depResult.Status != models.NodeStatusCompleted {
			continue
		}

		for key, value := range depResult.Outputs {
			inputs[key] = value
		}
	}

	return inputs
}

// waitIfPaused blocks between node dispatches while the run is paused. It
// reports whether the run was cancelled while waiting.
func (o *Orchestrator) waitIfPaused(ctx context.Context, workflow *models.Workflow, execCtx *models.ExecutionContext, entry *run) bool {
	entry.mu.Lock()

	if !entry.paused {
		entry.mu.Unlock()

		return false
	}

	resume := entry.resume
	entry.mu.Unlock()

	o.updateStatus(ctx, execCtx.ExecutionID, models.ExecutionStatusPaused)
	o.bus.Publish(ctx, events.ExecutionPaused{
		BaseEvent: events.NewBaseEvent(events.ExecutionPausedEvent, workflow.ID, execCtx.ExecutionID),
	})

	o.logger.InfoContext(ctx, "Execution paused", "execution_id", execCtx.ExecutionID)

	select {
	case <-resume:
		o.updateStatus(ctx, execCtx.ExecutionID, models.ExecutionStatusRunning)
		o.bus.Publish(ctx, events.ExecutionResumed{
			BaseEvent: events.NewBaseEvent(events.ExecutionResumedEvent, workflow.ID, execCtx.ExecutionID),
		})

		o.logger.InfoContext(ctx, "Execution resumed", "execution_id", execCtx.ExecutionID)

		return false
	case <-ctx.Done():
		return true
	}
}

func (o *Orchestrator) terminalResult(execCtx *models.ExecutionContext, status models.ExecutionStatus, message string, order []*models.NodeExecutionResult) *models.ExecutionResult {
	outputs := map[string]any{}

	for _, result := range order {
		if result.Status != models.NodeStatusCompleted {
			continue
		}

		for key, value := range result.Outputs {
			outputs[key] = value
		}
	}

	return &models.ExecutionResult{
		ExecutionID: execCtx.ExecutionID,
		Status:      status,
		Outputs:     outputs,
		Error:       message,
		StartedAt:   execCtx.StartedAt,
		CompletedAt: time.Now().UTC(),
		NodeResults: order,
	}
}

// finishExecution records the terminal status, attaches the run's AI usage
// records, and emits the closing event.
func (o *Orchestrator) finishExecution(ctx context.Context, workflow *models.Workflow, execCtx *models.ExecutionContext, result *models.ExecutionResult) {
	duration := result.CompletedAt.Sub(result.StartedAt)

	o.attachUsage(ctx, result)

	completedAt := result.CompletedAt
	update := persistence.ExecutionUpdate{
		Outputs:     result.Outputs,
		Error:       result.Error,
		CompletedAt: &completedAt,
	}

	if o.gateway != nil {
		if err := o.gateway.UpdateExecution(ctx, execCtx.ExecutionID, result.Status, update); err != nil {
			o.logger.ErrorContext(ctx, "Failed to record terminal execution status",
				"execution_id", execCtx.ExecutionID, "error", err)
		}
	}

	switch result.Status {
	case models.ExecutionStatusCompleted:
		o.bus.Publish(ctx, events.ExecutionCompleted{
			BaseEvent:     events.NewBaseEvent(events.ExecutionCompletedEvent, workflow.ID, execCtx.ExecutionID),
			Outputs:       result.Outputs,
			NodesExecuted: len(result.NodeResults),
			Duration:      duration,
		})
	case models.ExecutionStatusCancelled:
		o.bus.Publish(ctx, events.ExecutionCancelled{
			BaseEvent: events.NewBaseEvent(events.ExecutionCancelledEvent, workflow.ID, execCtx.ExecutionID),
		})
	default:
		o.bus.Publish(ctx, events.ExecutionFailed{
			BaseEvent:     events.NewBaseEvent(events.ExecutionFailedEvent, workflow.ID, execCtx.ExecutionID),
			Error:         result.Error,
			NodesExecuted: len(result.NodeResults),
			Duration:      duration,
		})
	}

	o.logger.InfoContext(ctx, "Workflow execution finished",
		"execution_id", execCtx.ExecutionID, "status", result.Status,
		"nodes_executed", len(result.NodeResults), "duration", duration)
}

func (r *run) isCancelled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.status == models.ExecutionStatusCancelled
}

func cloneMap(src map[string]any) map[string]any {
	dst := make(map[string]any, len(src))
	for k, v := range src {
		dst[k] = v
	}

	return dst
}
