package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aubira/flowd/pkg/eventbus"
	"github.com/aubira/flowd/pkg/events"
	"github.com/aubira/flowd/pkg/models"
	"github.com/aubira/flowd/pkg/processors"
)

// recordingProcessor completes every node, records dispatch order, and fails
// nodes whose config sets "fail". Outputs carry a per-node marker key.
type recordingProcessor struct {
	mu    sync.Mutex
	order []string
}

func (p *recordingProcessor) CanProcess(string) bool { return true }

func (p *recordingProcessor) RequiredInputs(_ *models.Node) []string { return nil }

func (p *recordingProcessor) ValidateInputs(_ *models.Node, _ map[string]any) error { return nil }

func (p *recordingProcessor) Process(_ context.Context, node *models.Node, inputs map[string]any, _ *models.ExecutionContext) *models.NodeExecutionResult {
	p.mu.Lock()
	p.order = append(p.order, node.ID)
	p.mu.Unlock()

	if fail, _ := node.Config["fail"].(bool); fail {
		return &models.NodeExecutionResult{
			NodeID:   node.ID,
			NodeType: node.Type,
			Status:   models.NodeStatusFailed,
			Inputs:   inputs,
			Outputs:  map[string]any{},
			Error:    "forced failure",
		}
	}

	return &models.NodeExecutionResult{
		NodeID:   node.ID,
		NodeType: node.Type,
		Status:   models.NodeStatusCompleted,
		Inputs:   inputs,
		Outputs:  map[string]any{"from_" + node.ID: true},
	}
}

func (p *recordingProcessor) dispatched() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([]string(nil), p.order...)
}

// blockingProcessor holds each node until the test releases it.
type blockingProcessor struct {
	started chan string
	release chan struct{}
}

func (p *blockingProcessor) CanProcess(string) bool { return true }

func (p *blockingProcessor) RequiredInputs(_ *models.Node) []string { return nil }

func (p *blockingProcessor) ValidateInputs(_ *models.Node, _ map[string]any) error { return nil }

func (p *blockingProcessor) Process(_ context.Context, node *models.Node, inputs map[string]any, _ *models.ExecutionContext) *models.NodeExecutionResult {
	p.started <- node.ID
	<-p.release

	return &models.NodeExecutionResult{
		NodeID:   node.ID,
		NodeType: node.Type,
		Status:   models.NodeStatusCompleted,
		Inputs:   inputs,
		Outputs:  map[string]any{},
	}
}

func node(id string, config map[string]any) *models.Node {
	if config == nil {
		config = map[string]any{}
	}

	return &models.Node{ID: id, Type: "task", Config: config}
}

func workflowOf(nodes []*models.Node, edges []*models.Edge) *models.Workflow {
	return &models.Workflow{
		ID:    "wf-1",
		Name:  "test workflow",
		Nodes: nodes,
		Edges: edges,
	}
}

func newOrchestrator(t *testing.T, processor processors.Processor) (*Orchestrator, eventbus.Bus) {
	t.Helper()

	logger := slog.Default()
	registry := processors.NewRegistry(logger)
	registry.Register("task", processor)

	bus := eventbus.NewSyncBus(logger)

	return New(registry, bus, logger), bus
}

func TestLinearExecution(t *testing.T) {
	processor := &recordingProcessor{}
	o, _ := newOrchestrator(t, processor)

	wf := workflowOf(
		[]*models.Node{node("a", nil), node("b", nil), node("c", nil)},
		[]*models.Edge{{Source: "a", Target: "b"}, {Source: "b", Target: "c"}},
	)

	result, err := o.Execute(context.Background(), wf, map[string]any{"seed": 1}, "user-1")

	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCompleted, result.Status)
	assert.Equal(t, []string{"a", "b", "c"}, processor.dispatched())
	assert.Len(t, result.NodeResults, 3)
	assert.Equal(t, true, result.Outputs["from_a"])
	assert.Equal(t, true, result.Outputs["from_c"])
}

func TestDiamondOrdering(t *testing.T) {
	processor := &recordingProcessor{}
	o, _ := newOrchestrator(t, processor)

	wf := workflowOf(
		[]*models.Node{node("a", nil), node("b", nil), node("c", nil), node("d", nil)},
		[]*models.Edge{
			{Source: "a", Target: "b"},
			{Source: "a", Target: "c"},
			{Source: "b", Target: "d"},
			{Source: "c", Target: "d"},
		},
	)

	result, err := o.Execute(context.Background(), wf, nil, "user-1")

	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCompleted, result.Status)

	order := processor.dispatched()
	require.Len(t, order, 4)
	assert.Equal(t, "a", order[0])
	assert.Equal(t, "d", order[3])
}

func TestDependencyOutputsFlowToInputs(t *testing.T) {
	processor := &recordingProcessor{}
	o, _ := newOrchestrator(t, processor)

	wf := workflowOf(
		[]*models.Node{node("a", nil), node("b", nil)},
		[]*models.Edge{{Source: "a", Target: "b"}},
	)

	result, err := o.Execute(context.Background(), wf, map[string]any{"seed": "x"}, "user-1")

	require.NoError(t, err)

	var b *models.NodeExecutionResult
	for _, r := range result.NodeResults {
		if r.NodeID == "b" {
			b = r
		}
	}

	require.NotNil(t, b)
	assert.Equal(t, "x", b.Inputs["seed"])
	assert.Equal(t, true, b.Inputs["from_a"])
}

func TestFailFast(t *testing.T) {
	processor := &recordingProcessor{}
	o, _ := newOrchestrator(t, processor)

	wf := workflowOf(
		[]*models.Node{node("a", map[string]any{"fail": true}), node("b", nil)},
		[]*models.Edge{{Source: "a", Target: "b"}},
	)

	result, err := o.Execute(context.Background(), wf, nil, "user-1")

	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusFailed, result.Status)
	assert.Contains(t, result.Error, "node a failed")
	assert.Contains(t, result.Error, "forced failure")

	require.Len(t, result.NodeResults, 1)
	assert.Equal(t, "a", result.NodeResults[0].NodeID)
	assert.Equal(t, models.NodeStatusFailed, result.NodeResults[0].Status)

	assert.Equal(t, []string{"a"}, processor.dispatched(), "downstream node must never be dispatched")
}

func TestMissingProcessorIsNodeFailure(t *testing.T) {
	logger := slog.Default()
	registry := processors.NewRegistry(logger)
	o := New(registry, eventbus.NewSyncBus(logger), logger)

	wf := workflowOf([]*models.Node{node("a", nil)}, nil)

	result, err := o.Execute(context.Background(), wf, nil, "user-1")

	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusFailed, result.Status)
	require.Len(t, result.NodeResults, 1)
	assert.Contains(t, result.NodeResults[0].Error, `no processor registered for node type "task"`)
}

func TestCycleDetection(t *testing.T) {
	processor := &recordingProcessor{}
	o, _ := newOrchestrator(t, processor)

	wf := workflowOf(
		[]*models.Node{node("a", nil), node("b", nil), node("c", nil)},
		[]*models.Edge{
			{Source: "a", Target: "b"},
			{Source: "b", Target: "c"},
			{Source: "c", Target: "b"},
		},
	)

	_, err := o.Execute(context.Background(), wf, nil, "user-1")

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCycleDetected)

	var cycleErr *CycleError
	require.True(t, errors.As(err, &cycleErr))
	assert.ElementsMatch(t, []string{"b", "c"}, cycleErr.Nodes)

	assert.Empty(t, processor.dispatched(), "no node may run in a cyclic workflow")
}

func TestInvalidWorkflowRejected(t *testing.T) {
	processor := &recordingProcessor{}
	o, _ := newOrchestrator(t, processor)

	wf := workflowOf(
		[]*models.Node{node("a", nil)},
		[]*models.Edge{{Source: "a", Target: "ghost"}},
	)

	_, err := o.Execute(context.Background(), wf, nil, "user-1")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid workflow")
}

func TestLifecycleEvents(t *testing.T) {
	processor := &recordingProcessor{}
	o, bus := newOrchestrator(t, processor)

	var mu sync.Mutex
	var seen []events.EventType

	bus.Subscribe(func(_ context.Context, event eventbus.Event) error {
		mu.Lock()
		seen = append(seen, event.GetType())
		mu.Unlock()

		return nil
	})

	wf := workflowOf(
		[]*models.Node{node("a", nil), node("b", nil)},
		[]*models.Edge{{Source: "a", Target: "b"}},
	)

	_, err := o.Execute(context.Background(), wf, nil, "user-1")
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()

	assert.Equal(t, []events.EventType{
		events.ExecutionStartedEvent,
		events.NodeStartedEvent,
		events.NodeCompletedEvent,
		events.NodeStartedEvent,
		events.NodeCompletedEvent,
		events.ExecutionCompletedEvent,
	}, seen)
}

func TestFailureEvents(t *testing.T) {
	processor := &recordingProcessor{}
	o, bus := newOrchestrator(t, processor)

	var mu sync.Mutex
	var seen []events.EventType

	bus.Subscribe(func(_ context.Context, event eventbus.Event) error {
		mu.Lock()
		seen = append(seen, event.GetType())
		mu.Unlock()

		return nil
	})

	wf := workflowOf([]*models.Node{node("a", map[string]any{"fail": true})}, nil)

	_, err := o.Execute(context.Background(), wf, nil, "user-1")
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()

	assert.Equal(t, []events.EventType{
		events.ExecutionStartedEvent,
		events.NodeStartedEvent,
		events.NodeFailedEvent,
		events.ExecutionFailedEvent,
	}, seen)
}

func TestPauseAndResume(t *testing.T) {
	processor := &blockingProcessor{
		started: make(chan string),
		release: make(chan struct{}),
	}
	o, _ := newOrchestrator(t, processor)

	wf := workflowOf(
		[]*models.Node{node("a", nil), node("b", nil)},
		[]*models.Edge{{Source: "a", Target: "b"}},
	)

	type outcome struct {
		result *models.ExecutionResult
		err    error
	}

	results := make(chan outcome, 1)

	go func() {
		result, err := o.Execute(context.Background(), wf, nil, "user-1")
		results <- outcome{result: result, err: err}
	}()

	require.Equal(t, "a", <-processor.started)

	ids := o.ActiveExecutions()
	require.Len(t, ids, 1)
	executionID := ids[0]

	require.NoError(t, o.Pause(executionID))
	assert.ErrorIs(t, o.Pause(executionID), ErrAlreadyPaused)

	// Let the in-flight node finish; the loop must now hold before b.
	processor.release <- struct{}{}

	status, err := o.Status(context.Background(), executionID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusPaused, status)

	select {
	case id := <-processor.started:
		t.Fatalf("node %s dispatched while paused", id)
	case <-time.After(100 * time.Millisecond):
	}

	require.NoError(t, o.Resume(executionID))
	assert.ErrorIs(t, o.Resume(executionID), ErrNotPaused)

	require.Equal(t, "b", <-processor.started)
	processor.release <- struct{}{}

	got := <-results
	require.NoError(t, got.err)
	assert.Equal(t, models.ExecutionStatusCompleted, got.result.Status)
	assert.Len(t, got.result.NodeResults, 2)
}

func TestCancelDiscardsInFlightResult(t *testing.T) {
	processor := &blockingProcessor{
		started: make(chan string),
		release: make(chan struct{}),
	}
	o, _ := newOrchestrator(t, processor)

	wf := workflowOf(
		[]*models.Node{node("a", nil), node("b", nil)},
		[]*models.Edge{{Source: "a", Target: "b"}},
	)

	type outcome struct {
		result *models.ExecutionResult
		err    error
	}

	results := make(chan outcome, 1)

	go func() {
		result, err := o.Execute(context.Background(), wf, nil, "user-1")
		results <- outcome{result: result, err: err}
	}()

	require.Equal(t, "a", <-processor.started)

	ids := o.ActiveExecutions()
	require.Len(t, ids, 1)

	require.NoError(t, o.Cancel(ids[0]))

	processor.release <- struct{}{}

	got := <-results
	require.NoError(t, got.err)
	assert.Equal(t, models.ExecutionStatusCancelled, got.result.Status)
	assert.Empty(t, got.result.NodeResults)
}

func TestControlOnUnknownExecution(t *testing.T) {
	processor := &recordingProcessor{}
	o, _ := newOrchestrator(t, processor)

	assert.ErrorIs(t, o.Pause("ghost"), ErrExecutionNotActive)
	assert.ErrorIs(t, o.Resume("ghost"), ErrExecutionNotActive)
	assert.ErrorIs(t, o.Cancel("ghost"), ErrExecutionNotActive)
}
