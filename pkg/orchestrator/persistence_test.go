package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/aubira/flowd/pkg/mocks"
	"github.com/aubira/flowd/pkg/models"
	"github.com/aubira/flowd/pkg/persistence"
	"github.com/aubira/flowd/pkg/processors"
)

func TestExecutionRecordsPersisted(t *testing.T) {
	logger := slog.Default()
	processor := &recordingProcessor{}
	registry := processors.NewRegistry(logger)
	registry.Register("task", processor)

	gateway := new(mocks.MockGateway)
	bus := new(mocks.MockBus)
	bus.On("Publish", mock.Anything, mock.Anything).Return()

	created := &models.ExecutionRecord{
		ID:         "exec-1",
		WorkflowID: "wf-1",
		UserID:     "user-1",
		Status:     models.ExecutionStatusPending,
		CreatedAt:  time.Now().UTC(),
	}

	gateway.On("CreateExecution", mock.Anything, "wf-1", "user-1", mock.Anything).
		Return(created, nil)
	gateway.On("UpdateExecution", mock.Anything, "exec-1", models.ExecutionStatusRunning, mock.Anything).
		Return(nil)
	gateway.On("UpdateExecution", mock.Anything, "exec-1", models.ExecutionStatusCompleted, mock.Anything).
		Return(nil)
	gateway.On("CreateNodeExecution", mock.Anything, "exec-1", "a", "task", mock.Anything, mock.Anything).
		Return(&models.NodeExecutionRecord{ID: "node-exec-1", ExecutionID: "exec-1", NodeID: "a"}, nil)
	gateway.On("UpdateNodeExecution", mock.Anything, "node-exec-1", mock.MatchedBy(func(u persistence.NodeExecutionUpdate) bool {
		return u.Status == string(models.NodeStatusCompleted)
	})).Return(nil)

	usage := []*models.AIUsage{{
		UserID:          "user-1",
		ExecutionID:     "exec-1",
		NodeExecutionID: "node-exec-1",
		Provider:        "openai",
		TokensUsed:      42,
	}}
	gateway.On("ListExecutionUsage", mock.Anything, "exec-1").Return(usage, nil)

	o := New(registry, bus, logger, WithGateway(gateway))

	wf := workflowOf([]*models.Node{node("a", nil)}, nil)

	result, err := o.Execute(context.Background(), wf, nil, "user-1")

	require.NoError(t, err)
	assert.Equal(t, "exec-1", result.ExecutionID)
	assert.Equal(t, models.ExecutionStatusCompleted, result.Status)
	assert.Equal(t, usage, result.AIUsage)

	gateway.AssertExpectations(t)
	bus.AssertExpectations(t)
}

func TestCreateExecutionFailureAbortsRun(t *testing.T) {
	logger := slog.Default()
	processor := &recordingProcessor{}
	registry := processors.NewRegistry(logger)
	registry.Register("task", processor)

	gateway := new(mocks.MockGateway)
	gateway.On("CreateExecution", mock.Anything, "wf-1", "user-1", mock.Anything).
		Return(nil, errors.New("disk full"))

	bus := new(mocks.MockBus)

	o := New(registry, bus, logger, WithGateway(gateway))

	wf := workflowOf([]*models.Node{node("a", nil)}, nil)

	_, err := o.Execute(context.Background(), wf, nil, "user-1")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create execution record")
	assert.Empty(t, processor.dispatched())

	bus.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}
