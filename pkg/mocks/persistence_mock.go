// Package mocks provides testify mocks for the engine's interfaces.
package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/aubira/flowd/pkg/models"
	"github.com/aubira/flowd/pkg/persistence"
)

// MockGateway is a mock implementation of persistence.Gateway interface.
type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) CreateExecution(ctx context.Context, workflowID, userID string, inputs map[string]any) (*models.ExecutionRecord, error) {
	args := m.Called(ctx, workflowID, userID, inputs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.ExecutionRecord), args.Error(1)
}

func (m *MockGateway) UpdateExecution(ctx context.Context, id string, status models.ExecutionStatus, update persistence.ExecutionUpdate) error {
	args := m.Called(ctx, id, status, update)

	return args.Error(0)
}

func (m *MockGateway) ExecutionByID(ctx context.Context, id string) (*models.ExecutionRecord, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.ExecutionRecord), args.Error(1)
}

func (m *MockGateway) ListExecutions(ctx context.Context, workflowID string, limit int) ([]*models.ExecutionRecord, error) {
	args := m.Called(ctx, workflowID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.ExecutionRecord), args.Error(1)
}

func (m *MockGateway) CreateNodeExecution(ctx context.Context, executionID, nodeID, nodeType string, inputs map[string]any, startedAt time.Time) (*models.NodeExecutionRecord, error) {
	args := m.Called(ctx, executionID, nodeID, nodeType, inputs, startedAt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.NodeExecutionRecord), args.Error(1)
}

func (m *MockGateway) UpdateNodeExecution(ctx context.Context, id string, update persistence.NodeExecutionUpdate) error {
	args := m.Called(ctx, id, update)

	return args.Error(0)
}

func (m *MockGateway) ListNodeExecutions(ctx context.Context, executionID string) ([]*models.NodeExecutionRecord, error) {
	args := m.Called(ctx, executionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.NodeExecutionRecord), args.Error(1)
}

func (m *MockGateway) InsertUsage(ctx context.Context, usage *models.AIUsage) error {
	args := m.Called(ctx, usage)

	return args.Error(0)
}

func (m *MockGateway) ListUsage(ctx context.Context, userID string, since time.Time) ([]*models.AIUsage, error) {
	args := m.Called(ctx, userID, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.AIUsage), args.Error(1)
}

func (m *MockGateway) ListExecutionUsage(ctx context.Context, executionID string) ([]*models.AIUsage, error) {
	args := m.Called(ctx, executionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.AIUsage), args.Error(1)
}

func (m *MockGateway) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

func (m *MockGateway) Close(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}
