package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/aubira/flowd/pkg/eventbus"
)

// MockBus is a mock implementation of eventbus.Bus interface.
type MockBus struct {
	mock.Mock
}

func (m *MockBus) Subscribe(listener eventbus.Listener) {
	m.Called(listener)
}

func (m *MockBus) Publish(ctx context.Context, event eventbus.Event) {
	m.Called(ctx, event)
}

func (m *MockBus) Close() error {
	args := m.Called()

	return args.Error(0)
}
