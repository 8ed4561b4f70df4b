// Package events defines the lifecycle event types emitted during workflow execution.
package events

import (
	"time"

	"github.com/aubira/flowd/pkg/models"
	"github.com/google/uuid"
)

type EventType string

// Kafka topic for externally published execution events.
const ExecutionTopic = "flowd.executions"

const (
	ExecutionStartedEvent   EventType = "execution_started"
	ExecutionCompletedEvent EventType = "execution_completed"
	ExecutionFailedEvent    EventType = "execution_failed"
	ExecutionPausedEvent    EventType = "execution_paused"
	ExecutionResumedEvent   EventType = "execution_resumed"
	ExecutionCancelledEvent EventType = "execution_cancelled"

	NodeStartedEvent   EventType = "node_started"
	NodeCompletedEvent EventType = "node_completed"
	NodeFailedEvent    EventType = "node_failed"
)

type BaseEvent struct {
	ID          string    `json:"id"`
	Type        EventType `json:"type"`
	Timestamp   time.Time `json:"timestamp"`
	WorkflowID  string    `json:"workflow_id"`
	ExecutionID string    `json:"execution_id"`
}

func NewBaseEvent(eventType EventType, workflowID, executionID string) BaseEvent {
	return BaseEvent{
		ID:          uuid.New().String(),
		Type:        eventType,
		Timestamp:   time.Now().UTC(),
		WorkflowID:  workflowID,
		ExecutionID: executionID,
	}
}

type ExecutionStarted struct {
	BaseEvent

	Inputs map[string]any `json:"inputs,omitempty"`
}

func (e ExecutionStarted) GetType() EventType { return ExecutionStartedEvent }

type ExecutionCompleted struct {
	BaseEvent

	Outputs       map[string]any `json:"outputs,omitempty"`
	NodesExecuted int            `json:"nodes_executed"`
	Duration      time.Duration  `json:"duration"`
}

func (e ExecutionCompleted) GetType() EventType { return ExecutionCompletedEvent }

type ExecutionFailed struct {
	BaseEvent

	Error         string        `json:"error"`
	NodesExecuted int           `json:"nodes_executed"`
	Duration      time.Duration `json:"duration"`
}

func (e ExecutionFailed) GetType() EventType { return ExecutionFailedEvent }

type ExecutionPaused struct {
	BaseEvent
}

func (e ExecutionPaused) GetType() EventType { return ExecutionPausedEvent }

type ExecutionResumed struct {
	BaseEvent
}

func (e ExecutionResumed) GetType() EventType { return ExecutionResumedEvent }

type ExecutionCancelled struct {
	BaseEvent

	Reason string `json:"reason,omitempty"`
}

func (e ExecutionCancelled) GetType() EventType { return ExecutionCancelledEvent }

type NodeStarted struct {
	BaseEvent

	NodeID   string `json:"node_id"`
	NodeType string `json:"node_type"`
}

func (e NodeStarted) GetType() EventType { return NodeStartedEvent }

type NodeCompleted struct {
	BaseEvent

	NodeID   string         `json:"node_id"`
	NodeType string         `json:"node_type"`
	Outputs  map[string]any `json:"outputs,omitempty"`
	Duration time.Duration  `json:"duration"`
}

func (e NodeCompleted) GetType() EventType { return NodeCompletedEvent }

type NodeFailed struct {
	BaseEvent

	NodeID   string        `json:"node_id"`
	NodeType string        `json:"node_type"`
	Error    string        `json:"error"`
	Duration time.Duration `json:"duration"`
}

func (e NodeFailed) GetType() EventType { return NodeFailedEvent }

// ResultSnapshot converts a terminal node result into the matching event.
func ResultSnapshot(workflowID, executionID string, result *models.NodeExecutionResult) interface{ GetType() EventType } {
	if result.Status == models.NodeStatusFailed {
		return NodeFailed{
			BaseEvent: NewBaseEvent(NodeFailedEvent, workflowID, executionID),
			NodeID:    result.NodeID,
			NodeType:  result.NodeType,
			Error:     result.Error,
			Duration:  result.ProcessingTime,
		}
	}

	return NodeCompleted{
		BaseEvent: NewBaseEvent(NodeCompletedEvent, workflowID, executionID),
		NodeID:    result.NodeID,
		NodeType:  result.NodeType,
		Outputs:   result.Outputs,
		Duration:  result.ProcessingTime,
	}
}
