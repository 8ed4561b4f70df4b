// Package processors defines the pluggable node processor contract and registry.
package processors

import (
	"context"
	"fmt"
	"time"

	"github.com/aubira/flowd/pkg/models"
)

// Processor is the capability bound to one or more node type tags. Process
// never lets an error escape: failures come back as a NodeExecutionResult
// with status failed and a populated error, and the orchestrator alone
// decides whether that aborts the run.
type Processor interface {
	// CanProcess reports whether this processor handles the given type tag.
	CanProcess(nodeType string) bool

	// RequiredInputs returns the input keys the node needs before processing.
	// The set may depend on the node's configuration.
	RequiredInputs(node *models.Node) []string

	// ValidateInputs checks the inputs against the node's requirements. A nil
	// return means Process may be invoked.
	ValidateInputs(node *models.Node, inputs map[string]any) error

	// Process executes the node and returns its result.
	Process(ctx context.Context, node *models.Node, inputs map[string]any, execCtx *models.ExecutionContext) *models.NodeExecutionResult
}

// RequireInputs is the shared validation helper: every key must be present
// and non-nil.
func RequireInputs(node *models.Node, inputs map[string]any, required []string) error {
	for _, key := range required {
		value, ok := inputs[key]
		if !ok || value == nil {
			return fmt.Errorf("missing required input %q for node %s", key, node.ID)
		}
	}

	return nil
}

// CompletedResult builds a successful node result.
func CompletedResult(node *models.Node, inputs, outputs map[string]any, started time.Time) *models.NodeExecutionResult {
	return &models.NodeExecutionResult{
		NodeID:         node.ID,
		NodeType:       node.Type,
		Status:         models.NodeStatusCompleted,
		Inputs:         inputs,
		Outputs:        outputs,
		ProcessingTime: time.Since(started),
	}
}

// FailedResult builds a failed node result with empty outputs.
func FailedResult(node *models.Node, inputs map[string]any, err error, started time.Time) *models.NodeExecutionResult {
	return &models.NodeExecutionResult{
		NodeID:         node.ID,
		NodeType:       node.Type,
		Status:         models.NodeStatusFailed,
		Inputs:         inputs,
		Outputs:        map[string]any{},
		Error:          err.Error(),
		ProcessingTime: time.Since(started),
	}
}

// ConfigString reads a string value from a node's configuration map.
func ConfigString(node *models.Node, key string) (string, bool) {
	if node.Config == nil {
		return "", false
	}

	value, ok := node.Config[key].(string)

	return value, ok
}

// ConfigMap reads a nested map from a node's configuration map.
func ConfigMap(node *models.Node, key string) (map[string]any, bool) {
	if node.Config == nil {
		return nil, false
	}

	value, ok := node.Config[key].(map[string]any)

	return value, ok
}

// ConfigBool reads a boolean value from a node's configuration map.
func ConfigBool(node *models.Node, key string) bool {
	if node.Config == nil {
		return false
	}

	value, _ := node.Config[key].(bool)

	return value
}
