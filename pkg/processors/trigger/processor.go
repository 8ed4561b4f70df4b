// Package trigger provides the workflow entry-point processor.
package trigger

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/aubira/flowd/pkg/models"
	"github.com/aubira/flowd/pkg/processors"
)

var typeTags = []string{"trigger", "start", "input", "manual"}

// Processor passes caller-supplied inputs through, stamps them with trigger
// metadata, and applies the optional configured default/rename/format
// transforms.
type Processor struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Processor {
	return &Processor{logger: logger.With("processor", "trigger")}
}

// Types lists the node type tags this processor handles.
func Types() []string {
	return append([]string(nil), typeTags...)
}

func (p *Processor) CanProcess(nodeType string) bool {
	for _, tag := range typeTags {
		if tag == nodeType {
			return true
		}
	}

	return false
}

// RequiredInputs is empty: trigger nodes accept whatever the caller provides.
func (p *Processor) RequiredInputs(_ *models.Node) []string {
	return nil
}

func (p *Processor) ValidateInputs(_ *models.Node, _ map[string]any) error {
	return nil
}

func (p *Processor) Process(ctx context.Context, node *models.Node, inputs map[string]any, execCtx *models.ExecutionContext) *models.NodeExecutionResult {
	started := time.Now()

	p.logger.InfoContext(ctx, "Processing trigger node",
		"node_id", node.ID, "execution_id", execCtx.ExecutionID)

	outputs := make(map[string]any, len(inputs)+4)
	for k, v := range inputs {
		outputs[k] = v
	}

	outputs["triggered_at"] = started.UTC().Format(time.RFC3339)
	outputs["workflow_id"] = execCtx.WorkflowID
	outputs["execution_id"] = execCtx.ExecutionID

	if triggerType, ok := processors.ConfigString(node, "trigger_type"); ok {
		outputs["trigger_type"] = triggerType
	} else {
		outputs["trigger_type"] = "manual"
	}

	if defaults, ok := processors.ConfigMap(node, "defaults"); ok {
		for key, value := range defaults {
			if _, present := outputs[key]; !present {
				outputs[key] = value
			}
		}
	}

	if transforms, ok := node.Config["transforms"].([]any); ok {
		p.applyTransforms(outputs, transforms)
	}

	return processors.CompletedResult(node, inputs, outputs, started)
}

// applyTransforms runs the configured rename/default/format transforms in
// order. A malformed transform entry is skipped, not fatal.
func (p *Processor) applyTransforms(outputs map[string]any, transforms []any) {
	for _, entry := range transforms {
		transform, ok := entry.(map[string]any)
		if !ok {
			continue
		}

		kind, _ := transform["type"].(string)

		switch kind {
		case "rename":
			from, _ := transform["from"].(string)
			to, _ := transform["to"].(string)

			if value, present := outputs[from]; present && from != "" && to != "" {
				outputs[to] = value
				delete(outputs, from)
			}
		case "default":
			field, _ := transform["field"].(string)
			if field == "" {
				continue
			}

			if _, present := outputs[field]; !present {
				outputs[field] = transform["value"]
			}
		case "format":
			field, _ := transform["field"].(string)
			format, _ := transform["format"].(string)

			if value, present := outputs[field]; present {
				outputs[field] = formatValue(value, format)
			}
		default:
			p.logger.Warn("Unknown trigger transform type", "type", kind)
		}
	}
}

func formatValue(value any, format string) any {
	switch format {
	case "string":
		return fmt.Sprintf("%v", value)
	case "number":
		parsed, err := strconv.ParseFloat(fmt.Sprintf("%v", value), 64)
		if err != nil {
			return value
		}

		return parsed
	case "boolean":
		parsed, err := strconv.ParseBool(fmt.Sprintf("%v", value))
		if err != nil {
			return value
		}

		return parsed
	case "uppercase":
		return strings.ToUpper(fmt.Sprintf("%v", value))
	case "lowercase":
		return strings.ToLower(fmt.Sprintf("%v", value))
	case "trim":
		return strings.TrimSpace(fmt.Sprintf("%v", value))
	default:
		return value
	}
}
