// Package datatransform provides collection and value manipulation for
// workflow nodes.
package datatransform

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/aubira/flowd/pkg/models"
	"github.com/aubira/flowd/pkg/processors"
)

var typeTags = []string{"data-transform", "data-processor", "database", "transform", "filter", "map"}

// Processor runs one of the configured data operations: filter, map,
// transform, aggregate, sort, group, join. Any other operation passes the
// data through unchanged.
type Processor struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Processor {
	return &Processor{logger: logger.With("processor", "data-transform")}
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

func operation(node *models.Node) string {
	if op, ok := processors.ConfigString(node, "operation"); ok && op != "" {
		return op
	}

	return "transform"
}

func (p *Processor) RequiredInputs(node *models.Node) []string {
	switch operation(node) {
	case "filter":
		return []string{"data", "condition"}
	case "map":
		return []string{"data", "mapping"}
	case "aggregate":
		return []string{"data", "aggregation"}
	default:
		return []string{"data"}
	}
}

func (p *Processor) ValidateInputs(node *models.Node, inputs map[string]any) error {
	required := p.RequiredInputs(node)

	filtered := required[:0:0]

	for _, key := range required {
		switch key {
		case "condition", "mapping", "aggregation":
			if _, ok := node.Config[key]; ok {
				continue
			}
		}

		filtered = append(filtered, key)
	}

	return processors.RequireInputs(node, inputs, filtered)
}

func (p *Processor) Process(ctx context.Context, node *models.Node, inputs map[string]any, execCtx *models.ExecutionContext) *models.NodeExecutionResult {
	started := time.Now()
	op := operation(node)

	p.logger.InfoContext(ctx, "Processing data transform node",
		"node_id", node.ID, "operation", op, "execution_id", execCtx.ExecutionID)

	if err := p.ValidateInputs(node, inputs); err != nil {
		return processors.FailedResult(node, inputs, err, started)
	}

	outputs, err := p.execute(op, node, inputs)
	if err != nil {
		p.logger.ErrorContext(ctx, "Data transform node failed",
			"node_id", node.ID, "error", err, "execution_id", execCtx.ExecutionID)

		return processors.FailedResult(node, inputs, err, started)
	}

	p.logger.InfoContext(ctx, "Data transform node completed",
		"node_id", node.ID, "operation", op, "output_size", dataSize(outputs["data"]))

	return processors.CompletedResult(node, inputs, outputs, started)
}

func (p *Processor) execute(op string, node *models.Node, inputs map[string]any) (map[string]any, error) {
	data := inputs["data"]

	switch op {
	case "filter":
		return filterData(data, inputOrConfig(node, inputs, "condition"))
	case "map":
		return mapData(data, inputOrConfig(node, inputs, "mapping"))
	case "transform":
		transformation, _ := processors.ConfigMap(node, "transformation")

		return transformData(data, transformation)
	case "aggregate":
		return aggregateData(data, inputOrConfig(node, inputs, "aggregation"))
	case "sort":
		sortBy, _ := processors.ConfigString(node, "sort_by")
		sortOrder, ok := processors.ConfigString(node, "sort_order")
		if !ok || sortOrder == "" {
			sortOrder = "asc"
		}

		return sortData(data, sortBy, sortOrder)
	case "group":
		groupBy, _ := processors.ConfigString(node, "group_by")

		return groupData(data, groupBy)
	case "join":
		joinKey, _ := processors.ConfigString(node, "join_key")

		return joinData(data, inputOrConfig(node, inputs, "join_data"), joinKey)
	default:
		return map[string]any{"data": data, "operation": "passthrough"}, nil
	}
}

func inputOrConfig(node *models.Node, inputs map[string]any, key string) any {
	if value, ok := inputs[key]; ok && value != nil {
		return value
	}

	return node.Config[key]
}

func asArray(data any, op string) ([]any, error) {
	items, ok := data.([]any)
	if !ok {
		return nil, fmt.Errorf("%s operation requires array data", op)
	}

	return items, nil
}

func filterData(data, condition any) (map[string]any, error) {
	items, err := asArray(data, "filter")
	if err != nil {
		return nil, err
	}

	var filtered []any

	switch cond := condition.(type) {
	case map[string]any:
		// Every field in the condition must match exactly.
		filtered = make([]any, 0, len(items))

		for _, item := range items {
			record, ok := item.(map[string]any)
			if !ok {
				continue
			}

			matches := true

			for key, want := range cond {
				if record[key] != want {
					matches = false

					break
				}
			}

			if matches {
				filtered = append(filtered, item)
			}
		}
	case string:
		// Case-insensitive substring match against the serialized item.
		filtered = make([]any, 0, len(items))
		needle := strings.ToLower(cond)

		for _, item := range items {
			encoded, err := json.Marshal(item)
			if err != nil {
				continue
			}

			if strings.Contains(strings.ToLower(string(encoded)), needle) {
				filtered = append(filtered, item)
			}
		}
	default:
		filtered = items
	}

	return map[string]any{
		"data":           filtered,
		"original_count": len(items),
		"filtered_count": len(filtered),
		"operation":      "filter",
	}, nil
}

func mapData(data, mapping any) (map[string]any, error) {
	items, err := asArray(data, "map")
	if err != nil {
		return nil, err
	}

	mapped := items

	if fields, ok := mapping.(map[string]any); ok {
		mapped = make([]any, len(items))

		for i, item := range items {
			record, _ := item.(map[string]any)
			projected := make(map[string]any, len(fields))

			for newKey, oldKey := range fields {
				if name, ok := oldKey.(string); ok && record != nil {
					projected[newKey] = record[name]
				}
			}

			mapped[i] = projected
		}
	}

	return map[string]any{
		"data":      mapped,
		"count":     len(mapped),
		"operation": "map",
	}, nil
}

func transformData(data any, transformation map[string]any) (map[string]any, error) {
	if transformation == nil {
		return map[string]any{"data": data, "operation": "transform"}, nil
	}

	transformed := data
	text, isString := data.(string)

	switch {
	case boolOption(transformation, "to_upper_case") && isString:
		transformed = strings.ToUpper(text)
	case boolOption(transformation, "to_lower_case") && isString:
		transformed = strings.ToLower(text)
	case boolOption(transformation, "parse_json") && isString:
		var parsed any
		if err := json.Unmarshal([]byte(text), &parsed); err != nil {
			return nil, fmt.Errorf("failed to parse JSON data")
		}

		transformed = parsed
	case boolOption(transformation, "stringify"):
		encoded, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to serialize data: %w", err)
		}

		transformed = string(encoded)
	case boolOption(transformation, "flatten"):
		if items, ok := data.([]any); ok {
			depth := 1
			if raw, ok := transformation["depth"].(float64); ok {
				depth = int(raw)
			}

			transformed = flatten(items, depth)
		}
	}

	return map[string]any{
		"data":           transformed,
		"operation":      "transform",
		"transformation": transformation,
	}, nil
}

func flatten(items []any, depth int) []any {
	if depth <= 0 {
		return items
	}

	flattened := make([]any, 0, len(items))

	for _, item := range items {
		if nested, ok := item.([]any); ok {
			flattened = append(flattened, flatten(nested, depth-1)...)
		} else {
			flattened = append(flattened, item)
		}
	}

	return flattened
}

func aggregateData(data, aggregation any) (map[string]any, error) {
	items, err := asArray(data, "aggregate")
	if err != nil {
		return nil, err
	}

	spec, _ := aggregation.(map[string]any)
	field, _ := spec["field"].(string)

	result := map[string]any{
		"count":     len(items),
		"operation": "aggregate",
	}

	if field == "" {
		return result, nil
	}

	values := make([]float64, len(items))
	for i, item := range items {
		if record, ok := item.(map[string]any); ok {
			values[i] = toNumber(record[field])
		}
	}

	var sum float64
	for _, v := range values {
		sum += v
	}

	if boolOption(spec, "sum") {
		result["sum"] = sum
	}

	if boolOption(spec, "average") {
		average := float64(0)
		if len(values) > 0 {
			average = sum / float64(len(values))
		}

		result["average"] = average
	}

	if boolOption(spec, "min") && len(values) > 0 {
		min := values[0]
		for _, v := range values[1:] {
			if v < min {
				min = v
			}
		}

		result["min"] = min
	}

	if boolOption(spec, "max") && len(values) > 0 {
		max := values[0]
		for _, v := range values[1:] {
			if v > max {
				max = v
			}
		}

		result["max"] = max
	}

	return result, nil
}

func sortData(data any, sortBy, sortOrder string) (map[string]any, error) {
	items, err := asArray(data, "sort")
	if err != nil {
		return nil, err
	}

	sorted := make([]any, len(items))
	copy(sorted, items)

	sort.SliceStable(sorted, func(i, j int) bool {
		left := fieldValue(sorted[i], sortBy)
		right := fieldValue(sorted[j], sortBy)

		less := compareValues(left, right) < 0
		if sortOrder == "desc" {
			return !less && compareValues(left, right) != 0
		}

		return less
	})

	return map[string]any{
		"data":       sorted,
		"count":      len(sorted),
		"operation":  "sort",
		"sort_by":    sortBy,
		"sort_order": sortOrder,
	}, nil
}

func groupData(data any, groupBy string) (map[string]any, error) {
	items, err := asArray(data, "group")
	if err != nil {
		return nil, err
	}

	grouped := map[string]any{}

	for _, item := range items {
		key := fmt.Sprintf("%v", fieldValue(item, groupBy))

		bucket, _ := grouped[key].([]any)
		grouped[key] = append(bucket, item)
	}

	groups := make([]string, 0, len(grouped))
	for key := range grouped {
		groups = append(groups, key)
	}

	sort.Strings(groups)

	return map[string]any{
		"data":        grouped,
		"groups":      groups,
		"group_count": len(groups),
		"operation":   "group",
		"group_by":    groupBy,
	}, nil
}

func joinData(leftData, rightData any, joinKey string) (map[string]any, error) {
	left, err := asArray(leftData, "join")
	if err != nil {
		return nil, err
	}

	right, err := asArray(rightData, "join")
	if err != nil {
		return nil, err
	}

	joined := make([]any, len(left))

	for i, leftItem := range left {
		joined[i] = leftItem

		leftRecord, ok := leftItem.(map[string]any)
		if !ok {
			continue
		}

		for _, rightItem := range right {
			rightRecord, ok := rightItem.(map[string]any)
			if !ok {
				continue
			}

			if rightRecord[joinKey] != leftRecord[joinKey] {
				continue
			}

			merged := make(map[string]any, len(leftRecord)+len(rightRecord))
			for k, v := range leftRecord {
				merged[k] = v
			}

			for k, v := range rightRecord {
				merged[k] = v
			}

			joined[i] = merged

			break
		}
	}

	return map[string]any{
		"data":      joined,
		"count":     len(joined),
		"operation": "join",
		"join_key":  joinKey,
	}, nil
}

func boolOption(options map[string]any, key string) bool {
	value, _ := options[key].(bool)

	return value
}

func fieldValue(item any, field string) any {
	record, ok := item.(map[string]any)
	if !ok {
		return nil
	}

	return record[field]
}

func compareValues(a, b any) int {
	aNum, aOk := numeric(a)
	bNum, bOk := numeric(b)

	if aOk && bOk {
		switch {
		case aNum < bNum:
			return -1
		case aNum > bNum:
			return 1
		default:
			return 0
		}
	}

	return strings.Compare(fmt.Sprintf("%v", a), fmt.Sprintf("%v", b))
}

func numeric(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func toNumber(v any) float64 {
	n, _ := numeric(v)

	return n
}

func dataSize(data any) string {
	switch value := data.(type) {
	case []any:
		return fmt.Sprintf("%d items", len(value))
	case map[string]any:
		return fmt.Sprintf("%d properties", len(value))
	case string:
		return fmt.Sprintf("%d characters", len(value))
	default:
		return "single value"
	}
}
