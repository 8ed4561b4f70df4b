// Package conditional provides branch-decision processing for workflow nodes.
package conditional

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/aubira/flowd/pkg/models"
	"github.com/aubira/flowd/pkg/processors"
)

var typeTags = []string{"conditional", "if-else", "switch", "decision"}

type evaluation struct {
	passed bool
	value  any
	branch string
}

// Processor evaluates one of five condition kinds (simple, expression,
// switch, range, regex) and emits pass/fail plus branch metadata.
type Processor struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Processor {
	return &Processor{logger: logger.With("processor", "conditional")}
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

func conditionType(node *models.Node) string {
	if kind, ok := processors.ConfigString(node, "condition_type"); ok && kind != "" {
		return kind
	}

	return "simple"
}

// simpleValueKey returns the input key the simple condition compares. A
// "field" config entry redirects it away from the default "value" input.
func simpleValueKey(node *models.Node) string {
	if field, ok := processors.ConfigString(node, "field"); ok && field != "" {
		return field
	}

	return "value"
}

func (p *Processor) RequiredInputs(node *models.Node) []string {
	switch conditionType(node) {
	case "simple":
		return []string{simpleValueKey(node), "condition"}
	case "expression":
		return []string{"expression"}
	case "switch":
		return []string{"value", "cases"}
	case "range", "regex":
		return []string{"value"}
	default:
		return []string{"condition"}
	}
}

func (p *Processor) ValidateInputs(node *models.Node, inputs map[string]any) error {
	required := p.RequiredInputs(node)

	// Inputs that can also come from node configuration are only required
	// when the configuration does not carry them.
	filtered := required[:0:0]

	for _, key := range required {
		switch key {
		case "condition":
			// A configured operator fully specifies the comparison.
			if _, ok := node.Config[key]; ok {
				continue
			}

			if _, ok := node.Config["operator"]; ok {
				continue
			}
		case "expression", "cases":
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
	kind := conditionType(node)

	p.logger.InfoContext(ctx, "Processing conditional node",
		"node_id", node.ID, "condition_type", kind, "execution_id", execCtx.ExecutionID)

	if err := p.ValidateInputs(node, inputs); err != nil {
		return processors.FailedResult(node, inputs, err, started)
	}

	result, err := p.evaluate(kind, node, inputs)
	if err != nil {
		p.logger.ErrorContext(ctx, "Conditional node failed",
			"node_id", node.ID, "error", err, "execution_id", execCtx.ExecutionID)

		return processors.FailedResult(node, inputs, err, started)
	}

	branch := result.branch
	if branch == "" {
		if result.passed {
			branch = "true"
		} else {
			branch = "false"
		}
	}

	outputs := make(map[string]any, len(inputs)+5)
	for k, v := range inputs {
		outputs[k] = v
	}

	outputs["condition_result"] = result.passed
	outputs["condition_value"] = result.value
	outputs["condition_type"] = kind
	outputs["branch"] = branch
	outputs["evaluated_at"] = time.Now().UTC().Format(time.RFC3339)

	if result.passed {
		if extra, ok := processors.ConfigMap(node, "true_outputs"); ok {
			for k, v := range extra {
				outputs[k] = v
			}
		}
	} else if extra, ok := processors.ConfigMap(node, "false_outputs"); ok {
		for k, v := range extra {
			outputs[k] = v
		}
	}

	p.logger.InfoContext(ctx, "Conditional node completed",
		"node_id", node.ID, "condition_result", result.passed, "branch", branch)

	return processors.CompletedResult(node, inputs, outputs, started)
}

func (p *Processor) evaluate(kind string, node *models.Node, inputs map[string]any) (evaluation, error) {
	switch kind {
	case "simple":
		return evaluateSimple(node, inputs)
	case "expression":
		return evaluateExpressionCondition(node, inputs)
	case "switch":
		return evaluateSwitch(node, inputs)
	case "range":
		return evaluateRange(node, inputs)
	case "regex":
		return evaluateRegex(node, inputs)
	default:
		return evaluation{}, fmt.Errorf("unknown condition type: %s", kind)
	}
}

func evaluateSimple(node *models.Node, inputs map[string]any) (evaluation, error) {
	value := inputs[simpleValueKey(node)]

	compareValue, ok := node.Config["compare_value"]
	if !ok {
		compareValue = node.Config["value"]
	}

	operator, ok := processors.ConfigString(node, "operator")
	if !ok || operator == "" {
		operator = "=="
	}

	var passed bool

	switch operator {
	case "==", "equals":
		passed = looseEquals(value, compareValue)
	case "===", "strictEquals":
		passed = value == compareValue
	case "!=", "notEquals":
		passed = !looseEquals(value, compareValue)
	case ">", "greaterThan":
		passed = toNumber(value) > toNumber(compareValue)
	case ">=", "greaterThanOrEqual":
		passed = toNumber(value) >= toNumber(compareValue)
	case "<", "lessThan":
		passed = toNumber(value) < toNumber(compareValue)
	case "<=", "lessThanOrEqual":
		passed = toNumber(value) <= toNumber(compareValue)
	case "contains":
		passed = strings.Contains(toString(value), toString(compareValue))
	case "startsWith":
		passed = strings.HasPrefix(toString(value), toString(compareValue))
	case "endsWith":
		passed = strings.HasSuffix(toString(value), toString(compareValue))
	case "isEmpty":
		passed = isEmpty(value)
	case "isNotEmpty":
		passed = !isEmpty(value)
	default:
		return evaluation{}, fmt.Errorf("unknown operator: %s", operator)
	}

	return evaluation{passed: passed, value: value}, nil
}

func evaluateExpressionCondition(node *models.Node, inputs map[string]any) (evaluation, error) {
	expression, _ := inputs["expression"].(string)
	if expression == "" {
		expression, _ = processors.ConfigString(node, "expression")
	}

	if expression == "" {
		return evaluation{}, fmt.Errorf("no expression provided")
	}

	substituted := substituteInputs(expression, inputs)

	result, err := evalExpression(substituted)
	if err != nil {
		return evaluation{}, fmt.Errorf("expression evaluation failed: %w", err)
	}

	return evaluation{passed: result.truthy(), value: exprResult(result)}, nil
}

func exprResult(v value) any {
	switch v.kind {
	case kindNumber:
		return v.num
	case kindString:
		return v.str
	default:
		return v.b
	}
}

// substituteInputs replaces whole-word input names with their values before
// the expression is checked and parsed. String values are quoted, booleans
// become 1 or 0 so they stay inside the permitted character set.
func substituteInputs(expression string, inputs map[string]any) string {
	substituted := expression

	for key, raw := range inputs {
		pattern, err := regexp.Compile(`\b` + regexp.QuoteMeta(key) + `\b`)
		if err != nil {
			continue
		}

		var replacement string

		switch v := raw.(type) {
		case string:
			replacement = strconv.Quote(v)
		case bool:
			if v {
				replacement = "1"
			} else {
				replacement = "0"
			}
		case nil:
			replacement = "0"
		default:
			replacement = toString(raw)
		}

		substituted = pattern.ReplaceAllString(substituted, replacement)
	}

	return substituted
}

func evaluateSwitch(node *models.Node, inputs map[string]any) (evaluation, error) {
	value := inputs["value"]

	cases, _ := inputs["cases"].(map[string]any)
	if cases == nil {
		cases, _ = processors.ConfigMap(node, "cases")
	}

	for caseValue, caseResult := range cases {
		if toString(value) == caseValue {
			return evaluation{passed: true, value: caseResult, branch: caseValue}, nil
		}
	}

	if defaultCase, ok := node.Config["default_case"]; ok {
		return evaluation{passed: true, value: defaultCase, branch: "default"}, nil
	}

	return evaluation{passed: false, value: nil, branch: "none"}, nil
}

func evaluateRange(node *models.Node, inputs map[string]any) (evaluation, error) {
	value := toNumber(inputs["value"])
	min := toNumber(node.Config["min"])
	max := toNumber(node.Config["max"])

	inclusive := true
	if raw, ok := node.Config["inclusive"].(bool); ok {
		inclusive = raw
	}

	var passed bool
	if inclusive {
		passed = value >= min && value <= max
	} else {
		passed = value > min && value < max
	}

	return evaluation{passed: passed, value: value}, nil
}

func evaluateRegex(node *models.Node, inputs map[string]any) (evaluation, error) {
	value := toString(inputs["value"])

	pattern, ok := processors.ConfigString(node, "pattern")
	if !ok || pattern == "" {
		return evaluation{}, fmt.Errorf("no regex pattern provided")
	}

	flags, ok := processors.ConfigString(node, "flags")
	if !ok {
		flags = "i"
	}

	if strings.ContainsRune(flags, 'i') {
		pattern = "(?i)" + pattern
	}

	compiled, err := regexp.Compile(pattern)
	if err != nil {
		return evaluation{}, fmt.Errorf("invalid regex pattern: %s", pattern)
	}

	match := compiled.FindString(value)
	if match == "" && !compiled.MatchString(value) {
		return evaluation{passed: false, value: nil}, nil
	}

	return evaluation{passed: true, value: match}, nil
}

func looseEquals(a, b any) bool {
	if a == b {
		return true
	}

	return toString(a) == toString(b)
}

func toString(v any) string {
	if v == nil {
		return ""
	}

	if s, ok := v.(string); ok {
		return s
	}

	if f, ok := v.(float64); ok {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}

	return fmt.Sprintf("%v", v)
}

func toNumber(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0
		}

		return parsed
	case bool:
		if n {
			return 1
		}

		return 0
	default:
		return 0
	}
}

func isEmpty(v any) bool {
	switch value := v.(type) {
	case nil:
		return true
	case string:
		return value == ""
	case []any:
		return len(value) == 0
	case map[string]any:
		return len(value) == 0
	case bool:
		return !value
	case float64:
		return value == 0
	default:
		return false
	}
}
