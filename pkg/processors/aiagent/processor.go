// Package aiagent provides the language-model node processor. The actual
// provider call goes through a Dispatcher so the proxy can be swapped out in
// tests.
package aiagent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/aubira/flowd/pkg/models"
	"github.com/aubira/flowd/pkg/processors"
)

var typeTags = []string{"ai-agent", "ai-processor", "chat", "gpt", "claude"}

var defaultModels = map[string]string{
	"openai":      "gpt-3.5-turbo",
	"anthropic":   "claude-3-sonnet-20240229",
	"huggingface": "microsoft/DialoGPT-medium",
	"cohere":      "command",
	"stability":   "stable-diffusion-xl-1024-v1-0",
}

// Dispatcher routes an AI request to its provider on behalf of a user.
type Dispatcher interface {
	Execute(ctx context.Context, req *models.AIRequest, userID string) (*models.AIResponse, error)
}

type Processor struct {
	dispatcher Dispatcher
	logger     *slog.Logger
}

func New(dispatcher Dispatcher, logger *slog.Logger) *Processor {
	return &Processor{
		dispatcher: dispatcher,
		logger:     logger.With("processor", "ai-agent"),
	}
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

// RequiredInputs returns "prompt" unless the node opts out, plus any custom
// required inputs listed in the configuration.
func (p *Processor) RequiredInputs(node *models.Node) []string {
	var required []string

	requiresPrompt := true
	if raw, ok := node.Config["requires_prompt"].(bool); ok {
		requiresPrompt = raw
	}

	if requiresPrompt {
		required = append(required, "prompt")
	}

	if custom, ok := node.Config["required_inputs"].([]any); ok {
		for _, entry := range custom {
			if name, ok := entry.(string); ok {
				required = append(required, name)
			}
		}
	}

	return required
}

func (p *Processor) ValidateInputs(node *models.Node, inputs map[string]any) error {
	required := p.RequiredInputs(node)

	// The prompt can also arrive as text or message, or be synthesized from
	// a template.
	filtered := required[:0:0]

	for _, key := range required {
		if key == "prompt" {
			if _, ok := node.Config["prompt_template"]; ok {
				continue
			}

			if hasAny(inputs, "prompt", "text", "message") {
				continue
			}
		}

		filtered = append(filtered, key)
	}

	return processors.RequireInputs(node, inputs, filtered)
}

func hasAny(inputs map[string]any, keys ...string) bool {
	for _, key := range keys {
		if value, ok := inputs[key]; ok && value != nil {
			return true
		}
	}

	return false
}

func (p *Processor) Process(ctx context.Context, node *models.Node, inputs map[string]any, execCtx *models.ExecutionContext) *models.NodeExecutionResult {
	started := time.Now()

	p.logger.InfoContext(ctx, "Processing AI agent node",
		"node_id", node.ID, "node_type", node.Type, "execution_id", execCtx.ExecutionID)

	if err := p.ValidateInputs(node, inputs); err != nil {
		return processors.FailedResult(node, inputs, err, started)
	}

	request := p.prepareRequest(node, inputs, execCtx)

	response, err := p.dispatcher.Execute(ctx, request, execCtx.UserID)
	if err != nil {
		p.logger.ErrorContext(ctx, "AI agent node failed",
			"node_id", node.ID, "error", err, "execution_id", execCtx.ExecutionID)

		return processors.FailedResult(node, inputs, err, started)
	}

	if !response.Success {
		message := response.Error
		if message == "" {
			message = "AI request failed"
		}

		return processors.FailedResult(node, inputs, errors.New(message), started)
	}

	outputs := p.processResponse(node, response)

	p.logger.InfoContext(ctx, "AI agent node completed",
		"node_id", node.ID, "provider", request.Provider, "model", request.Model,
		"tokens_used", response.TokensUsed, "origin", response.Origin)

	return processors.CompletedResult(node, inputs, outputs, started)
}

func (p *Processor) prepareRequest(node *models.Node, inputs map[string]any, execCtx *models.ExecutionContext) *models.AIRequest {
	provider, ok := processors.ConfigString(node, "provider")
	if !ok || provider == "" {
		provider, _ = processors.ConfigString(node, "service")
	}

	if provider == "" {
		provider = "openai"
	}

	model, ok := processors.ConfigString(node, "model")
	if !ok || model == "" {
		model = DefaultModel(provider)
	}

	prompt := firstString(inputs, "prompt", "text", "message")

	if template, ok := processors.ConfigString(node, "prompt_template"); ok && template != "" {
		prompt = applyPromptTemplate(template, inputs)
	}

	params := models.GenerationParams{
		Temperature: configFloat(node, "temperature", 0.7),
		MaxTokens:   int(configFloat(node, "max_tokens", 1000)),
		TopP:        configFloat(node, "top_p", 1),
	}

	return &models.AIRequest{
		NodeID:          node.ID,
		NodeType:        node.Type,
		ExecutionID:     execCtx.ExecutionID,
		NodeExecutionID: execCtx.NodeExecutionIDs[node.ID],
		Provider:        provider,
		Model:           model,
		Prompt:          prompt,
		Inputs:          inputs,
		Params:          params,
	}
}

// DefaultModel returns the model used when a node names a provider without a
// model.
func DefaultModel(provider string) string {
	if model, ok := defaultModels[provider]; ok {
		return model
	}

	return "gpt-3.5-turbo"
}

// applyPromptTemplate substitutes {{input_name}} placeholders with stringified
// input values. Unknown placeholders are left as-is.
func applyPromptTemplate(template string, inputs map[string]any) string {
	result := template

	for key, value := range inputs {
		placeholder := "{{" + key + "}}"
		result = strings.ReplaceAll(result, placeholder, fmt.Sprintf("%v", value))
	}

	return result
}

var jsonBlock = regexp.MustCompile(`(?s)\{.*\}`)

func (p *Processor) processResponse(node *models.Node, response *models.AIResponse) map[string]any {
	outputs := map[string]any{}

	if response.Data != nil {
		text := responseText(response.Data)
		outputs["response"] = text
		outputs["text"] = text
	}

	outputs["model"] = response.Model
	outputs["origin"] = string(response.Origin)
	outputs["tokens_used"] = response.TokensUsed
	outputs["processing_time_ms"] = response.ProcessingTime.Milliseconds()

	if transform, ok := processors.ConfigMap(node, "output_transform"); ok {
		p.applyOutputTransform(outputs, transform)
	}

	return outputs
}

func responseText(data any) string {
	switch payload := data.(type) {
	case string:
		return payload
	case map[string]any:
		if text, ok := payload["response"].(string); ok {
			return text
		}

		if text, ok := payload["generated_text"].(string); ok {
			return text
		}
	}

	encoded, err := json.Marshal(data)
	if err != nil {
		return fmt.Sprintf("%v", data)
	}

	return string(encoded)
}

func (p *Processor) applyOutputTransform(outputs map[string]any, transform map[string]any) {
	text, _ := outputs["response"].(string)
	if text == "" {
		return
	}

	if extract, _ := transform["extract_json"].(bool); extract {
		if block := jsonBlock.FindString(text); block != "" {
			var parsed any
			if err := json.Unmarshal([]byte(block), &parsed); err != nil {
				p.logger.Warn("Failed to extract JSON from response", "error", err)
			} else {
				outputs["extracted_json"] = parsed
			}
		}
	}

	if lower, _ := transform["to_lower_case"].(bool); lower {
		text = strings.ToLower(text)
	}

	if trim, _ := transform["trim"].(bool); trim {
		text = strings.TrimSpace(text)
	}

	outputs["response"] = text
}

func firstString(inputs map[string]any, keys ...string) string {
	for _, key := range keys {
		if value, ok := inputs[key].(string); ok && value != "" {
			return value
		}
	}

	return ""
}

func configFloat(node *models.Node, key string, fallback float64) float64 {
	switch value := node.Config[key].(type) {
	case float64:
		return value
	case int:
		return float64(value)
	default:
		return fallback
	}
}
