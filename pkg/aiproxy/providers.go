package aiproxy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/aubira/flowd/pkg/models"
)

// providerRoute binds a provider tag to its base endpoint and call strategy.
type providerRoute struct {
	baseURL string
	call    func(ctx context.Context, p *Proxy, route providerRoute, req *models.AIRequest) (*models.AIResponse, error)
}

var providerRoutes = map[string]providerRoute{
	"openai":      {baseURL: "https://api.openai.com/v1", call: callOpenAI},
	"anthropic":   {baseURL: "https://api.anthropic.com/v1", call: callAnthropic},
	"google":      {baseURL: "https://generativelanguage.googleapis.com/v1beta", call: callGoogle},
	"huggingface": {baseURL: "https://api-inference.huggingface.co", call: callHuggingFace},
	"stability":   {baseURL: "https://api.stability.ai/v1", call: callNotImplemented},
	"cohere":      {baseURL: "https://api.cohere.ai/v1", call: callNotImplemented},
}

// SupportedProvider reports whether a provider tag has a routing entry.
func SupportedProvider(provider string) bool {
	_, ok := providerRoutes[provider]

	return ok
}

func (p *Proxy) postJSON(ctx context.Context, provider, url string, headers map[string]string, payload any) (any, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s request: %w", provider, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("failed to build %s request: %w", provider, err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		httpReq.Header.Set(key, value)
	}

	response, err := p.client.Do(httpReq)
	if err != nil {
		return nil, &ProviderError{Provider: provider, Err: err}
	}
	defer response.Body.Close()

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return nil, &ProviderError{Provider: provider, StatusCode: response.StatusCode}
	}

	var decoded any
	if err := json.NewDecoder(response.Body).Decode(&decoded); err != nil {
		return nil, &ProviderError{Provider: provider, Err: err}
	}

	return decoded, nil
}

func callOpenAI(ctx context.Context, p *Proxy, route providerRoute, req *models.AIRequest) (*models.AIResponse, error) {
	started := time.Now()

	payload := map[string]any{
		"model":       req.Model,
		"messages":    []map[string]any{{"role": "user", "content": req.Prompt}},
		"max_tokens":  orInt(req.Params.MaxTokens, 1000),
		"temperature": orFloat(req.Params.Temperature, 0.7),
		"top_p":       orFloat(req.Params.TopP, 1),
	}

	headers := map[string]string{"Authorization": "Bearer " + p.credentials["openai"]}

	data, err := p.postJSON(ctx, "openai", route.baseURL+"/chat/completions", headers, payload)
	if err != nil {
		return nil, err
	}

	text := digString(data, "choices", 0, "message", "content")
	tokens := int(digNumber(data, "usage", "total_tokens"))

	return &models.AIResponse{
		Success:        true,
		Data:           text,
		Model:          req.Model,
		Origin:         models.OriginLive,
		TokensUsed:     tokens,
		EstimatedCost:  EstimateOpenAICost(tokens, req.Model),
		ProcessingTime: time.Since(started),
	}, nil
}

func callAnthropic(ctx context.Context, p *Proxy, route providerRoute, req *models.AIRequest) (*models.AIResponse, error) {
	started := time.Now()

	payload := map[string]any{
		"model":      req.Model,
		"max_tokens": orInt(req.Params.MaxTokens, 1000),
		"messages":   []map[string]any{{"role": "user", "content": req.Prompt}},
	}

	headers := map[string]string{
		"x-api-key":         p.credentials["anthropic"],
		"anthropic-version": "2023-06-01",
	}

	data, err := p.postJSON(ctx, "anthropic", route.baseURL+"/messages", headers, payload)
	if err != nil {
		return nil, err
	}

	text := digString(data, "content", 0, "text")
	inputTokens := int(digNumber(data, "usage", "input_tokens"))
	outputTokens := int(digNumber(data, "usage", "output_tokens"))

	return &models.AIResponse{
		Success:        true,
		Data:           text,
		Model:          req.Model,
		Origin:         models.OriginLive,
		TokensUsed:     inputTokens + outputTokens,
		EstimatedCost:  EstimateAnthropicCost(inputTokens, outputTokens, req.Model),
		ProcessingTime: time.Since(started),
	}, nil
}

func callGoogle(ctx context.Context, p *Proxy, route providerRoute, req *models.AIRequest) (*models.AIResponse, error) {
	started := time.Now()

	model := req.Model
	if model == "" {
		model = "gemini-pro"
	}

	payload := map[string]any{
		"contents": []map[string]any{
			{"parts": []map[string]any{{"text": req.Prompt}}},
		},
		"generationConfig": map[string]any{
			"temperature":     orFloat(req.Params.Temperature, 0.7),
			"maxOutputTokens": orInt(req.Params.MaxTokens, 1000),
			"topP":            orFloat(req.Params.TopP, 1),
		},
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", route.baseURL, model, p.credentials["google"])

	data, err := p.postJSON(ctx, "google", url, nil, payload)
	if err != nil {
		return nil, err
	}

	text := digString(data, "candidates", 0, "content", "parts", 0, "text")
	tokens := int(digNumber(data, "usageMetadata", "totalTokenCount"))

	return &models.AIResponse{
		Success:        true,
		Data:           text,
		Model:          model,
		Origin:         models.OriginLive,
		TokensUsed:     tokens,
		EstimatedCost:  EstimateGoogleCost(tokens, model),
		ProcessingTime: time.Since(started),
	}, nil
}

func callHuggingFace(ctx context.Context, p *Proxy, route providerRoute, req *models.AIRequest) (*models.AIResponse, error) {
	started := time.Now()

	payload := map[string]any{
		"inputs":     req.Prompt,
		"parameters": map[string]any{},
	}

	headers := map[string]string{"Authorization": "Bearer " + p.credentials["huggingface"]}

	data, err := p.postJSON(ctx, "huggingface", route.baseURL+"/models/"+req.Model, headers, payload)
	if err != nil {
		return nil, err
	}

	text := digString(data, "generated_text")
	if text == "" {
		text = digString(data, 0, "generated_text")
	}

	// The inference API does not report token counts.
	return &models.AIResponse{
		Success:        true,
		Data:           text,
		Model:          req.Model,
		Origin:         models.OriginLive,
		ProcessingTime: time.Since(started),
	}, nil
}

func callNotImplemented(_ context.Context, _ *Proxy, _ providerRoute, req *models.AIRequest) (*models.AIResponse, error) {
	return nil, fmt.Errorf("%w: %s", ErrNotImplemented, req.Provider)
}

// dig walks a decoded JSON structure by string keys and integer indexes.
func dig(data any, path ...any) any {
	current := data

	for _, step := range path {
		switch key := step.(type) {
		case string:
			record, ok := current.(map[string]any)
			if !ok {
				return nil
			}

			current = record[key]
		case int:
			items, ok := current.([]any)
			if !ok || key < 0 || key >= len(items) {
				return nil
			}

			current = items[key]
		}
	}

	return current
}

func digString(data any, path ...any) string {
	value, _ := dig(data, path...).(string)

	return value
}

func digNumber(data any, path ...any) float64 {
	value, _ := dig(data, path...).(float64)

	return value
}

func orInt(value, fallback int) int {
	if value > 0 {
		return value
	}

	return fallback
}

func orFloat(value, fallback float64) float64 {
	if value > 0 {
		return value
	}

	return fallback
}
