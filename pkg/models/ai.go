package models

import "time"

// ResponseOrigin tags whether an AI response came from a live provider call or
// was synthesized by the dispatch layer (missing credential, provider failure).
type ResponseOrigin string

const (
	OriginLive      ResponseOrigin = "live"
	OriginSimulated ResponseOrigin = "simulated"
)

// GenerationParams are the sampling parameters forwarded to a provider.
type GenerationParams struct {
	Temperature float64 `json:"temperature,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
	TopP        float64 `json:"top_p,omitempty"`
}

// AIRequest is a single inference request routed through the dispatch proxy.
// ExecutionID and NodeExecutionID tie the request back to the run that issued
// it so usage accounting can be queried per execution.
type AIRequest struct {
	NodeID          string           `json:"node_id"`
	NodeType        string           `json:"node_type"`
	ExecutionID     string           `json:"execution_id,omitempty"`
	NodeExecutionID string           `json:"node_execution_id,omitempty"`
	Provider        string           `json:"provider" validate:"required"`
	Model           string           `json:"model"`
	Prompt          string           `json:"prompt"`
	Inputs          map[string]any   `json:"inputs,omitempty"`
	Params          GenerationParams `json:"params"`
}

// AIResponse is the normalized result of a provider call. Origin distinguishes
// a live answer from a simulated one; Success stays true for simulated
// responses so demo workflows keep running without credentials.
type AIResponse struct {
	Success        bool           `json:"success"`
	Data           any            `json:"data"`
	Model          string         `json:"model"`
	Origin         ResponseOrigin `json:"origin"`
	TokensUsed     int            `json:"tokens_used"`
	EstimatedCost  float64        `json:"estimated_cost"`
	ProcessingTime time.Duration  `json:"processing_time"`
	Error          string         `json:"error,omitempty"`
}

// AIUsage is the accounting record emitted for a dispatched call. RequestData
// and ResponseData snapshot what was sent and received for later auditing.
type AIUsage struct {
	UserID          string         `json:"user_id"`
	ExecutionID     string         `json:"execution_id"`
	NodeExecutionID string         `json:"node_execution_id"`
	Provider        string         `json:"provider"`
	Model           string         `json:"model"`
	TokensUsed      int            `json:"tokens_used"`
	EstimatedCost   float64        `json:"estimated_cost"`
	RequestData     map[string]any `json:"request_data,omitempty"`
	ResponseData    map[string]any `json:"response_data,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
}
