package aiproxy

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/aubira/flowd/pkg/models"
)

const promptPreviewLen = 50

// mockResponse synthesizes a plausible response when no credential is
// configured or the live call failed. The result is tagged simulated so
// callers can tell it apart from a real answer.
func mockResponse(req *models.AIRequest, started time.Time) *models.AIResponse {
	preview := req.Prompt
	if len(preview) > promptPreviewLen {
		preview = preview[:promptPreviewLen]
	}

	var text string

	switch req.Provider {
	case "openai":
		text = fmt.Sprintf("AI-generated response from %s: This is a simulated response to %q. No live provider was reached.", req.Model, preview)
	case "anthropic":
		text = fmt.Sprintf("Claude response: I understand you're asking about %q. This is a simulated response for demonstration purposes.", preview)
	case "google":
		text = fmt.Sprintf("Gemini response: Based on your request about %q, here's my analysis. This is a simulated response.", preview)
	case "huggingface":
		text = "HuggingFace model response: Generated text based on your input. This is a simulated response."
	default:
		text = "Simulated AI response."
	}

	return &models.AIResponse{
		Success:        true,
		Data:           text,
		Model:          req.Model,
		Origin:         models.OriginSimulated,
		TokensUsed:     rand.Intn(100) + 50,
		EstimatedCost:  0.001,
		ProcessingTime: time.Since(started),
	}
}
