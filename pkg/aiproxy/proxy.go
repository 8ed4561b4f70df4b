// Package aiproxy routes AI inference requests to external providers, adding
// per-user rate limiting, cost estimation, usage accounting, and a simulated
// fallback when no credential is configured or the live call fails.
package aiproxy

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aubira/flowd/pkg/models"
	"github.com/aubira/flowd/pkg/persistence"
)

// Proxy is the AI dispatch layer. Credentials map provider tags to API keys;
// providers without a usable key are served simulated responses.
type Proxy struct {
	credentials map[string]string
	limiter     RateLimiter
	gateway     persistence.Gateway
	client      *http.Client
	logger      *slog.Logger
}

// Option configures a Proxy.
type Option func(*Proxy)

// WithHTTPClient replaces the HTTP client used for provider calls.
func WithHTTPClient(client *http.Client) Option {
	return func(p *Proxy) { p.client = client }
}

// WithRateLimiter replaces the in-memory limiter, e.g. with the Redis one.
func WithRateLimiter(limiter RateLimiter) Option {
	return func(p *Proxy) { p.limiter = limiter }
}

// WithUsageGateway wires the persistence gateway usage records are emitted to.
func WithUsageGateway(gateway persistence.Gateway) Option {
	return func(p *Proxy) { p.gateway = gateway }
}

func New(credentials map[string]string, logger *slog.Logger, opts ...Option) *Proxy {
	p := &Proxy{
		credentials: credentials,
		limiter:     NewMemoryRateLimiter(),
		client:      &http.Client{Timeout: 60 * time.Second},
		logger:      logger.With("module", "aiproxy"),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Execute routes one request. Unsupported providers and exhausted rate
// windows are errors; a missing credential or a failed live call degrades to
// a simulated response tagged with OriginSimulated.
func (p *Proxy) Execute(ctx context.Context, req *models.AIRequest, userID string) (*models.AIResponse, error) {
	started := time.Now()

	p.logger.InfoContext(ctx, "Executing AI request",
		"provider", req.Provider, "model", req.Model, "node_id", req.NodeID, "user_id", userID)

	route, ok := providerRoutes[req.Provider]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, req.Provider)
	}

	if !p.hasCredential(req.Provider) {
		p.logger.InfoContext(ctx, "No credential configured, serving simulated response",
			"provider", req.Provider, "node_id", req.NodeID)

		return mockResponse(req, started), nil
	}

	allowed, err := p.limiter.Allow(ctx, userID, req.Provider)
	if err != nil {
		return nil, err
	}

	if !allowed {
		limit := RateLimit(req.Provider)
		p.logger.WarnContext(ctx, "Rate limit exceeded",
			"user_id", userID, "provider", req.Provider, "limit", limit)

		return nil, &RateLimitError{UserID: userID, Provider: req.Provider, Limit: limit}
	}

	response, err := route.call(ctx, p, route, req)
	if err != nil {
		p.logger.ErrorContext(ctx, "AI request failed, serving simulated response",
			"provider", req.Provider, "error", err, "node_id", req.NodeID)

		return mockResponse(req, started), nil
	}

	p.recordUsage(ctx, userID, req, response)

	return response, nil
}

func (p *Proxy) hasCredential(provider string) bool {
	key := p.credentials[provider]

	return key != "" && key != "demo-key"
}

// recordUsage emits an accounting record. Accounting failures are logged and
// never propagate.
func (p *Proxy) recordUsage(ctx context.Context, userID string, req *models.AIRequest, response *models.AIResponse) {
	if p.gateway == nil {
		return
	}

	if response.TokensUsed == 0 && response.EstimatedCost == 0 {
		return
	}

	usage := &models.AIUsage{
		UserID:          userID,
		ExecutionID:     req.ExecutionID,
		NodeExecutionID: req.NodeExecutionID,
		Provider:        req.Provider,
		Model:           req.Model,
		TokensUsed:      response.TokensUsed,
		EstimatedCost:   response.EstimatedCost,
		RequestData: map[string]any{
			"prompt": req.Prompt,
			"params": req.Params,
		},
		ResponseData: map[string]any{
			"response":        response.Data,
			"processing_time": response.ProcessingTime.Milliseconds(),
		},
		CreatedAt: time.Now().UTC(),
	}

	if err := p.gateway.InsertUsage(ctx, usage); err != nil {
		p.logger.ErrorContext(ctx, "Failed to record AI usage",
			"provider", req.Provider, "error", err)

		return
	}

	p.logger.InfoContext(ctx, "AI usage recorded",
		"provider", req.Provider, "model", req.Model,
		"tokens", response.TokensUsed, "cost", response.EstimatedCost)
}
