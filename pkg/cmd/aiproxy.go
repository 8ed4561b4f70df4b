package cmd

import (
	"log/slog"
	"os"

	"github.com/redis/go-redis/v9"

	"github.com/aubira/flowd/pkg/aiproxy"
	"github.com/aubira/flowd/pkg/persistence"
)

var credentialEnvVars = map[string]string{
	"openai":      "OPENAI_API_KEY",
	"anthropic":   "ANTHROPIC_API_KEY",
	"google":      "GOOGLE_API_KEY",
	"huggingface": "HUGGINGFACE_API_KEY",
	"stability":   "STABILITY_API_KEY",
	"cohere":      "COHERE_API_KEY",
}

// NewAIProxy builds the AI dispatch proxy with credentials taken from the
// environment. Providers without a key stay registered and serve simulated
// responses. REDIS_URL switches rate limiting from in-memory to Redis.
func NewAIProxy(gateway persistence.Gateway, logger *slog.Logger) *aiproxy.Proxy {
	credentials := make(map[string]string, len(credentialEnvVars))

	for provider, envVar := range credentialEnvVars {
		if key := os.Getenv(envVar); key != "" {
			credentials[provider] = key
		}
	}

	opts := []aiproxy.Option{aiproxy.WithUsageGateway(gateway)}

	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		redisOpts, err := redis.ParseURL(redisURL)
		if err != nil {
			panic("Invalid REDIS_URL: " + err.Error())
		}

		opts = append(opts, aiproxy.WithRateLimiter(aiproxy.NewRedisRateLimiter(redis.NewClient(redisOpts))))
	}

	return aiproxy.New(credentials, logger, opts...)
}
