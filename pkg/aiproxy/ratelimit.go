package aiproxy

import (
	"context"
	"sync"
	"time"
)

// RateWindow is the fixed interval over which per-user request ceilings are
// enforced.
const RateWindow = time.Minute

var defaultRateLimits = map[string]int{
	"openai":      60,
	"anthropic":   50,
	"google":      60,
	"huggingface": 100,
	"stability":   30,
	"cohere":      60,
}

const fallbackRateLimit = 60

// RateLimit returns the per-window request ceiling for a provider.
func RateLimit(provider string) int {
	if limit, ok := defaultRateLimits[provider]; ok {
		return limit
	}

	return fallbackRateLimit
}

// RateLimiter admits or rejects a request for a (user, provider) pair.
type RateLimiter interface {
	Allow(ctx context.Context, userID, provider string) (bool, error)
}

type window struct {
	count   int
	resetAt time.Time
}

// MemoryRateLimiter is a fixed-window counter over an in-process map. Expired
// windows reset lazily the next time their key is touched.
type MemoryRateLimiter struct {
	mu      sync.Mutex
	windows map[string]*window
	now     func() time.Time
}

func NewMemoryRateLimiter() *MemoryRateLimiter {
	return &MemoryRateLimiter{
		windows: make(map[string]*window),
		now:     time.Now,
	}
}

func (l *MemoryRateLimiter) Allow(_ context.Context, userID, provider string) (bool, error) {
	key := userID + ":" + provider
	limit := RateLimit(provider)
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	current, ok := l.windows[key]
	if !ok || now.After(current.resetAt) {
		l.windows[key] = &window{count: 1, resetAt: now.Add(RateWindow)}

		return true, nil
	}

	if current.count >= limit {
		return false, nil
	}

	current.count++

	return true, nil
}
