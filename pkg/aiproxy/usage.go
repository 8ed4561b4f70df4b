package aiproxy

import (
	"context"
	"time"

	"github.com/aubira/flowd/pkg/models"
)

// ProviderUsage is one provider's slice of a usage summary.
type ProviderUsage struct {
	Requests int     `json:"requests"`
	Tokens   int     `json:"tokens"`
	Cost     float64 `json:"cost"`
}

// UsageStats aggregates a user's AI consumption over a timeframe.
type UsageStats struct {
	TotalRequests     int                      `json:"total_requests"`
	TotalTokens       int                      `json:"total_tokens"`
	TotalCost         float64                  `json:"total_cost"`
	ProviderBreakdown map[string]ProviderUsage `json:"provider_breakdown"`
}

// UsageTimeframe selects the lookback period for usage stats.
type UsageTimeframe string

const (
	TimeframeDay   UsageTimeframe = "day"
	TimeframeWeek  UsageTimeframe = "week"
	TimeframeMonth UsageTimeframe = "month"
)

func (t UsageTimeframe) start(now time.Time) time.Time {
	switch t {
	case TimeframeDay:
		return now.Add(-24 * time.Hour)
	case TimeframeWeek:
		return now.Add(-7 * 24 * time.Hour)
	default:
		return now.Add(-30 * 24 * time.Hour)
	}
}

// UsageStats summarizes the user's recorded usage. Read failures degrade to
// an empty summary rather than an error.
func (p *Proxy) UsageStats(ctx context.Context, userID string, timeframe UsageTimeframe) *UsageStats {
	stats := &UsageStats{ProviderBreakdown: map[string]ProviderUsage{}}

	if p.gateway == nil {
		return stats
	}

	records, err := p.gateway.ListUsage(ctx, userID, timeframe.start(time.Now()))
	if err != nil {
		p.logger.ErrorContext(ctx, "Failed to load usage stats", "user_id", userID, "error", err)

		return stats
	}

	return aggregateUsage(records)
}

func aggregateUsage(records []*models.AIUsage) *UsageStats {
	stats := &UsageStats{
		TotalRequests:     len(records),
		ProviderBreakdown: map[string]ProviderUsage{},
	}

	for _, record := range records {
		stats.TotalTokens += record.TokensUsed
		stats.TotalCost += record.EstimatedCost

		entry := stats.ProviderBreakdown[record.Provider]
		entry.Requests++
		entry.Tokens += record.TokensUsed
		entry.Cost += record.EstimatedCost
		stats.ProviderBreakdown[record.Provider] = entry
	}

	return stats
}
