package llmclient

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/smellak/browser-worker-agent/api/schemas"
)

// RateLimitedClient paces requests to a wrapped client. Concurrent runs share
// one instance so the provider sees a single request budget.
type RateLimitedClient struct {
	next    schemas.LLMClient
	limiter *rate.Limiter
}

// NewRateLimitedClient wraps next with a token bucket allowing rps requests
// per second. A non-positive rps disables pacing.
func NewRateLimitedClient(next schemas.LLMClient, rps float64) *RateLimitedClient {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	return &RateLimitedClient{
		next:    next,
		limiter: rate.NewLimiter(limit, 1),
	}
}

// Generate waits for a token, then delegates.
func (r *RateLimitedClient) Generate(ctx context.Context, req schemas.GenerationRequest) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("llm rate limiter: %w", err)
	}
	return r.next.Generate(ctx, req)
}

func (r *RateLimitedClient) Close() error {
	return r.next.Close()
}
