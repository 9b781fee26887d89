// internal/llmclient/factory.go
package llmclient

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/smellak/browser-worker-agent/api/schemas"
	"github.com/smellak/browser-worker-agent/internal/config"
)

// NewClient creates the LLMClient for the configured provider, paced by
// cfg.RequestsPerSecond.
func NewClient(ctx context.Context, cfg config.LLMConfig, logger *zap.Logger) (schemas.LLMClient, error) {
	var (
		client schemas.LLMClient
		err    error
	)

	switch cfg.Provider {
	case config.ProviderOpenAI:
		client, err = NewOpenAIClient(cfg, logger)
	case config.ProviderGemini:
		client, err = NewGeminiClient(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("unknown or unsupported LLM provider configured: '%s'. Supported: [%s, %s]", cfg.Provider, config.ProviderOpenAI, config.ProviderGemini)
	}
	if err != nil {
		return nil, err
	}

	logger.Debug("LLM client initialized",
		zap.String("provider", string(cfg.Provider)),
		zap.String("model", cfg.Model),
		zap.Float64("requests_per_second", cfg.RequestsPerSecond),
	)
	return NewRateLimitedClient(client, cfg.RequestsPerSecond), nil
}
