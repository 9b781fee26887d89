package llmclient

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/smellak/browser-worker-agent/internal/config"
	"github.com/smellak/browser-worker-agent/internal/mocks"
)

func TestRateLimitedClient_Delegates(t *testing.T) {
	inner := new(mocks.MockLLMClient)
	inner.On("Generate", mock.Anything, createTestRequest()).Return("ok", nil).Twice()
	inner.On("Close").Return(nil).Once()

	client := NewRateLimitedClient(inner, 0)
	for i := 0; i < 2; i++ {
		out, err := client.Generate(context.Background(), createTestRequest())
		require.NoError(t, err)
		assert.Equal(t, "ok", out)
	}
	require.NoError(t, client.Close())
	inner.AssertExpectations(t)
}

func TestRateLimitedClient_Paces(t *testing.T) {
	inner := new(mocks.MockLLMClient)
	inner.On("Generate", mock.Anything, mock.Anything).Return("ok", nil)

	client := NewRateLimitedClient(inner, 10)
	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := client.Generate(context.Background(), createTestRequest())
		require.NoError(t, err)
	}
	// burst of one, then 100ms per request
	assert.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond)
}

func TestRateLimitedClient_CanceledContext(t *testing.T) {
	inner := new(mocks.MockLLMClient)
	client := NewRateLimitedClient(inner, 0.001)

	// drain the single burst token
	inner.On("Generate", mock.Anything, mock.Anything).Return("ok", nil).Once()
	_, err := client.Generate(context.Background(), createTestRequest())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = client.Generate(ctx, createTestRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "llm rate limiter")
	inner.AssertNumberOfCalls(t, "Generate", 1)
}

func TestNewClient_Providers(t *testing.T) {
	t.Run("openai", func(t *testing.T) {
		client, err := NewClient(context.Background(), getValidLLMConfig(config.ProviderOpenAI), zap.NewNop())
		require.NoError(t, err)
		limited, ok := client.(*RateLimitedClient)
		require.True(t, ok)
		assert.IsType(t, &OpenAIClient{}, limited.next)
	})

	t.Run("gemini", func(t *testing.T) {
		client, err := NewClient(context.Background(), getValidLLMConfig(config.ProviderGemini), zap.NewNop())
		require.NoError(t, err)
		limited, ok := client.(*RateLimitedClient)
		require.True(t, ok)
		assert.IsType(t, &GeminiClient{}, limited.next)
	})

	t.Run("unsupported", func(t *testing.T) {
		client, err := NewClient(context.Background(), getValidLLMConfig("claude"), zap.NewNop())
		assert.Nil(t, client)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown or unsupported LLM provider")
	})

	t.Run("missing credential", func(t *testing.T) {
		cfg := getValidLLMConfig(config.ProviderOpenAI)
		cfg.APIKey = ""
		_, err := NewClient(context.Background(), cfg, zap.NewNop())
		assert.ErrorIs(t, err, config.ErrMissingCredential)
	})
}
