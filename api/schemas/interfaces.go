package schemas

import (
	"context"
)

// -- Store Interface --

// RunStore archives finished runs for later inspection. An archived run is
// never read back into a new run.
type RunStore interface {
	// SaveRun persists a finished run under its RunID.
	SaveRun(ctx context.Context, result RunResult) error
	// GetRun retrieves a previously archived run.
	GetRun(ctx context.Context, runID string) (*RunResult, error)
	Close() error
}

// -- LLM Client Schemas & Interface --

// GenerationOptions controls the sampling behavior of a single request.
type GenerationOptions struct {
	Temperature     float64 `json:"temperature"`       // Controls randomness. Lower is more deterministic.
	ForceJSONFormat bool    `json:"force_json_format"` // If true, asks the provider for a JSON response.
	MaxTokens       int     `json:"max_tokens"`
}

// GenerationRequest is one system plus user message exchange with a model.
type GenerationRequest struct {
	SystemPrompt string            `json:"system_prompt"`
	UserPrompt   string            `json:"user_prompt"`
	Options      GenerationOptions `json:"options"`
}

// LLMClient defines a standard interface for interacting with a Large Language
// Model, abstracting the specifics of the underlying provider.
type LLMClient interface {
	// Generate produces a text completion based on the provided request.
	Generate(ctx context.Context, req GenerationRequest) (string, error)
	// Close cleans up any resources held by the client.
	Close() error
}

// DecisionOracle turns an observed page into the next action.
// Implementations never fail; problems are folded into a finish decision.
type DecisionOracle interface {
	Decide(ctx context.Context, snapshot PageSnapshot, goal string, step, maxSteps int) Decision
}
