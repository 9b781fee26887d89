// Package oracle asks a language model for the next navigation action and
// folds every failure into a safe finish decision.
package oracle

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/smellak/browser-worker-agent/api/schemas"
	"github.com/smellak/browser-worker-agent/internal/config"
	"github.com/smellak/browser-worker-agent/internal/llmutil"
	"github.com/smellak/browser-worker-agent/internal/prompt"
)

const maxDiagnosticLen = 300

// Client implements schemas.DecisionOracle over an LLMClient.
type Client struct {
	llm         schemas.LLMClient
	logger      *zap.Logger
	timeout     time.Duration
	temperature float64
	maxTokens   int
}

var _ schemas.DecisionOracle = (*Client)(nil)

// NewClient builds an oracle. Each Decide call is bounded by the per attempt
// API timeout times the number of attempts the LLM client may make.
func NewClient(llm schemas.LLMClient, cfg config.LLMConfig, logger *zap.Logger) *Client {
	perAttempt := cfg.APITimeout
	if perAttempt <= 0 {
		perAttempt = 30 * time.Second
	}
	attempts := cfg.MaxRetries + 1
	if attempts < 1 {
		attempts = 1
	}
	return &Client{
		llm:         llm,
		logger:      logger.Named("oracle"),
		timeout:     perAttempt * time.Duration(attempts),
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}
}

// Decide returns the model's next action for the observed page. It never
// fails: transport and parse errors produce a finish decision whose reason
// carries the diagnostic.
func (c *Client) Decide(ctx context.Context, snapshot schemas.PageSnapshot, goal string, step, maxSteps int) schemas.Decision {
	req := schemas.GenerationRequest{
		SystemPrompt: prompt.SystemPrompt,
		UserPrompt:   prompt.Encode(snapshot, goal, step, maxSteps),
		Options: schemas.GenerationOptions{
			Temperature:     c.temperature,
			ForceJSONFormat: true,
			MaxTokens:       c.maxTokens,
		},
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	raw, err := c.llm.Generate(reqCtx, req)
	if err != nil {
		c.logger.Warn("Decision request failed, finishing run.", zap.Int("step", step), zap.Error(err))
		return Fallback(err)
	}

	decision, err := ParseDecision(raw)
	if err != nil {
		c.logger.Warn("Could not parse decision, finishing run.", zap.Int("step", step), zap.Error(err))
		return Fallback(err)
	}

	c.logger.Debug("Decision received.",
		zap.Int("step", step),
		zap.String("action", string(decision.Action)),
		zap.Any("target_index", decision.TargetIndex),
	)
	return decision
}

// Fallback is the decision used whenever the model's answer is unusable.
func Fallback(err error) schemas.Decision {
	diag := "unknown error"
	if err != nil {
		diag = err.Error()
	}
	diag = llmutil.Truncate(diag, maxDiagnosticLen)
	return schemas.Decision{
		Action:            schemas.ActionFinish,
		Reason:            fmt.Sprintf("%s: %s", schemas.DecisionFallbackReason, diag),
		NoteForExtraction: schemas.DecisionFallbackNote,
	}
}

// ParseDecision decodes a model response, optionally fenced, into a Decision.
// A missing, null or blank action means finish. Unrecognized actions are kept
// verbatim. target_index is accepted as a number or a numeric string.
func ParseDecision(raw string) (schemas.Decision, error) {
	parsed, err := llmutil.ParseJSONResponse[map[string]interface{}](raw)
	if err != nil {
		return schemas.Decision{}, err
	}
	fields := *parsed
	if fields == nil {
		return schemas.Decision{}, fmt.Errorf("model response is not a JSON object")
	}

	d := schemas.Decision{
		Action:            schemas.ActionFinish,
		Reason:            stringField(fields, "reason"),
		TargetIndex:       intField(fields, "target_index"),
		NoteForExtraction: stringField(fields, "note_for_extraction"),
	}
	if action := strings.TrimSpace(stringField(fields, "action")); action != "" {
		d.Action = schemas.ActionType(action)
	}
	return d, nil
}

func stringField(fields map[string]interface{}, key string) string {
	switch v := fields[key].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

func intField(fields map[string]interface{}, key string) *int {
	var f float64
	switch v := fields[key].(type) {
	case float64:
		f = v
	case string:
		s := strings.TrimSpace(v)
		if i, err := strconv.Atoi(s); err == nil {
			return &i
		}
		parsedFloat, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil
		}
		f = parsedFloat
	default:
		return nil
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || math.Abs(f) > math.MaxInt32 {
		return nil
	}
	i := int(f)
	return &i
}
