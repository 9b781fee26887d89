// File: cmd/cmd_test.go
package cmd

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/smellak/browser-worker-agent/api/schemas"
	"github.com/smellak/browser-worker-agent/internal/config"
	"github.com/smellak/browser-worker-agent/internal/mocks"
)

type runCall struct {
	url      string
	goal     string
	maxSteps int
}

type fakeRunner struct {
	mu    sync.Mutex
	calls []runCall
}

func (f *fakeRunner) Run(ctx context.Context, startURL, goal string, maxSteps int) schemas.RunResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, runCall{startURL, goal, maxSteps})
	return schemas.RunResult{
		RunID:          "run-1",
		StartURL:       startURL,
		Goal:           goal,
		MaxSteps:       maxSteps,
		Steps:          []schemas.StepRecord{},
		FinishedReason: schemas.ReasonFinishAction,
	}
}

// isolateEnv clears every variable the config layer reads.
func isolateEnv(t *testing.T, apiKey string) {
	t.Helper()
	t.Setenv("OPENAI_API_KEY", apiKey)
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv(config.EnvPrefix+"_AGENT_LLM_API_KEY", "")
	t.Setenv("OPENAI_MODEL", "")
}

// stubComponents replaces initComponents for the duration of the test and
// captures the config it was called with.
func stubComponents(t *testing.T, comps *components) **config.Config {
	t.Helper()
	var captured *config.Config
	original := initComponents
	initComponents = func(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*components, error) {
		captured = cfg
		comps.logger = zap.NewNop()
		return comps, nil
	}
	t.Cleanup(func() { initComponents = original })
	return &captured
}

func forbidComponents(t *testing.T) {
	t.Helper()
	original := initComponents
	initComponents = func(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*components, error) {
		t.Error("components must not be initialized")
		return nil, errors.New("unexpected")
	}
	t.Cleanup(func() { initComponents = original })
}

func executeCommand(t *testing.T, ctx context.Context, args ...string) (string, error) {
	t.Helper()
	rootCmd := newRootCmd()
	out := new(bytes.Buffer)
	rootCmd.SetOut(out)
	rootCmd.SetErr(new(bytes.Buffer))
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(ctx)
	return out.String(), err
}

func createTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestRootCmd_VersionFlag(t *testing.T) {
	out, err := executeCommand(t, context.Background(), "--version")
	require.NoError(t, err)
	assert.Equal(t, Version+"\n", out)
}

func TestVersionCmd(t *testing.T) {
	isolateEnv(t, "")
	out, err := executeCommand(t, context.Background(), "version")
	require.NoError(t, err)
	assert.Contains(t, out, "browser-worker-agent "+Version)
}

func TestRunCmd_PrintsResultJSON(t *testing.T) {
	isolateEnv(t, "sk-test")
	runner := &fakeRunner{}
	stubComponents(t, &components{Runner: runner})

	out, err := executeCommand(t, context.Background(), "run", "https://example.com", "--goal", "find pricing", "--max-steps", "3")
	require.NoError(t, err)

	var result schemas.RunResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, "run-1", result.RunID)
	assert.Equal(t, schemas.ReasonFinishAction, result.FinishedReason)
	assert.Equal(t, []runCall{{"https://example.com", "find pricing", 3}}, runner.calls)
}

func TestRunCmd_DefaultMaxStepsFromConfigFile(t *testing.T) {
	isolateEnv(t, "sk-test")
	runner := &fakeRunner{}
	stubComponents(t, &components{Runner: runner})
	cfgPath := createTempConfig(t, "agent:\n  default_max_steps: 7\n")

	_, err := executeCommand(t, context.Background(), "run", "https://example.com", "-g", "g", "--config", cfgPath)
	require.NoError(t, err)
	require.Len(t, runner.calls, 1)
	assert.Equal(t, 7, runner.calls[0].maxSteps)
}

func TestRunCmd_EnvOverridesConfigFile(t *testing.T) {
	isolateEnv(t, "sk-test")
	t.Setenv(config.EnvPrefix+"_AGENT_DEFAULT_MAX_STEPS", "5")
	runner := &fakeRunner{}
	stubComponents(t, &components{Runner: runner})
	cfgPath := createTempConfig(t, "agent:\n  default_max_steps: 7\n")

	_, err := executeCommand(t, context.Background(), "run", "https://example.com", "-g", "g", "--config", cfgPath)
	require.NoError(t, err)
	require.Len(t, runner.calls, 1)
	assert.Equal(t, 5, runner.calls[0].maxSteps)
}

func TestRunCmd_DriverFlagOverridesConfig(t *testing.T) {
	isolateEnv(t, "sk-test")
	captured := stubComponents(t, &components{Runner: &fakeRunner{}})

	_, err := executeCommand(t, context.Background(), "run", "https://example.com", "-g", "g", "--driver", "rod")
	require.NoError(t, err)
	require.NotNil(t, *captured)
	assert.Equal(t, config.DriverRod, (*captured).Browser.Driver)
}

func TestRunCmd_InvalidDriverFailsValidation(t *testing.T) {
	isolateEnv(t, "sk-test")
	forbidComponents(t)

	_, err := executeCommand(t, context.Background(), "run", "https://example.com", "-g", "g", "--driver", "webkit")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "browser.driver")
}

func TestRunCmd_MissingCredential(t *testing.T) {
	isolateEnv(t, "")
	forbidComponents(t)

	_, err := executeCommand(t, context.Background(), "run", "https://example.com", "--goal", "g")
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrMissingCredential)
}

func TestRunCmd_InputValidation(t *testing.T) {
	cases := map[string][]string{
		"missing goal flag":  {"run", "https://example.com"},
		"blank goal":         {"run", "https://example.com", "--goal", "  "},
		"relative url":       {"run", "/pricing", "--goal", "g"},
		"unsupported scheme": {"run", "file:///etc/passwd", "--goal", "g"},
		"zero max steps":     {"run", "https://example.com", "--goal", "g", "--max-steps", "0"},
		"max steps too big":  {"run", "https://example.com", "--goal", "g", "--max-steps", "1000"},
		"no url":             {"run", "--goal", "g"},
	}
	for name, args := range cases {
		args := args
		t.Run(name, func(t *testing.T) {
			isolateEnv(t, "sk-test")
			forbidComponents(t)
			_, err := executeCommand(t, context.Background(), args...)
			assert.Error(t, err)
		})
	}
}

func TestRunCmd_ArchivesResult(t *testing.T) {
	isolateEnv(t, "sk-test")
	runStore := new(mocks.MockRunStore)
	runStore.On("SaveRun", mock.Anything, mock.MatchedBy(func(r schemas.RunResult) bool { return r.RunID == "run-1" })).Return(nil).Once()
	runStore.On("Close").Return(nil).Once()
	stubComponents(t, &components{Runner: &fakeRunner{}, Store: runStore})

	_, err := executeCommand(t, context.Background(), "run", "https://example.com", "-g", "g")
	require.NoError(t, err)
	runStore.AssertExpectations(t)
}

func TestServeCmd_StopsWhenContextCancelled(t *testing.T) {
	isolateEnv(t, "")
	forbidComponents(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := executeCommand(t, ctx, "serve", "--listen", "127.0.0.1:0")
	assert.NoError(t, err)
}

func TestServeCmd_RejectsArgs(t *testing.T) {
	_, err := executeCommand(t, context.Background(), "serve", "extra")
	assert.Error(t, err)
}
