// File: internal/mocks/mocks.go
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/smellak/browser-worker-agent/api/schemas"
)

// -- LLM Client Mock --

// MockLLMClient mocks the schemas.LLMClient interface.
type MockLLMClient struct {
	mock.Mock
}

func (m *MockLLMClient) Generate(ctx context.Context, req schemas.GenerationRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *MockLLMClient) Close() error {
	args := m.Called()
	return args.Error(0)
}

// -- Decision Oracle Mock --

// MockOracle mocks the schemas.DecisionOracle interface.
type MockOracle struct {
	mock.Mock
}

func (m *MockOracle) Decide(ctx context.Context, snapshot schemas.PageSnapshot, goal string, step, maxSteps int) schemas.Decision {
	args := m.Called(ctx, snapshot, goal, step, maxSteps)
	return args.Get(0).(schemas.Decision)
}

// -- Run Store Mock --

// MockRunStore mocks the schemas.RunStore interface.
type MockRunStore struct {
	mock.Mock
}

func (m *MockRunStore) SaveRun(ctx context.Context, result schemas.RunResult) error {
	args := m.Called(ctx, result)
	return args.Error(0)
}

func (m *MockRunStore) GetRun(ctx context.Context, runID string) (*schemas.RunResult, error) {
	args := m.Called(ctx, runID)
	if r := args.Get(0); r != nil {
		return r.(*schemas.RunResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRunStore) Close() error {
	args := m.Called()
	return args.Error(0)
}

// Decision builds a decision value for test setup.
func Decision(action schemas.ActionType, reason string, target *int) schemas.Decision {
	return schemas.Decision{Action: action, Reason: reason, TargetIndex: target, NoteForExtraction: "N/A"}
}

// IntPtr returns a pointer to i.
func IntPtr(i int) *int { return &i }
