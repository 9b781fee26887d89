// internal/agent/navigator.go
package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/smellak/browser-worker-agent/api/schemas"
	"github.com/smellak/browser-worker-agent/internal/browser"
	"github.com/smellak/browser-worker-agent/internal/config"
	"github.com/smellak/browser-worker-agent/internal/resolver"
	"github.com/smellak/browser-worker-agent/internal/snapshot"
)

const teardownTimeout = 10 * time.Second

// Navigator drives one bounded navigation run per call to Run. It holds no
// per-run state and may be shared by concurrent runs; each run launches its
// own browser.
type Navigator struct {
	launcher   browser.Launcher
	oracle     schemas.DecisionOracle
	builder    *snapshot.Builder
	resolver   *resolver.Resolver
	network    config.NetworkConfig
	runTimeout time.Duration
	logger     *zap.Logger
}

// NewNavigator wires the loop to its collaborators.
func NewNavigator(launcher browser.Launcher, oracle schemas.DecisionOracle, network config.NetworkConfig, agentCfg config.AgentConfig, logger *zap.Logger) *Navigator {
	logger = logger.Named("navigator")
	return &Navigator{
		launcher:   launcher,
		oracle:     oracle,
		builder:    snapshot.NewBuilder(logger),
		resolver:   resolver.New(logger, network.SettleTimeout),
		network:    network,
		runTimeout: agentCfg.RunTimeout,
		logger:     logger,
	}
}

// runState is the append-only progress of a single run.
type runState struct {
	logger    *zap.Logger
	page      browser.Page
	goal      string
	maxSteps  int
	steps     []schemas.StepRecord
	aggregate []string
}

// Run executes the observe, decide, act loop for at most maxSteps steps. It
// never returns an error: fatal failures, including panics, end the run with
// an "error: " reason and keep whatever progress was made.
func (n *Navigator) Run(ctx context.Context, startURL, goal string, maxSteps int) (result schemas.RunResult) {
	runID := uuid.NewString()
	st := &runState{
		logger:    n.logger.With(zap.String("run_id", runID)),
		goal:      goal,
		maxSteps:  maxSteps,
		steps:     []schemas.StepRecord{},
		aggregate: []string{},
	}

	result = schemas.RunResult{
		RunID:    runID,
		StartURL: startURL,
		Goal:     goal,
		MaxSteps: maxSteps,
	}

	if n.runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.runTimeout)
		defer cancel()
	}

	start := time.Now()
	st.logger.Info("Run starting.", zap.String("url", startURL), zap.String("goal", goal), zap.Int("max_steps", maxSteps))

	defer func() {
		if r := recover(); r != nil {
			st.logger.Error("Run panicked, recovering.", zap.Any("panic", r), zap.Stack("stack"))
			result.FinishedReason = schemas.ErrorReason(fmt.Sprint(r))
		}
		result.Steps = st.steps
		result.AggregatedContent = strings.Join(st.aggregate, schemas.AggregateDelimiter)
		st.logger.Info("Run finished.",
			zap.String("finished_reason", result.FinishedReason),
			zap.Int("steps", len(result.Steps)),
			zap.Duration("duration", time.Since(start)),
		)
	}()

	reason, err := n.execute(ctx, st, startURL)
	if err != nil {
		st.logger.Error("Run failed.", zap.Error(err))
		reason = schemas.ErrorReason(err.Error())
	}
	result.FinishedReason = reason
	return result
}

// execute owns the browser for the duration of the run and returns the
// termination reason. Any returned error is fatal.
func (n *Navigator) execute(ctx context.Context, st *runState, startURL string) (string, error) {
	page, err := n.launcher.Launch(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to launch browser: %w", err)
	}
	st.page = page
	defer n.teardown(st)

	strategy, err := browser.NavigateWithFallback(ctx, page, startURL, n.network.NavigationTimeout, st.logger)
	if err != nil {
		return "", err
	}
	st.logger.Debug("Start page loaded.", zap.String("wait", string(strategy)))

	for step := 1; step <= st.maxSteps; step++ {
		if err := ctx.Err(); err != nil {
			return "", fmt.Errorf("run interrupted before step %d: %w", step, err)
		}
		if reason, done := n.step(ctx, st, step); done {
			return reason, nil
		}
	}
	return schemas.ReasonMaxStepsReached, nil
}

// step runs one observe, decide, act iteration. done reports that the loop
// must stop with reason.
func (n *Navigator) step(ctx context.Context, st *runState, step int) (reason string, done bool) {
	snapCtx, cancel := withTimeout(ctx, n.network.NavigationTimeout)
	snap := n.builder.Build(snapCtx, st.page)
	cancel()

	if visible := strings.TrimSpace(snap.VisibleText); visible != "" {
		st.aggregate = append(st.aggregate, visible)
	}

	decision := n.oracle.Decide(ctx, snap, st.goal, step, st.maxSteps)
	st.steps = append(st.steps, schemas.StepRecord{
		Step:              step,
		URL:               snap.URL,
		Action:            decision.Action,
		Reason:            decision.Reason,
		TargetIndex:       decision.TargetIndex,
		NoteForExtraction: decision.NoteForExtraction,
	})
	record := &st.steps[len(st.steps)-1]

	// A run deadline or shutdown that lands during Decide yields the oracle's
	// finish fallback; it must not be reported as the model finishing.
	if err := ctx.Err(); err != nil {
		st.logger.Warn("Run interrupted while deciding.", zap.Int("step", step), zap.Error(err))
		return schemas.ErrorReason(fmt.Sprintf("run interrupted at step %d: %v", step, err)), true
	}

	st.logger.Info("Step decided.",
		zap.Int("step", step),
		zap.String("url", snap.URL),
		zap.String("action", string(decision.Action)),
		zap.Int("clickable_elements", len(snap.ClickableElements)),
	)

	switch decision.Action {
	case schemas.ActionFinish:
		return schemas.ReasonFinishAction, true
	case schemas.ActionScroll:
		n.scroll(ctx, st)
	case schemas.ActionClick:
		n.click(ctx, st, snap, record)
	default:
		return schemas.UnknownActionReason(decision.Action), true
	}
	return "", false
}

// scroll wheels the page down and waits for lazy content. Failures are
// logged and otherwise ignored.
func (n *Navigator) scroll(ctx context.Context, st *runState) {
	scrollCtx, cancel := withTimeout(ctx, n.network.SettleTimeout)
	err := st.page.Scroll(scrollCtx, n.network.ScrollDelta)
	cancel()

	if err != nil {
		st.logger.Debug("Scroll failed, continuing.", zap.Error(err))
	} else {
		pause(ctx, n.network.ScrollGestureWait)
	}
	pause(ctx, n.network.PostScrollWait)
}

// click redeems the decision's target index and annotates record when no
// click happened.
func (n *Navigator) click(ctx context.Context, st *runState, snap schemas.PageSnapshot, record *schemas.StepRecord) {
	if record.TargetIndex == nil {
		record.Reason += " (no target_index, click not attempted)"
		return
	}
	index := *record.TargetIndex

	clickCtx, cancel := withTimeout(ctx, n.network.NavigationTimeout)
	outcome, err := n.resolver.Resolve(clickCtx, st.page, snap, index)
	cancel()

	switch outcome {
	case resolver.OutcomeClicked:
		pause(ctx, n.network.PostClickWait)
	case resolver.OutcomeOutOfRange:
		record.Reason += fmt.Sprintf(" (target_index %d out of range, click not attempted)", index)
	case resolver.OutcomeNotFound:
		record.Reason += fmt.Sprintf(" (target_index %d not found on page, click not attempted)", index)
	default:
		st.logger.Warn("Click failed, continuing.", zap.Int("target_index", index), zap.Error(err))
		record.Reason += fmt.Sprintf(" (click failed: %v)", err)
	}
}

// teardown releases the browser. It must not change the run's outcome, so
// errors and panics from Close are only logged.
func (n *Navigator) teardown(st *runState) {
	ctx, cancel := context.WithTimeout(context.Background(), teardownTimeout)
	defer cancel()

	if err := closeQuietly(ctx, st.page); err != nil {
		st.logger.Warn("Browser teardown failed.", zap.Error(err))
	}
}

func closeQuietly(ctx context.Context, page browser.Page) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during close: %v", r)
		}
	}()
	return page.Close(ctx)
}

// withTimeout bounds ctx by d; a non-positive d leaves it unbounded.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// pause sleeps for d or until ctx is done.
func pause(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
