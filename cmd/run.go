// File: cmd/run.go
package cmd

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/smellak/browser-worker-agent/internal/observability"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const archiveTimeout = 10 * time.Second

// newRunCmd creates the `run` command: one navigation run, result on stdout.
func newRunCmd() *cobra.Command {
	var (
		goal     string
		maxSteps int
	)

	runCmd := &cobra.Command{
		Use:   "run <url>",
		Short: "Navigates from a URL toward a goal and prints the run result as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := configFromContext(ctx)
			if err != nil {
				return err
			}
			logger := observability.GetLogger()

			startURL, err := validateStartURL(args[0])
			if err != nil {
				return err
			}
			if strings.TrimSpace(goal) == "" {
				return fmt.Errorf("--goal must not be empty")
			}
			steps := cfg.Agent.DefaultMaxSteps
			if cmd.Flags().Changed("max-steps") {
				steps = maxSteps
			}
			if steps < 1 || steps > cfg.Agent.MaxStepsLimit {
				return fmt.Errorf("--max-steps must be between 1 and %d, got %d", cfg.Agent.MaxStepsLimit, steps)
			}

			// Checked before any browser work.
			if err := cfg.Agent.LLM.ValidateCredentials(); err != nil {
				return err
			}

			comps, err := initComponents(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer comps.Shutdown()

			result := comps.Runner.Run(ctx, startURL, strings.TrimSpace(goal), steps)

			if comps.Store != nil {
				saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), archiveTimeout)
				if err := comps.Store.SaveRun(saveCtx, result); err != nil {
					logger.Error("Failed to archive run", zap.String("run_id", result.RunID), zap.Error(err))
				}
				cancel()
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(result); err != nil {
				return fmt.Errorf("failed to write result: %w", err)
			}
			return nil
		},
	}

	runCmd.Flags().StringVarP(&goal, "goal", "g", "", "natural-language goal for the run (required)")
	runCmd.Flags().IntVarP(&maxSteps, "max-steps", "m", 0, "step budget (defaults to agent.default_max_steps)")
	runCmd.Flags().String("driver", "", "browser driver: chromedp or rod")
	runCmd.Flags().Bool("headless", true, "run the browser headless")
	_ = runCmd.MarkFlagRequired("goal")
	annotateFlag(runCmd, "driver", "browser.driver")
	annotateFlag(runCmd, "headless", "browser.headless")

	return runCmd
}

// validateStartURL accepts absolute http and https URLs only.
func validateStartURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("start URL must be an absolute http or https URL, got %q", raw)
	}
	return raw, nil
}
