// File: cmd/components.go
package cmd

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/smellak/browser-worker-agent/api/schemas"
	"github.com/smellak/browser-worker-agent/internal/agent"
	"github.com/smellak/browser-worker-agent/internal/browser/driver"
	"github.com/smellak/browser-worker-agent/internal/config"
	"github.com/smellak/browser-worker-agent/internal/llmclient"
	"github.com/smellak/browser-worker-agent/internal/oracle"
	"github.com/smellak/browser-worker-agent/internal/server"
	"github.com/smellak/browser-worker-agent/internal/store"
)

// components holds the long-lived collaborators of a command.
type components struct {
	Runner server.Runner
	Store  schemas.RunStore
	llm    schemas.LLMClient
	logger *zap.Logger
}

// initComponents is a variable so tests can substitute fakes.
var initComponents = initializeComponents

// initializeComponents wires driver, oracle, navigator and, when enabled, the
// run archive. The caller must check credentials first.
func initializeComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*components, error) {
	c := &components{logger: logger}

	launcher, err := driver.NewLauncher(cfg.Browser, logger)
	if err != nil {
		return nil, err
	}

	llm, err := llmclient.NewClient(ctx, cfg.Agent.LLM, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM client: %w", err)
	}
	c.llm = llm

	decider := oracle.NewClient(llm, cfg.Agent.LLM, logger)
	c.Runner = agent.NewNavigator(launcher, decider, cfg.Network, cfg.Agent, logger)

	if cfg.Store.Enabled {
		runStore, err := store.Open(ctx, cfg.Store.SQLitePath, logger)
		if err != nil {
			c.Shutdown()
			return nil, fmt.Errorf("failed to open run archive: %w", err)
		}
		c.Store = runStore
		logger.Info("Run archive enabled", zap.String("path", cfg.Store.SQLitePath))
	}
	return c, nil
}

// Shutdown releases the LLM client and archive. Safe on partial components.
func (c *components) Shutdown() {
	if c.Store != nil {
		if err := c.Store.Close(); err != nil {
			c.logger.Warn("Failed to close run archive", zap.Error(err))
		}
	}
	if c.llm != nil {
		if err := c.llm.Close(); err != nil {
			c.logger.Warn("Failed to close LLM client", zap.Error(err))
		}
	}
}
