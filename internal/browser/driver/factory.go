// Package driver selects the rendering engine adapter from configuration.
package driver

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/smellak/browser-worker-agent/internal/browser"
	"github.com/smellak/browser-worker-agent/internal/browser/cdp"
	"github.com/smellak/browser-worker-agent/internal/browser/rodpage"
	"github.com/smellak/browser-worker-agent/internal/config"
)

// NewLauncher returns the browser.Launcher configured by cfg.Driver.
func NewLauncher(cfg config.BrowserConfig, logger *zap.Logger) (browser.Launcher, error) {
	switch cfg.Driver {
	case config.DriverChromedp, "":
		return cdp.NewLauncher(cfg, logger), nil
	case config.DriverRod:
		return rodpage.NewLauncher(cfg, logger), nil
	default:
		return nil, fmt.Errorf("unknown or unsupported browser driver configured: '%s'. Supported: [%s, %s]", cfg.Driver, config.DriverChromedp, config.DriverRod)
	}
}
