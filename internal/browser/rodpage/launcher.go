// Package rodpage implements browser.Page on go-rod with stealth evasions.
package rodpage

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"go.uber.org/zap"

	"github.com/smellak/browser-worker-agent/internal/browser"
	"github.com/smellak/browser-worker-agent/internal/config"
)

// Launcher starts a local Chrome through the rod launcher, one per run.
type Launcher struct {
	cfg    config.BrowserConfig
	logger *zap.Logger
}

var _ browser.Launcher = (*Launcher)(nil)

// NewLauncher creates a rod backed launcher.
func NewLauncher(cfg config.BrowserConfig, logger *zap.Logger) *Launcher {
	return &Launcher{cfg: cfg, logger: logger.Named("rod")}
}

// Launch starts Chrome, connects, and opens a single page.
func (l *Launcher) Launch(ctx context.Context) (browser.Page, error) {
	lnch := l.newChromeLauncher().Context(ctx)

	wsURL, err := lnch.Launch()
	if err != nil {
		return nil, fmt.Errorf("browser: launch: %w", err)
	}

	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		lnch.Kill()
		return nil, fmt.Errorf("browser: connect: %w", err)
	}

	if l.cfg.IgnoreTLSErrors {
		if err := b.IgnoreCertErrors(true); err != nil {
			l.logger.Warn("Failed to ignore certificate errors.", zap.Error(err))
		}
	}

	var p *rod.Page
	if l.cfg.Stealth {
		p, err = stealth.Page(b)
	} else {
		p, err = b.Page(proto.TargetCreateTarget{URL: ""})
	}
	if err != nil {
		_ = b.Close()
		lnch.Kill()
		return nil, fmt.Errorf("browser: create page: %w", err)
	}

	width, height := l.cfg.ViewportSize()
	if err := p.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             width,
		Height:            height,
		DeviceScaleFactor: 1,
	}); err != nil {
		l.logger.Warn("Failed to set viewport.", zap.Error(err))
	}

	l.logger.Info("Browser launched.", zap.String("control_url", wsURL), zap.Bool("stealth", l.cfg.Stealth))
	return &Page{browser: b, page: p, launcher: lnch, logger: l.logger}, nil
}

func (l *Launcher) newChromeLauncher() *launcher.Launcher {
	lnch := launcher.New().
		Headless(l.cfg.Headless).
		Leakless(false)

	if l.cfg.ExecPath != "" {
		lnch = lnch.Bin(l.cfg.ExecPath)
	}
	if l.cfg.Stealth {
		lnch = lnch.Set("disable-blink-features", "AutomationControlled")
	}
	width, height := l.cfg.ViewportSize()
	lnch = lnch.Set("window-size", fmt.Sprintf("%d,%d", width, height))

	for _, arg := range l.cfg.Args {
		parts := strings.SplitN(arg, "=", 2)
		name := strings.TrimPrefix(parts[0], "--")
		if name == "" {
			continue
		}
		if len(parts) == 2 {
			lnch = lnch.Set(flags.Flag(name), parts[1])
		} else {
			lnch = lnch.Set(flags.Flag(name))
		}
	}
	return lnch
}
