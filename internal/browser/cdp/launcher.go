// internal/browser/cdp/launcher.go
package cdp

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/smellak/browser-worker-agent/internal/browser"
	"github.com/smellak/browser-worker-agent/internal/config"
)

const defaultLaunchTimeout = 30 * time.Second

// Launcher starts one headless Chrome per run through chromedp.
type Launcher struct {
	cfg           config.BrowserConfig
	logger        *zap.Logger
	launchTimeout time.Duration
}

var _ browser.Launcher = (*Launcher)(nil)

// NewLauncher creates a chromedp backed launcher.
func NewLauncher(cfg config.BrowserConfig, logger *zap.Logger) *Launcher {
	return &Launcher{
		cfg:           cfg,
		logger:        logger.Named("cdp"),
		launchTimeout: defaultLaunchTimeout,
	}
}

// Launch starts the browser process, opens a tab and applies the viewport.
// The browser lives until the returned page is closed.
func (l *Launcher) Launch(ctx context.Context) (browser.Page, error) {
	l.logger.Debug("Initializing browser allocator...")

	allocCtx, allocCancel := chromedp.NewExecAllocator(Detach(ctx), AllocatorOptions(l.cfg)...)

	var ctxOpts []chromedp.ContextOption
	if l.cfg.Debug {
		ctxOpts = append(ctxOpts, chromedp.WithDebugf(l.logger.Sugar().Debugf))
	}
	ctxOpts = append(ctxOpts, chromedp.WithErrorf(l.logger.Sugar().Warnf))
	tabCtx, tabCancel := chromedp.NewContext(allocCtx, ctxOpts...)

	width, height := l.cfg.ViewportSize()

	// The first Run allocates the browser and binds its lifetime to tabCtx, so
	// it must not run on a context with a deadline. The timeout is enforced here instead.
	started := make(chan error, 1)
	go func() {
		started <- chromedp.Run(tabCtx, chromedp.EmulateViewport(int64(width), int64(height)))
	}()

	timer := time.NewTimer(l.launchTimeout)
	defer timer.Stop()

	var err error
	select {
	case err = <-started:
	case <-timer.C:
		err = fmt.Errorf("browser did not respond within %s", l.launchTimeout)
	case <-ctx.Done():
		err = ctx.Err()
	}
	if err != nil {
		tabCancel()
		allocCancel()
		return nil, fmt.Errorf("browser failed to start or respond: %w", err)
	}

	l.logger.Info("Browser launched.", zap.Int("viewport_width", width), zap.Int("viewport_height", height))
	return newPage(tabCtx, tabCancel, allocCancel, l.logger), nil
}

// AllocatorOptions assembles the Chrome flags for a run's browser.
func AllocatorOptions(cfg config.BrowserConfig) []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)

	for name, value := range AllocatorFlags(cfg) {
		opts = append(opts, chromedp.Flag(name, value))
	}

	width, height := cfg.ViewportSize()
	opts = append(opts, chromedp.WindowSize(width, height))

	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	return opts
}

// AllocatorFlags returns the command line flags applied on top of chromedp's
// defaults. A false value removes a default flag.
func AllocatorFlags(cfg config.BrowserConfig) map[string]interface{} {
	flags := map[string]interface{}{
		"headless":                  cfg.Headless,
		"ignore-certificate-errors": cfg.IgnoreTLSErrors,
		"disable-gpu":               cfg.Headless,
		"disable-extensions":        true,
	}

	if cfg.Stealth {
		flags["enable-automation"] = false
		flags["disable-blink-features"] = "AutomationControlled"
	}

	// Flags required for running inside containers.
	if runtime.GOOS == "linux" {
		flags["no-sandbox"] = true
		flags["disable-dev-shm-usage"] = true
		flags["disable-setuid-sandbox"] = true
	}

	for _, arg := range cfg.Args {
		parts := strings.SplitN(arg, "=", 2)
		name := strings.TrimPrefix(parts[0], "--")
		if name == "" {
			continue
		}
		if len(parts) == 2 {
			flags[name] = parts[1]
		} else {
			flags[name] = true
		}
	}
	return flags
}
