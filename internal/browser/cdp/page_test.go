// internal/browser/cdp/page_test.go
package cdp

import (
	"context"
	"testing"

	"github.com/chromedp/chromedp"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/smellak/browser-worker-agent/internal/browser"
	"github.com/smellak/browser-worker-agent/internal/browser/browsertest"
	"github.com/smellak/browser-worker-agent/internal/config"
)

func TestPage_AgainstChrome(t *testing.T) {
	execPath := browsertest.ChromePath(t)

	browsertest.RunPageSuite(t, browsertest.Driver{
		Launch: func(ctx context.Context, t *testing.T) browser.Page {
			l := NewLauncher(config.BrowserConfig{
				Headless: true,
				ExecPath: execPath,
				Viewport: map[string]int{"width": 1024, "height": 768},
			}, zaptest.NewLogger(t))

			p, err := l.Launch(ctx)
			require.NoError(t, err)
			return p
		},
		ScrollY: func(ctx context.Context, p browser.Page) (float64, error) {
			var y float64
			err := p.(*Page).run(ctx, chromedp.Evaluate(`window.scrollY`, &y))
			return y, err
		},
	})
}

func TestPage_ClosedPageRejectsWork(t *testing.T) {
	execPath := browsertest.ChromePath(t)
	l := NewLauncher(config.BrowserConfig{Headless: true, ExecPath: execPath}, zaptest.NewLogger(t))

	p, err := l.Launch(context.Background())
	require.NoError(t, err)
	require.NoError(t, p.Close(context.Background()))

	_, err = p.Title(context.Background())
	require.Error(t, err)
}
