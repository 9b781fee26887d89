// Package browsertest holds the fixture site and the behaviour suite every
// browser.Page driver must pass against a real Chrome.
package browsertest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smellak/browser-worker-agent/api/schemas"
	"github.com/smellak/browser-worker-agent/internal/browser"
)

// ChromeBinEnv overrides the Chrome lookup for browser tests.
const ChromeBinEnv = "CHROME_BIN"

const (
	suiteTimeout = 3 * time.Minute
	pollEvery    = 50 * time.Millisecond
	settleWithin = 10 * time.Second
)

// Fixture page titles.
const (
	IndexTitle  = "Fixture Index"
	SecondTitle = "Fixture Second"
)

// Buttons come first in the document so the suite can tell that Elements
// filters by kind and keeps document order within a kind.
const indexHTML = `<!DOCTYPE html>
<html>
<head><title>` + IndexTitle + `</title></head>
<body style="margin:0">
  <h1>Welcome to the fixture</h1>
  <button type="button">Subscribe</button>
  <p style="display:none">Hidden copy</p>
  <a href="/second">Second page</a>
  <a href="/second#pricing">Pricing</a>
  <button type="button">Contact sales</button>
  <div style="height:6000px">Tall filler</div>
</body>
</html>`

const secondHTML = `<!DOCTYPE html>
<html>
<head><title>` + SecondTitle + `</title></head>
<body><p>Plans start at $10</p></body>
</html>`

// An SVG document has no body element.
const bodilessSVG = `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="100" height="100"><title>Bodiless</title><rect width="10" height="10"/></svg>`

// ChromePath returns a local Chrome binary, or skips the test when none is
// available or when running with -short.
func ChromePath(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("browser tests launch Chrome; skipped with -short")
	}
	if p := os.Getenv(ChromeBinEnv); p != "" {
		return p
	}
	for _, name := range []string{"headless-shell", "chromium", "chromium-browser", "google-chrome", "google-chrome-stable"} {
		if p, err := exec.LookPath(name); err == nil {
			return p
		}
	}
	t.Skipf("no Chrome binary found; set %s to run browser tests", ChromeBinEnv)
	return ""
}

// NewFixtureServer serves the fixture site until the test ends.
func NewFixtureServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	serve := func(contentType, body string) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", contentType)
			w.WriteHeader(http.StatusOK)
			fmt.Fprint(w, body)
		}
	}
	mux.HandleFunc("/", serve("text/html; charset=utf-8", indexHTML))
	mux.HandleFunc("/second", serve("text/html; charset=utf-8", secondHTML))
	mux.HandleFunc("/bodiless", serve("image/svg+xml", bodilessSVG))

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

// Driver adapts one browser.Page implementation to the suite.
type Driver struct {
	// Launch returns a fresh page; the suite closes it.
	Launch func(ctx context.Context, t *testing.T) browser.Page
	// ScrollY reads window.scrollY from the page's current document.
	ScrollY func(ctx context.Context, p browser.Page) (float64, error)
}

// RunPageSuite exercises a driver against the fixture site.
func RunPageSuite(t *testing.T, d Driver) {
	server := NewFixtureServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), suiteTimeout)
	t.Cleanup(cancel)

	open := func(t *testing.T) browser.Page {
		t.Helper()
		p := d.Launch(ctx, t)
		t.Cleanup(func() { _ = p.Close(context.Background()) })
		return p
	}

	t.Run("NavigateStrategies", func(t *testing.T) {
		p := open(t)
		for _, wait := range browser.NavigationStrategies {
			wait := wait
			t.Run(string(wait), func(t *testing.T) {
				target := server.URL + "/?via=" + string(wait)
				require.NoError(t, p.Navigate(ctx, target, wait))

				// WaitNone only promises a committed navigation.
				assert.Eventually(t, func() bool {
					title, err := p.Title(ctx)
					if err != nil || title != IndexTitle {
						return false
					}
					u, err := p.URL(ctx)
					return err == nil && u == target
				}, settleWithin, pollEvery)
			})
		}
	})

	t.Run("NavigateUnsupportedStrategy", func(t *testing.T) {
		p := open(t)
		assert.Error(t, p.Navigate(ctx, server.URL, browser.WaitStrategy("load")))
	})

	t.Run("BodyTextIsRenderedText", func(t *testing.T) {
		p := open(t)
		require.NoError(t, p.Navigate(ctx, server.URL, browser.WaitNetworkIdle))

		text, err := p.BodyText(ctx)
		require.NoError(t, err)
		assert.Contains(t, text, "Welcome to the fixture")
		assert.Contains(t, text, "Second page")
		assert.NotContains(t, text, "Hidden copy")
	})

	t.Run("BodyTextWithoutBody", func(t *testing.T) {
		p := open(t)
		require.NoError(t, p.Navigate(ctx, server.URL+"/bodiless", browser.WaitNetworkIdle))

		_, err := p.BodyText(ctx)
		assert.True(t, errors.Is(err, browser.ErrNoBody), "got %v", err)
	})

	t.Run("ElementsByKindInDocumentOrder", func(t *testing.T) {
		p := open(t)
		require.NoError(t, p.Navigate(ctx, server.URL, browser.WaitNetworkIdle))

		assert.Equal(t, []string{"Second page", "Pricing"}, elementTexts(ctx, t, p, schemas.KindLink))
		assert.Equal(t, []string{"Subscribe", "Contact sales"}, elementTexts(ctx, t, p, schemas.KindButton))
	})

	t.Run("ElementsNoneFound", func(t *testing.T) {
		p := open(t)
		require.NoError(t, p.Navigate(ctx, server.URL+"/second", browser.WaitNetworkIdle))

		els, err := p.Elements(ctx, schemas.KindButton)
		require.NoError(t, err)
		assert.Empty(t, els)
	})

	t.Run("ClickNavigatesThenWaitLoad", func(t *testing.T) {
		p := open(t)
		require.NoError(t, p.Navigate(ctx, server.URL, browser.WaitNetworkIdle))

		links, err := p.Elements(ctx, schemas.KindLink)
		require.NoError(t, err)
		require.NotEmpty(t, links)
		require.NoError(t, links[0].Click(ctx))

		assert.Eventually(t, func() bool {
			u, err := p.URL(ctx)
			return err == nil && strings.HasSuffix(u, "/second")
		}, settleWithin, pollEvery)
		require.NoError(t, p.WaitLoad(ctx))

		title, err := p.Title(ctx)
		require.NoError(t, err)
		assert.Equal(t, SecondTitle, title)
		text, err := p.BodyText(ctx)
		require.NoError(t, err)
		assert.Contains(t, text, "Plans start at $10")
	})

	t.Run("ScrollMovesViewport", func(t *testing.T) {
		p := open(t)
		require.NoError(t, p.Navigate(ctx, server.URL, browser.WaitNetworkIdle))

		require.NoError(t, p.Scroll(ctx, 2000))
		assert.Eventually(t, func() bool {
			y, err := d.ScrollY(ctx, p)
			return err == nil && y > 0
		}, settleWithin, pollEvery)
	})

	t.Run("CloseIsIdempotent", func(t *testing.T) {
		p := d.Launch(ctx, t)
		require.NoError(t, p.Close(ctx))
		assert.NoError(t, p.Close(ctx))
	})
}

func elementTexts(ctx context.Context, t *testing.T, p browser.Page, kind schemas.ElementKind) []string {
	t.Helper()
	els, err := p.Elements(ctx, kind)
	require.NoError(t, err)

	texts := make([]string, 0, len(els))
	for _, el := range els {
		text, err := el.Text(ctx)
		require.NoError(t, err)
		texts = append(texts, strings.TrimSpace(text))
	}
	return texts
}
