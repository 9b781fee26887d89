// internal/browser/navigate_test.go
package browser_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/smellak/browser-worker-agent/api/schemas"
	"github.com/smellak/browser-worker-agent/internal/browser"
	"github.com/smellak/browser-worker-agent/internal/mocks"
)

func TestNavigateWithFallback_FirstStrategySucceeds(t *testing.T) {
	page := mocks.NewFakePage("about:blank", "", "")

	used, err := browser.NavigateWithFallback(context.Background(), page, "https://example.com", time.Second, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Equal(t, browser.WaitNetworkIdle, used)
	assert.Equal(t, []browser.WaitStrategy{browser.WaitNetworkIdle}, page.NavigateCalls)
	assert.Equal(t, "https://example.com", page.CurrentURL)
}

func TestNavigateWithFallback_FallsThroughInOrder(t *testing.T) {
	page := mocks.NewFakePage("about:blank", "", "")
	page.NavigateErrs = map[browser.WaitStrategy]error{
		browser.WaitNetworkIdle:      errors.New("idle never reached"),
		browser.WaitDOMContentLoaded: errors.New("dom timeout"),
	}

	used, err := browser.NavigateWithFallback(context.Background(), page, "https://example.com", time.Second, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Equal(t, browser.WaitNone, used)
	assert.Equal(t, browser.NavigationStrategies, page.NavigateCalls)
}

func TestNavigateWithFallback_AllFail(t *testing.T) {
	page := mocks.NewFakePage("about:blank", "", "")
	dnsErr := errors.New("net::ERR_NAME_NOT_RESOLVED")
	page.NavigateErrs = map[browser.WaitStrategy]error{
		browser.WaitNetworkIdle:      dnsErr,
		browser.WaitDOMContentLoaded: dnsErr,
		browser.WaitNone:             dnsErr,
	}

	_, err := browser.NavigateWithFallback(context.Background(), page, "https://nope.invalid", time.Second, zaptest.NewLogger(t))
	require.Error(t, err)
	assert.ErrorIs(t, err, dnsErr)
	assert.Contains(t, err.Error(), "all navigation strategies failed")
	assert.Contains(t, err.Error(), "networkidle")
	assert.Len(t, page.NavigateCalls, 3)
}

func TestNavigateWithFallback_CanceledContext(t *testing.T) {
	page := mocks.NewFakePage("about:blank", "", "")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := browser.NavigateWithFallback(ctx, page, "https://example.com", time.Second, zaptest.NewLogger(t))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, page.NavigateCalls)
}

func TestSelectorFor(t *testing.T) {
	assert.Equal(t, "a", browser.SelectorFor(schemas.KindLink))
	assert.Equal(t, "button", browser.SelectorFor(schemas.KindButton))
	assert.Equal(t, "", browser.SelectorFor("input"))
}
