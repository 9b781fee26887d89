// internal/browser/cdp/context_utils.go
package cdp

import (
	"context"
	"time"
)

// CombineContext returns a context that carries the values of sessionCtx (the
// chromedp target) and is canceled when either sessionCtx or opCtx is done.
// The operation deadline lives on opCtx so it never cancels the browser itself.
func CombineContext(sessionCtx, opCtx context.Context) (context.Context, context.CancelFunc) {
	combinedCtx, cancel := context.WithCancel(sessionCtx)

	go func() {
		select {
		case <-opCtx.Done():
			cancel()
		case <-combinedCtx.Done():
		}
	}()

	return combinedCtx, cancel
}

// valueOnlyContext keeps the parent's values but drops its deadline and cancellation.
type valueOnlyContext struct {
	context.Context
}

func (valueOnlyContext) Deadline() (deadline time.Time, ok bool) { return }
func (valueOnlyContext) Done() <-chan struct{}                   { return nil }
func (valueOnlyContext) Err() error                              { return nil }

// Detach returns a context with the values of ctx that is never canceled.
// The browser process is parented on it so that it lives until Page.Close,
// not until the launch request returns.
func Detach(ctx context.Context) context.Context {
	return valueOnlyContext{ctx}
}
