// internal/browser/cdp/page.go
package cdp

import (
	"context"
	"fmt"
	"sync"
	"time"

	cdpproto "github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/page"
	cdpruntime "github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/smellak/browser-worker-agent/api/schemas"
	"github.com/smellak/browser-worker-agent/internal/browser"
)

const (
	lifecycleNetworkIdle      = "networkIdle"
	lifecycleDOMContentLoaded = "DOMContentLoaded"

	bodyTextScript = `document.body ? document.body.innerText : null`
	innerTextFunc  = `function() { return (this.innerText || this.textContent || "").toString(); }`
	readyScript    = `document.readyState === "complete"`
)

// Page is a single chromedp tab. It owns the browser process it was launched with.
type Page struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	logger      *zap.Logger

	mu       sync.Mutex
	isClosed bool
}

var _ browser.Page = (*Page)(nil)

func newPage(ctx context.Context, cancel, allocCancel context.CancelFunc, logger *zap.Logger) *Page {
	return &Page{
		ctx:         ctx,
		cancel:      cancel,
		allocCancel: allocCancel,
		logger:      logger,
	}
}

// run executes actions on the tab, bounded by ctx.
func (p *Page) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := CombineContext(p.ctx, ctx)
	defer cancel()

	err := chromedp.Run(runCtx, actions...)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if p.ctx.Err() != nil {
			return fmt.Errorf("browser session closed: %w", p.ctx.Err())
		}
	}
	return err
}

// Navigate issues Page.navigate and waits according to wait. For
// WaitNetworkIdle and WaitDOMContentLoaded it blocks until the matching
// lifecycle event fires for the new loader; WaitNone returns once the
// navigation is committed. Chrome's own error text (DNS, refused connection)
// is surfaced as the error.
func (p *Page) Navigate(ctx context.Context, url string, wait browser.WaitStrategy) error {
	p.logger.Debug("Navigating.", zap.String("url", url), zap.String("wait", string(wait)))

	var eventName string
	switch wait {
	case browser.WaitNetworkIdle:
		eventName = lifecycleNetworkIdle
	case browser.WaitDOMContentLoaded:
		eventName = lifecycleDOMContentLoaded
	case browser.WaitNone:
		_, err := p.navigate(ctx, url)
		return err
	default:
		return fmt.Errorf("unsupported wait strategy %q", wait)
	}

	listenCtx, cancel := CombineContext(p.ctx, ctx)
	defer cancel()

	// Lifecycle events can arrive before Page.navigate returns the loader ID,
	// so they are buffered and matched afterwards.
	fired := make(chan cdpproto.LoaderID, 32)
	chromedp.ListenTarget(listenCtx, func(ev interface{}) {
		if e, ok := ev.(*page.EventLifecycleEvent); ok && e.Name == eventName {
			select {
			case fired <- e.LoaderID:
			default:
			}
		}
	})

	if err := p.run(ctx, page.SetLifecycleEventsEnabled(true)); err != nil {
		return fmt.Errorf("failed to enable lifecycle events: %w", err)
	}

	loaderID, err := p.navigate(ctx, url)
	if err != nil {
		return err
	}

	for {
		select {
		case id := <-fired:
			// Same-document navigations report no loader.
			if loaderID == "" || id == loaderID {
				return nil
			}
		case <-listenCtx.Done():
			if ctx.Err() != nil {
				return fmt.Errorf("waiting for %s: %w", eventName, ctx.Err())
			}
			return fmt.Errorf("waiting for %s: browser session closed", eventName)
		}
	}
}

// navigate sends Page.navigate and returns the loader ID of the new document.
func (p *Page) navigate(ctx context.Context, url string) (cdpproto.LoaderID, error) {
	var res page.NavigateReturns
	err := p.run(ctx, chromedp.ActionFunc(func(c context.Context) error {
		return cdpproto.Execute(c, page.CommandNavigate, page.Navigate(url), &res)
	}))
	if err != nil {
		return "", fmt.Errorf("navigation failed: %w", err)
	}
	if res.ErrorText != "" {
		return "", fmt.Errorf("navigation failed: %s", res.ErrorText)
	}
	return res.LoaderID, nil
}

// URL returns the location of the current document.
func (p *Page) URL(ctx context.Context) (string, error) {
	var loc string
	if err := p.run(ctx, chromedp.Location(&loc)); err != nil {
		return "", fmt.Errorf("failed to read location: %w", err)
	}
	return loc, nil
}

// Title returns document.title.
func (p *Page) Title(ctx context.Context) (string, error) {
	var title string
	if err := p.run(ctx, chromedp.Title(&title)); err != nil {
		return "", fmt.Errorf("failed to read title: %w", err)
	}
	return title, nil
}

// BodyText returns document.body.innerText, so hidden nodes and script
// contents are excluded. Documents without a body (SVG, some framesets)
// yield browser.ErrNoBody.
func (p *Page) BodyText(ctx context.Context) (string, error) {
	var text *string
	if err := p.run(ctx, chromedp.Evaluate(bodyTextScript, &text)); err != nil {
		return "", fmt.Errorf("failed to read body text: %w", err)
	}
	if text == nil {
		return "", browser.ErrNoBody
	}
	return *text, nil
}

// Elements returns every element of kind in document order. No match is an
// empty slice, not an error; the query does not wait for elements to appear.
func (p *Page) Elements(ctx context.Context, kind schemas.ElementKind) ([]browser.Element, error) {
	sel := browser.SelectorFor(kind)
	if sel == "" {
		return nil, fmt.Errorf("unsupported element kind %q", kind)
	}

	var nodes []*cdpproto.Node
	if err := p.run(ctx, chromedp.Nodes(sel, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0))); err != nil {
		return nil, fmt.Errorf("failed to query %q: %w", sel, err)
	}

	els := make([]browser.Element, 0, len(nodes))
	for _, n := range nodes {
		els = append(els, &element{page: p, node: n})
	}
	return els, nil
}

// Scroll dispatches a wheel event at the viewport center.
func (p *Page) Scroll(ctx context.Context, deltaY int) error {
	return p.run(ctx, chromedp.ActionFunc(func(c context.Context) error {
		var size struct {
			W float64 `json:"w"`
			H float64 `json:"h"`
		}
		if err := chromedp.Evaluate(`({w: window.innerWidth, h: window.innerHeight})`, &size).Do(c); err != nil {
			return fmt.Errorf("failed to read viewport: %w", err)
		}
		return input.DispatchMouseEvent(input.MouseWheel, size.W/2, size.H/2).
			WithDeltaX(0).
			WithDeltaY(float64(deltaY)).
			Do(c)
	}))
}

// WaitLoad waits for a body and a complete readyState.
func (p *Page) WaitLoad(ctx context.Context) error {
	var complete bool
	return p.run(ctx,
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Poll(readyScript, &complete, chromedp.WithPollingInterval(100*time.Millisecond)),
	)
}

// Close shuts the tab and the browser process. Safe to call more than once.
func (p *Page) Close(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.isClosed {
		return nil
	}
	p.isClosed = true

	// chromedp.Cancel closes the target gracefully before canceling the context.
	err := chromedp.Cancel(p.ctx)
	p.cancel()
	p.allocCancel()
	if err != nil {
		return fmt.Errorf("failed to close browser tab: %w", err)
	}
	p.logger.Debug("Browser closed.")
	return nil
}

// element is a DOM node captured by Elements.
type element struct {
	page *Page
	node *cdpproto.Node
}

// Text returns the node's innerText, falling back to textContent.
func (e *element) Text(ctx context.Context) (string, error) {
	var text string
	err := e.page.run(ctx, chromedp.ActionFunc(func(c context.Context) error {
		obj, err := dom.ResolveNode().WithBackendNodeID(e.node.BackendNodeID).Do(c)
		if err != nil {
			return fmt.Errorf("failed to resolve node: %w", err)
		}
		defer func() { _ = cdpruntime.ReleaseObject(obj.ObjectID).Do(c) }()

		return chromedp.CallFunctionOn(innerTextFunc, &text,
			func(p *cdpruntime.CallFunctionOnParams) *cdpruntime.CallFunctionOnParams {
				return p.WithObjectID(obj.ObjectID)
			},
		).Do(c)
	}))
	return text, err
}

// Click scrolls the node into view and sends a left click at its center.
func (e *element) Click(ctx context.Context) error {
	if err := e.page.run(ctx, chromedp.MouseClickNode(e.node)); err != nil {
		return fmt.Errorf("failed to click node: %w", err)
	}
	return nil
}
