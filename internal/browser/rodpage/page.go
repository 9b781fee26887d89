package rodpage

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"

	"github.com/smellak/browser-worker-agent/api/schemas"
	"github.com/smellak/browser-worker-agent/internal/browser"
)

const bodyTextJS = `() => document.body ? document.body.innerText : null`

// Page wraps a rod page and the browser process behind it.
type Page struct {
	browser  *rod.Browser
	page     *rod.Page
	launcher *launcher.Launcher
	logger   *zap.Logger

	mu     sync.Mutex
	closed bool
}

var _ browser.Page = (*Page)(nil)

// Navigate loads url and waits for the lifecycle event matching wait.
// WaitNone returns once the navigation is committed.
func (p *Page) Navigate(ctx context.Context, url string, wait browser.WaitStrategy) error {
	pg := p.page.Context(ctx)

	var event proto.PageLifecycleEventName
	switch wait {
	case browser.WaitNetworkIdle:
		event = proto.PageLifecycleEventNameNetworkIdle
	case browser.WaitDOMContentLoaded:
		event = proto.PageLifecycleEventNameDOMContentLoaded
	case browser.WaitNone:
		if err := pg.Navigate(url); err != nil {
			return fmt.Errorf("browser: navigate %s: %w", url, err)
		}
		return nil
	default:
		return fmt.Errorf("unsupported wait strategy %q", wait)
	}

	waitFn := pg.WaitNavigation(event)
	if err := pg.Navigate(url); err != nil {
		return fmt.Errorf("browser: navigate %s: %w", url, err)
	}
	waitFn()

	// WaitNavigation gives up silently when the context ends.
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("waiting for %s: %w", event, err)
	}
	return nil
}

// URL returns the target's current URL.
func (p *Page) URL(ctx context.Context) (string, error) {
	info, err := p.page.Context(ctx).Info()
	if err != nil {
		return "", fmt.Errorf("failed to read page info: %w", err)
	}
	return info.URL, nil
}

// Title returns the target's current title.
func (p *Page) Title(ctx context.Context) (string, error) {
	info, err := p.page.Context(ctx).Info()
	if err != nil {
		return "", fmt.Errorf("failed to read page info: %w", err)
	}
	return info.Title, nil
}

// BodyText returns document.body.innerText, or browser.ErrNoBody when the
// document has no body.
func (p *Page) BodyText(ctx context.Context) (string, error) {
	res, err := p.page.Context(ctx).Eval(bodyTextJS)
	if err != nil {
		return "", fmt.Errorf("failed to read body text: %w", err)
	}
	if res.Value.Nil() {
		return "", browser.ErrNoBody
	}
	return res.Value.Str(), nil
}

// Elements returns every element of kind in document order, or an empty
// slice when none match.
func (p *Page) Elements(ctx context.Context, kind schemas.ElementKind) ([]browser.Element, error) {
	sel := browser.SelectorFor(kind)
	if sel == "" {
		return nil, fmt.Errorf("unsupported element kind %q", kind)
	}

	found, err := p.page.Context(ctx).Elements(sel)
	if err != nil {
		return nil, fmt.Errorf("failed to query %q: %w", sel, err)
	}

	els := make([]browser.Element, 0, len(found))
	for _, el := range found {
		els = append(els, &element{el: el})
	}
	return els, nil
}

// Scroll dispatches a single wheel event of deltaY pixels at the mouse position.
func (p *Page) Scroll(ctx context.Context, deltaY int) error {
	return p.page.Context(ctx).Mouse.Scroll(0, float64(deltaY), 1)
}

// WaitLoad blocks until the window load event has fired.
func (p *Page) WaitLoad(ctx context.Context) error {
	return p.page.Context(ctx).WaitLoad()
}

// Close closes the browser and kills the launched process. Safe to call more than once.
func (p *Page) Close(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true

	err := p.browser.Close()
	if p.launcher != nil {
		p.launcher.Kill()
		p.launcher.Cleanup()
	}
	if err != nil {
		return fmt.Errorf("browser: close: %w", err)
	}
	return nil
}

// element is a rod element handle captured by Elements.
type element struct {
	el *rod.Element
}

// Text returns the element's innerText.
func (e *element) Text(ctx context.Context) (string, error) {
	return e.el.Context(ctx).Text()
}

// Click scrolls the element into view, waits for it to be interactable and
// sends one left click.
func (e *element) Click(ctx context.Context) error {
	return e.el.Context(ctx).Click(proto.InputMouseButtonLeft, 1)
}
