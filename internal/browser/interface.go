// internal/browser/interface.go
package browser

import (
	"context"
	"errors"

	"github.com/smellak/browser-worker-agent/api/schemas"
)

// ErrNoBody is returned by Page.BodyText when the document has no body element.
var ErrNoBody = errors.New("document has no body element")

// WaitStrategy controls how long Navigate blocks after issuing the request.
type WaitStrategy string

const (
	// WaitNetworkIdle waits until the page reports no network activity.
	WaitNetworkIdle WaitStrategy = "networkidle"
	// WaitDOMContentLoaded waits for the DOMContentLoaded event.
	WaitDOMContentLoaded WaitStrategy = "domcontentloaded"
	// WaitNone returns as soon as the navigation has been committed.
	WaitNone WaitStrategy = "none"
)

// NavigationStrategies is the order in which initial navigation is attempted.
var NavigationStrategies = []WaitStrategy{WaitNetworkIdle, WaitDOMContentLoaded, WaitNone}

// Element is a live handle to a clickable element on the page.
// Handles become stale once the page navigates.
type Element interface {
	// Text returns the element's rendered inner text.
	Text(ctx context.Context) (string, error)
	// Click performs a left click on the element.
	Click(ctx context.Context) error
}

// Page is the capability surface the agent needs from a rendering engine.
// A Page is owned by exactly one run and is not safe for concurrent use.
type Page interface {
	Navigate(ctx context.Context, url string, wait WaitStrategy) error
	URL(ctx context.Context) (string, error)
	Title(ctx context.Context) (string, error)
	// BodyText returns document.body.innerText, or ErrNoBody.
	BodyText(ctx context.Context) (string, error)
	// Elements returns live elements of the given kind in document order.
	Elements(ctx context.Context, kind schemas.ElementKind) ([]Element, error)
	// Scroll dispatches a mouse wheel gesture of deltaY pixels.
	Scroll(ctx context.Context, deltaY int) error
	// WaitLoad blocks until the current document has finished loading.
	WaitLoad(ctx context.Context) error
	// Close releases the page and its browser process. Calling it more than once is a no-op.
	Close(ctx context.Context) error
}

// Launcher starts a fresh browser session with a single page.
type Launcher interface {
	Launch(ctx context.Context) (Page, error)
}

// SelectorFor maps an element kind to the CSS selector used to enumerate it.
func SelectorFor(kind schemas.ElementKind) string {
	switch kind {
	case schemas.KindLink:
		return "a"
	case schemas.KindButton:
		return "button"
	default:
		return ""
	}
}
