// File: internal/mocks/browser.go
package mocks

import (
	"context"
	"fmt"
	"sync"

	"github.com/smellak/browser-worker-agent/api/schemas"
	"github.com/smellak/browser-worker-agent/internal/browser"
)

// FakePage is an in-memory browser.Page. Tests mutate its exported fields
// (under Lock when a run is in flight) to script page behavior.
type FakePage struct {
	mu sync.Mutex

	CurrentURL string
	PageTitle  string
	Body       string
	NoBody     bool
	BodyErr    error
	TitleErr   error

	Links   []*FakeElement
	Buttons []*FakeElement

	// NavigateErrs fails Navigate for the given strategies.
	NavigateErrs map[browser.WaitStrategy]error
	// ElementsErrs fails Elements for the given kinds.
	ElementsErrs map[schemas.ElementKind]error
	ScrollErr    error
	WaitLoadErr  error
	CloseErr     error
	// ClosePanic makes Close panic, for teardown containment tests.
	ClosePanic bool

	// OnClick runs after an element click succeeds, with the page lock held.
	OnClick func(p *FakePage, el *FakeElement)

	NavigateCalls []browser.WaitStrategy
	ScrollCalls   []int
	Clicked       []string
	WaitLoads     int
	CloseCalls    int
}

var _ browser.Page = (*FakePage)(nil)

// NewFakePage returns a page showing url with the given title and body.
func NewFakePage(url, title, body string) *FakePage {
	return &FakePage{CurrentURL: url, PageTitle: title, Body: body}
}

// Lock and Unlock guard field mutation from test goroutines.
func (p *FakePage) Lock()   { p.mu.Lock() }
func (p *FakePage) Unlock() { p.mu.Unlock() }

// SetLinks replaces the link list with elements carrying the given texts.
func (p *FakePage) SetLinks(texts ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Links = p.newElements(texts)
}

// SetButtons replaces the button list with elements carrying the given texts.
func (p *FakePage) SetButtons(texts ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Buttons = p.newElements(texts)
}

func (p *FakePage) newElements(texts []string) []*FakeElement {
	els := make([]*FakeElement, 0, len(texts))
	for _, t := range texts {
		els = append(els, &FakeElement{Label: t, page: p})
	}
	return els
}

// ClickedTexts returns a copy of the texts of clicked elements.
func (p *FakePage) ClickedTexts() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.Clicked...)
}

// Closes returns how many times Close was called.
func (p *FakePage) Closes() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.CloseCalls
}

func (p *FakePage) Navigate(ctx context.Context, url string, wait browser.WaitStrategy) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.NavigateCalls = append(p.NavigateCalls, wait)
	if err := p.NavigateErrs[wait]; err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	p.CurrentURL = url
	return nil
}

func (p *FakePage) URL(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.CurrentURL, nil
}

func (p *FakePage) Title(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.PageTitle, p.TitleErr
}

func (p *FakePage) BodyText(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.BodyErr != nil {
		return "", p.BodyErr
	}
	if p.NoBody {
		return "", browser.ErrNoBody
	}
	return p.Body, nil
}

func (p *FakePage) Elements(ctx context.Context, kind schemas.ElementKind) ([]browser.Element, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ElementsErrs[kind]; err != nil {
		return nil, err
	}

	var src []*FakeElement
	switch kind {
	case schemas.KindLink:
		src = p.Links
	case schemas.KindButton:
		src = p.Buttons
	default:
		return nil, fmt.Errorf("unsupported element kind %q", kind)
	}

	out := make([]browser.Element, 0, len(src))
	for _, el := range src {
		out = append(out, el)
	}
	return out, nil
}

func (p *FakePage) Scroll(ctx context.Context, deltaY int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ScrollCalls = append(p.ScrollCalls, deltaY)
	return p.ScrollErr
}

func (p *FakePage) WaitLoad(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.WaitLoads++
	return p.WaitLoadErr
}

func (p *FakePage) Close(ctx context.Context) error {
	p.mu.Lock()
	p.CloseCalls++
	closePanic, err := p.ClosePanic, p.CloseErr
	p.mu.Unlock()
	if closePanic {
		panic("fake page close panic")
	}
	return err
}

// FakeElement is an element of a FakePage.
type FakeElement struct {
	Label    string
	TextErr  error
	ClickErr error
	page     *FakePage
}

var _ browser.Element = (*FakeElement)(nil)

func (e *FakeElement) Text(ctx context.Context) (string, error) {
	if e.TextErr != nil {
		return "", e.TextErr
	}
	return e.Label, nil
}

func (e *FakeElement) Click(ctx context.Context) error {
	if e.ClickErr != nil {
		return e.ClickErr
	}
	if e.page == nil {
		return nil
	}
	e.page.mu.Lock()
	defer e.page.mu.Unlock()
	e.page.Clicked = append(e.page.Clicked, e.Label)
	if e.page.OnClick != nil {
		e.page.OnClick(e.page, e)
	}
	return nil
}

// FakeLauncher hands out a single FakePage.
type FakeLauncher struct {
	mu       sync.Mutex
	Page     *FakePage
	Err      error
	Launches int
}

var _ browser.Launcher = (*FakeLauncher)(nil)

func (l *FakeLauncher) Launch(ctx context.Context) (browser.Page, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Launches++
	if l.Err != nil {
		return nil, l.Err
	}
	return l.Page, nil
}
