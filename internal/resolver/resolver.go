// Package resolver redeems a snapshot index against the live page. Indices
// only mean something within the snapshot they came from, so the target is
// found again by a prefix of its text.
package resolver

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/smellak/browser-worker-agent/api/schemas"
	"github.com/smellak/browser-worker-agent/internal/browser"
)

// FingerprintLen is how many leading runes of an element's text identify it.
// It is independent of the prompt's display window.
const FingerprintLen = 30

// Outcome describes what Resolve did.
type Outcome int

const (
	// OutcomeClicked means a live element matched and was clicked.
	OutcomeClicked Outcome = iota
	// OutcomeOutOfRange means the index was outside the snapshot; nothing was touched.
	OutcomeOutOfRange
	// OutcomeNotFound means no live element matched; nothing was touched.
	OutcomeNotFound
	// OutcomeFailed means the click or the settle wait returned an error.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeClicked:
		return "clicked"
	case OutcomeOutOfRange:
		return "out_of_range"
	case OutcomeNotFound:
		return "not_found"
	case OutcomeFailed:
		return "failed"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// LiveElement is an element read from the current page.
type LiveElement struct {
	Kind   schemas.ElementKind
	Text   string
	Handle browser.Element
}

// Fingerprint returns the first FingerprintLen runes of the trimmed text.
func Fingerprint(text string) string {
	text = strings.TrimSpace(text)
	n := 0
	for i := range text {
		if n == FingerprintLen {
			return text[:i]
		}
		n++
	}
	return text
}

// Match returns the position of the first live element whose trimmed text is
// non-empty and contains fingerprint.
func Match(fingerprint string, live []LiveElement) (int, bool) {
	if fingerprint == "" {
		return 0, false
	}
	for i, el := range live {
		text := strings.TrimSpace(el.Text)
		if text != "" && strings.Contains(text, fingerprint) {
			return i, true
		}
	}
	return 0, false
}

// Resolver clicks snapshot elements on the live page.
type Resolver struct {
	logger        *zap.Logger
	settleTimeout time.Duration
}

// New creates a Resolver. settleTimeout bounds the post-click load wait.
func New(logger *zap.Logger, settleTimeout time.Duration) *Resolver {
	if settleTimeout <= 0 {
		settleTimeout = 10 * time.Second
	}
	return &Resolver{
		logger:        logger.Named("resolver"),
		settleTimeout: settleTimeout,
	}
}

// Resolve clicks the live counterpart of snapshot element index. Out of range
// indices and unmatched targets are no-ops reported through the Outcome; an
// error is returned only when a click was attempted and it or the following
// settle wait failed.
func (r *Resolver) Resolve(ctx context.Context, page browser.Page, snapshot schemas.PageSnapshot, index int) (Outcome, error) {
	target, ok := snapshot.Element(index)
	if !ok {
		return OutcomeOutOfRange, nil
	}

	fingerprint := Fingerprint(target.Text)
	live := r.enumerate(ctx, page)
	pos, ok := Match(fingerprint, live)
	if !ok {
		r.logger.Debug("No live element matches target.",
			zap.Int("index", index),
			zap.String("fingerprint", fingerprint),
			zap.Int("live_elements", len(live)),
		)
		return OutcomeNotFound, nil
	}

	el := live[pos]
	if err := el.Handle.Click(ctx); err != nil {
		return OutcomeFailed, fmt.Errorf("clicking %s %q: %w", el.Kind, Fingerprint(el.Text), err)
	}

	settleCtx, cancel := context.WithTimeout(ctx, r.settleTimeout)
	defer cancel()
	if err := page.WaitLoad(settleCtx); err != nil {
		return OutcomeFailed, fmt.Errorf("waiting for page to settle after click: %w", err)
	}
	return OutcomeClicked, nil
}

// enumerate reads live links then live buttons. Failures for a whole kind or a
// single element are skipped.
func (r *Resolver) enumerate(ctx context.Context, page browser.Page) []LiveElement {
	var live []LiveElement
	for _, kind := range schemas.ClickableKinds {
		handles, err := page.Elements(ctx, kind)
		if err != nil {
			r.logger.Debug("Could not enumerate live elements.", zap.String("kind", string(kind)), zap.Error(err))
			continue
		}
		for _, h := range handles {
			text, err := h.Text(ctx)
			if err != nil {
				continue
			}
			live = append(live, LiveElement{Kind: kind, Text: text, Handle: h})
		}
	}
	return live
}
