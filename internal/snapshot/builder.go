// Package snapshot reduces a live page to the bounded observation the agent
// reasons over: URL, title, visible text and indexed clickable elements.
package snapshot

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/smellak/browser-worker-agent/api/schemas"
	"github.com/smellak/browser-worker-agent/internal/browser"
)

// Builder captures PageSnapshots. It never mutates the page.
type Builder struct {
	logger *zap.Logger
}

// NewBuilder creates a snapshot builder.
func NewBuilder(logger *zap.Logger) *Builder {
	return &Builder{logger: logger.Named("snapshot")}
}

// Build reads the page state. Individual read failures degrade to empty
// values; Build itself never fails.
func (b *Builder) Build(ctx context.Context, page browser.Page) schemas.PageSnapshot {
	snap := schemas.PageSnapshot{
		ClickableElements: []schemas.ClickableElement{},
	}

	if url, err := page.URL(ctx); err != nil {
		b.logger.Debug("Could not read page URL.", zap.Error(err))
	} else {
		snap.URL = url
	}

	if title, err := page.Title(ctx); err != nil {
		b.logger.Debug("Could not read page title.", zap.Error(err))
	} else {
		snap.Title = title
	}

	text, err := page.BodyText(ctx)
	switch {
	case errors.Is(err, browser.ErrNoBody):
		b.logger.Debug("Page has no body; visible text is empty.")
	case err != nil:
		b.logger.Debug("Could not read body text.", zap.Error(err))
	default:
		snap.VisibleText = text
	}

	for _, kind := range schemas.ClickableKinds {
		els, err := page.Elements(ctx, kind)
		if err != nil {
			b.logger.Debug("Could not enumerate elements.", zap.String("kind", string(kind)), zap.Error(err))
			continue
		}
		for _, el := range els {
			label, err := el.Text(ctx)
			if err != nil {
				continue
			}
			label = strings.TrimSpace(label)
			if label == "" {
				continue
			}
			snap.ClickableElements = append(snap.ClickableElements, schemas.ClickableElement{
				Index: len(snap.ClickableElements),
				Kind:  kind,
				Text:  label,
			})
		}
	}

	b.logger.Debug("Snapshot captured.",
		zap.String("url", snap.URL),
		zap.Int("visible_text_len", len(snap.VisibleText)),
		zap.Int("clickable_elements", len(snap.ClickableElements)),
	)
	return snap
}
