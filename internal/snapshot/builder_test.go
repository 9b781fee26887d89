package snapshot

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/smellak/browser-worker-agent/api/schemas"
	"github.com/smellak/browser-worker-agent/internal/mocks"
)

func TestBuild_LinksThenButtonsWithContiguousIndices(t *testing.T) {
	page := mocks.NewFakePage("https://example.com", "Example", "Hello world")
	page.SetLinks("Home", "   ", "About us", "")
	page.SetButtons("  Accept cookies  ", "\n\t", "Subscribe")

	snap := NewBuilder(zaptest.NewLogger(t)).Build(context.Background(), page)

	assert.Equal(t, "https://example.com", snap.URL)
	assert.Equal(t, "Example", snap.Title)
	assert.Equal(t, "Hello world", snap.VisibleText)

	want := []schemas.ClickableElement{
		{Index: 0, Kind: schemas.KindLink, Text: "Home"},
		{Index: 1, Kind: schemas.KindLink, Text: "About us"},
		{Index: 2, Kind: schemas.KindButton, Text: "Accept cookies"},
		{Index: 3, Kind: schemas.KindButton, Text: "Subscribe"},
	}
	assert.Equal(t, want, snap.ClickableElements)
}

func TestBuild_IndicesAlwaysContiguous(t *testing.T) {
	page := mocks.NewFakePage("u", "t", "b")
	page.SetLinks("a", "", "b", " ", "c")
	page.SetButtons("", "d")
	page.Links[2].TextErr = errors.New("detached")

	snap := NewBuilder(zaptest.NewLogger(t)).Build(context.Background(), page)

	require.Len(t, snap.ClickableElements, 3)
	for i, el := range snap.ClickableElements {
		assert.Equal(t, i, el.Index)
		assert.NotEmpty(t, el.Text)
	}
	assert.Equal(t, "d", snap.ClickableElements[2].Text)
}

func TestBuild_NoBodyYieldsEmptyText(t *testing.T) {
	page := mocks.NewFakePage("u", "t", "ignored")
	page.NoBody = true

	snap := NewBuilder(zaptest.NewLogger(t)).Build(context.Background(), page)
	assert.Equal(t, "", snap.VisibleText)
}

func TestBuild_BodyReadFailureYieldsEmptyText(t *testing.T) {
	page := mocks.NewFakePage("u", "t", "ignored")
	page.BodyErr = errors.New("execution context destroyed")

	snap := NewBuilder(zaptest.NewLogger(t)).Build(context.Background(), page)
	assert.Equal(t, "", snap.VisibleText)
	assert.Equal(t, "u", snap.URL)
}

func TestBuild_EnumerationFailureOfOneKindKeepsTheOther(t *testing.T) {
	page := mocks.NewFakePage("u", "t", "b")
	page.SetLinks("Docs")
	page.SetButtons("Go")
	page.ElementsErrs = map[schemas.ElementKind]error{schemas.KindLink: errors.New("boom")}

	snap := NewBuilder(zaptest.NewLogger(t)).Build(context.Background(), page)
	require.Len(t, snap.ClickableElements, 1)
	assert.Equal(t, schemas.ClickableElement{Index: 0, Kind: schemas.KindButton, Text: "Go"}, snap.ClickableElements[0])
}

func TestBuild_TitleFailureDegradesToEmpty(t *testing.T) {
	page := mocks.NewFakePage("u", "t", "b")
	page.TitleErr = errors.New("no title")

	snap := NewBuilder(zaptest.NewLogger(t)).Build(context.Background(), page)
	assert.Equal(t, "", snap.Title)
	assert.NotNil(t, snap.ClickableElements)
	assert.Empty(t, snap.ClickableElements)
}

func TestBuild_DoesNotMutatePage(t *testing.T) {
	page := mocks.NewFakePage("u", "t", "b")
	page.SetLinks("One")

	NewBuilder(zaptest.NewLogger(t)).Build(context.Background(), page)
	assert.Empty(t, page.Clicked)
	assert.Empty(t, page.ScrollCalls)
	assert.Empty(t, page.NavigateCalls)
}
