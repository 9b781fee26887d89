// Package prompt serializes a page snapshot into the text the decision oracle reads.
package prompt

import (
	"fmt"
	"strings"

	"github.com/smellak/browser-worker-agent/api/schemas"
)

const (
	// MaxVisibleTextChars bounds the visible text section of the prompt.
	MaxVisibleTextChars = 3500
	// MaxElementDisplayChars bounds each element label in the listing.
	MaxElementDisplayChars = 100

	TruncationMarker = "\n...[text truncated]"
	NoElementsText   = "[No relevant clickable elements found]"
)

// SystemPrompt frames the oracle's role and fixes the response schema.
const SystemPrompt = `You are an expert web navigation agent.
You receive the current state of a web page (URL, title, a summary of the visible text
and a list of clickable elements) and a global goal.

You must choose between:
- "click": click one of the clickable elements (target_index is required),
- "scroll": scroll down the page,
- "finish": stop when the goal is met or continuing is not worthwhile.

Avoid getting stuck in repetitive menus, endless navigation
or irrelevant sections.

ALWAYS return a valid JSON object with this schema and NOTHING else:

{
  "action": "click" | "scroll" | "finish",
  "reason": "Short explanation of why you take this decision",
  "target_index": <index of the clickable element or null>,
  "note_for_extraction": "What kind of information you are trying to locate or extract next"
}`

const instructions = `[INSTRUCTIONS FOR THE AGENT]
You are an expert web navigation agent. Decide the next action that moves toward the goal.
Options:
- "click": click one of the elements (target_index required)
- "scroll": scroll down the page
- "finish": stop if you already have enough information or there are no good actions

Return ONLY a valid JSON object in this format:
{
  "action": "click" | "scroll" | "finish",
  "reason": "Explain why you choose this action",
  "target_index": <number or null>,
  "note_for_extraction": "What information you are looking for now"
}`

// Encode renders the user message for one step. It is a pure function of its inputs.
func Encode(snap schemas.PageSnapshot, goal string, step, maxSteps int) string {
	var b strings.Builder

	fmt.Fprintf(&b, "[CURRENT STATE - STEP %d/%d]\n", step, maxSteps)
	fmt.Fprintf(&b, "Current URL: %s\n", snap.URL)
	fmt.Fprintf(&b, "Title: %s\n\n", snap.Title)

	b.WriteString("[GLOBAL GOAL]\n")
	b.WriteString(goal)
	b.WriteString("\n\n")

	b.WriteString("[VISIBLE TEXT SUMMARY]\n")
	b.WriteString(TruncateVisibleText(snap.VisibleText))
	b.WriteString("\n\n")

	b.WriteString("[DETECTED CLICKABLE ELEMENTS]\n")
	b.WriteString(ElementListing(snap.ClickableElements))
	b.WriteString("\n\n")

	b.WriteString(instructions)

	return strings.TrimSpace(b.String())
}

// TruncateVisibleText caps text at MaxVisibleTextChars runes and appends
// TruncationMarker when it had to cut.
func TruncateVisibleText(text string) string {
	cut, truncated := truncateRunes(text, MaxVisibleTextChars)
	if !truncated {
		return text
	}
	return cut + TruncationMarker
}

// ElementListing renders one "<index>. (<kind>) '<text>'" line per element.
func ElementListing(elements []schemas.ClickableElement) string {
	if len(elements) == 0 {
		return NoElementsText
	}
	lines := make([]string, 0, len(elements))
	for _, el := range elements {
		label, _ := truncateRunes(el.Text, MaxElementDisplayChars)
		lines = append(lines, fmt.Sprintf("%d. (%s) '%s'", el.Index, el.Kind, label))
	}
	return strings.Join(lines, "\n")
}

func truncateRunes(s string, limit int) (string, bool) {
	if len(s) <= limit {
		return s, false
	}
	n := 0
	for i := range s {
		if n == limit {
			return s[:i], true
		}
		n++
	}
	return s, false
}
