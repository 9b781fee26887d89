// internal/llmutil/parser.go
package llmutil

import (
	"fmt"
	"regexp"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	// Backticks are written as \x60 because Go raw strings cannot contain them.

	// jsonFenceRegex captures the body of the first ```json fenced block.
	jsonFenceRegex = regexp.MustCompile("(?s)\x60\x60\x60json(.*?)(?:\x60\x60\x60|$)")
	// anyFenceRegex captures the body of the first ``` fenced block.
	anyFenceRegex = regexp.MustCompile("(?s)\x60\x60\x60(.*?)(?:\x60\x60\x60|$)")
)

// StripCodeFences returns the content of the first ```json block if there is
// one, otherwise of the first ``` block, otherwise the trimmed input.
func StripCodeFences(response string) string {
	response = strings.TrimSpace(response)
	if !strings.Contains(response, "\x60\x60\x60") {
		return response
	}
	if m := jsonFenceRegex.FindStringSubmatch(response); len(m) > 1 {
		return strings.TrimSpace(m[1])
	}
	if m := anyFenceRegex.FindStringSubmatch(response); len(m) > 1 {
		return strings.TrimSpace(m[1])
	}
	return response
}

// ParseJSONResponse strips markdown fences from a model response and decodes
// the remainder into T. Text outside the fences is ignored; unfenced text
// must be valid JSON on its own.
func ParseJSONResponse[T any](response string) (*T, error) {
	payload := StripCodeFences(response)
	if payload == "" {
		return nil, fmt.Errorf("empty model response")
	}

	var result T
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal LLM JSON response: %w. Extracted JSON (truncated): %s", err, Truncate(payload, 500))
	}
	return &result, nil
}

// Truncate shortens s to at most maxRunes runes, appending "..." when
// anything was cut. It never splits a multi-byte character.
func Truncate(s string, maxRunes int) string {
	if maxRunes <= 0 {
		return ""
	}
	if len(s) <= maxRunes {
		return s
	}
	n := 0
	for i := range s {
		if n == maxRunes {
			return s[:i] + "..."
		}
		n++
	}
	return s
}
