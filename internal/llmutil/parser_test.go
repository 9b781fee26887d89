package llmutil

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testPayload struct {
	Action string `json:"action"`
	Index  *int   `json:"target_index"`
}

func TestStripCodeFences(t *testing.T) {
	testCases := []struct {
		name  string
		input string
		want  string
	}{
		{"plain json", `{"a":1}`, `{"a":1}`},
		{"surrounding whitespace", "  \n{\"a\":1}\n ", `{"a":1}`},
		{"json fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"bare fence", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"json fence with chatter", "Sure! Here it is:\n```json\n{\"a\":1}\n```\nGood luck.", `{"a":1}`},
		{"unterminated fence", "```json\n{\"a\":1}", `{"a":1}`},
		{"json fence preferred over earlier bare fence", "```\nnotes\n```\n```json\n{\"a\":2}\n```", `{"a":2}`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, StripCodeFences(tc.input))
		})
	}
}

func TestParseJSONResponse(t *testing.T) {
	t.Run("fenced", func(t *testing.T) {
		got, err := ParseJSONResponse[testPayload]("```json\n{\"action\":\"scroll\",\"target_index\":null}\n```")
		require.NoError(t, err)
		assert.Equal(t, "scroll", got.Action)
		assert.Nil(t, got.Index)
	})

	t.Run("unfenced", func(t *testing.T) {
		got, err := ParseJSONResponse[testPayload](`{"action":"click","target_index":4}`)
		require.NoError(t, err)
		require.NotNil(t, got.Index)
		assert.Equal(t, 4, *got.Index)
	})

	t.Run("prose is rejected", func(t *testing.T) {
		_, err := ParseJSONResponse[testPayload]("I think you should click the first link.")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to unmarshal LLM JSON response")
	})

	t.Run("empty", func(t *testing.T) {
		_, err := ParseJSONResponse[testPayload]("   ")
		require.Error(t, err)
	})

	t.Run("error snippet is bounded", func(t *testing.T) {
		_, err := ParseJSONResponse[testPayload]("{" + strings.Repeat("x", 2000))
		require.Error(t, err)
		assert.Less(t, len(err.Error()), 1000)
	})
}

func TestTruncate(t *testing.T) {
	testCases := []struct {
		name  string
		input string
		limit int
		want  string
	}{
		{"short", "abc", 5, "abc"},
		{"exact", "abcde", 5, "abcde"},
		{"ascii cut", "abcdef", 3, "abc..."},
		{"multi-byte cut on rune boundary", "héllo wörld", 4, "héll..."},
		{"multi-byte fits by runes", "ééé", 3, "ééé"},
		{"zero limit", "abc", 0, ""},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := Truncate(tc.input, tc.limit)
			assert.Equal(t, tc.want, got)
			assert.True(t, utf8.ValidString(got))
		})
	}
}
