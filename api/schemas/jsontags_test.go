package schemas_test

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/smellak/browser-worker-agent/api/schemas"
)

// TestStructJSONTags uses reflection to verify that the `json` tags on struct fields
// are correct. Callers of the HTTP endpoint depend on these names.
func TestStructJSONTags(t *testing.T) {
	t.Parallel()
	testCases := []struct {
		name         string
		structRef    interface{}
		expectedTags map[string]string
	}{
		{
			name:      "RunResult",
			structRef: schemas.RunResult{},
			expectedTags: map[string]string{
				"RunID":             "run_id,omitempty",
				"StartURL":          "start_url",
				"Goal":              "goal",
				"MaxSteps":          "max_steps",
				"Steps":             "steps",
				"AggregatedContent": "aggregated_content",
				"FinishedReason":    "finished_reason",
			},
		},
		{
			name:      "StepRecord",
			structRef: schemas.StepRecord{},
			expectedTags: map[string]string{
				"Step":              "step",
				"URL":               "url",
				"Action":            "action",
				"Reason":            "reason",
				"TargetIndex":       "target_index",
				"NoteForExtraction": "note_for_extraction",
			},
		},
		{
			name:      "Decision",
			structRef: schemas.Decision{},
			expectedTags: map[string]string{
				"Action":            "action",
				"Reason":            "reason",
				"TargetIndex":       "target_index",
				"NoteForExtraction": "note_for_extraction",
			},
		},
		{
			name:      "RunRequest",
			structRef: schemas.RunRequest{},
			expectedTags: map[string]string{
				"URL":      "url",
				"Goal":     "goal",
				"MaxSteps": "max_steps,omitempty",
			},
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			typ := reflect.TypeOf(tc.structRef)
			for fieldName, expectedTag := range tc.expectedTags {
				field, found := typ.FieldByName(fieldName)
				if assert.True(t, found, "field %s not found in %s", fieldName, tc.name) {
					assert.Equal(t, expectedTag, field.Tag.Get("json"), "wrong json tag on %s.%s", tc.name, fieldName)
				}
			}
		})
	}
}
