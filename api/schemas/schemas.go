package schemas

import "strings"

// -- Page State --

// ElementKind distinguishes the two families of clickable elements the agent
// can act on.
type ElementKind string

const (
	KindLink   ElementKind = "link"
	KindButton ElementKind = "button"
)

// ClickableKinds is the enumeration order for clickable elements: links, then buttons.
var ClickableKinds = []ElementKind{KindLink, KindButton}

// ClickableElement is one actionable element exposed to the decision oracle.
// Text is the element's full trimmed visible text and is the only key used to
// find the element again on the live page.
type ClickableElement struct {
	Index int         `json:"index"`
	Kind  ElementKind `json:"type"`
	Text  string      `json:"text"`
}

// PageSnapshot is an immutable observation of the page taken once per step.
// ClickableElements indices are contiguous from 0.
type PageSnapshot struct {
	URL               string             `json:"url"`
	Title             string             `json:"title"`
	VisibleText       string             `json:"visible_text"`
	ClickableElements []ClickableElement `json:"clickable_elements"`
}

// Element returns the element at index and whether the index is in range.
func (s PageSnapshot) Element(index int) (ClickableElement, bool) {
	if index < 0 || index >= len(s.ClickableElements) {
		return ClickableElement{}, false
	}
	return s.ClickableElements[index], true
}

// -- Decisions --

// ActionType is the action chosen by the decision oracle. Values outside the
// three known actions are preserved so the loop can report them.
type ActionType string

const (
	ActionClick  ActionType = "click"
	ActionScroll ActionType = "scroll"
	ActionFinish ActionType = "finish"
)

// Decision is the oracle's parsed answer for a single step.
type Decision struct {
	Action            ActionType `json:"action"`
	Reason            string     `json:"reason"`
	TargetIndex       *int       `json:"target_index"`
	NoteForExtraction string     `json:"note_for_extraction"`
}

// -- Run Records --

// StepRecord is the audit entry for one executed step.
type StepRecord struct {
	Step              int        `json:"step"`
	URL               string     `json:"url"`
	Action            ActionType `json:"action"`
	Reason            string     `json:"reason"`
	TargetIndex       *int       `json:"target_index"`
	NoteForExtraction string     `json:"note_for_extraction"`
}

// RunResult is the final outcome of one navigation run.
type RunResult struct {
	RunID             string       `json:"run_id,omitempty"`
	StartURL          string       `json:"start_url"`
	Goal              string       `json:"goal"`
	MaxSteps          int          `json:"max_steps"`
	Steps             []StepRecord `json:"steps"`
	AggregatedContent string       `json:"aggregated_content"`
	FinishedReason    string       `json:"finished_reason"`
}

// RunRequest is the inbound payload for starting a run.
type RunRequest struct {
	URL      string `json:"url"`
	Goal     string `json:"goal"`
	MaxSteps *int   `json:"max_steps,omitempty"`
}

// -- Termination --

const (
	ReasonFinishAction     = "finish_action"
	ReasonMaxStepsReached  = "max_steps_reached"
	ReasonUnknownPrefix    = "unknown_action_"
	ReasonErrorPrefix      = "error: "
	AggregateDelimiter     = "\n\n---\n\n"
	DefaultMaxSteps        = 20
	DecisionFallbackNote   = "N/A"
	DecisionFallbackReason = "Error processing model response"
)

// UnknownActionReason builds the termination reason for an unrecognized action.
func UnknownActionReason(action ActionType) string {
	return ReasonUnknownPrefix + string(action)
}

// ErrorReason builds the termination reason for a fatal run failure.
func ErrorReason(msg string) string {
	return ReasonErrorPrefix + msg
}

// IsErrorReason reports whether a finished reason describes a fatal failure.
func IsErrorReason(reason string) bool {
	return strings.HasPrefix(reason, ReasonErrorPrefix)
}
