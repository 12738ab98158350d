package agent

import (
	"encoding/json"
	"errors"

	"lingotutor/app/service/gate"
)

// ErrPlanningFailure marks a planning step that produced no usable plan
// step at all. Recoverable at turn level: the turn ends with a degraded
// answer.
var ErrPlanningFailure = errors.New("planning failure")

const degradedAnswer = "I'm sorry, I couldn't process your request after several attempts."

type ToolKind string

// The recognized tool set is closed. Dispatch over it is exhaustive,
// anything else is a planning failure.
const (
	ToolUpdateUserProfile     ToolKind = "UpdateUserProfile"
	ToolSaveGrammarCorrection ToolKind = "SaveGrammarCorrection"
	ToolWebSearch             ToolKind = "WebSearch"
)

type PlanStepKind string

const (
	StepFinalAnswer PlanStepKind = "final_answer"
	StepToolCall    PlanStepKind = "tool_call"
)

// PlanStep is one decision-core iteration result: a final answer or a
// request to invoke exactly one tool.
type PlanStep struct {
	Kind     PlanStepKind `json:"kind"`
	Answer   string       `json:"answer,omitempty"`
	ToolCall *ToolCall    `json:"tool_call,omitempty"`
}

type ToolCall struct {
	Tool ToolKind `json:"tool"`
	// Raw is the literal call text the planner produced.
	Raw string `json:"raw"`
	// Args is the extracted argument object; nil when extraction failed.
	Args json.RawMessage `json:"args,omitempty"`
}

type ToolStatus string

const (
	ToolOK     ToolStatus = "ok"
	ToolFailed ToolStatus = "failed"
)

// ToolResult is fed back into the next planning iteration as an
// observation. A failure here never aborts the turn, planning decides what
// to do with it.
type ToolResult struct {
	Call    ToolCall   `json:"call"`
	Status  ToolStatus `json:"status"`
	Payload string     `json:"payload"`
}

// StepRecord pairs a plan step with its tool result, if any.
type StepRecord struct {
	Step   PlanStep    `json:"step"`
	Result *ToolResult `json:"result,omitempty"`
}

// TurnRequest carries everything one decision-core run needs.
type TurnRequest struct {
	UserID         string
	ConversationID string
	Utterance      string
	Annotation     *gate.Annotation
	Profile        string
	History        string
}

// TurnOutcome is the finished turn: the visible answer plus the ordered
// step trace. Degraded is set when the answer was forced (planning failure
// or iteration cap), not chosen.
type TurnOutcome struct {
	FinalAnswer string
	Steps       []StepRecord
	Degraded    bool
}

type UpdateUserProfileArgs struct {
	Name           string   `json:"name,omitempty"`
	Location       string   `json:"location,omitempty"`
	InterestsToAdd []string `json:"interests_to_add,omitempty"`
}

type SaveGrammarCorrectionArgs struct {
	OriginalText  string `json:"original_text"`
	CorrectedText string `json:"corrected_text"`
	Explanation   string `json:"explanation"`
	Improvement   string `json:"improvement"`
}

type WebSearchArgs struct {
	Query string `json:"query"`
}
