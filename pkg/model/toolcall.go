package model

import "time"

// ToolCallStatus tracks one tool invocation from dispatch to completion.
type ToolCallStatus string

const (
	ToolCallExecuting ToolCallStatus = "executing"
	ToolCallCompleted ToolCallStatus = "completed"
	ToolCallFailed    ToolCallStatus = "failed"
)

// ToolCall records a single tool invocation by an agent (or the orchestrator
// pseudo-agent). Input holds the model's JSON input decoded generically (a
// map[string]any for an object), not the tool-specific input type. Result
// holds the typed result pkg/tools returns for ToolName, or the
// *toolerrors.ToolError when the call failed. Both are kept as `any` rather
// than json.RawMessage, since every consumer re-marshals them for the event
// stream or the LLM tool-result message.
type ToolCall struct {
	ID           string
	ToolName     string
	StepNumber   int
	IndexInStep  int
	Input        any
	Status       ToolCallStatus
	Result       any
	Description  string
	CreatedAt    time.Time
	StartedAt    time.Time
	CompletedAt  time.Time
}

// Duration returns CompletedAt - StartedAt, or zero while still executing.
func (t *ToolCall) Duration() time.Duration {
	if t.CompletedAt.IsZero() {
		return 0
	}
	return t.CompletedAt.Sub(t.StartedAt)
}
