// Package toolerrors defines the structured error taxonomy tool calls return
// to the calling LLM. A ToolError is never surfaced as a Go error out of the
// tool-dispatch boundary: it is serialized into the tool-result payload the
// model reads, so the model can decide whether to retry, change approach, or
// give up on that one tool call without the whole agent failing.
package toolerrors

import "fmt"

// Code is one of the sixteen machine-readable error codes a tool call can
// report.
type Code string

const (
	ImageNotFound          Code = "IMAGE_NOT_FOUND"
	FileNotFound           Code = "FILE_NOT_FOUND"
	FileAccessDenied       Code = "FILE_ACCESS_DENIED"
	SearchFailed           Code = "SEARCH_FAILED"
	SearchRateLimited      Code = "SEARCH_RATE_LIMITED"
	CodeExecutionFailed    Code = "CODE_EXECUTION_FAILED"
	CodeExecutionTimeout   Code = "CODE_EXECUTION_TIMEOUT"
	CodeSandboxError       Code = "CODE_SANDBOX_ERROR"
	AgentNotFound          Code = "AGENT_NOT_FOUND"
	AgentNotReady          Code = "AGENT_NOT_READY"
	AgentLimitReached      Code = "AGENT_LIMIT_REACHED"
	ToolCallLimitReached   Code = "TOOL_CALL_LIMIT_REACHED"
	APIError               Code = "API_ERROR"
	APIKeyMissing          Code = "API_KEY_MISSING"
	ValidationFailed       Code = "VALIDATION_FAILED"
	UnknownError           Code = "UNKNOWN_ERROR"
)

// ToolError is the structured result a failed tool call returns to the LLM.
// It implements the error interface so internal code can use it like any
// other Go error, but at the tool-dispatch boundary it is marshaled as JSON
// and handed back as the tool's result, never propagated as a Go error.
type ToolError struct {
	ErrorCode      Code   `json:"errorCode"`
	Message        string `json:"message"`
	SuggestedAction string `json:"suggestedAction"`
	CanRetry       bool   `json:"canRetry"`
	RetryAfterMs   int    `json:"retryAfterMs,omitempty"`
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("%s: %s", e.ErrorCode, e.Message)
}

// New builds a ToolError with no retry-after hint.
func New(code Code, message, suggestedAction string, canRetry bool) *ToolError {
	return &ToolError{
		ErrorCode:       code,
		Message:         message,
		SuggestedAction: suggestedAction,
		CanRetry:        canRetry,
	}
}

// NewRetryAfter builds a ToolError that tells the caller how long to wait
// before retrying, e.g. from a provider's Retry-After header.
func NewRetryAfter(code Code, message, suggestedAction string, retryAfterMs int) *ToolError {
	return &ToolError{
		ErrorCode:       code,
		Message:         message,
		SuggestedAction: suggestedAction,
		CanRetry:        true,
		RetryAfterMs:    retryAfterMs,
	}
}
