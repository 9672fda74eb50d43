// Package providers defines the three external capability interfaces the
// session engine depends on and nothing else: LLMProvider, SearchProvider,
// SandboxProvider. Concrete adapters live in the anthropic, search and
// sandbox subpackages; mock implements in-memory fakes of all three for
// tests.
package providers

import "context"

// Role identifies a message's author in a chat history.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ContentPart is one piece of a (possibly multimodal) message. Exactly one
// of Text or ImageDataURL is set.
type ContentPart struct {
	Text         string
	ImageDataURL string // "data:image/png;base64,..."
}

// Message is one chat turn. Content is a list so a message can carry text
// plus inline images (view_image results, write_report's chart references).
type Message struct {
	Role    Role
	Content []ContentPart

	// ToolCallID and ToolName are set on a Role==RoleUser message that is
	// actually a tool result being reported back to the model, per
	// anthropic's tool_result content block convention.
	ToolCallID string
	ToolName   string
}

// Tool describes one tool available to the model: its name and a JSON
// Schema (as a Go value, ready to be marshaled) describing its input shape.
type Tool struct {
	Name        string
	Description string
	InputSchema any
}

// ChatRequest is one LLMProvider.Chat call: a full turn that may itself
// involve several provider-side "steps" if the model chains tool calls
// before yielding text (providers decide that internally; ChatRequest
// describes a single call, the caller decides whether to loop).
type ChatRequest struct {
	Model       string
	System      string
	Messages    []Message
	Tools       []Tool
	Temperature float64
	MaxTokens   int
}

// ToolCallRequest is one tool invocation the model produced mid-stream.
type ToolCallRequest struct {
	ID    string
	Name  string
	Input []byte // raw JSON
}

// TokenUsage reports input/output token counts for a single Chat call.
type TokenUsage struct {
	InputTokens  int
	OutputTokens int
}

// ChatEventType discriminates StreamEvent.
type ChatEventType string

const (
	ChatEventTextDelta      ChatEventType = "text_delta"
	ChatEventToolInputStart ChatEventType = "tool_input_start"
	ChatEventToolCall       ChatEventType = "tool_call"
	ChatEventDone           ChatEventType = "done"
)

// StreamEvent is one increment of a streaming Chat response.
type StreamEvent struct {
	Type ChatEventType

	TextDelta string

	// ToolInputStart/ToolCall share these fields: Name is always present on
	// both so subscribers can surface "calling web_search..." the moment
	// the model starts emitting a tool call, before its input finishes
	// streaming. Input/ID are only final as of ChatEventToolCall.
	ToolCallID string
	ToolName   string
	ToolInput  []byte

	// Done carries the accumulated usage and stop reason once the stream
	// completes.
	Usage      TokenUsage
	StopReason string // "end_turn" | "tool_use" | "max_tokens"
}

// LLMProvider is a streaming chat completion backend with tool-call support.
type LLMProvider interface {
	// Chat streams one assistant turn for req, calling emit for every
	// StreamEvent as it arrives, in order, terminating with exactly one
	// ChatEventDone event. It returns once the stream completes or ctx is
	// cancelled.
	Chat(ctx context.Context, req ChatRequest, emit func(StreamEvent)) error
}

// Turn is one LLM turn's accumulated text and tool calls, as assembled by
// RunTurn draining a Chat stream.
type Turn struct {
	Text      string
	ToolCalls []ToolCallRequest
	Usage     TokenUsage
}

// RunTurn drains one LLMProvider.Chat call into a Turn. A tool call's input
// only becomes final at ChatEventToolCall, so ToolCalls is built from that
// event alone; ChatEventToolInputStart exists only to let a live UI show
// "calling web_search..." before the input finishes streaming.
func RunTurn(ctx context.Context, llm LLMProvider, req ChatRequest) (Turn, error) {
	var t Turn
	var text []byte

	err := llm.Chat(ctx, req, func(ev StreamEvent) {
		switch ev.Type {
		case ChatEventTextDelta:
			text = append(text, ev.TextDelta...)
		case ChatEventToolCall:
			t.ToolCalls = append(t.ToolCalls, ToolCallRequest{ID: ev.ToolCallID, Name: ev.ToolName, Input: ev.ToolInput})
		case ChatEventDone:
			t.Usage = ev.Usage
		}
	})
	t.Text = string(text)
	return t, err
}

// SearchType selects the search backend's ranking mode.
type SearchType string

const (
	SearchNeural  SearchType = "neural"
	SearchKeyword SearchType = "keyword"
)

// SearchOptions configures one SearchWithContents call.
type SearchOptions struct {
	NumResults          int
	Type                SearchType
	UseAutoprompt       bool
	StartPublishedDate  string // YYYY-MM-DD, lower bound
}

// SearchResult is one ranked document with its extracted text.
type SearchResult struct {
	Title         string
	URL           string
	Text          string
	Author        string
	PublishedDate string
	Score         float64
}

// SearchResponse is the full result of one search call.
type SearchResponse struct {
	Results    []SearchResult
	Autoprompt string
}

// SearchProvider performs web search and returns extracted page contents.
type SearchProvider interface {
	SearchWithContents(ctx context.Context, query string, opts SearchOptions) (*SearchResponse, error)
}

// SandboxOutput is one captured output of a Python execution: exactly one
// of PNG, JPEG, Text or HTML is set.
type SandboxOutput struct {
	PNG  []byte
	JPEG []byte
	Text string
	HTML string
}

// SandboxLogs holds a Python execution's stdout/stderr lines.
type SandboxLogs struct {
	Stdout []string
	Stderr []string
}

// SandboxExecError reports an exception raised inside the sandbox.
type SandboxExecError struct {
	Name  string
	Value string
}

// SandboxResult is the full result of one RunPython call.
type SandboxResult struct {
	Results []SandboxOutput
	Logs    SandboxLogs
	Error   *SandboxExecError
}

// SandboxProvider runs Python source in an isolated sandbox and captures
// any matplotlib figures it produces.
type SandboxProvider interface {
	RunPython(ctx context.Context, code string, timeoutMs int) (*SandboxResult, error)
}
