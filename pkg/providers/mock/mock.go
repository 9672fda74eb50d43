// Package mock provides in-memory fakes of the three provider interfaces
// for tests, so the orchestrator/sub-agent loops and tool implementations
// can be exercised deterministically without real API credentials.
package mock

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/tarsy-labs/deepresearch/pkg/providers"
)

// LLM is a scripted providers.LLMProvider: each call to Chat pops the next
// scripted response and emits it. Tests register one response per step the
// agent under test is expected to take.
type LLM struct {
	mu        sync.Mutex
	responses []ChatResponse
	calls     int
}

// ChatResponse is one scripted assistant turn: either some text, or one or
// more tool calls, never both (matches how the real provider always yields
// a single stop reason per turn).
type ChatResponse struct {
	Text      string
	ToolCalls []providers.StreamEvent // each must have Type == ChatEventToolCall
	Err       error
}

// NewLLM builds a scripted provider that yields responses in order, then
// errors on any call past the end of the script.
func NewLLM(responses ...ChatResponse) *LLM {
	return &LLM{responses: responses}
}

func (m *LLM) Chat(ctx context.Context, req providers.ChatRequest, emit func(providers.StreamEvent)) error {
	m.mu.Lock()
	idx := m.calls
	m.calls++
	m.mu.Unlock()

	if idx >= len(m.responses) {
		return fmt.Errorf("mock LLM: no scripted response for call %d", idx)
	}
	resp := m.responses[idx]
	if resp.Err != nil {
		return resp.Err
	}

	if resp.Text != "" {
		emit(providers.StreamEvent{Type: providers.ChatEventTextDelta, TextDelta: resp.Text})
	}
	stopReason := "end_turn"
	for _, tc := range resp.ToolCalls {
		emit(providers.StreamEvent{Type: providers.ChatEventToolInputStart, ToolCallID: tc.ToolCallID, ToolName: tc.ToolName})
		emit(tc)
		stopReason = "tool_use"
	}
	emit(providers.StreamEvent{Type: providers.ChatEventDone, StopReason: stopReason})
	return nil
}

// ToolCallEvent builds a ChatEventToolCall StreamEvent from a Go value,
// marshaling it to JSON as the tool input.
func ToolCallEvent(id, name string, input any) providers.StreamEvent {
	data, err := json.Marshal(input)
	if err != nil {
		panic(err)
	}
	return providers.StreamEvent{Type: providers.ChatEventToolCall, ToolCallID: id, ToolName: name, ToolInput: data}
}

// Search is a scripted providers.SearchProvider.
type Search struct {
	Response *providers.SearchResponse
	Err      error
}

func (m *Search) SearchWithContents(ctx context.Context, query string, opts providers.SearchOptions) (*providers.SearchResponse, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Response, nil
}

// Sandbox is a scripted providers.SandboxProvider.
type Sandbox struct {
	Result *providers.SandboxResult
	Err    error
}

func (m *Sandbox) RunPython(ctx context.Context, code string, timeoutMs int) (*providers.SandboxResult, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Result, nil
}
