// Package subagent runs one sub-agent's step loop: stream a turn from the
// sub-agent model, dispatch every tool_use block it produces, feed the
// results back, and repeat until the model stops calling tools or the step
// cap is hit. The loop shape (accumulate a turn, execute its tool calls,
// append results, repeat) is grounded on the reference codebase's
// pkg/agent/controller tool-execution cycle (executeToolCall / iterating.go),
// generalized from its MCP/ent-backed plumbing to this codebase's
// providers/store/tools stack.
package subagent

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tarsy-labs/deepresearch/pkg/model"
	"github.com/tarsy-labs/deepresearch/pkg/providers"
	"github.com/tarsy-labs/deepresearch/pkg/store"
	"github.com/tarsy-labs/deepresearch/pkg/tools"
)

const systemPrompt = `You are a focused research sub-agent. You were given one specific task by
an orchestrating agent. Use web_search and code_interpreter as needed to
investigate it thoroughly, then write your findings to results.md using the
file tool before you stop. Keep a running worklog.md of what you tried and
why, separate from your final results. Do not call write_report or
spawn_agent; those belong to the orchestrator, not to you.`

// Config holds the per-run tunables a Runner needs, mirroring
// config.Limits' sub-agent fields.
type Config struct {
	StepCap        int
	MaxAttempts    int
	MinResultChars int
}

// Runner drives one sub-agent's entire lifecycle from pending to a terminal
// status. Deps must be constructed for the same sessionID/agentID the
// Runner is invoked with.
type Runner struct {
	Store  *store.Store
	LLM    providers.LLMProvider
	Model  string
	Deps   *tools.SubAgentDeps
	Budget *tools.Budget
	Config Config
}

// Run executes agentID's step loop to completion, updating its status in
// Store as it goes. It never returns an error itself: every failure mode is
// recorded on the agent instead of propagated, so wait_for_agents has a
// single way to learn the outcome.
func (r *Runner) Run(ctx context.Context, sessionID, agentID, task string) {
	if err := r.Store.UpdateAgentStatus(sessionID, agentID, model.AgentRunning, ""); err != nil {
		return
	}

	toolDefs := tools.SubAgentToolDefs()
	providerTools := make([]providers.Tool, len(toolDefs))
	for i, td := range toolDefs {
		providerTools[i] = providers.Tool{Name: td.Name, Description: td.Description, InputSchema: td.Schema}
	}

	messages := []providers.Message{{Role: providers.RoleUser, Content: []providers.ContentPart{{Text: task}}}}

	for attempt := 1; attempt <= r.Config.MaxAttempts; attempt++ {
		outcome, reason := r.runAttempt(ctx, sessionID, agentID, providerTools, messages)
		switch outcome {
		case attemptCompleted:
			_ = r.Store.UpdateAgentStatus(sessionID, agentID, model.AgentCompleted, "")
			return
		case attemptFailed:
			_ = r.Store.MarkAgentFailed(sessionID, agentID, reason, "unknown", attempt)
			return
		case attemptNeedsRetry:
			if attempt >= r.Config.MaxAttempts {
				_ = r.Store.MarkAgentFailed(sessionID, agentID, reason, "unknown", attempt)
				return
			}
			_ = r.Store.UpdateAgentStatus(sessionID, agentID, model.AgentRetrying, reason)
			messages = append(messages, providers.Message{
				Role: providers.RoleUser,
				Content: []providers.ContentPart{{Text: fmt.Sprintf(
					"Your results.md is missing or too short (%s). Investigate further and write a "+
						"complete results.md of at least %d characters before stopping.",
					reason, r.Config.MinResultChars)}},
			})
		}
	}
}

type attemptOutcome int

const (
	attemptCompleted attemptOutcome = iota
	attemptNeedsRetry
	attemptFailed
)

// runAttempt runs the step loop for one validation attempt: repeated LLM
// turns, each possibly producing tool calls, until the model stops calling
// tools (end_turn) or the step cap is reached.
func (r *Runner) runAttempt(ctx context.Context, sessionID, agentID string, providerTools []providers.Tool, messages []providers.Message) (attemptOutcome, string) {
	for step := 1; step <= r.Config.StepCap; step++ {
		req := providers.ChatRequest{
			Model:    r.Model,
			System:   systemPrompt,
			Messages: messages,
			Tools:    providerTools,
		}

		turn, err := providers.RunTurn(ctx, r.LLM, req)
		if err != nil {
			return attemptFailed, err.Error()
		}

		if turn.Text != "" {
			messages = append(messages, providers.Message{
				Role:    providers.RoleAssistant,
				Content: []providers.ContentPart{{Text: turn.Text}},
			})
		}

		if len(turn.ToolCalls) == 0 {
			return r.validateResult(sessionID, agentID)
		}

		for i, tc := range turn.ToolCalls {
			result, toolErr := r.dispatchOne(ctx, sessionID, agentID, step, i, tc)
			messages = append(messages, resultMessage(tc, result, toolErr))
		}
	}
	return attemptNeedsRetry, "step cap reached before writing results.md"
}

func (r *Runner) dispatchOne(ctx context.Context, sessionID, agentID string, step, index int, tc providers.ToolCallRequest) (any, error) {
	input := decodeInputForDisplay(tc.Input)
	toolCallID, err := r.Store.AddToolCall(sessionID, agentID, tc.ID, tc.Name, step, index, input, descriptionOf(input))
	if err != nil {
		return nil, err
	}

	result, toolErr := r.Deps.Dispatch(ctx, r.Budget, tc.Name, tc.Input)
	if toolErr != nil {
		_ = r.Store.UpdateToolCall(sessionID, agentID, toolCallID, model.ToolCallFailed, toolErr)
		return nil, toolErr
	}
	_ = r.Store.UpdateToolCall(sessionID, agentID, toolCallID, model.ToolCallCompleted, result)
	return result, nil
}

// validateResult applies the >=MinResultChars heuristic SPEC_FULL.md
// section 4.3 uses to decide whether a sub-agent's results.md is
// substantive enough to accept, or whether it should be sent back for
// another attempt. The seeded "# Results" header is not counted, so the
// untouched placeholder never passes.
func (r *Runner) validateResult(sessionID, agentID string) (attemptOutcome, string) {
	path := filepath.Join(r.Deps.Workspace.AgentDir(sessionID, agentID), "results.md")
	data, err := os.ReadFile(path)
	content := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(string(data)), "# Results"))
	if err != nil || len(content) < r.Config.MinResultChars {
		return attemptNeedsRetry, "results.md missing or too short"
	}
	return attemptCompleted, ""
}

func resultMessage(tc providers.ToolCallRequest, result any, toolErr error) providers.Message {
	return providers.Message{
		Role:       providers.RoleUser,
		ToolCallID: tc.ID,
		ToolName:   tc.Name,
		Content:    []providers.ContentPart{{Text: marshalForModel(result, toolErr)}},
	}
}
