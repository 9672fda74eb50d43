// Package orchestrator runs the top-level orchestrator agent: a step loop
// over the orchestrator's own tool catalog (generate_plan, spawn_agent,
// wait_for_agents, get_agent_result, update_plan, write_report, file),
// structurally the same accumulate-turn/dispatch/repeat cycle
// pkg/subagent uses, grounded on the same reference codebase cycle, just
// against the orchestrator's tool set and without the sub-agent's
// results.md validation retry.
package orchestrator

import (
	"context"
	"time"

	"github.com/tarsy-labs/deepresearch/pkg/model"
	"github.com/tarsy-labs/deepresearch/pkg/providers"
	"github.com/tarsy-labs/deepresearch/pkg/store"
	"github.com/tarsy-labs/deepresearch/pkg/tools"
)

const systemPrompt = `You are the orchestrating agent for a deep research session. Given the
user's query, first call generate_plan to think through a strategy, then
spawn_agent to delegate focused sub-tasks to research agents, wait_for_agents
to learn when they finish, and get_agent_result to collect their findings.
Use update_plan to keep the plan current as you learn more. When you have
enough to answer the query well, call write_report exactly once to produce
the final report, then stop. Do not do research yourself; delegate it.`

// Config holds the per-run tunables, mirroring config.Limits' orchestrator
// fields.
type Config struct {
	StepCap          int
	AbortGracePeriod time.Duration
}

// Runner drives the orchestrator pseudo-agent's entire lifecycle.
type Runner struct {
	Store  *store.Store
	LLM    providers.LLMProvider
	Model  string
	Deps   *tools.OrchestratorDeps
	Budget *tools.Budget
	Config Config

	// CancelAgents is called once, right before the orchestrator's own
	// status is finalized, to broadcast cancellation to any sub-agents
	// still running and give them AbortGracePeriod to wind down.
	CancelAgents func(ctx context.Context, grace time.Duration)
}

// Run executes the orchestrator's step loop to completion and transitions
// the session to completed or failed accordingly.
func (r *Runner) Run(ctx context.Context, sessionID, query, clarification string) {
	_ = r.Store.UpdateSessionStatus(sessionID, model.SessionPlanning, "")

	toolDefs := tools.OrchestratorToolDefs()
	providerTools := make([]providers.Tool, len(toolDefs))
	for i, td := range toolDefs {
		providerTools[i] = providers.Tool{Name: td.Name, Description: td.Description, InputSchema: td.Schema}
	}

	userText := "Research query: " + query
	if clarification != "" {
		userText += "\n\nClarification: " + clarification
	}
	messages := []providers.Message{{Role: providers.RoleUser, Content: []providers.ContentPart{{Text: userText}}}}

	wroteReport := false

	for step := 1; step <= r.Config.StepCap; step++ {
		if step == 2 {
			_ = r.Store.UpdateSessionStatus(sessionID, model.SessionExecuting, "")
		}

		req := providers.ChatRequest{
			Model:    r.Model,
			System:   systemPrompt,
			Messages: messages,
			Tools:    providerTools,
		}

		turn, err := providers.RunTurn(ctx, r.LLM, req)
		if err != nil {
			r.finish(ctx, sessionID, model.SessionFailed, err.Error())
			return
		}

		if turn.Text != "" {
			messages = append(messages, providers.Message{
				Role:    providers.RoleAssistant,
				Content: []providers.ContentPart{{Text: turn.Text}},
			})
		}

		if len(turn.ToolCalls) == 0 {
			if wroteReport {
				r.finish(ctx, sessionID, model.SessionCompleted, "")
				return
			}
			// The model stopped calling tools without ever writing a
			// report: nudge it to continue rather than silently declaring
			// success on an empty run. This repeats on every such turn, and
			// each nudged turn counts against the step cap.
			messages = append(messages, providers.Message{
				Role:    providers.RoleUser,
				Content: []providers.ContentPart{{Text: "You have not called write_report yet. Continue the research, or write the report now if you have enough information."}},
			})
			continue
		}

		var stepCalls []model.PayloadOrchestratorStepToolCall
		for i, tc := range turn.ToolCalls {
			if tc.Name == tools.ToolWriteReport {
				wroteReport = true
			}
			result, toolErr := r.dispatchOne(ctx, sessionID, step, i, tc)
			messages = append(messages, resultMessage(tc, result, toolErr))
			stepCalls = append(stepCalls, model.PayloadOrchestratorStepToolCall{ToolName: tc.Name, Input: decodeInputForDisplay(tc.Input)})
		}
		_ = r.Store.AddOrchestratorStep(sessionID, step, stepCalls)
	}

	r.finish(ctx, sessionID, model.SessionFailed, "orchestrator step cap reached")
}

func (r *Runner) dispatchOne(ctx context.Context, sessionID string, step, index int, tc providers.ToolCallRequest) (any, error) {
	input := decodeInputForDisplay(tc.Input)
	toolCallID, err := r.Store.AddToolCall(sessionID, model.OrchestratorAgentID, tc.ID, tc.Name, step, index, input, descriptionOf(input))
	if err != nil {
		return nil, err
	}

	result, toolErr := r.Deps.Dispatch(ctx, r.Budget, tc.Name, tc.Input)
	if toolErr != nil {
		_ = r.Store.UpdateToolCall(sessionID, model.OrchestratorAgentID, toolCallID, model.ToolCallFailed, toolErr)
		return nil, toolErr
	}
	_ = r.Store.UpdateToolCall(sessionID, model.OrchestratorAgentID, toolCallID, model.ToolCallCompleted, result)
	return result, nil
}

func (r *Runner) finish(ctx context.Context, sessionID string, status model.SessionStatus, errMsg string) {
	if r.CancelAgents != nil {
		r.CancelAgents(ctx, r.Config.AbortGracePeriod)
	}
	_ = r.Store.UpdateAgentStatus(sessionID, model.OrchestratorAgentID, terminalAgentStatus(status), errMsg)
	_ = r.Store.UpdateSessionStatus(sessionID, status, errMsg)
}

func terminalAgentStatus(sessionStatus model.SessionStatus) model.AgentStatus {
	if sessionStatus == model.SessionCompleted {
		return model.AgentCompleted
	}
	return model.AgentFailed
}
