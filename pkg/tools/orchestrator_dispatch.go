package tools

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/tarsy-labs/deepresearch/pkg/model"
	"github.com/tarsy-labs/deepresearch/pkg/store"
	"github.com/tarsy-labs/deepresearch/pkg/toolerrors"
	"github.com/tarsy-labs/deepresearch/pkg/workspace"
)

// PlanResult is what the planner model produces for generate_plan.
type PlanResult struct {
	Perspective string
	Reasoning   string
	Steps       []model.PlanStepInput
}

// planFile is the on-disk shape of orchestrator_plan.json, per SPEC_FULL.md
// section 6. Reasoning and created are preserved across updates unless a
// caller supplies a new reasoning.
type planFile struct {
	SessionID            string          `json:"session_id"`
	Created              time.Time       `json:"created"`
	Updated              time.Time       `json:"updated"`
	Query                string          `json:"query"`
	ClarificationContext string          `json:"clarification_context,omitempty"`
	StrategicPerspective string          `json:"strategic_perspective"`
	Reasoning            string          `json:"reasoning,omitempty"`
	Steps                []model.PlanStep `json:"steps"`
}

// writePlanFile persists sess's current plan to orchestrator_plan.json,
// carrying over the original created timestamp and, when reasoning is
// empty, the previously recorded reasoning.
func (d *OrchestratorDeps) writePlanFile(sess *model.Session, reasoning string) error {
	path := filepath.Join(d.Workspace.SessionDir(d.SessionID), "orchestrator_plan.json")

	created := time.Now()
	if existing, err := os.ReadFile(path); err == nil {
		var prev planFile
		if json.Unmarshal(existing, &prev) == nil {
			if !prev.Created.IsZero() {
				created = prev.Created
			}
			if reasoning == "" {
				reasoning = prev.Reasoning
			}
		}
	}

	steps := make([]model.PlanStep, 0, len(sess.PlanSteps))
	for _, s := range sess.PlanSteps {
		steps = append(steps, *s)
	}
	sort.Slice(steps, func(i, j int) bool { return steps[i].Order < steps[j].Order })

	pf := planFile{
		SessionID:            d.SessionID,
		Created:              created,
		Updated:              time.Now(),
		Query:                sess.Query,
		ClarificationContext: sess.Clarification,
		StrategicPerspective: sess.StrategicPerspective,
		Reasoning:            reasoning,
		Steps:                steps,
	}

	data, err := json.MarshalIndent(pf, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Planner runs the planning model over the session's query and returns a
// strategic perspective plus an initial plan. The orchestrator loop supplies
// the concrete prompt template and model call; this package only defines
// the shape so tool dispatch stays provider-agnostic.
type Planner func(ctx context.Context, query, clarification string, focusAreas []string) (PlanResult, error)

// ReportWriter assembles the final markdown report from the query and every
// spawned agent's results.md/charts, using the report-writing model.
type ReportWriter func(ctx context.Context, query, clarification string, agents []AgentResultRef) (string, error)

// OrchestratorDeps bundles everything the orchestrator's tool dispatch
// needs beyond the decoded input.
type OrchestratorDeps struct {
	Store        *store.Store
	Workspace    *workspace.Manager
	SessionID    string
	Planner      Planner
	ReportWriter ReportWriter
	MaxAgents    int

	// SpawnFunc actually starts the sub-agent's step loop once spawn_agent
	// has registered it in the store and prepared its workspace; it runs
	// asynchronously (the caller is expected to launch it in a goroutine),
	// and wait_for_agents/get_agent_result learn its outcome through Store,
	// never through this function's return value.
	SpawnFunc func(agentID, task string)
}

// Dispatch runs one orchestrator tool call, mirroring SubAgentDeps.Dispatch.
func (d *OrchestratorDeps) Dispatch(ctx context.Context, budget *Budget, toolName string, rawInput []byte) (any, *toolerrors.ToolError) {
	if tErr := budget.Check(toolName); tErr != nil {
		return nil, tErr
	}
	budget.RecordCall(toolName)

	result, tErr := d.dispatch(ctx, toolName, rawInput)
	if tErr != nil {
		budget.RecordFailure(toolName)
		return nil, tErr
	}
	budget.RecordSuccess(toolName)
	return result, nil
}

func (d *OrchestratorDeps) dispatch(ctx context.Context, toolName string, rawInput []byte) (any, *toolerrors.ToolError) {
	switch toolName {
	case ToolGeneratePlan:
		return d.generatePlan(ctx, rawInput)
	case ToolSpawnAgent:
		return d.spawnAgent(rawInput)
	case ToolWaitForAgents:
		return d.waitForAgents(ctx, rawInput)
	case ToolGetAgentResult:
		return d.getAgentResult(rawInput)
	case ToolUpdatePlan:
		return d.updatePlan(rawInput)
	case ToolWriteReport:
		return d.writeReport(ctx, rawInput)
	case ToolFile:
		return d.file(rawInput)
	default:
		return nil, toolerrors.New(toolerrors.UnknownError, "unknown tool: "+toolName, "", false)
	}
}

func (d *OrchestratorDeps) generatePlan(ctx context.Context, rawInput []byte) (any, *toolerrors.ToolError) {
	in, tErr := decode[GeneratePlanInput](rawInput)
	if tErr != nil {
		return nil, tErr
	}

	sess, err := d.Store.Get(d.SessionID)
	if err != nil {
		return nil, toolerrors.New(toolerrors.UnknownError, err.Error(), "", false)
	}

	plan, err := d.Planner(ctx, sess.Query, sess.Clarification, in.FocusAreas)
	if err != nil {
		return nil, toolerrors.New(toolerrors.APIError, "planning failed: "+err.Error(), "try again", true)
	}

	if err := d.Store.SetStrategicPerspective(d.SessionID, plan.Perspective); err != nil {
		return nil, toolerrors.New(toolerrors.UnknownError, err.Error(), "", false)
	}
	if err := d.Store.ReplacePlan(d.SessionID, plan.Steps, "replace"); err != nil {
		return nil, toolerrors.New(toolerrors.UnknownError, err.Error(), "", false)
	}

	updated, err := d.Store.Get(d.SessionID)
	if err != nil {
		return nil, toolerrors.New(toolerrors.UnknownError, err.Error(), "", false)
	}
	if err := d.writePlanFile(updated, plan.Reasoning); err != nil {
		return nil, toolerrors.New(toolerrors.UnknownError, "could not persist plan: "+err.Error(), "", false)
	}

	return GeneratePlanResult{Perspective: plan.Perspective, Steps: plan.Steps}, nil
}

func (d *OrchestratorDeps) spawnAgent(rawInput []byte) (any, *toolerrors.ToolError) {
	in, tErr := decode[SpawnAgentInput](rawInput)
	if tErr != nil {
		return nil, tErr
	}

	count, err := d.Store.CountAgents(d.SessionID)
	if err != nil {
		return nil, toolerrors.New(toolerrors.UnknownError, err.Error(), "", false)
	}
	if d.MaxAgents > 0 && count >= d.MaxAgents {
		return nil, toolerrors.New(toolerrors.AgentLimitReached, "maximum number of sub-agents already spawned", "work with the agents already spawned instead of spawning more", false)
	}

	id, err := d.Store.AddAgent(d.SessionID, in.Task, in.Description)
	if err != nil {
		return nil, toolerrors.New(toolerrors.UnknownError, err.Error(), "", false)
	}
	if err := d.Workspace.CreateAgent(d.SessionID, id); err != nil {
		return nil, toolerrors.New(toolerrors.UnknownError, "could not prepare agent workspace: "+err.Error(), "", false)
	}
	if d.SpawnFunc != nil {
		d.SpawnFunc(id, in.Task)
	}
	return SpawnAgentResult{AgentID: id}, nil
}

// waitForAgents watches agent_status_change events via the session's
// subscription until every named agent reaches a terminal status or the
// timeout elapses, checking the current snapshot first in case they are
// already done.
func (d *OrchestratorDeps) waitForAgents(ctx context.Context, rawInput []byte) (any, *toolerrors.ToolError) {
	in, tErr := decode[WaitForAgentsInput](rawInput)
	if tErr != nil {
		return nil, tErr
	}
	timeout := time.Duration(in.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 180 * time.Second
	}

	pending := make(map[string]bool, len(in.AgentIDs))
	for _, id := range in.AgentIDs {
		pending[id] = true
	}

	sess, err := d.Store.Get(d.SessionID)
	if err != nil {
		return nil, toolerrors.New(toolerrors.UnknownError, err.Error(), "", false)
	}
	statuses := make(map[string]string, len(pending))
	for id := range pending {
		a, ok := sess.Agents[id]
		if !ok {
			return nil, toolerrors.New(toolerrors.AgentNotFound, "no such agent: "+id, "check the agent id", false)
		}
		statuses[id] = string(a.Status)
		if a.Status.Terminal() {
			delete(pending, id)
		}
	}
	if len(pending) == 0 {
		return WaitForAgentsResult{Statuses: statuses}, nil
	}

	sub, err := d.Store.Subscribe(d.SessionID)
	if err != nil {
		return nil, toolerrors.New(toolerrors.UnknownError, err.Error(), "", false)
	}
	defer sub.Unsubscribe()

	deadline := time.After(timeout)
	for len(pending) > 0 {
		select {
		case <-ctx.Done():
			return WaitForAgentsResult{Statuses: statuses, TimedOut: true}, nil
		case <-deadline:
			return WaitForAgentsResult{Statuses: statuses, TimedOut: true}, nil
		case ev, ok := <-sub.Events:
			if !ok {
				return WaitForAgentsResult{Statuses: statuses, TimedOut: true}, nil
			}
			if ev.Type != model.EventAgentStatusChange {
				continue
			}
			p, ok := ev.Data.(model.PayloadAgentStatusChange)
			if !ok || !pending[p.AgentID] {
				continue
			}
			statuses[p.AgentID] = string(p.Status)
			if p.Status.Terminal() {
				delete(pending, p.AgentID)
			}
		}
	}
	return WaitForAgentsResult{Statuses: statuses}, nil
}

func (d *OrchestratorDeps) getAgentResult(rawInput []byte) (any, *toolerrors.ToolError) {
	in, tErr := decode[GetAgentResultInput](rawInput)
	if tErr != nil {
		return nil, tErr
	}

	sess, err := d.Store.Get(d.SessionID)
	if err != nil {
		return nil, toolerrors.New(toolerrors.UnknownError, err.Error(), "", false)
	}
	a, ok := sess.Agents[in.AgentID]
	if !ok {
		return nil, toolerrors.New(toolerrors.AgentNotFound, "no such agent: "+in.AgentID, "check the agent id", false)
	}
	if !a.Status.Terminal() {
		return nil, toolerrors.New(toolerrors.AgentNotReady, "agent has not finished yet", "call wait_for_agents first", false)
	}

	dir := d.Workspace.AgentDir(d.SessionID, in.AgentID)
	resultsPath := filepath.Join(dir, "results.md")
	data, err := os.ReadFile(resultsPath)
	if err != nil {
		return nil, toolerrors.New(toolerrors.FileNotFound, "agent produced no results.md: "+err.Error(), "", false)
	}

	// Copy results.md and every chart image into the session's shared
	// artifacts/<agentID>/ directory so they survive alongside the final
	// report, independent of the per-agent workspace layout.
	if _, err := d.Workspace.CopyArtifact(d.SessionID, in.AgentID, "results.md", resultsPath); err != nil {
		return nil, toolerrors.New(toolerrors.UnknownError, "could not copy results into artifacts: "+err.Error(), "", false)
	}

	var charts []string
	entries, _ := os.ReadDir(filepath.Join(dir, "charts"))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		src := filepath.Join(dir, "charts", entry.Name())
		if _, err := d.Workspace.CopyArtifact(d.SessionID, in.AgentID, entry.Name(), src); err != nil {
			return nil, toolerrors.New(toolerrors.UnknownError, "could not copy chart into artifacts: "+err.Error(), "", false)
		}
		charts = append(charts, filepath.Join("artifacts", in.AgentID, entry.Name()))
	}

	return GetAgentResultResult{Status: string(a.Status), ResultsMarkdown: string(data), ChartPaths: charts}, nil
}

func (d *OrchestratorDeps) updatePlan(rawInput []byte) (any, *toolerrors.ToolError) {
	in, tErr := decode[UpdatePlanInput](rawInput)
	if tErr != nil {
		return nil, tErr
	}
	if in.Mode != "replace" && in.Mode != "append" {
		return nil, toolerrors.New(toolerrors.ValidationFailed, "mode must be replace or append", "", false)
	}
	if err := d.Store.ReplacePlan(d.SessionID, in.Steps, in.Mode); err != nil {
		return nil, toolerrors.New(toolerrors.UnknownError, err.Error(), "", false)
	}
	sess, err := d.Store.Get(d.SessionID)
	if err != nil {
		return nil, toolerrors.New(toolerrors.UnknownError, err.Error(), "", false)
	}
	if err := d.writePlanFile(sess, ""); err != nil {
		return nil, toolerrors.New(toolerrors.UnknownError, "could not persist plan: "+err.Error(), "", false)
	}
	return UpdatePlanResult{TotalSteps: len(sess.PlanSteps)}, nil
}

func (d *OrchestratorDeps) writeReport(ctx context.Context, rawInput []byte) (any, *toolerrors.ToolError) {
	in, tErr := decode[WriteReportInput](rawInput)
	if tErr != nil {
		return nil, tErr
	}

	report, err := d.ReportWriter(ctx, in.Query, in.Clarification, in.AgentResults)
	if err != nil {
		return nil, toolerrors.New(toolerrors.APIError, "report generation failed: "+err.Error(), "try again", true)
	}

	path := filepath.Join(d.Workspace.SessionDir(d.SessionID), "final_report.md")
	if err := os.WriteFile(path, []byte(report), 0o644); err != nil {
		return nil, toolerrors.New(toolerrors.FileAccessDenied, "could not write report: "+err.Error(), "", false)
	}
	return WriteReportResult{Path: "final_report.md"}, nil
}

func (d *OrchestratorDeps) file(rawInput []byte) (any, *toolerrors.ToolError) {
	in, tErr := decode[FileInput](rawInput)
	if tErr != nil {
		return nil, tErr
	}

	dir := d.Workspace.SessionDir(d.SessionID)
	path, err := workspace.ResolveUnder(dir, in.Path)
	if err != nil {
		if te, ok := err.(*toolerrors.ToolError); ok {
			return nil, te
		}
		return nil, toolerrors.New(toolerrors.FileAccessDenied, err.Error(), "", false)
	}
	return doFileOp(in.Operation, path, in.Content)
}
