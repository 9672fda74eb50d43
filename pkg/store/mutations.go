package store

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tarsy-labs/deepresearch/pkg/model"
)

// EmitEvent appends ev to the session's log and publishes it to every live
// subscriber, atomically with respect to other mutations on this session.
// Every other mutation in this file calls this as its last step, so a state
// change and its corresponding event are never observed independently.
func (s *Store) EmitEvent(sessionID string, evType model.EventType, data any) error {
	e, err := s.entry(sessionID)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.emitLocked(evType, data)
	return nil
}

func (e *entry) emitLocked(evType model.EventType, data any) {
	ev := model.Event{Type: evType, Data: data, Timestamp: time.Now()}
	e.session.Events = append(e.session.Events, ev)
	e.session.UpdatedAt = ev.Timestamp
	e.publish(ev)
}

// UpdateSessionStatus transitions the session's status and emits
// session_status_change. Terminal statuses (completed, failed) are sticky:
// a later call is a no-op once the session is already terminal.
func (s *Store) UpdateSessionStatus(sessionID string, status model.SessionStatus, errMsg string) error {
	e, err := s.entry(sessionID)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.session.Status.Terminal() {
		return nil
	}
	e.session.Status = status
	if errMsg != "" {
		e.session.Error = errMsg
	}
	e.emitLocked(model.EventSessionStatusChange, model.PayloadSessionStatusChange{Status: status})
	return nil
}

// SetStrategicPerspective records the planner's output on the session. It
// does not itself emit an event; generate_plan's caller emits plan_update
// once the resulting steps are known.
func (s *Store) SetStrategicPerspective(sessionID, perspective string) error {
	e, err := s.entry(sessionID)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.session.StrategicPerspective = perspective
	return nil
}

// AddAgent allocates the next agentId for sessionID, creates the agent
// record in pending status, and emits agent_spawned. It does not enforce the
// agent limit; the caller (tools package) checks that before calling this,
// via CountAgents.
func (s *Store) AddAgent(sessionID, task, description string) (string, error) {
	e, err := s.entry(sessionID)
	if err != nil {
		return "", err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	id := e.nextAgentID()
	now := time.Now()
	e.session.Agents[id] = &model.Agent{
		ID:           id,
		Task:         task,
		Description:  description,
		Status:       model.AgentPending,
		CreatedAt:    now,
		UpdatedAt:    now,
		LastActivity: now,
	}
	e.emitLocked(model.EventAgentSpawned, model.PayloadAgentSpawned{AgentID: id, Task: task, Description: description})
	return id, nil
}

// CountAgents returns the number of non-orchestrator agents in the session,
// for AGENT_LIMIT_REACHED enforcement.
func (s *Store) CountAgents(sessionID string) (int, error) {
	e, err := s.entry(sessionID)
	if err != nil {
		return 0, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for id := range e.session.Agents {
		if id != model.OrchestratorAgentID {
			n++
		}
	}
	return n, nil
}

// UpdateAgentStatus transitions agentID's status and emits
// agent_status_change. Returns an "agent not found" error if the agent does
// not exist.
func (s *Store) UpdateAgentStatus(sessionID, agentID string, status model.AgentStatus, errMsg string) error {
	e, err := s.entry(sessionID)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	a, ok := e.session.Agents[agentID]
	if !ok {
		return fmt.Errorf("agent not found: %s", agentID)
	}
	if a.Status.Terminal() {
		return nil
	}
	a.Status = status
	a.UpdatedAt = time.Now()
	a.LastActivity = a.UpdatedAt
	if status == model.AgentRetrying {
		a.RetryCount++
	}
	if errMsg != "" {
		a.Error = errMsg
	}
	e.emitLocked(model.EventAgentStatusChange, model.PayloadAgentStatusChange{
		AgentID:    agentID,
		Status:     status,
		Error:      errMsg,
		RetryCount: a.RetryCount,
	})
	return nil
}

// MarkAgentFailed transitions agentID to failed and emits agent_failed (in
// addition to the usual agent_status_change), recording the classified
// error type and attempt count for the UI.
func (s *Store) MarkAgentFailed(sessionID, agentID, errMsg, errorType string, attempts int) error {
	e, err := s.entry(sessionID)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	a, ok := e.session.Agents[agentID]
	if !ok {
		return fmt.Errorf("agent not found: %s", agentID)
	}
	if a.Status.Terminal() {
		return nil
	}
	a.Status = model.AgentFailed
	a.Error = errMsg
	a.UpdatedAt = time.Now()
	a.LastActivity = a.UpdatedAt

	e.emitLocked(model.EventAgentStatusChange, model.PayloadAgentStatusChange{AgentID: agentID, Status: model.AgentFailed, Error: errMsg})
	e.emitLocked(model.EventAgentFailed, model.PayloadAgentFailed{AgentID: agentID, Error: errMsg, ErrorType: errorType, Attempts: attempts})
	return nil
}

// AddToolCall records a new in-flight tool call for agentID and emits
// tool_call. toolCallID may be empty, in which case one is generated.
func (s *Store) AddToolCall(sessionID, agentID, toolCallID, toolName string, stepNumber, indexInStep int, input any, description string) (string, error) {
	e, err := s.entry(sessionID)
	if err != nil {
		return "", err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	a, ok := e.session.Agents[agentID]
	if !ok {
		return "", fmt.Errorf("agent not found: %s", agentID)
	}
	if toolCallID == "" {
		toolCallID = uuid.NewString()
	}
	now := time.Now()
	tc := &model.ToolCall{
		ID:          toolCallID,
		ToolName:    toolName,
		StepNumber:  stepNumber,
		IndexInStep: indexInStep,
		Input:       input,
		Status:      model.ToolCallExecuting,
		Description: description,
		CreatedAt:   now,
		StartedAt:   now,
	}
	a.ToolCalls = append(a.ToolCalls, tc)
	a.LastActivity = now

	e.emitLocked(model.EventToolCall, model.PayloadToolCall{
		AgentID:     agentID,
		ToolCallID:  toolCallID,
		ToolName:    toolName,
		Input:       input,
		StepNumber:  stepNumber,
		IndexInStep: indexInStep,
		StartedAt:   now,
		Description: description,
	})
	return toolCallID, nil
}

// UpdateToolCall marks toolCallID complete (or failed) with result, and
// emits tool_result. A tool call's status may move from executing to a
// terminal status exactly once.
func (s *Store) UpdateToolCall(sessionID, agentID, toolCallID string, status model.ToolCallStatus, result any) error {
	e, err := s.entry(sessionID)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	a, ok := e.session.Agents[agentID]
	if !ok {
		return fmt.Errorf("agent not found: %s", agentID)
	}
	var tc *model.ToolCall
	for _, c := range a.ToolCalls {
		if c.ID == toolCallID {
			tc = c
			break
		}
	}
	if tc == nil {
		return fmt.Errorf("tool call not found: %s", toolCallID)
	}
	if tc.Status != model.ToolCallExecuting {
		return nil
	}
	tc.Status = status
	tc.Result = result
	tc.CompletedAt = time.Now()
	a.LastActivity = tc.CompletedAt

	e.emitLocked(model.EventToolResult, model.PayloadToolResult{
		AgentID:     agentID,
		ToolCallID:  toolCallID,
		ToolName:    tc.ToolName,
		Status:      status,
		Result:      result,
		StartedAt:   tc.StartedAt,
		CompletedAt: tc.CompletedAt,
		DurationMs:  tc.Duration().Milliseconds(),
		StepNumber:  tc.StepNumber,
		IndexInStep: tc.IndexInStep,
	})
	return nil
}

// AddOrchestratorStep emits orchestrator_step describing one outer-loop
// turn's tool calls, for UI timeline display; it does not itself mutate any
// agent or tool-call state (AddToolCall/UpdateToolCall do that separately).
func (s *Store) AddOrchestratorStep(sessionID string, stepNumber int, calls []model.PayloadOrchestratorStepToolCall) error {
	e, err := s.entry(sessionID)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.emitLocked(model.EventOrchestratorStep, model.PayloadOrchestratorStep{StepNumber: stepNumber, ToolCalls: calls})
	return nil
}

// ReplacePlan overwrites or appends to the plan, per mode, and emits
// plan_update. mode is "replace" or "append".
func (s *Store) ReplacePlan(sessionID string, steps []model.PlanStepInput, mode string) error {
	e, err := s.entry(sessionID)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if mode == "replace" {
		e.session.PlanSteps = make(map[string]*model.PlanStep)
	}
	now := time.Now()
	for i, in := range steps {
		id := e.nextStepID()
		e.session.PlanSteps[id] = &model.PlanStep{
			ID:          id,
			Description: in.Description,
			Status:      model.PlanStepPending,
			AgentIDs:    in.AgentIDs,
			Order:       i,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
	}

	ordered := make([]*model.PlanStep, 0, len(e.session.PlanSteps))
	for _, p := range e.session.PlanSteps {
		ordered = append(ordered, p)
	}
	e.emitLocked(model.EventPlanUpdate, model.PayloadPlanUpdate{Steps: ordered, TotalSteps: len(ordered)})
	return nil
}
