// Package model defines the entities the session engine operates on: the
// Session aggregate and everything it owns (agents, tool calls, plan steps,
// events). Nothing in this package talks to a provider, a store, or the
// filesystem; it is pure data plus the small amount of validation logic that
// belongs on the data itself.
package model

import "time"

// SessionStatus is the terminal-respecting status of a research session.
type SessionStatus string

const (
	SessionIdle         SessionStatus = "idle"
	SessionInitializing SessionStatus = "initializing"
	SessionPlanning     SessionStatus = "planning"
	SessionExecuting    SessionStatus = "executing"
	SessionCompleted    SessionStatus = "completed"
	SessionFailed       SessionStatus = "failed"
)

// Terminal reports whether status can no longer change.
func (s SessionStatus) Terminal() bool {
	return s == SessionCompleted || s == SessionFailed
}

// OrchestratorAgentID is the stable pseudo-agent id the orchestrator itself
// uses when recording its own tool calls, so the event stream can treat the
// orchestrator uniformly with every sub-agent it spawns.
const OrchestratorAgentID = "orchestrator"

// Session is the root aggregate: one research query, its provider
// configuration, and every agent/tool-call/plan-step/event that query
// produced. A Session is mutated exclusively through SessionStore, never
// directly, so every field here is exported for read access but callers
// outside pkg/store should treat a fetched Session as a snapshot.
type Session struct {
	ID             string
	Query          string
	Clarification  string
	Models         ModelSelection
	Status         SessionStatus
	CreatedAt      time.Time
	UpdatedAt      time.Time

	Agents    map[string]*Agent
	PlanSteps map[string]*PlanStep
	Events    []Event

	StrategicPerspective string
	Error                string
}

// ModelSelection names the model backing each of the five distinct LLM
// roles a session uses, resolved once at session creation from config.
type ModelSelection struct {
	Orchestrator string
	Planner      string
	Summarizer   string
	ReportWriter string
	SubAgent     string
}

// Snapshot returns a deep-enough copy of the session for safe handoff to a
// caller outside the store's lock: agents, plan steps and events are copied
// so a concurrent mutation on the live Session cannot race with a reader
// iterating this snapshot.
func (s *Session) Snapshot() *Session {
	cp := *s

	cp.Agents = make(map[string]*Agent, len(s.Agents))
	for id, a := range s.Agents {
		agentCopy := *a
		agentCopy.ToolCalls = append([]*ToolCall(nil), a.ToolCalls...)
		cp.Agents[id] = &agentCopy
	}

	cp.PlanSteps = make(map[string]*PlanStep, len(s.PlanSteps))
	for id, p := range s.PlanSteps {
		stepCopy := *p
		stepCopy.AgentIDs = append([]string(nil), p.AgentIDs...)
		cp.PlanSteps[id] = &stepCopy
	}

	cp.Events = append([]Event(nil), s.Events...)

	return &cp
}
