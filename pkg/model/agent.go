package model

import "time"

// AgentStatus tracks a sub-agent (or the orchestrator pseudo-agent) through
// its lifecycle. Transitions must respect pending < running < {completed,
// failed}; retrying is a transient sub-state of running used while a
// sub-agent re-attempts after an invalid-result validation failure.
type AgentStatus string

const (
	AgentPending   AgentStatus = "pending"
	AgentRunning   AgentStatus = "running"
	AgentRetrying  AgentStatus = "retrying"
	AgentCompleted AgentStatus = "completed"
	AgentFailed    AgentStatus = "failed"
)

// Terminal reports whether status can no longer change.
func (s AgentStatus) Terminal() bool {
	return s == AgentCompleted || s == AgentFailed
}

// Agent is one sub-agent's worth of state, or the orchestrator's own
// pseudo-agent record (id model.OrchestratorAgentID).
type Agent struct {
	ID           string
	Task         string
	Description  string
	Status       AgentStatus
	ToolCalls    []*ToolCall
	CreatedAt    time.Time
	UpdatedAt    time.Time
	LastActivity time.Time
	Error        string
	RetryCount   int
}
