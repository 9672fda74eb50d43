package model

import "time"

// EventType discriminates the Event union. Most state mutations the session
// store performs append one Event of the matching type; MarkAgentFailed
// appends two (agent_status_change, then agent_failed), and session creation
// and SetStrategicPerspective append none.
type EventType string

const (
	EventConnected            EventType = "connected"
	EventSessionStatusChange  EventType = "session_status_change"
	EventAgentSpawned         EventType = "agent_spawned"
	EventAgentStatusChange    EventType = "agent_status_change"
	EventOrchestratorStep     EventType = "orchestrator_step"
	EventToolCall             EventType = "tool_call"
	EventToolResult           EventType = "tool_result"
	EventPlanUpdate           EventType = "plan_update"
	EventError                EventType = "error"
	EventAgentFailed          EventType = "agent_failed"
)

// Event is one frame of the per-session event log. Data holds the payload
// appropriate to Type (see the PayloadXxx types below); transports that
// serialize an Event to JSON emit {type, data, timestamp}.
type Event struct {
	Type      EventType
	Data      any
	Timestamp time.Time
}

// PayloadConnected is emitted once per subscription, immediately, so the
// client can learn the session id it attached to before any backlog arrives.
type PayloadConnected struct {
	SessionID string `json:"sessionId"`
}

type PayloadSessionStatusChange struct {
	Status SessionStatus `json:"status"`
}

type PayloadAgentSpawned struct {
	AgentID     string `json:"agentId"`
	Task        string `json:"task"`
	Description string `json:"description,omitempty"`
}

type PayloadAgentStatusChange struct {
	AgentID    string      `json:"agentId"`
	Status     AgentStatus `json:"status"`
	Error      string      `json:"error,omitempty"`
	RetryCount int         `json:"retryCount,omitempty"`
}

type PayloadOrchestratorStepToolCall struct {
	ToolName string `json:"toolName"`
	Input    any    `json:"input"`
}

type PayloadOrchestratorStep struct {
	StepNumber int                               `json:"stepNumber"`
	ToolCalls  []PayloadOrchestratorStepToolCall `json:"toolCalls"`
}

type PayloadToolCall struct {
	AgentID     string    `json:"agentId"`
	ToolCallID  string    `json:"toolCallId"`
	ToolName    string    `json:"toolName"`
	Input       any       `json:"input"`
	StepNumber  int       `json:"stepNumber"`
	IndexInStep int       `json:"indexInStep"`
	StartedAt   time.Time `json:"startedAt"`
	Description string    `json:"description,omitempty"`
}

type PayloadToolResult struct {
	AgentID     string         `json:"agentId"`
	ToolCallID  string         `json:"toolCallId"`
	ToolName    string         `json:"toolName"`
	Status      ToolCallStatus `json:"status"`
	Result      any            `json:"result,omitempty"`
	StartedAt   time.Time      `json:"startedAt"`
	CompletedAt time.Time      `json:"completedAt"`
	DurationMs  int64          `json:"duration"`
	StepNumber  int            `json:"stepNumber"`
	IndexInStep int            `json:"indexInStep"`
}

type PayloadPlanUpdate struct {
	Steps      []*PlanStep `json:"steps"`
	TotalSteps int         `json:"totalSteps"`
}

type PayloadError struct {
	Source  string `json:"source"` // "orchestrator" | "agent" | "system"
	Error   string `json:"error"`
	Stack   string `json:"stack,omitempty"`
	AgentID string `json:"agentId,omitempty"`
}

type PayloadAgentFailed struct {
	AgentID   string `json:"agentId"`
	Error     string `json:"error"`
	ErrorType string `json:"errorType"` // bad_request | rate_limit | server_error | auth_error | unknown
	Attempts  int    `json:"attempts"`
}
