package model

import "time"

// PlanStepStatus tracks one step of the orchestrator's plan.
type PlanStepStatus string

const (
	PlanStepPending    PlanStepStatus = "pending"
	PlanStepInProgress PlanStepStatus = "in_progress"
	PlanStepCompleted  PlanStepStatus = "completed"
)

// PlanStepInput is the caller-supplied shape for update_plan: just enough to
// construct a PlanStep, before the store assigns it an id and timestamps.
type PlanStepInput struct {
	Description string   `json:"description"`
	AgentIDs    []string `json:"agent_ids,omitempty"`
}

// PlanStep is one item of the orchestrator's working plan, as written to
// orchestrator_plan.json and surfaced through plan_update events.
type PlanStep struct {
	ID          string
	Description string
	Status      PlanStepStatus
	AgentIDs    []string
	Order       int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
