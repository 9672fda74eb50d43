package model

// FlowNode and FlowEdge describe the session's current topology for
// visualization: one node per agent (including the orchestrator), one edge
// per spawn relationship and per tool call, so a client can render a live
// graph without replaying the whole event log itself.
type FlowNode struct {
	ID     string `json:"id"`
	Label  string `json:"label"`
	Status string `json:"status"`
}

type FlowEdge struct {
	From string `json:"from"`
	To   string `json:"to"`
	Kind string `json:"kind"` // "spawn" | "tool_call"
}

type FlowData struct {
	Nodes []FlowNode `json:"nodes"`
	Edges []FlowEdge `json:"edges"`
}
