package store

import "github.com/tarsy-labs/deepresearch/pkg/model"

// FlowData derives a visualization graph from current session state: one
// node per agent, a spawn edge from the orchestrator to each agent, and a
// tool_call edge from each agent to the id of each of its tool calls. Tool
// calls are not linked to one another; the event stream carries their
// order and timing.
func (s *Store) FlowData(sessionID string) (*model.FlowData, error) {
	e, err := s.entry(sessionID)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	fd := &model.FlowData{}
	for id, a := range e.session.Agents {
		label := a.Task
		if id == model.OrchestratorAgentID {
			label = "orchestrator"
		}
		fd.Nodes = append(fd.Nodes, model.FlowNode{ID: id, Label: label, Status: string(a.Status)})
		if id != model.OrchestratorAgentID {
			fd.Edges = append(fd.Edges, model.FlowEdge{From: model.OrchestratorAgentID, To: id, Kind: "spawn"})
		}
		for _, tc := range a.ToolCalls {
			fd.Edges = append(fd.Edges, model.FlowEdge{From: id, To: tc.ID, Kind: "tool_call"})
		}
	}
	return fd, nil
}
