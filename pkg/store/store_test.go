package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tarsy-labs/deepresearch/pkg/model"
)

func TestCreate_SeedsOrchestratorAgent(t *testing.T) {
	s := New(16)
	id := s.Create("what is the capital of France?", "", model.ModelSelection{Orchestrator: "claude-sonnet-4-5"})

	sess, err := s.Get(id)
	require.NoError(t, err)
	assert.Equal(t, model.SessionInitializing, sess.Status)
	require.Contains(t, sess.Agents, model.OrchestratorAgentID)
	assert.Equal(t, model.AgentRunning, sess.Agents[model.OrchestratorAgentID].Status)
}

func TestGet_UnknownSession(t *testing.T) {
	s := New(16)
	_, err := s.Get("does-not-exist")
	var notFound *ErrSessionNotFound
	assert.ErrorAs(t, err, &notFound)
}

func TestUpdateSessionStatus_TerminalIsSticky(t *testing.T) {
	s := New(16)
	id := s.Create("q", "", model.ModelSelection{})

	require.NoError(t, s.UpdateSessionStatus(id, model.SessionCompleted, ""))
	require.NoError(t, s.UpdateSessionStatus(id, model.SessionFailed, "should not apply"))

	sess, err := s.Get(id)
	require.NoError(t, err)
	assert.Equal(t, model.SessionCompleted, sess.Status)
	assert.Empty(t, sess.Error)
}

func TestAddAgent_CountsExcludeOrchestrator(t *testing.T) {
	s := New(16)
	id := s.Create("q", "", model.ModelSelection{})

	_, err := s.AddAgent(id, "task one", "")
	require.NoError(t, err)
	_, err = s.AddAgent(id, "task two", "")
	require.NoError(t, err)

	n, err := s.CountAgents(id)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestAddAgent_SequentialIDs(t *testing.T) {
	s := New(16)
	id := s.Create("q", "", model.ModelSelection{})

	a1, err := s.AddAgent(id, "t1", "")
	require.NoError(t, err)
	a2, err := s.AddAgent(id, "t2", "")
	require.NoError(t, err)
	assert.NotEqual(t, a1, a2)
	assert.Equal(t, "agent_1", a1)
	assert.Equal(t, "agent_2", a2)
}

func TestUpdateAgentStatus_NotFound(t *testing.T) {
	s := New(16)
	id := s.Create("q", "", model.ModelSelection{})
	err := s.UpdateAgentStatus(id, "agent_99", model.AgentCompleted, "")
	assert.Error(t, err)
}

func TestMarkAgentFailed_EmitsBothEvents(t *testing.T) {
	s := New(16)
	id := s.Create("q", "", model.ModelSelection{})
	agentID, err := s.AddAgent(id, "task", "")
	require.NoError(t, err)

	require.NoError(t, s.MarkAgentFailed(id, agentID, "boom", "unknown", 3))

	sess, err := s.Get(id)
	require.NoError(t, err)
	assert.Equal(t, model.AgentFailed, sess.Agents[agentID].Status)

	var sawStatusChange, sawFailed bool
	for _, ev := range sess.Events {
		switch ev.Type {
		case model.EventAgentStatusChange:
			sawStatusChange = true
		case model.EventAgentFailed:
			sawFailed = true
		}
	}
	assert.True(t, sawStatusChange)
	assert.True(t, sawFailed)
}

func TestToolCallLifecycle(t *testing.T) {
	s := New(16)
	id := s.Create("q", "", model.ModelSelection{})
	agentID, err := s.AddAgent(id, "task", "")
	require.NoError(t, err)

	tcID, err := s.AddToolCall(id, agentID, "", "web_search", 1, 0, map[string]any{"query": "x"}, "")
	require.NoError(t, err)

	require.NoError(t, s.UpdateToolCall(id, agentID, tcID, model.ToolCallCompleted, map[string]any{"summary": "ok"}))
	// A second completion on the same tool call is a no-op, not an error.
	require.NoError(t, s.UpdateToolCall(id, agentID, tcID, model.ToolCallFailed, nil))

	sess, err := s.Get(id)
	require.NoError(t, err)
	require.Len(t, sess.Agents[agentID].ToolCalls, 1)
	assert.Equal(t, model.ToolCallCompleted, sess.Agents[agentID].ToolCalls[0].Status)
}

func TestReplacePlan_ReplaceVsAppend(t *testing.T) {
	s := New(16)
	id := s.Create("q", "", model.ModelSelection{})

	require.NoError(t, s.ReplacePlan(id, []model.PlanStepInput{{Description: "step one"}}, "replace"))
	require.NoError(t, s.ReplacePlan(id, []model.PlanStepInput{{Description: "step two"}}, "append"))

	sess, err := s.Get(id)
	require.NoError(t, err)
	assert.Len(t, sess.PlanSteps, 2)

	require.NoError(t, s.ReplacePlan(id, []model.PlanStepInput{{Description: "only step"}}, "replace"))
	sess, err = s.Get(id)
	require.NoError(t, err)
	assert.Len(t, sess.PlanSteps, 1)
}

func TestCleanupOld_RemovesOnlyStaleTerminalSessions(t *testing.T) {
	s := New(16)
	live := s.Create("q1", "", model.ModelSelection{})
	stale := s.Create("q2", "", model.ModelSelection{})

	require.NoError(t, s.UpdateSessionStatus(stale, model.SessionCompleted, ""))

	removed := s.CleanupOld(0)
	assert.Contains(t, removed, stale)
	assert.NotContains(t, removed, live)
	assert.True(t, s.Exists(live))
	assert.False(t, s.Exists(stale))
}
