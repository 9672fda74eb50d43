package tools

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tarsy-labs/deepresearch/pkg/model"
	"github.com/tarsy-labs/deepresearch/pkg/store"
	"github.com/tarsy-labs/deepresearch/pkg/workspace"
)

func newTestOrchestratorDeps(t *testing.T) (*OrchestratorDeps, *store.Store, string) {
	t.Helper()
	st := store.New(16)
	ws := workspace.New(t.TempDir())
	sessionID := st.Create("research golang generics", "", model.ModelSelection{})
	require.NoError(t, ws.CreateSession(sessionID))

	deps := &OrchestratorDeps{
		Store:     st,
		Workspace: ws,
		SessionID: sessionID,
		Planner: func(ctx context.Context, query, clarification string, focusAreas []string) (PlanResult, error) {
			return PlanResult{
				Perspective: "focus on practical usage",
				Steps:       []model.PlanStepInput{{Description: "survey existing libraries"}},
			}, nil
		},
		ReportWriter: func(ctx context.Context, query, clarification string, agents []AgentResultRef) (string, error) {
			return "# Report\n\nfindings here", nil
		},
		MaxAgents: 2,
	}
	return deps, st, sessionID
}

func TestOrchestratorDispatch_GeneratePlan(t *testing.T) {
	deps, st, sessionID := newTestOrchestratorDeps(t)
	budget := NewBudget(nil, 3)

	result, tErr := deps.Dispatch(context.Background(), budget, ToolGeneratePlan, []byte(`{}`))
	require.Nil(t, tErr)
	out := result.(GeneratePlanResult)
	assert.Equal(t, "focus on practical usage", out.Perspective)

	sess, err := st.Get(sessionID)
	require.NoError(t, err)
	assert.Equal(t, "focus on practical usage", sess.StrategicPerspective)
	assert.Len(t, sess.PlanSteps, 1)
}

func TestOrchestratorDispatch_SpawnAgentInvokesSpawnFunc(t *testing.T) {
	deps, _, _ := newTestOrchestratorDeps(t)
	budget := NewBudget(nil, 3)

	var spawnedID, spawnedTask string
	deps.SpawnFunc = func(agentID, task string) {
		spawnedID, spawnedTask = agentID, task
	}

	result, tErr := deps.Dispatch(context.Background(), budget, ToolSpawnAgent, []byte(`{"task":"investigate generics performance"}`))
	require.Nil(t, tErr)
	out := result.(SpawnAgentResult)
	assert.Equal(t, out.AgentID, spawnedID)
	assert.Equal(t, "investigate generics performance", spawnedTask)
}

func TestOrchestratorDispatch_SpawnAgentRespectsMaxAgents(t *testing.T) {
	deps, _, _ := newTestOrchestratorDeps(t)
	deps.SpawnFunc = func(agentID, task string) {}
	budget := NewBudget(nil, 3)

	_, tErr := deps.Dispatch(context.Background(), budget, ToolSpawnAgent, []byte(`{"task":"one"}`))
	require.Nil(t, tErr)
	_, tErr = deps.Dispatch(context.Background(), budget, ToolSpawnAgent, []byte(`{"task":"two"}`))
	require.Nil(t, tErr)

	_, tErr = deps.Dispatch(context.Background(), budget, ToolSpawnAgent, []byte(`{"task":"three"}`))
	require.NotNil(t, tErr)
}

func TestOrchestratorDispatch_WaitForAgentsReturnsImmediatelyWhenTerminal(t *testing.T) {
	deps, st, sessionID := newTestOrchestratorDeps(t)
	budget := NewBudget(nil, 3)

	agentID, err := st.AddAgent(sessionID, "task", "")
	require.NoError(t, err)
	require.NoError(t, st.UpdateAgentStatus(sessionID, agentID, model.AgentCompleted, ""))

	input := []byte(`{"agent_ids":["` + agentID + `"]}`)
	result, tErr := deps.Dispatch(context.Background(), budget, ToolWaitForAgents, input)
	require.Nil(t, tErr)
	out := result.(WaitForAgentsResult)
	assert.False(t, out.TimedOut)
	assert.Equal(t, "completed", out.Statuses[agentID])
}

func TestOrchestratorDispatch_WaitForAgentsObservesLiveTransition(t *testing.T) {
	deps, st, sessionID := newTestOrchestratorDeps(t)
	budget := NewBudget(nil, 3)

	agentID, err := st.AddAgent(sessionID, "task", "")
	require.NoError(t, err)

	go func() {
		time.Sleep(20 * time.Millisecond)
		_ = st.UpdateAgentStatus(sessionID, agentID, model.AgentCompleted, "")
	}()

	input := []byte(`{"agent_ids":["` + agentID + `"], "timeout_seconds": 5}`)
	result, tErr := deps.Dispatch(context.Background(), budget, ToolWaitForAgents, input)
	require.Nil(t, tErr)
	out := result.(WaitForAgentsResult)
	assert.False(t, out.TimedOut)
	assert.Equal(t, "completed", out.Statuses[agentID])
}

func TestOrchestratorDispatch_GetAgentResultRequiresTerminal(t *testing.T) {
	deps, st, sessionID := newTestOrchestratorDeps(t)
	budget := NewBudget(nil, 3)

	agentID, err := st.AddAgent(sessionID, "task", "")
	require.NoError(t, err)
	require.NoError(t, deps.Workspace.CreateAgent(sessionID, agentID))

	_, tErr := deps.Dispatch(context.Background(), budget, ToolGetAgentResult, []byte(`{"agent_id":"`+agentID+`"}`))
	require.NotNil(t, tErr)

	require.NoError(t, st.UpdateAgentStatus(sessionID, agentID, model.AgentCompleted, ""))
	result, tErr := deps.Dispatch(context.Background(), budget, ToolGetAgentResult, []byte(`{"agent_id":"`+agentID+`"}`))
	require.Nil(t, tErr)
	out := result.(GetAgentResultResult)
	assert.Equal(t, "completed", out.Status)
}

func TestOrchestratorDispatch_WriteReportWritesFinalReport(t *testing.T) {
	deps, _, sessionID := newTestOrchestratorDeps(t)
	budget := NewBudget(nil, 3)

	input := []byte(`{"query":"q","agent_results":[]}`)
	result, tErr := deps.Dispatch(context.Background(), budget, ToolWriteReport, input)
	require.Nil(t, tErr)
	out := result.(WriteReportResult)
	assert.Equal(t, "final_report.md", out.Path)

	data, err := os.ReadFile(filepath.Join(deps.Workspace.SessionDir(sessionID), "final_report.md"))
	require.NoError(t, err)
	assert.Equal(t, "# Report\n\nfindings here", string(data))
}
