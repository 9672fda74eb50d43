package subagent

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tarsy-labs/deepresearch/pkg/model"
	"github.com/tarsy-labs/deepresearch/pkg/providers"
	"github.com/tarsy-labs/deepresearch/pkg/providers/mock"
	"github.com/tarsy-labs/deepresearch/pkg/store"
	"github.com/tarsy-labs/deepresearch/pkg/tools"
	"github.com/tarsy-labs/deepresearch/pkg/workspace"
)

func newTestRunner(t *testing.T, llm providers.LLMProvider) (*Runner, *store.Store, string, string) {
	t.Helper()
	st := store.New(16)
	ws := workspace.New(t.TempDir())
	sessionID := st.Create("research golang generics", "", model.ModelSelection{})
	require.NoError(t, ws.CreateSession(sessionID))
	agentID, err := st.AddAgent(sessionID, "survey generics libraries", "")
	require.NoError(t, err)
	require.NoError(t, ws.CreateAgent(sessionID, agentID))

	deps := &tools.SubAgentDeps{
		Workspace: ws,
		SessionID: sessionID,
		AgentID:   agentID,
		Summarize: func(ctx context.Context, query string, results []providers.SearchResult) (string, error) {
			return "digest", nil
		},
	}

	runner := &Runner{
		Store:  st,
		LLM:    llm,
		Model:  "claude-sonnet-4-5",
		Deps:   deps,
		Budget: tools.NewBudget(tools.DefaultSubAgentLimits(20, 15, 5, 5), 3),
		Config: Config{StepCap: 10, MaxAttempts: 3, MinResultChars: 10},
	}
	return runner, st, sessionID, agentID
}

func TestRun_CompletesWhenResultsWrittenAndModelStops(t *testing.T) {
	llm := mock.NewLLM(
		mock.ChatResponse{ToolCalls: []providers.StreamEvent{
			mock.ToolCallEvent("tc1", tools.ToolFile, tools.FileInput{Operation: "write", Path: "results.md", Content: "a sufficiently long and substantive finding"}),
		}},
		mock.ChatResponse{Text: "done"},
	)
	runner, st, sessionID, agentID := newTestRunner(t, llm)

	runner.Run(context.Background(), sessionID, agentID, "survey generics libraries")

	sess, err := st.Get(sessionID)
	require.NoError(t, err)
	assert.Equal(t, model.AgentCompleted, sess.Agents[agentID].Status)
}

func TestRun_RetriesOnShortResult(t *testing.T) {
	llm := mock.NewLLM(
		mock.ChatResponse{Text: "I am done"}, // stops without writing results.md
		mock.ChatResponse{ToolCalls: []providers.StreamEvent{
			mock.ToolCallEvent("tc1", tools.ToolFile, tools.FileInput{Operation: "write", Path: "results.md", Content: "a sufficiently long and substantive finding this time"}),
		}},
		mock.ChatResponse{Text: "done"},
	)
	runner, st, sessionID, agentID := newTestRunner(t, llm)

	runner.Run(context.Background(), sessionID, agentID, "survey generics libraries")

	sess, err := st.Get(sessionID)
	require.NoError(t, err)
	assert.Equal(t, model.AgentCompleted, sess.Agents[agentID].Status)
}

func TestRun_FailsAfterMaxAttemptsWithoutValidResult(t *testing.T) {
	llm := mock.NewLLM(
		mock.ChatResponse{Text: "stopping"},
		mock.ChatResponse{Text: "stopping again"},
		mock.ChatResponse{Text: "stopping once more"},
	)
	runner, st, sessionID, agentID := newTestRunner(t, llm)

	runner.Run(context.Background(), sessionID, agentID, "survey generics libraries")

	sess, err := st.Get(sessionID)
	require.NoError(t, err)
	assert.Equal(t, model.AgentFailed, sess.Agents[agentID].Status)
}

func TestRun_FailsOnProviderError(t *testing.T) {
	llm := mock.NewLLM(mock.ChatResponse{Err: assertErr{}})
	runner, st, sessionID, agentID := newTestRunner(t, llm)

	runner.Run(context.Background(), sessionID, agentID, "survey generics libraries")

	sess, err := st.Get(sessionID)
	require.NoError(t, err)
	assert.Equal(t, model.AgentFailed, sess.Agents[agentID].Status)
}

func TestRun_WorklogWriteThenResultsWrite(t *testing.T) {
	llm := mock.NewLLM(
		mock.ChatResponse{ToolCalls: []providers.StreamEvent{
			mock.ToolCallEvent("tc1", tools.ToolFile, tools.FileInput{Operation: "write", Path: "worklog.md", Content: "tried approach A"}),
		}},
		mock.ChatResponse{ToolCalls: []providers.StreamEvent{
			mock.ToolCallEvent("tc2", tools.ToolFile, tools.FileInput{Operation: "write", Path: "results.md", Content: "a sufficiently long and substantive finding"}),
		}},
		mock.ChatResponse{Text: "done"},
	)
	runner, st, sessionID, agentID := newTestRunner(t, llm)

	runner.Run(context.Background(), sessionID, agentID, "survey generics libraries")

	sess, err := st.Get(sessionID)
	require.NoError(t, err)
	assert.Equal(t, model.AgentCompleted, sess.Agents[agentID].Status)

	data, err := os.ReadFile(filepath.Join(runner.Deps.Workspace.AgentDir(sessionID, agentID), "worklog.md"))
	require.NoError(t, err)
	assert.Equal(t, "tried approach A", string(data))
}

type assertErr struct{}

func (assertErr) Error() string { return "provider failure" }
