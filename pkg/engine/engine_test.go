package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tarsy-labs/deepresearch/pkg/config"
	"github.com/tarsy-labs/deepresearch/pkg/model"
	"github.com/tarsy-labs/deepresearch/pkg/providers"
	"github.com/tarsy-labs/deepresearch/pkg/providers/mock"
	"github.com/tarsy-labs/deepresearch/pkg/tools"
)

func newTestEngine(t *testing.T, llm providers.LLMProvider) *Engine {
	t.Helper()
	cfg := config.Defaults()
	cfg.WorkspaceRoot = t.TempDir()
	cfg.Limits.OrchestratorStepCap = 5
	cfg.Limits.SubAgentStepCap = 5
	cfg.Limits.AbortGracePeriodMs = 1
	cfg.Limits.SessionCleanupDelayMs = 60_000
	cfg.Limits.MinSearchSpacingMs = 1

	return New(cfg, Providers{
		LLM:     llm,
		Search:  &mock.Search{},
		Sandbox: &mock.Sandbox{},
	})
}

// waitForTerminal polls Status until the session reaches a terminal status
// or the deadline passes, to avoid racing the background orchestrator
// goroutine.
func waitForTerminal(t *testing.T, e *Engine, sessionID string) *model.Session {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		sess, err := e.Status(sessionID)
		require.NoError(t, err)
		if sess.Status.Terminal() {
			return sess
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("session did not reach a terminal status in time")
	return nil
}

func TestCreateSession_CompletesWithoutSpawningAgents(t *testing.T) {
	llm := mock.NewLLM(
		mock.ChatResponse{ToolCalls: []providers.StreamEvent{
			mock.ToolCallEvent("tc1", tools.ToolGeneratePlan, tools.GeneratePlanInput{}),
		}},
		mock.ChatResponse{Text: `{"perspective":"focus on fundamentals","steps":[{"description":"survey the field"}]}`},
		mock.ChatResponse{ToolCalls: []providers.StreamEvent{
			mock.ToolCallEvent("tc2", tools.ToolWriteReport, tools.WriteReportInput{Query: "golang generics"}),
		}},
		mock.ChatResponse{Text: "# Report\n\ngenerics are great"},
		mock.ChatResponse{Text: "done"},
	)
	e := newTestEngine(t, llm)

	sessionID, err := e.CreateSession("golang generics", "")
	require.NoError(t, err)
	require.NotEmpty(t, sessionID)

	sess := waitForTerminal(t, e, sessionID)
	assert.Equal(t, model.SessionCompleted, sess.Status)

	report, err := e.Report(sessionID)
	require.NoError(t, err)
	assert.Equal(t, "# Report\n\ngenerics are great", report)
}

func TestSubscribe_ReceivesConnectedEvent(t *testing.T) {
	llm := mock.NewLLM(
		mock.ChatResponse{ToolCalls: []providers.StreamEvent{
			mock.ToolCallEvent("tc1", tools.ToolWriteReport, tools.WriteReportInput{Query: "q"}),
		}},
		mock.ChatResponse{Text: "# Report\n\nbody"},
		mock.ChatResponse{Text: "done"},
	)
	e := newTestEngine(t, llm)

	sessionID, err := e.CreateSession("q", "")
	require.NoError(t, err)

	sub, err := e.Subscribe(sessionID)
	require.NoError(t, err)
	defer sub.Unsubscribe()

	first := <-sub.Events
	assert.Equal(t, model.EventConnected, first.Type)

	waitForTerminal(t, e, sessionID)
}

func TestCancel_MarksSessionFailed(t *testing.T) {
	llm := mock.NewLLM(mock.ChatResponse{Text: "thinking forever, never stops calling tools... actually stops"})
	e := newTestEngine(t, llm)

	sessionID, err := e.CreateSession("q", "")
	require.NoError(t, err)

	require.NoError(t, e.Cancel(sessionID))

	sess, err := e.Status(sessionID)
	require.NoError(t, err)
	assert.Equal(t, model.SessionFailed, sess.Status)
}

func TestCancel_UnknownSessionReturnsNotFound(t *testing.T) {
	e := newTestEngine(t, mock.NewLLM())

	err := e.Cancel("does-not-exist")
	require.Error(t, err)
}

func TestFilePath_RejectsEscape(t *testing.T) {
	e := newTestEngine(t, mock.NewLLM())
	sessionID, err := e.CreateSession("q", "")
	require.NoError(t, err)

	_, err = e.FilePath(sessionID, "../../etc/passwd")
	assert.Error(t, err)
}
