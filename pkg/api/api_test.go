package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tarsy-labs/deepresearch/pkg/config"
	"github.com/tarsy-labs/deepresearch/pkg/engine"
	"github.com/tarsy-labs/deepresearch/pkg/providers"
	"github.com/tarsy-labs/deepresearch/pkg/providers/mock"
	"github.com/tarsy-labs/deepresearch/pkg/tools"
)

func newTestServer(t *testing.T, llm providers.LLMProvider) (*Server, *engine.Engine) {
	t.Helper()
	cfg := config.Defaults()
	cfg.WorkspaceRoot = t.TempDir()
	cfg.Limits.OrchestratorStepCap = 5
	cfg.Limits.AbortGracePeriodMs = 1
	cfg.Limits.SessionCleanupDelayMs = 60_000

	eng := engine.New(cfg, engine.Providers{
		LLM:     llm,
		Search:  &mock.Search{},
		Sandbox: &mock.Sandbox{},
	})
	return NewServer(eng, gin.TestMode), eng
}

func waitForCompleted(t *testing.T, s *Server, sessionID string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		sess, err := s.engine.Status(sessionID)
		require.NoError(t, err)
		if sess.Status.Terminal() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("session did not reach a terminal status in time")
}

func TestCreateSessionHandler_ReturnsSessionID(t *testing.T) {
	s, _ := newTestServer(t, mock.NewLLM())

	body, _ := json.Marshal(createSessionRequest{Query: "golang generics"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	s.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp createSessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.SessionID)
}

func TestCreateSessionHandler_RejectsMissingQuery(t *testing.T) {
	s, _ := newTestServer(t, mock.NewLLM())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetSessionHandler_NotFoundReturns404(t *testing.T) {
	s, _ := newTestServer(t, mock.NewLLM())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions/does-not-exist", nil)
	rec := httptest.NewRecorder()

	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetReportHandler_ReturnsMarkdownAfterCompletion(t *testing.T) {
	llm := mock.NewLLM(
		mock.ChatResponse{ToolCalls: []providers.StreamEvent{
			mock.ToolCallEvent("tc1", tools.ToolWriteReport, tools.WriteReportInput{Query: "q"}),
		}},
		mock.ChatResponse{Text: "# Report\n\nbody"},
		mock.ChatResponse{Text: "done"},
	)
	s, eng := newTestServer(t, llm)

	sessionID, err := eng.CreateSession("q", "")
	require.NoError(t, err)
	waitForCompleted(t, s, sessionID)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions/"+sessionID+"/report", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "# Report\n\nbody", rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/markdown")
}

func TestCancelSessionHandler_ReturnsNoContent(t *testing.T) {
	s, eng := newTestServer(t, mock.NewLLM(mock.ChatResponse{Text: "thinking"}))

	sessionID, err := eng.CreateSession("q", "")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/"+sessionID+"/cancel", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestGetFileHandler_RejectsPathEscape(t *testing.T) {
	s, eng := newTestServer(t, mock.NewLLM())

	sessionID, err := eng.CreateSession("q", "")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions/"+sessionID+"/files/../../etc/passwd", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.NotEqual(t, http.StatusOK, rec.Code)
}

func TestHealthHandler_ReturnsOK(t *testing.T) {
	s, _ := newTestServer(t, mock.NewLLM())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}
