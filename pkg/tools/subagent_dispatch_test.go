package tools

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tarsy-labs/deepresearch/pkg/providers"
	"github.com/tarsy-labs/deepresearch/pkg/ratelimit"
	"github.com/tarsy-labs/deepresearch/pkg/toolerrors"
	"github.com/tarsy-labs/deepresearch/pkg/workspace"
)

func newTestSubAgentDeps(t *testing.T, search providers.SearchProvider, sandbox providers.SandboxProvider) *SubAgentDeps {
	t.Helper()
	root := t.TempDir()
	ws := workspace.New(root)
	require.NoError(t, ws.CreateSession("sess1"))
	require.NoError(t, ws.CreateAgent("sess1", "agent_1"))

	return &SubAgentDeps{
		Search:  search,
		Sandbox: sandbox,
		Summarize: func(ctx context.Context, query string, results []providers.SearchResult) (string, error) {
			return "digest of " + query, nil
		},
		Workspace: ws,
		SessionID: "sess1",
		AgentID:   "agent_1",
	}
}

type stubSearch struct {
	resp *providers.SearchResponse
	err  error
}

func (s *stubSearch) SearchWithContents(ctx context.Context, query string, opts providers.SearchOptions) (*providers.SearchResponse, error) {
	return s.resp, s.err
}

func TestSubAgentDispatch_WebSearchSummarizes(t *testing.T) {
	deps := newTestSubAgentDeps(t, &stubSearch{resp: &providers.SearchResponse{
		Results: []providers.SearchResult{{Title: "A", URL: "https://a.example", Text: "content"}},
	}}, nil)
	budget := NewBudget(DefaultSubAgentLimits(10, 10, 10, 10), 3)

	result, tErr := deps.Dispatch(context.Background(), budget, ToolWebSearch, []byte(`{"query":"golang"}`))
	require.Nil(t, tErr)
	out := result.(WebSearchResult)
	assert.Equal(t, "digest of golang", out.Summary)
	require.Len(t, out.Sources, 1)
	assert.Equal(t, "https://a.example", out.Sources[0].URL)
}

func TestSubAgentDispatch_WebSearchRateLimited(t *testing.T) {
	deps := newTestSubAgentDeps(t, &stubSearch{err: &ratelimit.RetryableError{Err: errors.New("429"), RateLimited: true}}, nil)
	budget := NewBudget(DefaultSubAgentLimits(10, 10, 10, 10), 3)

	_, tErr := deps.Dispatch(context.Background(), budget, ToolWebSearch, []byte(`{"query":"golang"}`))
	require.NotNil(t, tErr)
	assert.Equal(t, toolerrors.SearchRateLimited, tErr.ErrorCode)
	assert.True(t, tErr.CanRetry)
}

func TestSubAgentDispatch_FileRestrictedToResultsAndWorklog(t *testing.T) {
	deps := newTestSubAgentDeps(t, nil, nil)
	budget := NewBudget(DefaultSubAgentLimits(10, 10, 10, 10), 3)

	_, tErr := deps.Dispatch(context.Background(), budget, ToolFile, []byte(`{"operation":"write","path":"secrets.md","content":"x"}`))
	require.NotNil(t, tErr)
	assert.Equal(t, toolerrors.FileAccessDenied, tErr.ErrorCode)

	_, tErr = deps.Dispatch(context.Background(), budget, ToolFile, []byte(`{"operation":"write","path":"results.md","content":"final findings"}`))
	require.Nil(t, tErr)

	result, tErr := deps.Dispatch(context.Background(), budget, ToolFile, []byte(`{"operation":"read","path":"results.md"}`))
	require.Nil(t, tErr)
	assert.Equal(t, "final findings", result.(FileResult).Content)
}

func TestSubAgentDispatch_FilePathEscapeDenied(t *testing.T) {
	deps := newTestSubAgentDeps(t, nil, nil)
	budget := NewBudget(DefaultSubAgentLimits(10, 10, 10, 10), 3)

	_, tErr := deps.Dispatch(context.Background(), budget, ToolFile, []byte(`{"operation":"read","path":"../../etc/passwd"}`))
	require.NotNil(t, tErr)
	assert.Equal(t, toolerrors.FileAccessDenied, tErr.ErrorCode)
}

func TestSubAgentDispatch_BudgetExhaustion(t *testing.T) {
	deps := newTestSubAgentDeps(t, &stubSearch{resp: &providers.SearchResponse{}}, nil)
	budget := NewBudget(map[string]int{ToolWebSearch: 1}, 3)

	_, tErr := deps.Dispatch(context.Background(), budget, ToolWebSearch, []byte(`{"query":"first"}`))
	require.Nil(t, tErr)

	_, tErr = deps.Dispatch(context.Background(), budget, ToolWebSearch, []byte(`{"query":"second"}`))
	require.NotNil(t, tErr)
	assert.Equal(t, toolerrors.ToolCallLimitReached, tErr.ErrorCode)
}

func TestSubAgentDispatch_UnknownTool(t *testing.T) {
	deps := newTestSubAgentDeps(t, nil, nil)
	budget := NewBudget(nil, 3)

	_, tErr := deps.Dispatch(context.Background(), budget, "spawn_agent", []byte(`{}`))
	require.NotNil(t, tErr)
	assert.Equal(t, toolerrors.UnknownError, tErr.ErrorCode)
}
