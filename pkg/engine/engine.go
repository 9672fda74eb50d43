// Package engine wires the session store, workspace manager, providers and
// orchestrator/sub-agent loops into the single API surface the HTTP shell
// (and tests) drive a research session through: CreateSession, Subscribe,
// Status, Report, Flow, FilePath, Cancel.
package engine

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/tarsy-labs/deepresearch/pkg/config"
	"github.com/tarsy-labs/deepresearch/pkg/model"
	"github.com/tarsy-labs/deepresearch/pkg/orchestrator"
	"github.com/tarsy-labs/deepresearch/pkg/providers"
	"github.com/tarsy-labs/deepresearch/pkg/ratelimit"
	"github.com/tarsy-labs/deepresearch/pkg/store"
	"github.com/tarsy-labs/deepresearch/pkg/subagent"
	"github.com/tarsy-labs/deepresearch/pkg/tools"
	"github.com/tarsy-labs/deepresearch/pkg/workspace"
)

// Providers bundles the three external capability backends a session needs.
// One Engine serves every session with the same set of providers; per-call
// credentials or multi-tenant routing are out of scope.
type Providers struct {
	LLM    providers.LLMProvider
	Search providers.SearchProvider
	Sandbox providers.SandboxProvider
}

// Engine is the top-level session API surface.
type Engine struct {
	cfg       *config.Config
	store     *store.Store
	workspace *workspace.Manager
	providers Providers
	searchGate *ratelimit.Gate

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// New builds an Engine from a resolved Config and the provider backends to
// use for every session.
func New(cfg *config.Config, p Providers) *Engine {
	return &Engine{
		cfg:        cfg,
		store:      store.New(cfg.Limits.SubscriberBufferSize),
		workspace:  workspace.New(cfg.WorkspaceRoot),
		providers:  p,
		searchGate: ratelimit.New(time.Duration(cfg.Limits.MinSearchSpacingMs)*time.Millisecond, 3),
		cancels:    make(map[string]context.CancelFunc),
	}
}

// Store exposes the underlying session store, e.g. for the cleanup service
// and the HTTP shell's read endpoints.
func (e *Engine) Store() *store.Store { return e.store }

// Workspace exposes the underlying workspace manager, e.g. for the HTTP
// shell's file-download endpoint.
func (e *Engine) Workspace() *workspace.Manager { return e.workspace }

// CreateSession allocates a new session, prepares its workspace, and starts
// the orchestrator loop in the background. It returns the session id
// immediately; callers use Subscribe to observe progress.
func (e *Engine) CreateSession(query, clarification string) (string, error) {
	models := model.ModelSelection{
		Orchestrator: e.cfg.Models.Orchestrator,
		Planner:      e.cfg.Models.Planner,
		Summarizer:   e.cfg.Models.Summarizer,
		ReportWriter: e.cfg.Models.ReportWriter,
		SubAgent:     e.cfg.Models.SubAgent,
	}

	sessionID := e.store.Create(query, clarification, models)
	if err := e.workspace.CreateSession(sessionID); err != nil {
		return "", fmt.Errorf("engine: prepare workspace: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	e.mu.Lock()
	e.cancels[sessionID] = cancel
	e.mu.Unlock()

	go e.runOrchestrator(ctx, sessionID, query, clarification)

	return sessionID, nil
}

// Subscribe attaches a live subscription to sessionID's event log.
func (e *Engine) Subscribe(sessionID string) (*store.Subscription, error) {
	return e.store.Subscribe(sessionID)
}

// Status returns a snapshot of sessionID's current state.
func (e *Engine) Status(sessionID string) (*model.Session, error) {
	return e.store.Get(sessionID)
}

// Report returns the final report markdown for sessionID. If write_report
// never ran but the session completed successfully, it falls back to the
// largest non-worklog markdown file anywhere in the session's workspace;
// otherwise it returns a placeholder rather than an error, since "no report
// yet" is an expected state for a running or failed session.
func (e *Engine) Report(sessionID string) (string, error) {
	sess, err := e.store.Get(sessionID)
	if err != nil {
		return "", err
	}

	reportPath := filepath.Join(e.workspace.SessionDir(sessionID), "final_report.md")
	if data, err := os.ReadFile(reportPath); err == nil {
		return string(data), nil
	}

	if sess.Status == model.SessionCompleted {
		if data, ok := e.largestMarkdownFallback(sessionID); ok {
			return data, nil
		}
	}

	return "No report is available yet.", nil
}

// largestMarkdownFallback returns the content of the largest .md file in
// sessionID's workspace, excluding worklog.md files, or false if none exist.
func (e *Engine) largestMarkdownFallback(sessionID string) (string, bool) {
	root := e.workspace.SessionDir(sessionID)

	var bestPath string
	var bestSize int64
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || d.Name() == "worklog.md" || filepath.Ext(path) != ".md" {
			return nil
		}
		info, err := d.Info()
		if err != nil || info.Size() <= bestSize {
			return nil
		}
		bestSize = info.Size()
		bestPath = path
		return nil
	})
	if bestPath == "" {
		return "", false
	}

	data, err := os.ReadFile(bestPath)
	if err != nil {
		return "", false
	}
	return string(data), true
}

// FilePath resolves a containment-checked path to an artifact within
// sessionID's workspace, for the HTTP shell's file-download endpoint.
func (e *Engine) FilePath(sessionID, relPath string) (string, error) {
	return workspace.ResolveUnder(e.workspace.SessionDir(sessionID), relPath)
}

// Flow returns the session's current agent/tool-call topology.
func (e *Engine) Flow(sessionID string) (*model.FlowData, error) {
	return e.store.FlowData(sessionID)
}

// Cancel stops sessionID's orchestrator (and, transitively, its running
// sub-agents) and marks the session failed.
func (e *Engine) Cancel(sessionID string) error {
	e.mu.Lock()
	cancel, ok := e.cancels[sessionID]
	e.mu.Unlock()
	if !ok {
		return &store.ErrSessionNotFound{SessionID: sessionID}
	}
	cancel()
	return e.store.UpdateSessionStatus(sessionID, model.SessionFailed, "cancelled")
}

func (e *Engine) runOrchestrator(ctx context.Context, sessionID, query, clarification string) {
	defer func() {
		e.mu.Lock()
		delete(e.cancels, sessionID)
		e.mu.Unlock()
		e.workspace.ScheduleDeletion(sessionID, time.Duration(e.cfg.Limits.SessionCleanupDelayMs)*time.Millisecond, func() bool {
			return e.store.Exists(sessionID)
		})
	}()

	var agentsMu sync.Mutex
	agentCancels := make(map[string]context.CancelFunc)

	orchDeps := &tools.OrchestratorDeps{
		Store:        e.store,
		Workspace:    e.workspace,
		SessionID:    sessionID,
		Planner:      e.planner(),
		ReportWriter: e.reportWriter(sessionID),
		MaxAgents:    e.cfg.Limits.MaxAgents,
		SpawnFunc: func(agentID, task string) {
			agentCtx, agentCancel := context.WithCancel(ctx)
			agentsMu.Lock()
			agentCancels[agentID] = agentCancel
			agentsMu.Unlock()
			go e.runSubAgent(agentCtx, sessionID, agentID, task)
		},
	}

	orchBudget := tools.NewBudget(nil, e.cfg.Limits.MaxConsecutiveToolFailures)

	runner := &orchestrator.Runner{
		Store:  e.store,
		LLM:    e.providers.LLM,
		Model:  e.cfg.Models.Orchestrator,
		Deps:   orchDeps,
		Budget: orchBudget,
		Config: orchestrator.Config{
			StepCap:          e.cfg.Limits.OrchestratorStepCap,
			AbortGracePeriod: time.Duration(e.cfg.Limits.AbortGracePeriodMs) * time.Millisecond,
		},
		CancelAgents: func(_ context.Context, grace time.Duration) {
			agentsMu.Lock()
			cancels := make([]context.CancelFunc, 0, len(agentCancels))
			for _, c := range agentCancels {
				cancels = append(cancels, c)
			}
			agentsMu.Unlock()
			if len(cancels) == 0 {
				return
			}
			time.Sleep(grace)
			for _, c := range cancels {
				c()
			}
		},
	}

	runner.Run(ctx, sessionID, query, clarification)
}

func (e *Engine) runSubAgent(ctx context.Context, sessionID, agentID, task string) {
	deps := &tools.SubAgentDeps{
		Search:      gatedSearch{gate: e.searchGate, inner: e.providers.Search},
		Sandbox:     e.providers.Sandbox,
		Vision:      e.providers.LLM,
		VisionModel: e.cfg.Models.SubAgent,
		Summarize:   e.summarize(),
		Workspace:   e.workspace,
		SessionID:   sessionID,
		AgentID:     agentID,
	}
	budget := tools.NewBudget(
		tools.DefaultSubAgentLimits(e.cfg.Limits.WebSearchBudget, e.cfg.Limits.FileBudget, e.cfg.Limits.CodeInterpreterBudget, e.cfg.Limits.ViewImageBudget),
		e.cfg.Limits.MaxConsecutiveToolFailures,
	)

	runner := &subagent.Runner{
		Store:  e.store,
		LLM:    e.providers.LLM,
		Model:  e.cfg.Models.SubAgent,
		Deps:   deps,
		Budget: budget,
		Config: subagent.Config{
			StepCap:        e.cfg.Limits.SubAgentStepCap,
			MaxAttempts:    e.cfg.Limits.SubAgentMaxAttempts,
			MinResultChars: e.cfg.Limits.SubAgentMinResultChars,
		},
	}
	runner.Run(ctx, sessionID, agentID, task)
}

// gatedSearch wraps a SearchProvider with the shared rate gate every
// sub-agent's web_search call must go through, per SPEC_FULL.md section
// 4.4.3's single serial-queue requirement across all concurrently running
// sub-agents in a session.
type gatedSearch struct {
	gate  *ratelimit.Gate
	inner providers.SearchProvider
}

func (g gatedSearch) SearchWithContents(ctx context.Context, query string, opts providers.SearchOptions) (*providers.SearchResponse, error) {
	var resp *providers.SearchResponse
	err := g.gate.Do(ctx, func(ctx context.Context) error {
		r, err := g.inner.SearchWithContents(ctx, query, opts)
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	return resp, err
}
