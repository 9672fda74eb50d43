// Package cleanup provides the background retention sweep for the session
// store and workspace filesystem.
package cleanup

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/tarsy-labs/deepresearch/pkg/store"
	"github.com/tarsy-labs/deepresearch/pkg/workspace"
)

// Service periodically prunes terminal sessions older than Retention from
// the in-memory Store and removes their workspace directories. Individual
// sessions are also scheduled for workspace deletion at completion time via
// workspace.Manager.ScheduleDeletion (SPEC_FULL.md's SessionCleanupDelayMs);
// this sweep releases the Store-side memory that ScheduleDeletion doesn't
// touch and removes any workspace directory still present for a pruned
// session. It only sees sessions held by this process's Store.
type Service struct {
	store     *store.Store
	workspace *workspace.Manager
	retention time.Duration
	interval  time.Duration

	cancel context.CancelFunc
	done   chan struct{}
}

// NewService builds a Service. interval defaults to an hour if zero.
func NewService(st *store.Store, ws *workspace.Manager, retention, interval time.Duration) *Service {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Service{store: st, workspace: ws, retention: retention, interval: interval}
}

// Start launches the background sweep loop.
func (s *Service) Start(ctx context.Context) {
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go s.run(ctx)

	slog.Info("cleanup service started", "retention", s.retention, "interval", s.interval)
}

// Stop signals the sweep loop to exit and waits for it to finish.
func (s *Service) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	slog.Info("cleanup service stopped")
}

func (s *Service) run(ctx context.Context) {
	defer close(s.done)

	s.sweep()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *Service) sweep() {
	ids := s.store.CleanupOld(s.retention)
	if len(ids) == 0 {
		return
	}
	for _, id := range ids {
		dir := s.workspace.SessionDir(id)
		if err := os.RemoveAll(dir); err != nil {
			slog.Warn("cleanup: failed to remove session workspace", "session_id", id, "dir", dir, "error", err)
		}
	}
	slog.Info("cleanup: pruned terminal sessions", "count", len(ids))
}
