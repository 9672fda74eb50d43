// Package workspace manages the per-session directory trees under the
// configured workspace root: plan file, worklog, per-agent directories, and
// shared artifacts, plus the path-containment checks every tool that
// resolves a user-supplied path must go through.
package workspace

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tarsy-labs/deepresearch/pkg/toolerrors"
)

// Manager creates and tears down session workspaces under root.
type Manager struct {
	root string
}

// New builds a Manager rooted at root (SPEC_FULL.md config: WorkspaceRoot).
func New(root string) *Manager {
	return &Manager{root: root}
}

// SessionDir returns the absolute path of sessionID's workspace, without
// creating it.
func (m *Manager) SessionDir(sessionID string) string {
	return filepath.Join(m.root, sessionID)
}

// AgentDir returns the absolute path of agentID's directory within
// sessionID's workspace.
func (m *Manager) AgentDir(sessionID, agentID string) string {
	return filepath.Join(m.SessionDir(sessionID), "agents", agentID)
}

// ArtifactsDir returns the absolute path of agentID's shared-artifacts
// directory within sessionID's workspace.
func (m *Manager) ArtifactsDir(sessionID, agentID string) string {
	return filepath.Join(m.SessionDir(sessionID), "artifacts", agentID)
}

// CreateSession creates the base session directory tree: the session root
// and the shared artifacts directory.
func (m *Manager) CreateSession(sessionID string) error {
	dir := m.SessionDir(sessionID)
	if err := os.MkdirAll(filepath.Join(dir, "artifacts"), 0o755); err != nil {
		return fmt.Errorf("create session workspace: %w", err)
	}
	return nil
}

// CreateAgent creates agentID's directory tree, including its charts
// subdirectory, and seeds worklog.md and results.md placeholders.
func (m *Manager) CreateAgent(sessionID, agentID string) error {
	dir := m.AgentDir(sessionID, agentID)
	if err := os.MkdirAll(filepath.Join(dir, "charts"), 0o755); err != nil {
		return fmt.Errorf("create agent workspace: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "worklog.md"), []byte("# Worklog\n\n"), 0o644); err != nil {
		return fmt.Errorf("seed worklog: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "results.md"), []byte("# Results\n\n"), 0o644); err != nil {
		return fmt.Errorf("seed results: %w", err)
	}
	return nil
}

// ResolveUnder canonicalizes name relative to baseDir and verifies the
// result is a descendant of baseDir, refusing the path if it is itself a
// symlink (only the final path component is checked). Every tool that
// accepts a path from the LLM must call this before touching the filesystem.
func ResolveUnder(baseDir, name string) (string, error) {
	baseAbs, err := filepath.Abs(baseDir)
	if err != nil {
		return "", toolerrors.New(toolerrors.FileAccessDenied, "could not resolve base directory", "retry with a different path", false)
	}
	candidate := filepath.Join(baseAbs, name)
	candidateClean := filepath.Clean(candidate)

	rel, err := filepath.Rel(baseAbs, candidateClean)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", toolerrors.New(toolerrors.FileAccessDenied, "path escapes the session workspace", "use a path inside your workspace", false)
	}

	if info, err := os.Lstat(candidateClean); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return "", toolerrors.New(toolerrors.FileAccessDenied, "symlinks are not permitted", "use a regular file path", false)
	}

	return candidateClean, nil
}

// CopyArtifact copies src (an absolute path, already containment-checked)
// into sessionID's artifacts/<agentID>/ directory under the given name.
func (m *Manager) CopyArtifact(sessionID, agentID, name, src string) (string, error) {
	destDir := m.ArtifactsDir(sessionID, agentID)
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", err
	}
	dest := filepath.Join(destDir, name)

	in, err := os.Open(src)
	if err != nil {
		return "", err
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return "", err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return "", err
	}
	return dest, nil
}

// ScheduleDeletion removes sessionID's workspace after delay, unless
// stillRelevant returns false at fire time; callers pass a closure checking
// store.Exists or similar, so a session already pruned from the store is
// skipped.
func (m *Manager) ScheduleDeletion(sessionID string, delay time.Duration, stillRelevant func() bool) {
	time.AfterFunc(delay, func() {
		if stillRelevant != nil && !stillRelevant() {
			return
		}
		dir := m.SessionDir(sessionID)
		if err := os.RemoveAll(dir); err != nil {
			slog.Warn("failed to delete session workspace", "session_id", sessionID, "dir", dir, "error", err)
		}
	})
}
