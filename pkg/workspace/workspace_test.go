package workspace

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateSessionAndAgent(t *testing.T) {
	root := t.TempDir()
	m := New(root)

	require.NoError(t, m.CreateSession("sess1"))
	require.NoError(t, m.CreateAgent("sess1", "agent_1"))

	_, err := os.Stat(filepath.Join(m.AgentDir("sess1", "agent_1"), "worklog.md"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(m.AgentDir("sess1", "agent_1"), "results.md"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(m.AgentDir("sess1", "agent_1"), "charts"))
	assert.NoError(t, err)
}

func TestResolveUnder_RejectsEscape(t *testing.T) {
	root := t.TempDir()

	_, err := ResolveUnder(root, "../../etc/passwd")
	assert.Error(t, err)

	_, err = ResolveUnder(root, "subdir/../../escaped.txt")
	assert.Error(t, err)
}

func TestResolveUnder_AllowsNestedPath(t *testing.T) {
	root := t.TempDir()

	resolved, err := ResolveUnder(root, "agents/agent_1/results.md")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "agents", "agent_1", "results.md"), resolved)
}

func TestResolveUnder_RejectsSymlinkEscape(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	target := filepath.Join(outside, "secret.txt")
	require.NoError(t, os.WriteFile(target, []byte("secret"), 0o644))

	link := filepath.Join(root, "link.txt")
	require.NoError(t, os.Symlink(target, link))

	_, err := ResolveUnder(root, "link.txt")
	assert.Error(t, err)
}

func TestCopyArtifact(t *testing.T) {
	root := t.TempDir()
	m := New(root)
	require.NoError(t, m.CreateSession("sess1"))

	src := filepath.Join(t.TempDir(), "chart.png")
	require.NoError(t, os.WriteFile(src, []byte("fake png bytes"), 0o644))

	dest, err := m.CopyArtifact("sess1", "agent_1", "chart.png", src)
	require.NoError(t, err)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "fake png bytes", string(data))
}

func TestScheduleDeletion_SkipsWhenNotRelevant(t *testing.T) {
	root := t.TempDir()
	m := New(root)
	require.NoError(t, m.CreateSession("sess1"))

	m.ScheduleDeletion("sess1", 10*time.Millisecond, func() bool { return false })
	time.Sleep(40 * time.Millisecond)

	_, err := os.Stat(m.SessionDir("sess1"))
	assert.NoError(t, err, "workspace should survive when stillRelevant returns false")
}

func TestScheduleDeletion_RemovesWhenRelevant(t *testing.T) {
	root := t.TempDir()
	m := New(root)
	require.NoError(t, m.CreateSession("sess1"))

	m.ScheduleDeletion("sess1", 10*time.Millisecond, func() bool { return true })
	time.Sleep(40 * time.Millisecond)

	_, err := os.Stat(m.SessionDir("sess1"))
	assert.True(t, os.IsNotExist(err))
}
