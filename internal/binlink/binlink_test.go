package binlink

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (binDir, workspace string) {
	t.Helper()
	base := t.TempDir()
	binDir = filepath.Join(base, "bin")
	workspace = filepath.Join(base, "webapp-looms", "issue-42")
	require.NoError(t, os.MkdirAll(filepath.Join(workspace, "dist"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(workspace, "dist", "cli.js"), []byte("#!/usr/bin/env node\n"), 0644))
	return binDir, workspace
}

func TestLinkAndUnlink(t *testing.T) {
	binDir, workspace := setup(t)

	created, err := Link(binDir, workspace, "issue-42", map[string]string{"tool": "dist/cli.js"})
	require.NoError(t, err)
	require.Equal(t, []string{filepath.Join(binDir, "tool-issue-42")}, created)

	target, err := os.Readlink(created[0])
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(workspace, "dist", "cli.js"), target)

	info, err := os.Stat(target)
	require.NoError(t, err)
	assert.NotZero(t, info.Mode()&0111, "target made executable")

	// Relinking the same workspace replaces the link
	_, err = Link(binDir, workspace, "issue-42", map[string]string{"tool": "dist/cli.js"})
	require.NoError(t, err)

	// A foreign link is left alone by Unlink
	foreign := filepath.Join(binDir, "other")
	require.NoError(t, os.Symlink("/usr/bin/env", foreign))

	removed, err := Unlink(binDir, workspace, true)
	require.NoError(t, err)
	assert.Equal(t, created, removed)
	assert.FileExists(t, created[0])

	removed, err = Unlink(binDir, workspace, false)
	require.NoError(t, err)
	assert.Equal(t, created, removed)
	assert.NoFileExists(t, created[0])

	_, err = os.Lstat(foreign)
	assert.NoError(t, err)
}

func TestLinkRefusesConflicts(t *testing.T) {
	binDir, workspace := setup(t)
	require.NoError(t, os.MkdirAll(binDir, 0755))

	require.NoError(t, os.WriteFile(filepath.Join(binDir, "tool-issue-42"), []byte("x"), 0755))
	_, err := Link(binDir, workspace, "issue-42", map[string]string{"tool": "dist/cli.js"})
	assert.Error(t, err)

	_, err = Link(binDir, workspace, "issue-42", map[string]string{"evil": "../../escape.js"})
	assert.Error(t, err)
}

func TestUnlinkMissingDir(t *testing.T) {
	removed, err := Unlink(filepath.Join(t.TempDir(), "nope"), "/tmp/ws", false)
	require.NoError(t, err)
	assert.Empty(t, removed)
}

func TestWithin(t *testing.T) {
	assert.True(t, within("/a/b/c", "/a/b"))
	assert.True(t, within("/a/b", "/a/b"))
	assert.False(t, within("/a/bc", "/a/b"))
	assert.False(t, within("/a", "/a/b"))
}
