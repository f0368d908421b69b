package envfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetVarCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", ".env")
	w := NewWriter("")

	require.NoError(t, w.SetPort(path, 3042))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "PORT=3042\n", string(data))

	port, ok, err := w.Port(path)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 3042, port)
}

func TestSetVarPreservesOtherLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	original := "# local settings\nAPI_KEY=abc\nexport PORT=3000\n\nDEBUG=true\n"
	require.NoError(t, os.WriteFile(path, []byte(original), 0644))
	w := NewWriter("PORT")

	require.NoError(t, w.SetPort(path, 3042))
	require.NoError(t, w.SetVar(path, "DATABASE_URL", "postgres://localhost/app_issue_42"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "# local settings\nAPI_KEY=abc\nPORT=3042\n\nDEBUG=true\nDATABASE_URL=\"postgres://localhost/app_issue_42\"\n", string(data))

	env, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, "abc", env["API_KEY"])
	assert.Equal(t, "3042", env["PORT"])
	assert.Equal(t, "postgres://localhost/app_issue_42", env["DATABASE_URL"])
}

func TestSetVarDuplicateAssignments(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("PORT=1\nPORT=2\n"), 0644))
	w := NewWriter("")

	require.NoError(t, w.SetPort(path, 3007))

	v, ok, err := w.GetVar(path, "PORT")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "3007", v)
}

func TestSetVarRejectsBadInput(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	w := NewWriter("")

	assert.Error(t, w.SetVar(path, "BAD KEY", "x"))
	assert.Error(t, w.SetVar(path, "1ABC", "x"))
	assert.Error(t, w.SetPort(path, 0))
	assert.Error(t, w.SetPort(path, 70000))
	assert.NoFileExists(t, path)
}

func TestPortMissingOrInvalid(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter("")

	_, ok, err := w.Port(filepath.Join(dir, "missing.env"))
	require.NoError(t, err)
	assert.False(t, ok)

	bad := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(bad, []byte("PORT=abc\n"), 0644))
	_, ok, err = w.Port(bad)
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestSeed(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "repo", ".env")
	dst := filepath.Join(dir, "worktree", ".env")
	w := NewWriter("")

	copied, err := w.Seed(src, dst)
	require.NoError(t, err)
	assert.False(t, copied, "missing source is not an error")

	require.NoError(t, os.MkdirAll(filepath.Dir(src), 0755))
	require.NoError(t, os.WriteFile(src, []byte("SECRET=1\n"), 0644))

	copied, err = w.Seed(src, dst)
	require.NoError(t, err)
	assert.True(t, copied)

	require.NoError(t, os.WriteFile(dst, []byte("SECRET=2\n"), 0644))
	copied, err = w.Seed(src, dst)
	require.NoError(t, err)
	assert.False(t, copied, "existing destination is kept")

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "SECRET=2\n", string(data))
}
