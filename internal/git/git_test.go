package git

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/loom/internal/types"
)

// runGit runs git in dir and fails the test on error
func runGit(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", append([]string{"-C", dir, "-c", "commit.gpgsign=false"}, args...)...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("git %s failed: %v\n%s", strings.Join(args, " "), err, out)
	}
	return strings.TrimSpace(string(out))
}

// setupRepo creates a repository named "webapp" with one commit on main
// and returns its resolved path along with a Git bound to it.
func setupRepo(t *testing.T) (string, *Git) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}

	base, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	repo := filepath.Join(base, "webapp")
	require.NoError(t, os.MkdirAll(repo, 0755))

	runGit(t, repo, "init")
	runGit(t, repo, "symbolic-ref", "HEAD", "refs/heads/main")
	runGit(t, repo, "config", "user.name", "Test User")
	runGit(t, repo, "config", "user.email", "test@example.com")
	require.NoError(t, os.WriteFile(filepath.Join(repo, "README.md"), []byte("# Test Repo\n"), 0644))
	runGit(t, repo, "add", "README.md")
	runGit(t, repo, "commit", "-m", "Initial commit")

	g, err := NewGit(context.Background(), repo)
	require.NoError(t, err)
	return repo, g
}

func TestParseVersion(t *testing.T) {
	tests := []struct {
		output   string
		expected string
	}{
		{"git version 2.43.0\n", "v2.43.0"},
		{"git version 2.39.3 (Apple Git-145)", "v2.39.3"},
		{"git version 2.43.0.windows.1", "v2.43.0"},
		{"git version 2.17", ""},
		{"not git", ""},
	}

	for _, tt := range tests {
		if got := ParseVersion(tt.output); got != tt.expected {
			t.Errorf("ParseVersion(%q) = %q; want %q", tt.output, got, tt.expected)
		}
	}
}

func TestParseWorktrees(t *testing.T) {
	raw := `worktree /src/webapp
HEAD 1111111111111111111111111111111111111111
branch refs/heads/main

worktree /src/webapp-looms/issue-42
HEAD 2222222222222222222222222222222222222222
branch refs/heads/issue-42
locked reviewing

worktree /src/webapp-looms/detached
HEAD 3333333333333333333333333333333333333333
detached

worktree /src/webapp-looms/gone
HEAD 4444444444444444444444444444444444444444
branch refs/heads/gone
prunable gitdir file points to non-existent location
`

	trees := parseWorktrees(raw)
	require.Len(t, trees, 4)

	assert.Equal(t, "/src/webapp", trees[0].Path)
	assert.Equal(t, "main", trees[0].Branch)

	assert.Equal(t, "issue-42", trees[1].Branch)
	assert.True(t, trees[1].Locked)
	assert.Equal(t, "reviewing", trees[1].LockReason)

	assert.True(t, trees[2].Detached)
	assert.Empty(t, trees[2].Branch)

	assert.True(t, trees[3].Prunable)
}

func TestParseStatus(t *testing.T) {
	status, err := parseStatus("?? new.txt\n M changed.go\nA  added.go\n D gone.go\nR  old.go -> new.go\n")
	require.NoError(t, err)

	assert.True(t, status.HasChanges)
	assert.Equal(t, []string{"new.txt"}, status.Untracked)
	assert.Equal(t, []string{"changed.go"}, status.Modified)
	assert.Equal(t, []string{"added.go"}, status.Added)
	assert.Equal(t, []string{"gone.go"}, status.Deleted)
	assert.Equal(t, []string{"old.go -> new.go"}, status.Renamed)

	empty, err := parseStatus("")
	require.NoError(t, err)
	assert.False(t, empty.HasChanges)
}

func TestUncommittedChanges(t *testing.T) {
	ctx := context.Background()
	repo, g := setupRepo(t)

	dirty, err := g.HasUncommittedChanges(ctx, repo)
	require.NoError(t, err)
	assert.False(t, dirty)

	require.NoError(t, os.WriteFile(filepath.Join(repo, "test.txt"), []byte("test content"), 0644))

	dirty, err = g.HasUncommittedChanges(ctx, repo)
	require.NoError(t, err)
	assert.True(t, dirty)

	status, err := g.GetStatus(ctx, repo)
	require.NoError(t, err)
	assert.Equal(t, []string{"test.txt"}, status.Untracked)
}

func TestCreateAndList(t *testing.T) {
	ctx := context.Background()
	repo, g := setupRepo(t)
	target := filepath.Join(filepath.Dir(repo), "webapp-looms", "issue-42")

	path, err := g.Create(ctx, "issue-42", target, CreateOptions{CreateBranch: true, BaseBranch: "main"})
	require.NoError(t, err)
	assert.Equal(t, target, path)
	assert.DirExists(t, path)

	trees, err := g.List(ctx, false)
	require.NoError(t, err)
	require.Len(t, trees, 2)
	assert.Equal(t, repo, trees[0].Path)
	assert.Equal(t, "main", trees[0].Branch)
	assert.Equal(t, target, trees[1].Path)
	assert.Equal(t, "issue-42", trees[1].Branch)
	assert.Len(t, trees[1].Head, 40)

	exists, err := g.BranchExists(ctx, "issue-42")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = g.BranchExists(ctx, "nope")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestCreateExistingBranch(t *testing.T) {
	ctx := context.Background()
	repo, g := setupRepo(t)
	runGit(t, repo, "branch", "feat/login")

	path, err := g.Create(ctx, "feat/login", filepath.Join(filepath.Dir(repo), "login"), CreateOptions{})
	require.NoError(t, err)

	wt, err := g.FindByBranch(ctx, "feat/login")
	require.NoError(t, err)
	require.NotNil(t, wt)
	assert.Equal(t, path, wt.Path)
}

func TestCreateErrors(t *testing.T) {
	ctx := context.Background()
	repo, g := setupRepo(t)

	_, err := g.Create(ctx, "", filepath.Join(filepath.Dir(repo), "x"), CreateOptions{})
	assert.True(t, errors.Is(err, types.ErrMissingBranch))
	assert.Equal(t, types.KindInput, types.KindOf(err))

	occupied := filepath.Join(filepath.Dir(repo), "occupied")
	require.NoError(t, os.MkdirAll(occupied, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(occupied, "stale.txt"), []byte("x"), 0644))

	_, err = g.Create(ctx, "issue-1", occupied, CreateOptions{CreateBranch: true})
	assert.True(t, errors.Is(err, types.ErrPathExists))
	assert.Equal(t, types.KindConflict, types.KindOf(err))

	path, err := g.Create(ctx, "issue-1", occupied, CreateOptions{CreateBranch: true, Force: true})
	require.NoError(t, err)
	assert.NoFileExists(t, filepath.Join(path, "stale.txt"))
	assert.FileExists(t, filepath.Join(path, "README.md"))
}

func TestRemove(t *testing.T) {
	ctx := context.Background()
	repo, g := setupRepo(t)
	path, err := g.Create(ctx, "issue-7", filepath.Join(filepath.Dir(repo), "issue-7"), CreateOptions{CreateBranch: true})
	require.NoError(t, err)

	t.Run("NotFound", func(t *testing.T) {
		_, err := g.Remove(ctx, filepath.Join(filepath.Dir(repo), "missing"), RemoveOptions{})
		assert.True(t, errors.Is(err, types.ErrNotFound))
		assert.Equal(t, types.KindNotFound, types.KindOf(err))
	})

	t.Run("MainWorktree", func(t *testing.T) {
		_, err := g.Remove(ctx, repo, RemoveOptions{Force: true})
		assert.Equal(t, types.KindConflict, types.KindOf(err))
	})

	t.Run("UncommittedChanges", func(t *testing.T) {
		scratch := filepath.Join(path, "scratch.txt")
		require.NoError(t, os.WriteFile(scratch, []byte("wip"), 0644))
		defer os.Remove(scratch)

		_, err := g.Remove(ctx, path, RemoveOptions{})
		assert.True(t, errors.Is(err, types.ErrUncommittedChanges))

		// Dry run shares validation with the real removal
		_, err = g.Remove(ctx, path, RemoveOptions{DryRun: true})
		assert.True(t, errors.Is(err, types.ErrUncommittedChanges))
	})

	t.Run("DryRunThenReal", func(t *testing.T) {
		result, err := g.Remove(ctx, path, RemoveOptions{DryRun: true})
		require.NoError(t, err)
		assert.True(t, result.DryRun)
		assert.True(t, strings.HasPrefix(result.Message, "[DRY RUN]"))
		assert.DirExists(t, path)

		result, err = g.Remove(ctx, path, RemoveOptions{RemoveDirectory: true})
		require.NoError(t, err)
		assert.False(t, result.DryRun)
		assert.Equal(t, "issue-7", result.Branch)
		assert.NoDirExists(t, path)

		wt, err := g.FindByBranch(ctx, "issue-7")
		require.NoError(t, err)
		assert.Nil(t, wt)
	})
}

func TestRemoveForceWithChanges(t *testing.T) {
	ctx := context.Background()
	repo, g := setupRepo(t)
	path, err := g.Create(ctx, "issue-8", filepath.Join(filepath.Dir(repo), "issue-8"), CreateOptions{CreateBranch: true})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(path, "wip.txt"), []byte("wip"), 0644))

	_, err = g.Remove(ctx, path, RemoveOptions{Force: true, RemoveDirectory: true})
	require.NoError(t, err)
	assert.NoDirExists(t, path)
}

func TestLockedWorktree(t *testing.T) {
	ctx := context.Background()
	repo, g := setupRepo(t)
	path, err := g.Create(ctx, "issue-9", filepath.Join(filepath.Dir(repo), "issue-9"), CreateOptions{CreateBranch: true})
	require.NoError(t, err)

	require.NoError(t, g.Lock(ctx, path, "in review"))

	wt, err := g.FindByPath(ctx, path)
	require.NoError(t, err)
	require.NotNil(t, wt)
	assert.True(t, wt.Locked)
	assert.Equal(t, "in review", wt.LockReason)

	_, err = g.Remove(ctx, path, RemoveOptions{})
	assert.True(t, errors.Is(err, types.ErrWorktreeLocked))

	require.NoError(t, g.Unlock(ctx, path))
	require.NoError(t, g.Lock(ctx, path, ""))

	_, err = g.Remove(ctx, path, RemoveOptions{Force: true})
	require.NoError(t, err)

	assert.Error(t, g.Lock(ctx, path, ""))
}

func TestFindByIssueNumber(t *testing.T) {
	ctx := context.Background()
	repo, g := setupRepo(t)
	parent := filepath.Dir(repo)

	_, err := g.Create(ctx, "issue-123", filepath.Join(parent, "issue-123"), CreateOptions{CreateBranch: true})
	require.NoError(t, err)
	_, err = g.Create(ctx, "tissue-12", filepath.Join(parent, "tissue-12"), CreateOptions{CreateBranch: true})
	require.NoError(t, err)

	wt, err := g.FindByIssueNumber(ctx, 12)
	require.NoError(t, err)
	assert.Nil(t, wt)

	_, err = g.Create(ctx, "feat/issue-12-login", filepath.Join(parent, "feat-issue-12-login"), CreateOptions{CreateBranch: true})
	require.NoError(t, err)

	wt, err = g.FindByIssueNumber(ctx, 12)
	require.NoError(t, err)
	require.NotNil(t, wt)
	assert.Equal(t, "feat/issue-12-login", wt.Branch)

	wt, err = g.FindByIssueNumber(ctx, 123)
	require.NoError(t, err)
	require.NotNil(t, wt)
	assert.Equal(t, "issue-123", wt.Branch)
}

// A directory carrying the PR suffix must not shadow the worktree that
// actually has the PR's head branch checked out.
func TestFindByPRNumberExactBranchWins(t *testing.T) {
	ctx := context.Background()
	repo, g := setupRepo(t)
	parent := filepath.Dir(repo)

	stale, err := g.Create(ctx, "old-name", filepath.Join(parent, "old-name_pr_5"), CreateOptions{CreateBranch: true})
	require.NoError(t, err)

	wt, err := g.FindByPRNumber(ctx, 5, "fix/crash")
	require.NoError(t, err)
	require.NotNil(t, wt)
	assert.Equal(t, stale, wt.Path)

	current, err := g.Create(ctx, "fix/crash", filepath.Join(parent, "renamed"), CreateOptions{CreateBranch: true})
	require.NoError(t, err)

	wt, err = g.FindByPRNumber(ctx, 5, "fix/crash")
	require.NoError(t, err)
	require.NotNil(t, wt)
	assert.Equal(t, current, wt.Path)

	wt, err = g.FindByPRNumber(ctx, 6, "")
	require.NoError(t, err)
	assert.Nil(t, wt)
}

func TestNewGitFromLinkedWorktree(t *testing.T) {
	ctx := context.Background()
	repo, g := setupRepo(t)
	path, err := g.Create(ctx, "issue-3", filepath.Join(filepath.Dir(repo), "issue-3"), CreateOptions{CreateBranch: true})
	require.NoError(t, err)

	linked, err := NewGit(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, repo, linked.RepoRoot())
}

func TestNewGitNotARepository(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	_, err := NewGit(context.Background(), t.TempDir())
	assert.Error(t, err)
}

func TestBranchDeletionAndMerge(t *testing.T) {
	ctx := context.Background()
	repo, g := setupRepo(t)

	runGit(t, repo, "branch", "merged")
	merged, err := g.IsMerged(ctx, "merged", "main")
	require.NoError(t, err)
	assert.True(t, merged)

	runGit(t, repo, "checkout", "-b", "ahead")
	require.NoError(t, os.WriteFile(filepath.Join(repo, "ahead.txt"), []byte("x"), 0644))
	runGit(t, repo, "add", "ahead.txt")
	runGit(t, repo, "commit", "-m", "ahead")
	runGit(t, repo, "checkout", "main")

	merged, err = g.IsMerged(ctx, "ahead", "main")
	require.NoError(t, err)
	assert.False(t, merged)

	assert.Error(t, g.DeleteBranch(ctx, "ahead", false))
	require.NoError(t, g.DeleteBranch(ctx, "ahead", true))
	require.NoError(t, g.DeleteBranch(ctx, "merged", false))

	exists, err := g.BranchExists(ctx, "ahead")
	require.NoError(t, err)
	assert.False(t, exists)
}
