package git

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestFindOrphanedBranches tests the orphaned branch detection logic
func TestFindOrphanedBranches(t *testing.T) {
	ctx := context.Background()
	repo, g := setupRepo(t)

	// Orphaned: workspace-style branch with no worktree
	runGit(t, repo, "branch", "issue-5")
	runGit(t, repo, "branch", "feat/issue-6-search")
	// Ignored: not a workspace branch
	runGit(t, repo, "branch", "feature/test")
	// Active: checked out in a worktree
	_, err := g.Create(ctx, "issue-7", filepath.Join(filepath.Dir(repo), "issue-7"), CreateOptions{CreateBranch: true})
	require.NoError(t, err)

	orphaned, err := g.FindOrphanedBranches(ctx, nil)
	require.NoError(t, err)

	var names []string
	for _, b := range orphaned {
		names = append(names, b.Name)
		assert.False(t, b.Timestamp.IsZero())
	}
	assert.ElementsMatch(t, []string{"issue-5", "feat/issue-6-search"}, names)

	orphaned, err = g.FindOrphanedBranches(ctx, []string{"feature/*"})
	require.NoError(t, err)
	require.Len(t, orphaned, 1)
	assert.Equal(t, "feature/test", orphaned[0].Name)
}

// TestPruneOrphanedBranches tests deletion with a minimum age
func TestPruneOrphanedBranches(t *testing.T) {
	ctx := context.Background()
	repo, g := setupRepo(t)
	runGit(t, repo, "branch", "issue-5")

	// Too recent to prune
	pruned, err := g.PruneOrphanedBranches(ctx, nil, 24*time.Hour, false)
	require.NoError(t, err)
	assert.Empty(t, pruned)

	pruned, err = g.PruneOrphanedBranches(ctx, nil, 0, true)
	require.NoError(t, err)
	require.Len(t, pruned, 1)

	exists, err := g.BranchExists(ctx, "issue-5")
	require.NoError(t, err)
	assert.True(t, exists, "dry run must not delete")

	pruned, err = g.PruneOrphanedBranches(ctx, nil, 0, false)
	require.NoError(t, err)
	require.Len(t, pruned, 1)

	exists, err = g.BranchExists(ctx, "issue-5")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestSummarizeOrphanedBranches(t *testing.T) {
	assert.Equal(t, "No orphaned workspace branches found.", SummarizeOrphanedBranches(nil))

	summary := SummarizeOrphanedBranches([]OrphanedBranch{
		{Name: "issue-1", Age: 2 * 24 * time.Hour},
		{Name: "issue-2", Age: 10 * 24 * time.Hour},
		{Name: "issue-3", Age: 40 * 24 * time.Hour},
	})
	assert.Contains(t, summary, "Found 3 orphaned workspace branch(es)")
	assert.Contains(t, summary, "Recent (< 7 days):\n  - issue-1 (2.0 days old)")
	assert.Contains(t, summary, "Old (7-30 days):\n  - issue-2")
	assert.True(t, strings.Contains(summary, "Very Old (> 30 days):\n  - issue-3"))
}
