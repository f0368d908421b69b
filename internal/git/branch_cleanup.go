package git

import (
	"context"
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"
)

// DefaultWorkspaceBranchPatterns match the branch names loom creates
var DefaultWorkspaceBranchPatterns = []string{"issue-*", "feat/issue-*"}

// OrphanedBranch represents a workspace branch with no associated worktree
type OrphanedBranch struct {
	Name      string
	Timestamp time.Time
	Age       time.Duration
}

// FindOrphanedBranches finds local branches matching any of patterns that
// are not checked out in any worktree. These are usually left over from a
// cleanup that removed the worktree but kept the branch.
func (g *Git) FindOrphanedBranches(ctx context.Context, patterns []string) ([]OrphanedBranch, error) {
	if len(patterns) == 0 {
		patterns = DefaultWorkspaceBranchPatterns
	}

	out, err := g.run(ctx, g.repoRoot, "for-each-ref", "--format=%(refname:short) %(committerdate:unix)", "refs/heads/")
	if err != nil {
		return nil, fmt.Errorf("failed to list branches: %w", err)
	}

	trees, err := g.List(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("failed to list worktrees: %w", err)
	}
	active := make(map[string]bool, len(trees))
	for _, wt := range trees {
		if wt.Branch != "" {
			active[wt.Branch] = true
		}
	}

	var orphaned []OrphanedBranch
	now := time.Now()
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		name, unix, ok := strings.Cut(strings.TrimSpace(line), " ")
		if !ok || active[name] || !matchesAny(name, patterns) {
			continue
		}
		secs, err := strconv.ParseInt(unix, 10, 64)
		if err != nil {
			// Skip branches we can't get timestamps for
			continue
		}
		ts := time.Unix(secs, 0)
		orphaned = append(orphaned, OrphanedBranch{
			Name:      name,
			Timestamp: ts,
			Age:       now.Sub(ts),
		})
	}
	return orphaned, nil
}

// PruneOrphanedBranches force-deletes orphaned branches older than minAge
// and returns the ones deleted (or, with dryRun, the ones that would be).
// A branch that fails to delete is skipped, not fatal.
func (g *Git) PruneOrphanedBranches(ctx context.Context, patterns []string, minAge time.Duration, dryRun bool) ([]OrphanedBranch, error) {
	orphaned, err := g.FindOrphanedBranches(ctx, patterns)
	if err != nil {
		return nil, fmt.Errorf("failed to find orphaned branches: %w", err)
	}

	var pruned []OrphanedBranch
	for _, b := range orphaned {
		if b.Age < minAge {
			continue
		}
		if !dryRun {
			if err := g.DeleteBranch(ctx, b.Name, true); err != nil {
				continue
			}
		}
		pruned = append(pruned, b)
	}
	return pruned, nil
}

// SummarizeOrphanedBranches groups branches by age for display
func SummarizeOrphanedBranches(orphaned []OrphanedBranch) string {
	if len(orphaned) == 0 {
		return "No orphaned workspace branches found."
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Found %d orphaned workspace branch(es):\n\n", len(orphaned)))

	var recent, old, veryOld []OrphanedBranch
	for _, b := range orphaned {
		days := b.Age.Hours() / 24
		switch {
		case days < 7:
			recent = append(recent, b)
		case days < 30:
			old = append(old, b)
		default:
			veryOld = append(veryOld, b)
		}
	}

	writeGroup := func(title string, group []OrphanedBranch) {
		if len(group) == 0 {
			return
		}
		sb.WriteString(title + ":\n")
		for _, b := range group {
			sb.WriteString(fmt.Sprintf("  - %s (%.1f days old)\n", b.Name, b.Age.Hours()/24))
		}
		sb.WriteString("\n")
	}
	writeGroup("Recent (< 7 days)", recent)
	writeGroup("Old (7-30 days)", old)
	writeGroup("Very Old (> 30 days)", veryOld)

	return sb.String()
}

func matchesAny(name string, patterns []string) bool {
	for _, p := range patterns {
		if ok, _ := path.Match(p, name); ok {
			return true
		}
	}
	return false
}
