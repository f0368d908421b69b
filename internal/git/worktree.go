package git

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/steveyegge/loom/internal/location"
	"github.com/steveyegge/loom/internal/types"
)

// List returns the repository's worktrees, main worktree first. Unless
// verbose is set, bare and prunable entries are left out since they have
// no usable checkout.
func (g *Git) List(ctx context.Context, verbose bool) ([]types.WorkingTree, error) {
	out, err := g.run(ctx, g.repoRoot, "worktree", "list", "--porcelain")
	if err != nil {
		return nil, fmt.Errorf("failed to list worktrees: %w", err)
	}

	all := parseWorktrees(out)
	if verbose {
		return all, nil
	}
	trees := make([]types.WorkingTree, 0, len(all))
	for _, wt := range all {
		if wt.Bare || wt.Prunable {
			continue
		}
		trees = append(trees, wt)
	}
	return trees, nil
}

// parseWorktrees parses `git worktree list --porcelain`, whose entries are
// blocks of "key value" lines separated by blank lines.
func parseWorktrees(raw string) []types.WorkingTree {
	var trees []types.WorkingTree
	for _, block := range strings.Split(strings.TrimSpace(raw), "\n\n") {
		if wt, ok := parseBlock(strings.TrimSpace(block)); ok {
			trees = append(trees, wt)
		}
	}
	return trees
}

func parseBlock(block string) (types.WorkingTree, bool) {
	var wt types.WorkingTree
	for _, line := range strings.Split(block, "\n") {
		key, value, _ := strings.Cut(strings.TrimRight(line, "\r"), " ")
		switch key {
		case "worktree":
			wt.Path = value
		case "HEAD":
			wt.Head = value
		case "branch":
			wt.Branch = strings.TrimPrefix(value, "refs/heads/")
		case "bare":
			wt.Bare = true
		case "detached":
			wt.Detached = true
		case "locked":
			wt.Locked = true
			wt.LockReason = value
		case "prunable":
			wt.Prunable = true
		}
	}
	return wt, wt.Path != ""
}

// Create adds a worktree for branch at path and returns its absolute path.
// The directory is confirmed visible on disk before returning.
func (g *Git) Create(ctx context.Context, branch, path string, opts CreateOptions) (string, error) {
	if branch == "" {
		return "", types.InputError("create worktree", types.ErrMissingBranch)
	}
	if path == "" {
		return "", types.InputError("create worktree", fmt.Errorf("worktree path is required"))
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}

	if _, err := os.Stat(absPath); err == nil {
		if !opts.Force {
			return "", types.ConflictError("create worktree", fmt.Errorf("%w: %s", types.ErrPathExists, absPath))
		}
		if err := os.RemoveAll(absPath); err != nil {
			return "", fmt.Errorf("failed to clear existing path %s: %w", absPath, err)
		}
		// Drop any registration that pointed at the deleted directory
		_, _ = g.run(ctx, g.repoRoot, "worktree", "prune")
	}

	if err := os.MkdirAll(filepath.Dir(absPath), 0755); err != nil {
		return "", fmt.Errorf("failed to create parent directory: %w", err)
	}

	args := []string{"worktree", "add"}
	if opts.CreateBranch {
		args = append(args, "-b", branch, absPath)
		if opts.BaseBranch != "" {
			args = append(args, opts.BaseBranch)
		}
	} else {
		args = append(args, absPath, branch)
	}

	if _, err := g.run(ctx, g.repoRoot, args...); err != nil {
		// git may leave a half-populated directory behind
		_ = os.RemoveAll(absPath)
		return "", fmt.Errorf("git worktree add failed: %w", err)
	}

	if _, err := os.Stat(absPath); err != nil {
		return "", fmt.Errorf("worktree directory not visible after creation: %w", err)
	}

	return absPath, nil
}

// validateRemoval is shared by dry-run and real removal so a successful
// dry run means the real removal passes the same checks.
func (g *Git) validateRemoval(ctx context.Context, path string, opts RemoveOptions) (*types.WorkingTree, error) {
	wt, err := g.FindByPath(ctx, path)
	if err != nil {
		return nil, err
	}
	if wt == nil {
		return nil, types.NotFoundf("remove worktree", "no worktree at %s", path)
	}
	if samePath(wt.Path, g.repoRoot) {
		return nil, types.ConflictError("remove worktree", fmt.Errorf("refusing to remove the main worktree %s", wt.Path))
	}
	if wt.Locked && !opts.Force {
		reason := ""
		if wt.LockReason != "" {
			reason = " (" + wt.LockReason + ")"
		}
		return nil, types.ConflictError("remove worktree", fmt.Errorf("%w: %s%s", types.ErrWorktreeLocked, wt.Path, reason))
	}
	if !opts.Force && !wt.Prunable {
		dirty, err := g.HasUncommittedChanges(ctx, wt.Path)
		if err != nil {
			return nil, err
		}
		if dirty {
			return nil, types.ConflictError("remove worktree", fmt.Errorf("%w: %s", types.ErrUncommittedChanges, wt.Path))
		}
	}
	return wt, nil
}

// Remove deletes the worktree at path. In dry-run mode every check still
// runs but nothing is changed.
func (g *Git) Remove(ctx context.Context, path string, opts RemoveOptions) (*RemoveResult, error) {
	wt, err := g.validateRemoval(ctx, path, opts)
	if err != nil {
		return nil, err
	}

	result := &RemoveResult{Path: wt.Path, Branch: wt.Branch, DryRun: opts.DryRun}
	if opts.DryRun {
		result.Message = fmt.Sprintf("[DRY RUN] Would remove worktree at %s", wt.Path)
		return result, nil
	}

	if wt.Prunable {
		if _, err := g.run(ctx, g.repoRoot, "worktree", "prune"); err != nil {
			return nil, fmt.Errorf("failed to prune missing worktree %s: %w", wt.Path, err)
		}
		result.Message = fmt.Sprintf("Pruned missing worktree %s", wt.Path)
		return result, nil
	}

	args := []string{"worktree", "remove"}
	if opts.Force {
		args = append(args, "--force")
		if wt.Locked {
			// a locked worktree needs the flag twice
			args = append(args, "--force")
		}
	}
	args = append(args, wt.Path)

	if _, err := g.run(ctx, g.repoRoot, args...); err != nil {
		return nil, fmt.Errorf("git worktree remove failed: %w", err)
	}

	if opts.RemoveDirectory {
		if _, err := os.Stat(wt.Path); err == nil {
			if err := os.RemoveAll(wt.Path); err != nil {
				return nil, fmt.Errorf("failed to remove worktree directory: %w", err)
			}
		}
	}

	result.Message = fmt.Sprintf("Removed worktree at %s", wt.Path)
	return result, nil
}

// Lock marks the worktree at path as locked so git will not prune or remove it
func (g *Git) Lock(ctx context.Context, path, reason string) error {
	wt, err := g.FindByPath(ctx, path)
	if err != nil {
		return err
	}
	if wt == nil {
		return types.NotFoundf("lock worktree", "no worktree at %s", path)
	}
	args := []string{"worktree", "lock"}
	if reason != "" {
		args = append(args, "--reason", reason)
	}
	args = append(args, wt.Path)
	if _, err := g.run(ctx, g.repoRoot, args...); err != nil {
		return fmt.Errorf("failed to lock worktree %s: %w", wt.Path, err)
	}
	return nil
}

// Unlock removes a lock set by Lock
func (g *Git) Unlock(ctx context.Context, path string) error {
	wt, err := g.FindByPath(ctx, path)
	if err != nil {
		return err
	}
	if wt == nil {
		return types.NotFoundf("unlock worktree", "no worktree at %s", path)
	}
	if _, err := g.run(ctx, g.repoRoot, "worktree", "unlock", wt.Path); err != nil {
		return fmt.Errorf("failed to unlock worktree %s: %w", wt.Path, err)
	}
	return nil
}

// FindByPath returns the worktree checked out at path, or nil
func (g *Git) FindByPath(ctx context.Context, path string) (*types.WorkingTree, error) {
	trees, err := g.List(ctx, true)
	if err != nil {
		return nil, err
	}
	for i := range trees {
		if samePath(trees[i].Path, path) {
			return &trees[i], nil
		}
	}
	return nil, nil
}

// FindByBranch returns the worktree with branch checked out, or nil
func (g *Git) FindByBranch(ctx context.Context, branch string) (*types.WorkingTree, error) {
	trees, err := g.List(ctx, false)
	if err != nil {
		return nil, err
	}
	for i := range trees {
		if trees[i].Branch == branch {
			return &trees[i], nil
		}
	}
	return nil, nil
}

// FindByIssueNumber returns the first worktree whose branch names issue n
// (see MatchesIssueNumber), or nil.
func (g *Git) FindByIssueNumber(ctx context.Context, n int) (*types.WorkingTree, error) {
	trees, err := g.List(ctx, false)
	if err != nil {
		return nil, err
	}
	for i := range trees {
		if samePath(trees[i].Path, g.repoRoot) {
			continue
		}
		// PR workspaces are found by FindByPRNumber
		if strings.HasSuffix(trees[i].Path, location.PRSuffix(n)) {
			continue
		}
		if MatchesIssueNumber(trees[i].Branch, n) {
			return &trees[i], nil
		}
	}
	return nil, nil
}

// FindByPRNumber returns the worktree for pull request n. An exact match on
// branch always wins over the "_pr_<n>" directory suffix, so a stale
// directory name cannot shadow a renamed branch.
func (g *Git) FindByPRNumber(ctx context.Context, n int, branch string) (*types.WorkingTree, error) {
	trees, err := g.List(ctx, false)
	if err != nil {
		return nil, err
	}
	if branch != "" {
		for i := range trees {
			if trees[i].Branch == branch {
				return &trees[i], nil
			}
		}
	}
	suffix := location.PRSuffix(n)
	for i := range trees {
		if strings.HasSuffix(filepath.Base(trees[i].Path), suffix) {
			return &trees[i], nil
		}
	}
	return nil, nil
}

// samePath compares two paths after cleaning and resolving symlinks
func samePath(a, b string) bool {
	return canonical(a) == canonical(b)
}

func canonical(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		p = abs
	}
	if resolved, err := filepath.EvalSymlinks(p); err == nil {
		return resolved
	}
	return filepath.Clean(p)
}
