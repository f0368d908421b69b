package git

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/mod/semver"

	"github.com/steveyegge/loom/internal/types"
)

// MinVersion is the oldest git with `worktree remove` and `worktree lock --reason`
const MinVersion = "v2.17.0"

// Git implements WorkingTreeStore using the git CLI.
// Every call re-reads on-disk state; nothing is cached between calls.
type Git struct {
	// gitPath is the path to the git executable
	gitPath string

	// repoRoot is the main worktree of the repository all calls operate on
	repoRoot string

	// timeout bounds each git invocation; zero means only the caller's ctx applies
	timeout time.Duration
}

// Option configures a Git
type Option func(*Git)

// WithTimeout bounds each git invocation
func WithTimeout(d time.Duration) Option {
	return func(g *Git) { g.timeout = d }
}

// NewGit creates a Git bound to the repository containing repoPath.
// It verifies that git is available and new enough.
func NewGit(ctx context.Context, repoPath string, opts ...Option) (*Git, error) {
	gitPath, err := exec.LookPath("git")
	if err != nil {
		return nil, fmt.Errorf("git not found in PATH: %w", err)
	}

	g := &Git{gitPath: gitPath}
	for _, opt := range opts {
		opt(g)
	}

	out, err := g.run(ctx, "", "version")
	if err != nil {
		return nil, fmt.Errorf("git command failed: %w", err)
	}
	version := ParseVersion(out)
	if version == "" {
		return nil, fmt.Errorf("unrecognized git version output: %q", strings.TrimSpace(out))
	}
	if semver.Compare(version, MinVersion) < 0 {
		return nil, fmt.Errorf("git %s is too old (need %s or newer)", strings.TrimPrefix(version, "v"), strings.TrimPrefix(MinVersion, "v"))
	}

	// The common dir's parent is the main worktree even when called from a linked one
	absRepo, err := filepath.Abs(repoPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", repoPath, err)
	}
	common, err := g.run(ctx, absRepo, "rev-parse", "--git-common-dir")
	if err != nil {
		return nil, fmt.Errorf("not a git repository: %s: %w", repoPath, err)
	}
	common = strings.TrimSpace(common)
	if !filepath.IsAbs(common) {
		common = filepath.Join(absRepo, common)
	}
	if filepath.Base(common) == ".git" {
		g.repoRoot = filepath.Dir(common)
	} else {
		top, err := g.run(ctx, absRepo, "rev-parse", "--show-toplevel")
		if err != nil {
			return nil, fmt.Errorf("failed to find repository root: %w", err)
		}
		g.repoRoot = strings.TrimSpace(top)
	}

	return g, nil
}

// ParseVersion extracts a semver string ("v2.43.0") from `git version` output
func ParseVersion(out string) string {
	fields := strings.Fields(out)
	if len(fields) < 3 {
		return ""
	}
	// "git version 2.39.3 (Apple Git-145)" or "git version 2.43.0.windows.1"
	parts := strings.Split(fields[2], ".")
	if len(parts) > 3 {
		parts = parts[:3]
	}
	v := "v" + strings.Join(parts, ".")
	if !semver.IsValid(v) {
		return ""
	}
	return v
}

// RepoRoot returns the main worktree path
func (g *Git) RepoRoot() string {
	return g.repoRoot
}

// run executes git in dir and returns stdout. Stderr is folded into the
// error so callers can report what git said.
func (g *Git) run(ctx context.Context, dir string, args ...string) (string, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	if dir != "" {
		args = append([]string{"-C", dir}, args...)
	}
	cmd := exec.CommandContext(ctx, g.gitPath, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = strings.TrimSpace(stdout.String())
		}
		cmdErr := fmt.Errorf("git %s: %w (output: %s)", strings.Join(args, " "), err, msg)
		return stdout.String(), types.ExternalCtx(ctx, "git", cmdErr)
	}
	return stdout.String(), nil
}

// HasUncommittedChanges checks if there are staged, unstaged, or untracked changes.
// SECURITY: path must be a validated, trusted path.
func (g *Git) HasUncommittedChanges(ctx context.Context, path string) (bool, error) {
	status, err := g.GetStatus(ctx, path)
	if err != nil {
		return false, fmt.Errorf("failed to check uncommitted changes in %s: %w", path, err)
	}
	return status.HasChanges, nil
}

// GetStatus returns the git status of the worktree at path.
// SECURITY: path must be a validated, trusted path.
func (g *Git) GetStatus(ctx context.Context, path string) (*Status, error) {
	output, err := g.run(ctx, path, "status", "--porcelain")
	if err != nil {
		return nil, fmt.Errorf("git status failed in %s: %w", path, err)
	}
	return parseStatus(output)
}

func parseStatus(output string) (*Status, error) {
	status := &Status{
		Modified:  []string{},
		Untracked: []string{},
		Deleted:   []string{},
		Added:     []string{},
		Renamed:   []string{},
	}

	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := scanner.Text()
		if len(line) < 3 {
			continue
		}

		statusCode := line[0:2]
		filePath := line[3:]

		// XY where X=index, Y=working tree
		switch {
		case strings.HasPrefix(statusCode, "??"):
			status.Untracked = append(status.Untracked, filePath)
		case strings.HasPrefix(statusCode, "A "), strings.HasPrefix(statusCode, "AM"):
			status.Added = append(status.Added, filePath)
		case strings.HasPrefix(statusCode, "D "), strings.HasPrefix(statusCode, " D"):
			status.Deleted = append(status.Deleted, filePath)
		case strings.HasPrefix(statusCode, "R "):
			status.Renamed = append(status.Renamed, filePath)
		default:
			status.Modified = append(status.Modified, filePath)
		}

		status.HasChanges = true
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to parse git status: %w", err)
	}

	return status, nil
}

// BranchExists reports whether a local branch exists
func (g *Git) BranchExists(ctx context.Context, branch string) (bool, error) {
	_, err := g.run(ctx, g.repoRoot, "show-ref", "--verify", "--quiet", "refs/heads/"+branch)
	if err == nil {
		return true, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
		return false, nil
	}
	return false, err
}

// FetchBranch fetches branch from remote into a local branch of the same name
func (g *Git) FetchBranch(ctx context.Context, remote, branch string) error {
	if remote == "" {
		remote = "origin"
	}
	if _, err := g.run(ctx, g.repoRoot, "fetch", remote, branch+":"+branch); err != nil {
		return fmt.Errorf("failed to fetch %s from %s: %w", branch, remote, err)
	}
	return nil
}

// DeleteBranch deletes a local branch. force uses -D instead of -d.
func (g *Git) DeleteBranch(ctx context.Context, branch string, force bool) error {
	if branch == "" {
		return types.InputError("delete branch", types.ErrMissingBranch)
	}
	flag := "-d"
	if force {
		flag = "-D"
	}
	if _, err := g.run(ctx, g.repoRoot, "branch", flag, branch); err != nil {
		return fmt.Errorf("failed to delete branch %s: %w", branch, err)
	}
	return nil
}

// IsMerged reports whether branch is fully merged into base
func (g *Git) IsMerged(ctx context.Context, branch, base string) (bool, error) {
	out, err := g.run(ctx, g.repoRoot, "branch", "--format=%(refname:short)", "--merged", base)
	if err != nil {
		return false, fmt.Errorf("failed to list branches merged into %s: %w", base, err)
	}
	for _, line := range strings.Split(out, "\n") {
		if strings.TrimSpace(line) == branch {
			return true, nil
		}
	}
	return false, nil
}
