package workspace

import (
	"context"
	"time"

	"github.com/steveyegge/loom/internal/git"
	"github.com/steveyegge/loom/internal/identifier"
	"github.com/steveyegge/loom/internal/process"
	"github.com/steveyegge/loom/internal/types"
)

// TreeStore is the working-tree access the manager needs. *git.Git
// implements it.
type TreeStore interface {
	RepoRoot() string
	List(ctx context.Context, verbose bool) ([]types.WorkingTree, error)
	Create(ctx context.Context, branch, path string, opts git.CreateOptions) (string, error)
	Remove(ctx context.Context, path string, opts git.RemoveOptions) (*git.RemoveResult, error)
	FindByBranch(ctx context.Context, branch string) (*types.WorkingTree, error)
	FindByIssueNumber(ctx context.Context, n int) (*types.WorkingTree, error)
	FindByPRNumber(ctx context.Context, n int, branch string) (*types.WorkingTree, error)
	HasUncommittedChanges(ctx context.Context, path string) (bool, error)
	BranchExists(ctx context.Context, branch string) (bool, error)
	FetchBranch(ctx context.Context, remote, branch string) error
	DeleteBranch(ctx context.Context, branch string, force bool) error
	IsMerged(ctx context.Context, branch, base string) (bool, error)
}

// IssueTracker looks up and files issues. *github.Tracker implements it.
type IssueTracker interface {
	identifier.IssueClassifier
	CreateIssue(ctx context.Context, title, body string) (int, error)
	GetIssue(ctx context.Context, number int) (*types.IssueData, error)
	GetPullRequest(ctx context.Context, number int) (*types.IssueData, error)
}

// ProcessProbe finds and stops the dev server on a port. *process.Probe
// implements it.
type ProcessProbe interface {
	Detect(ctx context.Context, port int) (*process.ProcessInfo, error)
	Terminate(ctx context.Context, pid int) (bool, error)
	VerifyFree(ctx context.Context, port int, timeout time.Duration) (bool, error)
}

// DatabaseBranchProvider provisions a database per workspace branch.
// CreateBranchIfConfigured returns "" when nothing was provisioned.
// CheckBranch reports whether DeleteBranch is expected to succeed and
// changes nothing.
type DatabaseBranchProvider interface {
	CreateBranchIfConfigured(ctx context.Context, branch, envFilePath string) (string, error)
	CheckBranch(ctx context.Context, branch string, force bool) error
	DeleteBranch(ctx context.Context, branch string, force bool) error
}

// EnvironmentWriter edits a workspace's env file. *envfile.Writer
// implements it.
type EnvironmentWriter interface {
	GetVar(path, key string) (string, bool, error)
	SetVar(path, key, value string) error
	SetPort(path string, port int) error
	Port(path string) (int, bool, error)
	Seed(src, dst string) (bool, error)
}

// Launcher opens a ready workspace in an editor, terminal or assistant
type Launcher interface {
	Launch(ctx context.Context, ws *types.WorkspaceRecord, opts LaunchOptions) error
}

// Confirmer asks the user whether to continue past safety warnings
type Confirmer interface {
	Confirm(ctx context.Context, check *types.SafetyCheck) (bool, error)
}

// Summarizer turns a task description into an issue title and branch slug
type Summarizer interface {
	Summarize(ctx context.Context, description string) (*types.Summary, error)
}
