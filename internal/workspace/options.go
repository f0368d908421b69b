package workspace

import (
	"fmt"
	"strings"
)

// CreateOptions configures Manager.Create
type CreateOptions struct {
	// BaseBranch is the start point for a new branch (default: settings base_branch)
	BaseBranch string

	// Force deletes a stray directory already at the allocated path
	Force bool

	// SkipDatabase disables database branch provisioning for this workspace
	SkipDatabase bool

	// NoLaunch creates the workspace without running the launcher
	NoLaunch bool

	// IssueBody is the body used when a description becomes a new issue
	// (default: the description itself)
	IssueBody string

	// Launch is passed to the launcher
	Launch LaunchOptions
}

// Validate checks the options once at the boundary
func (o CreateOptions) Validate() error {
	if strings.ContainsAny(o.BaseBranch, " \t\n~^:?*[\\") {
		return fmt.Errorf("invalid base branch %q", o.BaseBranch)
	}
	return o.Launch.Validate()
}

// CleanupOptions configures Manager.Cleanup
type CleanupOptions struct {
	// DryRun runs every check and reports what would happen without changing anything
	DryRun bool

	// Force removes the worktree despite uncommitted changes or a lock and
	// skips the confirmation prompt for warnings
	Force bool

	// DeleteBranch also deletes the workspace branch
	DeleteBranch bool

	// KeepDatabase leaves the database branch in place
	KeepDatabase bool
}

// LaunchOptions configures a Launcher call
type LaunchOptions struct {
	// Command overrides the configured launch command. {path}, {port}
	// and {branch} are expanded.
	Command []string

	// Wait blocks until the launched command exits
	Wait bool

	// Env adds variables to the launched process's environment
	Env map[string]string
}

// Validate checks the options once at the boundary
func (o LaunchOptions) Validate() error {
	if len(o.Command) > 0 && strings.TrimSpace(o.Command[0]) == "" {
		return fmt.Errorf("launch command cannot start with an empty program")
	}
	for k := range o.Env {
		if k == "" || strings.ContainsAny(k, "= ") {
			return fmt.Errorf("invalid launch environment variable %q", k)
		}
	}
	return nil
}
