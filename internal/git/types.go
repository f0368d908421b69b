package git

// Status represents the git status of a worktree.
type Status struct {
	// Modified files (staged or unstaged)
	Modified []string

	// Untracked files
	Untracked []string

	// Deleted files
	Deleted []string

	// Added files (staged)
	Added []string

	// Renamed files
	Renamed []string

	// HasChanges is true if any changes exist
	HasChanges bool
}

// CreateOptions configures worktree creation.
type CreateOptions struct {
	// CreateBranch creates Branch from BaseBranch instead of checking out an existing one
	CreateBranch bool

	// BaseBranch is the start point when CreateBranch is set (default: HEAD)
	BaseBranch string

	// Force recursively deletes an existing directory at the target path first
	Force bool
}

// RemoveOptions configures worktree removal.
type RemoveOptions struct {
	// Force removes despite uncommitted changes or a lock
	Force bool

	// RemoveDirectory deletes the directory if git leaves anything behind
	RemoveDirectory bool

	// DryRun validates everything and reports what would happen without mutating
	DryRun bool
}

// RemoveResult describes a completed (or simulated) removal.
type RemoveResult struct {
	Path    string
	Branch  string
	DryRun  bool
	Message string
}
