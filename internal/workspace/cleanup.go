package workspace

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/steveyegge/loom/internal/binlink"
	"github.com/steveyegge/loom/internal/git"
	"github.com/steveyegge/loom/internal/identifier"
	"github.com/steveyegge/loom/internal/types"
)

const dryRunPrefix = "[DRY RUN] "

// portReleaseTimeout bounds the wait for a killed dev server's port
const portReleaseTimeout = 2 * time.Second

// ResolveTarget classifies raw input for teardown. A bare number is
// matched against local worktrees first so cleanup works without the
// tracker; only when nothing matches is the tracker asked.
func (m *Manager) ResolveTarget(ctx context.Context, raw string) (types.Identifier, error) {
	id, number, ok, err := identifier.Parse(raw)
	if err != nil {
		return types.Identifier{}, err
	}
	if ok {
		return id, nil
	}

	if wt, err := m.store.FindByPRNumber(ctx, number, ""); err != nil {
		return types.Identifier{}, err
	} else if wt != nil {
		return types.PullRequestID(number), nil
	}
	if wt, err := m.store.FindByIssueNumber(ctx, number); err != nil {
		return types.Identifier{}, err
	} else if wt != nil {
		return types.IssueID(number), nil
	}
	return m.Resolve(ctx, raw)
}

// Find returns the worktree serving id, or a NotFound error
func (m *Manager) Find(ctx context.Context, id types.Identifier) (*types.WorkingTree, error) {
	var (
		wt  *types.WorkingTree
		err error
	)
	switch id.Kind {
	case types.KindIssue:
		wt, err = m.store.FindByIssueNumber(ctx, id.Number)
	case types.KindPullRequest:
		wt, err = m.store.FindByPRNumber(ctx, id.Number, "")
	case types.KindBranch:
		wt, err = m.store.FindByBranch(ctx, id.Name)
	default:
		return nil, types.InputError("find workspace", fmt.Errorf("%s does not name a workspace", id))
	}
	if err != nil {
		return nil, err
	}
	if wt == nil {
		return nil, types.NotFoundf("find workspace", "no workspace for %s", id)
	}
	return wt, nil
}

// SafetyCheck inspects wt before teardown. Protected branches, the main
// worktree and, without force, uncommitted changes or a lock are blockers.
func (m *Manager) SafetyCheck(ctx context.Context, wt *types.WorkingTree, opts CleanupOptions) (*types.SafetyCheck, error) {
	check := types.NewSafetyCheck()

	if samePath(wt.Path, m.store.RepoRoot()) {
		check.Block("%s is the main worktree", wt.Path)
	}
	if wt.Branch != "" && m.settings.IsProtected(wt.Branch) {
		check.Block("branch %s is protected", wt.Branch)
	}

	if wt.Locked {
		if opts.Force {
			check.Warn("worktree is locked; forcing removal")
		} else {
			check.Block("worktree is locked%s", lockReason(wt))
		}
	}

	if !wt.Prunable {
		dirty, err := m.store.HasUncommittedChanges(ctx, wt.Path)
		if err != nil {
			return nil, err
		}
		if dirty {
			if opts.Force {
				check.Warn("uncommitted changes in %s will be lost", wt.Path)
			} else {
				check.Block("uncommitted changes in %s (commit them or use force)", wt.Path)
			}
		}
	}

	if opts.DeleteBranch {
		switch {
		case wt.Branch == "":
			check.Warn("worktree is detached; there is no branch to delete")
		case check.IsSafe:
			merged, err := m.store.IsMerged(ctx, wt.Branch, m.settings.BaseBranch)
			if err != nil {
				check.Warn("could not tell whether %s is merged into %s: %v", wt.Branch, m.settings.BaseBranch, err)
			} else if !merged {
				check.Warn("branch %s is not merged into %s", wt.Branch, m.settings.BaseBranch)
			}
		}
	}
	return check, nil
}

func lockReason(wt *types.WorkingTree) string {
	if wt.LockReason == "" {
		return ""
	}
	return " (" + wt.LockReason + ")"
}

// Cleanup tears down the workspace serving id. A report is always
// returned. The error is non-nil when the teardown could not start: no
// matching worktree, a safety blocker, or declined warnings. Stage
// failures after that are recorded in the report.
func (m *Manager) Cleanup(ctx context.Context, id types.Identifier, opts CleanupOptions) (*types.CleanupReport, error) {
	report := types.NewCleanupReport(id.String())

	wt, err := m.Find(ctx, id)
	if err != nil {
		report.Fail(err)
		return report, err
	}
	report.BranchName = wt.Branch

	check, err := m.SafetyCheck(ctx, wt, opts)
	if err != nil {
		report.Fail(err)
		return report, err
	}
	report.Warnings = check.Warnings
	if !check.IsSafe {
		err := types.ConflictError("cleanup", fmt.Errorf("%w: %v", types.ErrSafetyBlocked, check.Blockers))
		report.Fail(err)
		return report, err
	}
	for _, w := range check.Warnings {
		m.logger.Warn("safety warning", "workspace", wt.Path, "warning", w)
	}
	if len(check.Warnings) > 0 && !opts.Force && !opts.DryRun && m.confirmer != nil {
		ok, err := m.confirmer.Confirm(ctx, check)
		if err != nil {
			report.Fail(err)
			return report, err
		}
		if !ok {
			err := types.ConflictError("cleanup", types.ErrDeclined)
			report.Fail(err)
			return report, err
		}
	}

	m.stopDevServer(ctx, report, id, wt, opts)
	removed := m.removeWorktree(ctx, report, wt, opts)
	if opts.DeleteBranch {
		m.deleteBranch(ctx, report, wt, removed, opts)
	}
	m.dropDatabase(ctx, report, wt, opts)
	m.unlinkBins(report, wt, opts)

	m.logger.Info("cleanup finished", "workspace", wt.Path, "success", report.Success, "dry_run", opts.DryRun)
	return report, nil
}

func (m *Manager) stopDevServer(ctx context.Context, report *types.CleanupReport, id types.Identifier, wt *types.WorkingTree, opts CleanupOptions) {
	op := types.Operation{Type: types.OpDevServer}
	record := func(success bool, msg string, err error) {
		op.Success = success
		op.Message = prefix(opts.DryRun, msg)
		if err != nil {
			op.Error = err.Error()
			report.Fail(err)
		}
		report.Record(op)
	}

	if m.probe == nil {
		record(true, "Skipped: no process probe configured", nil)
		return
	}
	port, err := m.portFor(id, wt.Path)
	if err != nil {
		record(true, "Skipped: no port for this workspace", nil)
		return
	}

	probeCtx, cancel := withTimeout(ctx, m.settings.Timeouts.Process)
	defer cancel()
	info, err := m.probe.Detect(probeCtx, port)
	if err != nil {
		record(false, fmt.Sprintf("Could not check port %d", port), err)
		return
	}
	if info == nil {
		record(true, fmt.Sprintf("No process listening on port %d", port), nil)
		return
	}
	if !info.IsDevServer {
		m.logger.Warn("leaving non dev-server process alone", "pid", info.PID, "port", port, "name", info.Name)
		record(true, fmt.Sprintf("Skipped: port %d is held by %s (pid %d), not a dev server", port, info.Name, info.PID), nil)
		return
	}
	if opts.DryRun {
		record(true, fmt.Sprintf("Would stop dev server %s (pid %d) on port %d", info.Name, info.PID, port), nil)
		return
	}
	if _, err := m.probe.Terminate(probeCtx, info.PID); err != nil {
		record(false, fmt.Sprintf("Failed to stop dev server (pid %d) on port %d", info.PID, port), err)
		return
	}
	msg := fmt.Sprintf("Stopped dev server %s (pid %d) on port %d", info.Name, info.PID, port)
	if free, err := m.probe.VerifyFree(probeCtx, port, portReleaseTimeout); err != nil || !free {
		m.logger.Warn("port still in use after stopping dev server", "port", port, "error", err)
		msg += " (port still in use)"
	}
	record(true, msg, nil)
}

// removeWorktree reports whether the worktree is (or would be) gone
func (m *Manager) removeWorktree(ctx context.Context, report *types.CleanupReport, wt *types.WorkingTree, opts CleanupOptions) bool {
	op := types.Operation{Type: types.OpWorktree}
	res, err := m.store.Remove(ctx, wt.Path, git.RemoveOptions{
		Force:           opts.Force,
		RemoveDirectory: true,
		DryRun:          opts.DryRun,
	})
	if err != nil {
		op.Message = prefix(opts.DryRun, fmt.Sprintf("Failed to remove worktree at %s", wt.Path))
		op.Error = err.Error()
		report.Fail(err)
		report.Record(op)
		return false
	}
	op.Success = true
	op.Message = res.Message
	report.Record(op)
	m.logger.Info("worktree stage done", "path", wt.Path, "dry_run", opts.DryRun)
	return true
}

func (m *Manager) deleteBranch(ctx context.Context, report *types.CleanupReport, wt *types.WorkingTree, removed bool, opts CleanupOptions) {
	op := types.Operation{Type: types.OpBranch}
	fail := func(msg string, err error) {
		op.Message = prefix(opts.DryRun, msg)
		op.Error = err.Error()
		report.Fail(err)
		report.Record(op)
	}

	if wt.Branch == "" {
		fail("No branch to delete", types.InputError("delete branch", types.ErrMissingBranch))
		return
	}
	if !removed {
		// git refuses to delete a branch that is still checked out
		fail(fmt.Sprintf("Branch %s is still checked out", wt.Branch),
			types.ConflictError("delete branch", fmt.Errorf("branch %s is checked out at %s", wt.Branch, wt.Path)))
		return
	}

	if opts.DryRun {
		exists, err := m.store.BranchExists(ctx, wt.Branch)
		if err != nil {
			fail(fmt.Sprintf("Could not check branch %s", wt.Branch), err)
			return
		}
		if !exists {
			fail(fmt.Sprintf("Branch %s does not exist", wt.Branch), types.NotFoundf("delete branch", "branch %s", wt.Branch))
			return
		}
		op.Success = true
		op.Message = prefix(true, fmt.Sprintf("Would delete branch %s", wt.Branch))
		report.Record(op)
		return
	}

	// Unmerged work was surfaced as a warning and confirmed already
	if err := m.store.DeleteBranch(ctx, wt.Branch, true); err != nil {
		fail(fmt.Sprintf("Failed to delete branch %s", wt.Branch), err)
		return
	}
	op.Success = true
	op.Message = fmt.Sprintf("Deleted branch %s", wt.Branch)
	report.Record(op)
}

func (m *Manager) dropDatabase(ctx context.Context, report *types.CleanupReport, wt *types.WorkingTree, opts CleanupOptions) {
	if m.db == nil || opts.KeepDatabase {
		m.logger.Debug("database stage skipped", "keep_database", opts.KeepDatabase)
		return
	}
	branch := wt.Branch
	if branch == "" {
		return
	}

	op := types.Operation{Type: types.OpDatabase}
	failed := func(err error) {
		op.Message = prefix(opts.DryRun, fmt.Sprintf("Failed to delete database branch for %s", branch))
		op.Error = err.Error()
		report.Record(op)
		// Only fatal when nothing else got cleaned up
		if !report.SucceededOther(types.OpDatabase) {
			report.Fail(err)
		} else {
			m.logger.Warn("database branch not deleted", "branch", branch, "error", err)
		}
	}

	callCtx, cancel := withTimeout(ctx, m.settings.Timeouts.Network)
	defer cancel()
	if err := m.db.CheckBranch(callCtx, branch, opts.Force); err != nil {
		failed(databaseError(callCtx, "check database branch", err))
		return
	}
	if opts.DryRun {
		op.Success = true
		op.Message = prefix(true, fmt.Sprintf("Would delete database branch for %s", branch))
		report.Record(op)
		return
	}

	if err := m.db.DeleteBranch(callCtx, branch, opts.Force); err != nil {
		failed(databaseError(callCtx, "delete database branch", err))
		return
	}
	op.Success = true
	op.Message = fmt.Sprintf("Deleted database branch for %s", branch)
	report.Record(op)
}

// unlinkBins never fails the report; stale links are cosmetic
func (m *Manager) unlinkBins(report *types.CleanupReport, wt *types.WorkingTree, opts CleanupOptions) {
	if m.settings.BinDir == "" {
		return
	}
	op := types.Operation{Type: types.OpBinaries}
	removed, err := binlink.Unlink(m.settings.BinDir, wt.Path, opts.DryRun)
	switch {
	case err != nil:
		op.Message = fmt.Sprintf("Removed %d of the executable links in %s", len(removed), m.settings.BinDir)
		op.Error = err.Error()
		m.logger.Warn("executable link cleanup failed", "bin_dir", m.settings.BinDir, "error", err)
	case len(removed) == 0:
		op.Success = true
		op.Message = "No executable links found"
	case opts.DryRun:
		op.Success = true
		op.Message = fmt.Sprintf("Would remove %d executable link(s)", len(removed))
	default:
		op.Success = true
		op.Message = fmt.Sprintf("Removed %d executable link(s)", len(removed))
	}
	op.Message = prefix(opts.DryRun, op.Message)
	report.Record(op)
}

func prefix(dryRun bool, msg string) string {
	if !dryRun || strings.HasPrefix(msg, dryRunPrefix) {
		return msg
	}
	return dryRunPrefix + msg
}
