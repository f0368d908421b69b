package workspace

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/steveyegge/loom/internal/ai"
	"github.com/steveyegge/loom/internal/binlink"
	"github.com/steveyegge/loom/internal/capability"
	"github.com/steveyegge/loom/internal/git"
	"github.com/steveyegge/loom/internal/types"
)

// Provisioning stages reported by ProvisionError
const (
	StageEnvironment = "environment"
	StageCapability  = "capability"
	StageDatabase    = "database"
	StageLaunch      = "launch"
)

// ProvisionError reports the provisioning stage that failed after the
// worktree was created. The worktree is left in place.
type ProvisionError struct {
	Stage string
	Path  string
	Err   error
}

func (e *ProvisionError) Error() string {
	return fmt.Sprintf("%s setup failed (worktree kept at %s): %v", e.Stage, e.Path, e.Err)
}

func (e *ProvisionError) Unwrap() error { return e.Err }

// Create resolves input and returns a workspace for it, reusing an
// existing worktree when one already serves the identifier. A description
// is first filed as a new issue. Provisioning failures leave the new
// worktree on disk and return a *ProvisionError.
func (m *Manager) Create(ctx context.Context, input string, opts CreateOptions) (*types.WorkspaceRecord, error) {
	if err := opts.Validate(); err != nil {
		return nil, types.InputError("create workspace", err)
	}
	if opts.BaseBranch == "" {
		opts.BaseBranch = m.settings.BaseBranch
	}

	id, err := m.Resolve(ctx, input)
	if err != nil {
		return nil, err
	}

	var data *types.IssueData
	slug := ""
	if id.Kind == types.KindDescription {
		id, data, slug, err = m.fileIssue(ctx, id, opts.IssueBody)
		if err != nil {
			return nil, err
		}
	} else {
		data, err = m.metadata(ctx, id)
		if err != nil {
			return nil, err
		}
	}

	if existing, err := m.findExisting(ctx, id, data); err != nil {
		return nil, err
	} else if existing != nil {
		return m.reuse(ctx, id, existing, data, opts)
	}

	branch := m.branchName(id, data, slug)
	loc, err := m.Allocate(id, branch)
	if err != nil {
		return nil, err
	}
	m.logger.Info("creating workspace", "identifier", id.String(), "branch", branch, "path", loc.Path, "port", loc.Port)

	exists, err := m.store.BranchExists(ctx, branch)
	if err != nil {
		return nil, err
	}
	if !exists && id.Kind == types.KindPullRequest {
		if err := m.store.FetchBranch(ctx, "origin", branch); err != nil {
			return nil, fmt.Errorf("failed to fetch pull request branch %s: %w", branch, err)
		}
		exists = true
	}

	path, err := m.store.Create(ctx, branch, loc.Path, git.CreateOptions{
		CreateBranch: !exists,
		BaseBranch:   opts.BaseBranch,
		Force:        opts.Force,
	})
	if err != nil {
		return nil, err
	}

	record := &types.WorkspaceRecord{
		ID:         uuid.New().String(),
		Identifier: id,
		Path:       path,
		Branch:     branch,
		Port:       loc.Port,
		GitHubData: data,
	}

	// The worktree exists on disk from here on; nothing below rolls it back.
	if err := m.provision(ctx, record, opts); err != nil {
		return nil, err
	}

	if !opts.NoLaunch {
		if err := m.launch(ctx, record, opts); err != nil {
			return nil, err
		}
	}
	m.logger.Info("workspace ready", "path", record.Path, "branch", record.Branch, "capabilities", record.Capabilities)
	return record, nil
}

// fileIssue turns a description into a new issue and returns the Issue
// identifier that replaces it
func (m *Manager) fileIssue(ctx context.Context, id types.Identifier, body string) (types.Identifier, *types.IssueData, string, error) {
	if m.tracker == nil {
		return id, nil, "", types.InputError("create workspace",
			fmt.Errorf("a task description needs an issue tracker to file it"))
	}

	title := ai.TruncateTitle(id.Text, ai.MaxTitleLength)
	slug := ""
	if m.summarizer != nil {
		summary, err := m.summarizer.Summarize(ctx, id.Text)
		if err != nil {
			m.logger.Warn("summarizer failed, using truncated description", "error", err)
		} else {
			if summary.Title != "" {
				title = summary.Title
			}
			slug = ai.Slug(summary.Slug)
		}
	}
	if body == "" {
		body = id.Text
	}

	callCtx, cancel := withTimeout(ctx, m.settings.Timeouts.Network)
	defer cancel()
	number, err := m.tracker.CreateIssue(callCtx, title, body)
	if err != nil {
		return id, nil, "", types.External("create issue", err)
	}
	issue, err := id.WithIssueNumber(number)
	if err != nil {
		return id, nil, "", types.External("create issue", err)
	}
	m.logger.Info("filed issue for description", "number", number, "title", title)
	return issue, &types.IssueData{Number: number, Title: title}, slug, nil
}

// metadata fetches tracker data for issues and pull requests. Issue data
// is optional; a pull request's head branch is not.
func (m *Manager) metadata(ctx context.Context, id types.Identifier) (*types.IssueData, error) {
	switch id.Kind {
	case types.KindIssue:
		if m.tracker == nil {
			return nil, nil
		}
		callCtx, cancel := withTimeout(ctx, m.settings.Timeouts.Network)
		defer cancel()
		data, err := m.tracker.GetIssue(callCtx, id.Number)
		if err != nil {
			m.logger.Warn("could not fetch issue metadata", "issue", id.Number, "error", err)
			return nil, nil
		}
		return data, nil
	case types.KindPullRequest:
		if m.tracker == nil {
			return nil, types.InputError("create workspace",
				fmt.Errorf("%s needs an issue tracker to find its branch", id))
		}
		callCtx, cancel := withTimeout(ctx, m.settings.Timeouts.Network)
		defer cancel()
		data, err := m.tracker.GetPullRequest(callCtx, id.Number)
		if err != nil {
			return nil, err
		}
		if data.Branch == "" {
			return nil, types.External("get pull request", fmt.Errorf("%s has no head branch", id))
		}
		return data, nil
	}
	return nil, nil
}

// findExisting looks up a worktree already serving id
func (m *Manager) findExisting(ctx context.Context, id types.Identifier, data *types.IssueData) (*types.WorkingTree, error) {
	switch id.Kind {
	case types.KindIssue:
		return m.store.FindByIssueNumber(ctx, id.Number)
	case types.KindPullRequest:
		branch := ""
		if data != nil {
			branch = data.Branch
		}
		return m.store.FindByPRNumber(ctx, id.Number, branch)
	case types.KindBranch:
		wt, err := m.store.FindByBranch(ctx, id.Name)
		if err != nil || wt == nil {
			return wt, err
		}
		if m.IsMain(*wt) {
			return nil, types.ConflictError("create workspace",
				fmt.Errorf("branch %s is checked out in the main worktree %s", id.Name, wt.Path))
		}
		return wt, nil
	}
	return nil, nil
}

// reuse returns the record for an existing worktree. Nothing is created
// or provisioned.
func (m *Manager) reuse(ctx context.Context, id types.Identifier, wt *types.WorkingTree, data *types.IssueData, opts CreateOptions) (*types.WorkspaceRecord, error) {
	port, err := m.portFor(id, wt.Path)
	if err != nil {
		return nil, err
	}
	caps, err := capability.Detect(wt.Path)
	if err != nil {
		m.logger.Warn("capability detection failed", "path", wt.Path, "error", err)
	}

	record := &types.WorkspaceRecord{
		ID:           uuid.New().String(),
		Identifier:   id,
		Path:         wt.Path,
		Branch:       wt.Branch,
		Port:         port,
		Capabilities: caps,
		GitHubData:   data,
		Reused:       true,
	}
	if url, ok, err := m.env.GetVar(m.envPath(wt.Path), m.settings.Database.URLVar); err == nil && ok && m.db != nil {
		record.DatabaseBranch = url
	}
	m.logger.Info("reusing workspace", "path", wt.Path, "branch", wt.Branch)

	if !opts.NoLaunch {
		if err := m.launch(ctx, record, opts); err != nil {
			return nil, err
		}
	}
	return record, nil
}

// branchName picks the branch for a new workspace
func (m *Manager) branchName(id types.Identifier, data *types.IssueData, slug string) string {
	switch id.Kind {
	case types.KindIssue:
		if slug == "" && m.summarizer != nil && data != nil && data.Title != "" {
			slug = ai.Slug(data.Title)
		}
		if slug != "" {
			return fmt.Sprintf("feat/issue-%d-%s", id.Number, slug)
		}
		return fmt.Sprintf("issue-%d", id.Number)
	case types.KindPullRequest:
		return data.Branch
	default:
		return id.Name
	}
}

// provision runs env setup and capability detection in parallel, then the
// database branch and executable links
func (m *Manager) provision(ctx context.Context, record *types.WorkspaceRecord, opts CreateOptions) error {
	envPath := m.envPath(record.Path)
	fail := func(stage string, err error) error {
		m.logger.Error("provisioning failed", "stage", stage, "path", record.Path, "error", err)
		return &ProvisionError{Stage: stage, Path: record.Path, Err: err}
	}

	var caps []types.Capability
	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		if _, err := m.env.Seed(m.envPath(m.store.RepoRoot()), envPath); err != nil {
			return fail(StageEnvironment, err)
		}
		if err := m.env.SetPort(envPath, record.Port); err != nil {
			return fail(StageEnvironment, err)
		}
		return nil
	})
	g.Go(func() error {
		detected, err := capability.Detect(record.Path)
		if err != nil {
			return fail(StageCapability, err)
		}
		caps = detected
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}
	record.Capabilities = caps

	if m.db != nil && !opts.SkipDatabase && !m.settings.Database.Skip {
		callCtx, cancel := withTimeout(ctx, m.settings.Timeouts.Network)
		url, err := m.db.CreateBranchIfConfigured(callCtx, record.Branch, envPath)
		if err != nil {
			err = databaseError(callCtx, "create database branch", err)
			cancel()
			return fail(StageDatabase, err)
		}
		cancel()
		if url != "" {
			if err := m.env.SetVar(envPath, m.settings.Database.URLVar, url); err != nil {
				return fail(StageDatabase, err)
			}
			record.DatabaseBranch = url
			m.logger.Info("database branch ready", "branch", record.Branch)
		}
	}

	if record.HasCapability(types.CapabilityCLI) && m.settings.BinDir != "" {
		m.linkBins(record)
	}
	return nil
}

// linkBins exposes a cli workspace's executables. Failures are logged only.
func (m *Manager) linkBins(record *types.WorkspaceRecord) {
	manifest, err := capability.Load(record.Path)
	if err != nil || manifest == nil {
		return
	}
	links, err := binlink.Link(m.settings.BinDir, record.Path, filepath.Base(record.Path), manifest.Bins())
	if err != nil {
		m.logger.Warn("failed to link executables", "bin_dir", m.settings.BinDir, "error", err)
	}
	for _, l := range links {
		m.logger.Info("linked executable", "link", l)
	}
}

func (m *Manager) launch(ctx context.Context, record *types.WorkspaceRecord, opts CreateOptions) error {
	if m.launcher == nil {
		return nil
	}
	if err := m.launcher.Launch(ctx, record, opts.Launch); err != nil {
		return &ProvisionError{Stage: StageLaunch, Path: record.Path, Err: err}
	}
	return nil
}
