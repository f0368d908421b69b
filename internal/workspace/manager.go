// Package workspace creates and tears down per-task workspaces: a git
// worktree plus the env file, port, database branch and executable links
// that go with it.
package workspace

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/steveyegge/loom/internal/config"
	"github.com/steveyegge/loom/internal/envfile"
	"github.com/steveyegge/loom/internal/identifier"
	"github.com/steveyegge/loom/internal/location"
	"github.com/steveyegge/loom/internal/types"
)

// Config holds the manager's collaborators. Only Store is required.
type Config struct {
	// Store is the repository's working-tree store
	Store TreeStore

	// Tracker resolves bare numbers, fetches metadata and files issues for descriptions
	// Optional: without it only branches and "pr/<n>" shorthands resolve
	Tracker IssueTracker

	// Probe finds the dev server to stop at teardown
	// Optional: if nil the dev-server stage is skipped
	Probe ProcessProbe

	// Database provisions a database branch per workspace
	// Optional: if nil no database work is done
	Database DatabaseBranchProvider

	// Env edits workspace env files (default: envfile.Writer on Settings.Env.PortVar)
	Env EnvironmentWriter

	// Launcher runs once a workspace is ready. Optional.
	Launcher Launcher

	// Confirmer is asked to approve safety warnings. Optional: if nil
	// warnings are logged and teardown continues.
	Confirmer Confirmer

	// Summarizer produces issue titles and branch slugs. Optional.
	Summarizer Summarizer

	Settings config.Settings
	Logger   *slog.Logger
}

// Manager implements workspace creation and teardown
type Manager struct {
	store      TreeStore
	tracker    IssueTracker
	resolver   *identifier.Resolver
	probe      ProcessProbe
	db         DatabaseBranchProvider
	env        EnvironmentWriter
	launcher   Launcher
	confirmer  Confirmer
	summarizer Summarizer
	settings   config.Settings
	logger     *slog.Logger
}

// NewManager creates a Manager with the provided configuration
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("Store cannot be nil")
	}
	if err := cfg.Settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}

	m := &Manager{
		store:      cfg.Store,
		tracker:    cfg.Tracker,
		resolver:   identifier.NewResolver(cfg.Tracker),
		probe:      cfg.Probe,
		db:         cfg.Database,
		env:        cfg.Env,
		launcher:   cfg.Launcher,
		confirmer:  cfg.Confirmer,
		summarizer: cfg.Summarizer,
		settings:   cfg.Settings,
		logger:     cfg.Logger,
	}
	if m.env == nil {
		m.env = envfile.NewWriter(cfg.Settings.Env.PortVar)
	}
	if m.logger == nil {
		m.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return m, nil
}

// Resolve classifies raw input into an identifier
func (m *Manager) Resolve(ctx context.Context, raw string) (types.Identifier, error) {
	ctx, cancel := withTimeout(ctx, m.settings.Timeouts.Network)
	defer cancel()
	return m.resolver.Resolve(ctx, raw)
}

// List returns the repository's worktrees, main worktree first
func (m *Manager) List(ctx context.Context, verbose bool) ([]types.WorkingTree, error) {
	return m.store.List(ctx, verbose)
}

// IsMain reports whether wt is the repository's main worktree
func (m *Manager) IsMain(wt types.WorkingTree) bool {
	return samePath(wt.Path, m.store.RepoRoot())
}

// Allocate returns the location a new workspace for id on branch would get
func (m *Manager) Allocate(id types.Identifier, branch string) (types.Location, error) {
	return location.Allocate(id, branch, m.store.RepoRoot(), m.settings.WorktreePrefix)
}

// envPath returns the env file of the workspace at dir
func (m *Manager) envPath(dir string) string {
	return filepath.Join(dir, m.settings.Env.File)
}

// portFor prefers the port recorded in the workspace env file and falls
// back to the allocated one.
func (m *Manager) portFor(id types.Identifier, dir string) (int, error) {
	if port, ok, err := m.env.Port(m.envPath(dir)); err == nil && ok {
		return port, nil
	} else if err != nil {
		m.logger.Debug("could not read port from env file", "path", m.envPath(dir), "error", err)
	}
	return location.AllocatePort(id)
}

// withTimeout bounds a collaborator call; zero leaves ctx unchanged
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// databaseError classifies an unclassified provider failure, so a call
// cut off by its deadline reports KindTimeout
func databaseError(ctx context.Context, op string, err error) error {
	if types.KindOf(err) != types.KindUnknown {
		return err
	}
	return types.ExternalCtx(ctx, op, err)
}

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
