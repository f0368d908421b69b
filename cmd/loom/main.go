package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/steveyegge/loom/internal/ai"
	"github.com/steveyegge/loom/internal/config"
	"github.com/steveyegge/loom/internal/dbbranch"
	"github.com/steveyegge/loom/internal/envfile"
	"github.com/steveyegge/loom/internal/git"
	"github.com/steveyegge/loom/internal/github"
	"github.com/steveyegge/loom/internal/launcher"
	"github.com/steveyegge/loom/internal/process"
	"github.com/steveyegge/loom/internal/workspace"
)

var (
	repoPath string
	verbose  bool

	// prompt gates cleanup warnings; --yes sets assumeYes
	prompt = newPromptConfirmer(os.Stderr)
)

var rootCmd = &cobra.Command{
	Use:   "loom",
	Short: "Isolated git worktree workspaces for issues, pull requests and branches",
	Long: `loom creates one git worktree per unit of work, each with its own
env file, dev-server port and (optionally) database branch, and tears
them down safely when the work is done.

Examples:
  loom start 42                  # workspace for issue #42 (or PR #42)
  loom start pr/7                # workspace for pull request #7
  loom start spike/cache-layer   # workspace for an ad-hoc branch
  loom start "Add a dark mode toggle to the settings page"
  loom cleanup 42 --delete-branch
  loom list`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&repoPath, "repo", ".", "Path inside the git repository to operate on")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log every step to stderr")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// fail prints err in the CLI's error format and exits
func fail(err error) {
	fmt.Fprintf(os.Stderr, "%s %v\n", color.RedString("Error:"), err)
	os.Exit(1)
}

func newLogger() *slog.Logger {
	if !verbose {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// app bundles what every command needs
type app struct {
	git      *git.Git
	settings config.Settings
	manager  *workspace.Manager
	logger   *slog.Logger
}

// setup opens the repository, loads its settings and wires the manager
func setup(ctx context.Context) (*app, error) {
	logger := newLogger()

	g, err := git.NewGit(ctx, repoPath)
	if err != nil {
		return nil, err
	}
	settings, err := config.Load(g.RepoRoot())
	if err != nil {
		return nil, err
	}
	if settings.Timeouts.Git > 0 {
		if g, err = git.NewGit(ctx, g.RepoRoot(), git.WithTimeout(settings.Timeouts.Git)); err != nil {
			return nil, err
		}
	}

	db, err := newDatabaseProvider(settings, logger)
	if err != nil {
		return nil, err
	}

	cfg := workspace.Config{
		Store:   g,
		Tracker: github.NewTracker(github.Config{Dir: g.RepoRoot(), Timeout: settings.Timeouts.Network}),
		Probe:   process.NewProbe(process.Config{Logger: logger}),
		Env:     envfile.NewWriter(settings.Env.PortVar),
		Launcher: launcher.New(launcher.Config{
			Template: settings.Launch.Command,
			PortVar:  settings.Env.PortVar,
			Stdin:    os.Stdin,
			Stdout:   os.Stdout,
			Stderr:   os.Stderr,
			Logger:   logger,
		}),
		Database:  db,
		Confirmer: prompt,
		Settings:  settings,
		Logger:    logger,
	}
	if settings.AI.Enabled {
		summarizer, err := ai.NewSummarizer(ai.Config{Model: settings.AI.Model, Logger: logger})
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: AI titles disabled: %v\n", err)
		} else {
			cfg.Summarizer = summarizer
		}
	}

	manager, err := workspace.NewManager(cfg)
	if err != nil {
		return nil, err
	}
	return &app{git: g, settings: settings, manager: manager, logger: logger}, nil
}

// newDatabaseProvider returns nil when no provider is configured
func newDatabaseProvider(settings config.Settings, logger *slog.Logger) (workspace.DatabaseBranchProvider, error) {
	if !settings.DatabaseEnabled() {
		return nil, nil
	}
	switch settings.Database.Provider {
	case config.DatabasePostgres:
		return dbbranch.NewPostgres(dbbranch.PostgresConfig{
			AdminURL: settings.Database.PostgresURL,
			Template: settings.Database.Template,
			URLVar:   settings.Database.URLVar,
			Logger:   logger,
		})
	case config.DatabaseSQLite:
		return dbbranch.NewSQLite(dbbranch.SQLiteConfig{
			Path:   settings.Database.SQLitePath,
			Logger: logger,
		})
	}
	return nil, fmt.Errorf("unknown database provider %q", settings.Database.Provider)
}
