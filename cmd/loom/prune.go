package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/steveyegge/loom/internal/config"
	"github.com/steveyegge/loom/internal/git"
)

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete workspace branches whose worktree is gone",
	Long: `Delete orphaned workspace branches that have no associated worktree.

Workspace branches (issue-*, feat/issue-* by default) are left behind when a
workspace is cleaned up without --delete-branch. This command finds the ones
no worktree has checked out and deletes them.

By default, only branches whose last commit is older than 7 days are deleted.

Examples:
  loom prune                      # Prune branches older than 7 days
  loom prune --min-age-hours 0    # Prune regardless of age
  loom prune --dry-run            # Preview what would be deleted`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		dryRun, _ := cmd.Flags().GetBool("dry-run")

		cfg, err := config.BranchPruneConfigFromEnv()
		if err != nil {
			fail(err)
		}
		if cmd.Flags().Changed("min-age-hours") {
			cfg.MinAgeHours, _ = cmd.Flags().GetInt("min-age-hours")
		}
		if cmd.Flags().Changed("pattern") {
			cfg.Patterns, _ = cmd.Flags().GetStringSlice("pattern")
		}
		if err := cfg.Validate(); err != nil {
			fail(err)
		}

		ctx := context.Background()
		a, err := setup(ctx)
		if err != nil {
			fail(err)
		}

		if dryRun {
			fmt.Printf("%s\n", color.YellowString("DRY RUN MODE - No branches will be deleted"))
		}
		fmt.Printf("Scanning for orphaned workspace branches (min age: %v)...\n\n", cfg.MinAge())

		orphaned, err := a.git.FindOrphanedBranches(ctx, cfg.Patterns)
		if err != nil {
			fail(fmt.Errorf("failed to find orphaned branches: %w", err))
		}
		fmt.Print(git.SummarizeOrphanedBranches(orphaned))

		pruned, err := a.git.PruneOrphanedBranches(ctx, cfg.Patterns, cfg.MinAge(), dryRun)
		if err != nil {
			fail(fmt.Errorf("branch prune failed: %w", err))
		}

		fmt.Println()
		if dryRun {
			fmt.Printf("Would delete %d orphaned branch(es)\n", len(pruned))
			fmt.Printf("Run without --dry-run to perform cleanup\n")
			return
		}
		fmt.Printf("%s Deleted %d orphaned branch(es)\n", color.GreenString("✓"), len(pruned))
	},
}

func init() {
	pruneCmd.Flags().Bool("dry-run", false, "Show what would be deleted without deleting")
	pruneCmd.Flags().Int("min-age-hours", config.DefaultBranchPruneConfig().MinAgeHours, "Only delete branches older than this")
	pruneCmd.Flags().StringSlice("pattern", nil, "Branch glob to treat as a workspace branch (repeatable)")
	rootCmd.AddCommand(pruneCmd)
}
