package main

import (
	"context"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/steveyegge/loom/internal/workspace"
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup <issue | pr/N | branch>",
	Short: "Tear down a workspace",
	Long: `Stop the workspace's dev server, remove its worktree and, optionally,
its branch and database branch.

Protected branches, the main worktree and worktrees with uncommitted
changes are refused unless --force is given (protected branches and the
main worktree are always refused). Other warnings, such as an unmerged
branch, ask for confirmation first.

Examples:
  loom cleanup 42
  loom cleanup 42 --delete-branch
  loom cleanup pr/7 --dry-run
  loom cleanup spike/cache-layer --force --keep-db`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		force, _ := cmd.Flags().GetBool("force")
		deleteBranch, _ := cmd.Flags().GetBool("delete-branch")
		keepDB, _ := cmd.Flags().GetBool("keep-db")
		prompt.assumeYes, _ = cmd.Flags().GetBool("yes")

		ctx := context.Background()
		a, err := setup(ctx)
		if err != nil {
			fail(err)
		}

		id, err := a.manager.ResolveTarget(ctx, args[0])
		if err != nil {
			fail(err)
		}

		if dryRun {
			color.Yellow("DRY RUN MODE - Nothing will be changed")
		}
		report, err := a.manager.Cleanup(ctx, id, workspace.CleanupOptions{
			DryRun:       dryRun,
			Force:        force,
			DeleteBranch: deleteBranch,
			KeepDatabase: keepDB,
		})
		if err != nil {
			fail(err)
		}
		printReport(os.Stdout, report)
		if !report.Success {
			os.Exit(1)
		}
	},
}

func init() {
	cleanupCmd.Flags().Bool("dry-run", false, "Show what would happen without changing anything")
	cleanupCmd.Flags().Bool("force", false, "Remove despite uncommitted changes or a lock, without prompting")
	cleanupCmd.Flags().Bool("delete-branch", false, "Also delete the workspace branch")
	cleanupCmd.Flags().Bool("keep-db", false, "Keep the workspace's database branch")
	cleanupCmd.Flags().BoolP("yes", "y", false, "Answer yes to confirmation prompts")
	rootCmd.AddCommand(cleanupCmd)
}
