package main

import (
	"context"
	"encoding/json"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/steveyegge/loom/internal/workspace"
)

var startCmd = &cobra.Command{
	Use:   "start <issue | pr/N | branch | description>",
	Short: "Create (or reuse) a workspace",
	Long: `Create a git worktree for an issue, pull request, branch or task description.

A bare number is looked up on GitHub to tell issues from pull requests.
Text longer than 25 characters with more than two spaces is treated as a
task description: an issue is filed for it first.

If a worktree already serves the identifier it is reused unchanged.

Examples:
  loom start 42
  loom start pr/7
  loom start spike/cache-layer --no-launch
  loom start "Add a dark mode toggle to the settings page"`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		base, _ := cmd.Flags().GetString("base")
		force, _ := cmd.Flags().GetBool("force")
		noLaunch, _ := cmd.Flags().GetBool("no-launch")
		skipDB, _ := cmd.Flags().GetBool("skip-db")
		wait, _ := cmd.Flags().GetBool("wait")
		asJSON, _ := cmd.Flags().GetBool("json")

		ctx := context.Background()
		a, err := setup(ctx)
		if err != nil {
			fail(err)
		}

		ws, err := a.manager.Create(ctx, strings.Join(args, " "), workspace.CreateOptions{
			BaseBranch:   base,
			Force:        force,
			NoLaunch:     noLaunch,
			SkipDatabase: skipDB,
			Launch:       workspace.LaunchOptions{Wait: wait},
		})
		if err != nil {
			fail(err)
		}

		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(ws); err != nil {
				fail(err)
			}
			return
		}
		printWorkspace(os.Stdout, ws)
	},
}

func init() {
	startCmd.Flags().String("base", "", "Branch to start new branches from (default: settings base_branch)")
	startCmd.Flags().Bool("force", false, "Replace a stray directory at the workspace path")
	startCmd.Flags().Bool("no-launch", false, "Do not run the launch command")
	startCmd.Flags().Bool("skip-db", false, "Do not create a database branch")
	startCmd.Flags().Bool("wait", false, "Wait for the launch command to exit")
	startCmd.Flags().Bool("json", false, "Print the workspace record as JSON")
	rootCmd.AddCommand(startCmd)
}
