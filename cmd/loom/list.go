package main

import (
	"context"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/steveyegge/loom/internal/envfile"
	"github.com/steveyegge/loom/internal/types"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List workspaces",
	Long: `List the repository's worktrees with their branch and dev-server port.

The port is read from each workspace's env file.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		all, _ := cmd.Flags().GetBool("all")

		ctx := context.Background()
		a, err := setup(ctx)
		if err != nil {
			fail(err)
		}

		trees, err := a.manager.List(ctx, all)
		if err != nil {
			fail(err)
		}

		env := envfile.NewWriter(a.settings.Env.PortVar)
		printTrees(os.Stdout, trees, a.manager.IsMain, func(wt types.WorkingTree) int {
			port, ok, err := env.Port(filepath.Join(wt.Path, a.settings.Env.File))
			if err != nil || !ok {
				return 0
			}
			return port
		})
	},
}

func init() {
	listCmd.Flags().Bool("all", false, "Include bare and missing worktrees")
	rootCmd.AddCommand(listCmd)
}
