package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var lockCmd = &cobra.Command{
	Use:   "lock <issue | pr/N | branch>",
	Short: "Protect a workspace from cleanup",
	Long: `Lock a workspace's worktree. A locked workspace is refused by
"loom cleanup" unless --force is given, and git will not prune it.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		reason, _ := cmd.Flags().GetString("reason")

		ctx := context.Background()
		a, err := setup(ctx)
		if err != nil {
			fail(err)
		}
		id, err := a.manager.ResolveTarget(ctx, args[0])
		if err != nil {
			fail(err)
		}
		wt, err := a.manager.Find(ctx, id)
		if err != nil {
			fail(err)
		}
		if err := a.git.Lock(ctx, wt.Path, reason); err != nil {
			fail(err)
		}
		fmt.Printf("%s Locked %s\n", color.GreenString("✓"), wt.Path)
	},
}

var unlockCmd = &cobra.Command{
	Use:   "unlock <issue | pr/N | branch>",
	Short: "Remove a lock set by loom lock",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		a, err := setup(ctx)
		if err != nil {
			fail(err)
		}
		id, err := a.manager.ResolveTarget(ctx, args[0])
		if err != nil {
			fail(err)
		}
		wt, err := a.manager.Find(ctx, id)
		if err != nil {
			fail(err)
		}
		if err := a.git.Unlock(ctx, wt.Path); err != nil {
			fail(err)
		}
		fmt.Printf("%s Unlocked %s\n", color.GreenString("✓"), wt.Path)
	},
}

func init() {
	lockCmd.Flags().String("reason", "", "Why the workspace is locked")
	rootCmd.AddCommand(lockCmd)
	rootCmd.AddCommand(unlockCmd)
}
