package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/steveyegge/loom/internal/types"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <input>",
	Short: "Show how input would be interpreted",
	Long: `Classify input as an issue, pull request, branch or description and
show the workspace path and port it would get. Nothing is created.`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		a, err := setup(ctx)
		if err != nil {
			fail(err)
		}

		id, err := a.manager.Resolve(ctx, strings.Join(args, " "))
		if err != nil {
			fail(err)
		}

		fmt.Fprintf(os.Stdout, "Kind:   %s\n", id.Kind)
		fmt.Fprintf(os.Stdout, "Value:  %s\n", id)
		if id.Kind == types.KindDescription {
			fmt.Fprintln(os.Stdout, "An issue would be filed for this description first.")
			return
		}
		if id.Kind == types.KindPullRequest {
			// The path depends on the PR's head branch
			fmt.Fprintln(os.Stdout, "The workspace path follows the pull request's head branch.")
			return
		}
		branch := id.Key()
		if loc, err := a.manager.Allocate(id, branch); err != nil {
			fmt.Fprintf(os.Stderr, "warning: %v\n", err)
		} else {
			fmt.Fprintf(os.Stdout, "Path:   %s\n", loc.Path)
			fmt.Fprintf(os.Stdout, "Port:   %d\n", loc.Port)
		}
	},
}

func init() {
	rootCmd.AddCommand(resolveCmd)
}
