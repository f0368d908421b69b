package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/steveyegge/loom/internal/types"
)

// printWorkspace renders a created or reused workspace
func printWorkspace(w io.Writer, ws *types.WorkspaceRecord) {
	green := color.New(color.FgGreen).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()

	verb := "Created"
	if ws.Reused {
		verb = "Reusing"
	}
	fmt.Fprintf(w, "%s %s workspace for %s\n", green("✓"), verb, ws.Identifier)
	fmt.Fprintf(w, "  Path:   %s\n", cyan(ws.Path))
	fmt.Fprintf(w, "  Branch: %s\n", ws.Branch)
	if ws.Port > 0 {
		fmt.Fprintf(w, "  Port:   %d\n", ws.Port)
	}
	if ws.GitHubData != nil && ws.GitHubData.Title != "" {
		fmt.Fprintf(w, "  Title:  %s\n", ws.GitHubData.Title)
	}
	if len(ws.Capabilities) > 0 {
		caps := make([]string, len(ws.Capabilities))
		for i, c := range ws.Capabilities {
			caps[i] = string(c)
		}
		fmt.Fprintf(w, "  Type:   %s\n", strings.Join(caps, ", "))
	}
	if ws.DatabaseBranch != "" {
		fmt.Fprintf(w, "  Database: branched\n")
	}
}

// printReport renders a cleanup report, one line per stage
func printReport(w io.Writer, report *types.CleanupReport) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()

	for _, op := range report.Operations {
		mark := green("✓")
		if !op.Success {
			mark = red("✗")
		}
		fmt.Fprintf(w, "%s %-10s %s\n", mark, op.Type, op.Message)
		if op.Error != "" {
			fmt.Fprintf(w, "  %s\n", red(op.Error))
		}
	}

	switch {
	case report.Success:
		fmt.Fprintf(w, "\n%s Cleaned up %s\n", green("✓"), report.Identifier)
	default:
		fmt.Fprintf(w, "\n%s Cleanup of %s finished with %d error(s)\n", yellow("!"), report.Identifier, len(report.Errors))
	}
}

// printTrees renders worktrees as a table
func printTrees(w io.Writer, trees []types.WorkingTree, isMain func(types.WorkingTree) bool, port func(types.WorkingTree) int) {
	if len(trees) == 0 {
		fmt.Fprintln(w, "No worktrees found.")
		return
	}
	gray := color.New(color.FgHiBlack).SprintFunc()
	for _, wt := range trees {
		branch := wt.Branch
		if wt.Detached {
			branch = "(detached " + shortHead(wt.Head) + ")"
		}
		var tags []string
		if isMain(wt) {
			tags = append(tags, "main")
		}
		if wt.Locked {
			tags = append(tags, "locked")
		}
		if wt.Prunable {
			tags = append(tags, "missing")
		}
		portText := ""
		if p := port(wt); p > 0 {
			portText = fmt.Sprintf(":%d", p)
		}
		line := fmt.Sprintf("%-40s %-6s %s", branch, portText, wt.Path)
		if len(tags) > 0 {
			line += " " + gray("["+strings.Join(tags, ", ")+"]")
		}
		fmt.Fprintln(w, line)
	}
}

func shortHead(head string) string {
	if len(head) > 7 {
		return head[:7]
	}
	return head
}
