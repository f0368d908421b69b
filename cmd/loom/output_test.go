package main

import (
	"bytes"
	"errors"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"

	"github.com/steveyegge/loom/internal/types"
)

func init() {
	color.NoColor = true
}

func TestParseAnswer(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"y", true},
		{"YES", true},
		{"  yes\n", true},
		{"", false},
		{"n", false},
		{"yep", false},
	}
	for _, tt := range tests {
		if got := parseAnswer(tt.input); got != tt.want {
			t.Errorf("parseAnswer(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestPrintReport(t *testing.T) {
	report := types.NewCleanupReport("issue #42")
	report.Record(types.Operation{Type: types.OpDevServer, Message: "Failed to stop dev server", Error: "operation not permitted"})
	report.Fail(errors.New("operation not permitted"))
	report.Record(types.Operation{Type: types.OpWorktree, Success: true, Message: "Removed worktree at /src/webapp-looms/issue-42"})

	var buf bytes.Buffer
	printReport(&buf, report)
	out := buf.String()

	assert.Contains(t, out, "✗ dev-server")
	assert.Contains(t, out, "operation not permitted")
	assert.Contains(t, out, "✓ worktree")
	assert.Contains(t, out, "finished with 1 error(s)")
}

func TestPrintWorkspace(t *testing.T) {
	ws := &types.WorkspaceRecord{
		Identifier:   types.IssueID(42),
		Path:         "/src/webapp-looms/issue-42",
		Branch:       "issue-42",
		Port:         3042,
		Capabilities: []types.Capability{types.CapabilityWeb},
		GitHubData:   &types.IssueData{Number: 42, Title: "Add dark mode"},
		Reused:       true,
	}

	var buf bytes.Buffer
	printWorkspace(&buf, ws)
	out := buf.String()

	assert.Contains(t, out, "Reusing workspace for issue #42")
	assert.Contains(t, out, "Port:   3042")
	assert.Contains(t, out, "Add dark mode")
	assert.Contains(t, out, "web")
}

func TestPrintTrees(t *testing.T) {
	trees := []types.WorkingTree{
		{Path: "/src/webapp", Branch: "main"},
		{Path: "/src/webapp-looms/issue-42", Branch: "issue-42", Locked: true},
		{Path: "/src/webapp-looms/detached", Head: "0123456789abcdef", Detached: true},
	}

	var buf bytes.Buffer
	printTrees(&buf, trees,
		func(wt types.WorkingTree) bool { return wt.Path == "/src/webapp" },
		func(wt types.WorkingTree) int {
			if wt.Branch == "issue-42" {
				return 3042
			}
			return 0
		})
	out := buf.String()

	assert.Contains(t, out, "[main]")
	assert.Contains(t, out, ":3042")
	assert.Contains(t, out, "[locked]")
	assert.Contains(t, out, "(detached 0123456)")

	buf.Reset()
	printTrees(&buf, nil, nil, nil)
	assert.Equal(t, "No worktrees found.\n", buf.String())
}
