// Package github implements the workspace IssueTracker over the gh CLI.
package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/steveyegge/loom/internal/identifier"
	"github.com/steveyegge/loom/internal/types"
)

// DefaultTimeout bounds each gh invocation
const DefaultTimeout = 15 * time.Second

var issueURLRe = regexp.MustCompile(`/(issues|pull)/(\d+)\s*$`)

// Runner executes gh with args in dir and returns stdout
type Runner func(ctx context.Context, dir string, args ...string) ([]byte, error)

// Config configures a Tracker
type Config struct {
	// Dir is the repository gh resolves {owner}/{repo} from
	Dir string
	// Timeout bounds each call (default: DefaultTimeout)
	Timeout time.Duration
	// Runner defaults to running the gh binary
	Runner Runner
}

// Tracker talks to GitHub through gh
type Tracker struct {
	dir     string
	timeout time.Duration
	run     Runner
}

// NewTracker creates a Tracker
func NewTracker(cfg Config) *Tracker {
	t := &Tracker{dir: cfg.Dir, timeout: cfg.Timeout, run: cfg.Runner}
	if t.timeout <= 0 {
		t.timeout = DefaultTimeout
	}
	if t.run == nil {
		t.run = runGH
	}
	return t
}

func runGH(ctx context.Context, dir string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "gh", args...)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("gh %s: %w (output: %s)", strings.Join(args, " "), err, trimOutput(stderr.Bytes()))
	}
	return stdout.Bytes(), nil
}

func (t *Tracker) call(ctx context.Context, op string, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	out, err := t.run(ctx, t.dir, args...)
	if err != nil {
		if isNotFound(err) {
			return nil, types.NotFoundError(op, fmt.Errorf("%w: %v", types.ErrNotFound, err))
		}
		return nil, types.ExternalCtx(ctx, op, err)
	}
	return out, nil
}

func isNotFound(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "HTTP 404") || strings.Contains(msg, "Could not resolve to")
}

// ghIssue mirrors the fields we read from gh's JSON output
type ghIssue struct {
	Number      int    `json:"number"`
	Title       string `json:"title"`
	State       string `json:"state"`
	URL         string `json:"url"`
	HTMLURL     string `json:"html_url"`
	HeadRefName string `json:"headRefName"`
	PullRequest *struct {
		URL string `json:"url"`
	} `json:"pull_request"`
}

// Classify reports whether number is an issue or a pull request. The
// issues endpoint returns both, with PRs carrying a pull_request object.
func (t *Tracker) Classify(ctx context.Context, number int) (identifier.Classification, error) {
	out, err := t.call(ctx, "classify", "api", fmt.Sprintf("repos/{owner}/{repo}/issues/%d", number))
	if types.IsKind(err, types.KindNotFound) {
		return identifier.ClassUnknown, nil
	}
	if err != nil {
		return identifier.ClassUnknown, err
	}

	var issue ghIssue
	if err := json.Unmarshal(out, &issue); err != nil {
		return identifier.ClassUnknown, types.External("classify", fmt.Errorf("failed to decode gh output: %w", err))
	}
	if issue.PullRequest != nil {
		return identifier.ClassPullRequest, nil
	}
	return identifier.ClassIssue, nil
}

// GetIssue returns issue metadata
func (t *Tracker) GetIssue(ctx context.Context, number int) (*types.IssueData, error) {
	out, err := t.call(ctx, "get issue", "issue", "view", strconv.Itoa(number), "--json", "number,title,state,url")
	if err != nil {
		return nil, err
	}
	return decodeIssue(out, false)
}

// GetPullRequest returns pull request metadata including the head branch
func (t *Tracker) GetPullRequest(ctx context.Context, number int) (*types.IssueData, error) {
	out, err := t.call(ctx, "get pull request", "pr", "view", strconv.Itoa(number), "--json", "number,title,state,url,headRefName")
	if err != nil {
		return nil, err
	}
	return decodeIssue(out, true)
}

func decodeIssue(out []byte, pr bool) (*types.IssueData, error) {
	var issue ghIssue
	if err := json.Unmarshal(out, &issue); err != nil {
		return nil, types.External("decode issue", fmt.Errorf("failed to decode gh output: %w", err))
	}
	url := issue.URL
	if url == "" {
		url = issue.HTMLURL
	}
	return &types.IssueData{
		Number:        issue.Number,
		Title:         issue.Title,
		URL:           url,
		State:         strings.ToLower(issue.State),
		Branch:        issue.HeadRefName,
		IsPullRequest: pr,
	}, nil
}

// CreateIssue opens an issue and returns its number
func (t *Tracker) CreateIssue(ctx context.Context, title, body string) (int, error) {
	if strings.TrimSpace(title) == "" {
		return 0, types.InputError("create issue", fmt.Errorf("title is required"))
	}
	out, err := t.call(ctx, "create issue", "issue", "create", "--title", title, "--body", body)
	if err != nil {
		return 0, err
	}
	// gh prints the new issue's URL as the last line
	m := issueURLRe.FindSubmatch(bytes.TrimSpace(out))
	if m == nil {
		return 0, types.External("create issue", fmt.Errorf("unexpected gh output: %s", trimOutput(out)))
	}
	n, err := strconv.Atoi(string(m[2]))
	if err != nil {
		return 0, types.External("create issue", err)
	}
	return n, nil
}

func trimOutput(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}
