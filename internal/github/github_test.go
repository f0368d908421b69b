package github

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/loom/internal/identifier"
	"github.com/steveyegge/loom/internal/types"
)

// scripted returns a Runner that answers by the first arguments
func scripted(t *testing.T, responses map[string]string, errs map[string]error) (Runner, *[][]string) {
	t.Helper()
	var calls [][]string
	return func(_ context.Context, dir string, args ...string) ([]byte, error) {
		calls = append(calls, args)
		key := strings.Join(args[:2], " ")
		if err, ok := errs[key]; ok {
			return nil, err
		}
		if out, ok := responses[key]; ok {
			return []byte(out), nil
		}
		t.Fatalf("unexpected gh call: %v", args)
		return nil, nil
	}, &calls
}

func TestClassify(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		response string
		err      error
		expected identifier.Classification
	}{
		{"issue", `{"number": 42, "title": "Bug"}`, nil, identifier.ClassIssue},
		{"pull request", `{"number": 7, "pull_request": {"url": "https://api.github.com/x"}}`, nil, identifier.ClassPullRequest},
		{"missing", "", errors.New("gh api: exit status 1 (output: gh: Not Found (HTTP 404))"), identifier.ClassUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			responses := map[string]string{}
			errs := map[string]error{}
			key := "api repos/{owner}/{repo}/issues/42"
			if tt.err != nil {
				errs[key] = tt.err
			} else {
				responses[key] = tt.response
			}
			run, _ := scripted(t, responses, errs)

			class, err := NewTracker(Config{Runner: run}).Classify(ctx, 42)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, class)
		})
	}
}

func TestClassifyExternalFailure(t *testing.T) {
	run, _ := scripted(t, nil, map[string]error{
		"api repos/{owner}/{repo}/issues/3": errors.New("gh: not logged in"),
	})
	_, err := NewTracker(Config{Runner: run}).Classify(context.Background(), 3)
	assert.Equal(t, types.KindExternal, types.KindOf(err))
}

func TestGetPullRequest(t *testing.T) {
	run, calls := scripted(t, map[string]string{
		"pr view": `{"number": 7, "title": "Fix crash", "state": "OPEN", "url": "https://github.com/acme/app/pull/7", "headRefName": "fix/crash"}`,
	}, nil)

	data, err := NewTracker(Config{Runner: run}).GetPullRequest(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, &types.IssueData{
		Number:        7,
		Title:         "Fix crash",
		URL:           "https://github.com/acme/app/pull/7",
		State:         "open",
		Branch:        "fix/crash",
		IsPullRequest: true,
	}, data)
	assert.Equal(t, []string{"pr", "view", "7", "--json", "number,title,state,url,headRefName"}, (*calls)[0])
}

func TestGetIssueNotFound(t *testing.T) {
	run, _ := scripted(t, nil, map[string]error{
		"issue view": errors.New("GraphQL: Could not resolve to an issue or pull request with the number of 99999."),
	})
	_, err := NewTracker(Config{Runner: run}).GetIssue(context.Background(), 99999)
	assert.True(t, errors.Is(err, types.ErrNotFound))
}

func TestCreateIssue(t *testing.T) {
	ctx := context.Background()
	run, calls := scripted(t, map[string]string{
		"issue create": "Creating issue in acme/app\n\nhttps://github.com/acme/app/issues/128\n",
	}, nil)
	tracker := NewTracker(Config{Runner: run})

	n, err := tracker.CreateIssue(ctx, "Add rate limiting", "body text")
	require.NoError(t, err)
	assert.Equal(t, 128, n)
	assert.Equal(t, []string{"issue", "create", "--title", "Add rate limiting", "--body", "body text"}, (*calls)[0])

	_, err = tracker.CreateIssue(ctx, " ", "body")
	assert.Equal(t, types.KindInput, types.KindOf(err))
}
