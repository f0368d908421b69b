package identifier

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/loom/internal/types"
)

// fakeClassifier records calls and answers from a fixed table
type fakeClassifier struct {
	answers map[int]Classification
	err     error
	calls   []int
}

func (f *fakeClassifier) Classify(ctx context.Context, number int) (Classification, error) {
	f.calls = append(f.calls, number)
	if f.err != nil {
		return "", f.err
	}
	if c, ok := f.answers[number]; ok {
		return c, nil
	}
	return ClassUnknown, nil
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		want      types.Identifier
		wantCalls int
	}{
		{"numeric issue", "42", types.IssueID(42), 1},
		{"hash numeric pr", "#7", types.PullRequestID(7), 1},
		{"pr slash shorthand", "pr/7", types.PullRequestID(7), 0},
		{"PR dash shorthand", "PR-12", types.PullRequestID(12), 0},
		{"branch", "feat/login-page", types.BranchID("feat/login-page"), 0},
		{"branch with underscores", "fix_typo", types.BranchID("fix_typo"), 0},
		{"surrounding whitespace", "  feat/x  ", types.BranchID("feat/x"), 0},
		{
			"description with digits",
			"fix the 42 broken links on the docs page",
			types.DescriptionID("fix the 42 broken links on the docs page"),
			0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			classifier := &fakeClassifier{answers: map[int]Classification{42: ClassIssue, 7: ClassPullRequest}}
			r := NewResolver(classifier)

			got, err := r.Resolve(context.Background(), tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Len(t, classifier.calls, tt.wantCalls)
		})
	}
}

func TestResolveErrors(t *testing.T) {
	classifier := &fakeClassifier{answers: map[int]Classification{}}
	r := NewResolver(classifier)
	ctx := context.Background()

	_, err := r.Resolve(ctx, "   ")
	assert.True(t, errors.Is(err, types.ErrEmptyInput))
	assert.Equal(t, types.KindInput, types.KindOf(err))

	_, err = r.Resolve(ctx, "feat/bad name")
	assert.True(t, errors.Is(err, types.ErrInvalidBranchName))

	_, err = r.Resolve(ctx, "feat.dots")
	assert.True(t, errors.Is(err, types.ErrInvalidBranchName))

	_, err = r.Resolve(ctx, "999")
	assert.True(t, errors.Is(err, types.ErrNotFound))
	assert.Equal(t, types.KindNotFound, types.KindOf(err))

	failing := NewResolver(&fakeClassifier{err: errors.New("gh: network down")})
	_, err = failing.Resolve(ctx, "5")
	assert.Equal(t, types.KindExternal, types.KindOf(err))

	_, err = NewResolver(nil).Resolve(ctx, "5")
	assert.Equal(t, types.KindInput, types.KindOf(err))
}

// Short input or few spaces never counts as a description
func TestIsDescription(t *testing.T) {
	assert.False(t, IsDescription("add login"))
	assert.False(t, IsDescription("a-very-long-branch-name-without-any-spaces"))
	assert.False(t, IsDescription("ab cd efghijklmnopqrstuvwxyz"))
	assert.True(t, IsDescription("add a login page for users"))
}

// Re-parsing the same string yields the same variant
func TestResolveIsStable(t *testing.T) {
	classifier := &fakeClassifier{answers: map[int]Classification{42: ClassIssue}}
	r := NewResolver(classifier)
	for _, input := range []string{"42", "pr/3", "feat/x", "make the dashboard load faster on mobile"} {
		first, err := r.Resolve(context.Background(), input)
		require.NoError(t, err)
		second, err := r.Resolve(context.Background(), input)
		require.NoError(t, err)
		assert.Equal(t, first, second, input)
	}
}
