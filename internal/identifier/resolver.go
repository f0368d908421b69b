// Package identifier classifies free-form user input into an issue, pull
// request, branch, or task description.
package identifier

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/steveyegge/loom/internal/types"
)

// Classification is the tracker's answer for a bare number
type Classification string

const (
	ClassIssue       Classification = "issue"
	ClassPullRequest Classification = "pr"
	ClassUnknown     Classification = "unknown"
)

// IssueClassifier decides whether a number refers to an issue or a PR.
// It is the only collaborator the resolver calls.
type IssueClassifier interface {
	Classify(ctx context.Context, number int) (Classification, error)
}

const (
	// descriptionMinLength and descriptionMinSpaces bound free-text detection
	descriptionMinLength = 25
	descriptionMinSpaces = 2
)

var (
	prShorthandRe = regexp.MustCompile(`^(pr|PR)[/-](\d+)$`)
	numericRe     = regexp.MustCompile(`^#?(\d+)$`)
	branchNameRe  = regexp.MustCompile(`^[A-Za-z0-9/_-]+$`)
)

// Resolver turns raw input into a types.Identifier
type Resolver struct {
	classifier IssueClassifier
}

// NewResolver creates a resolver. classifier may be nil, in which case
// purely numeric input cannot be resolved.
func NewResolver(classifier IssueClassifier) *Resolver {
	return &Resolver{classifier: classifier}
}

// IsDescription reports whether input reads as a task description rather
// than an identifier.
func IsDescription(input string) bool {
	return len(input) > descriptionMinLength && strings.Count(input, " ") > descriptionMinSpaces
}

// Parse classifies input without any external lookup. ok is false when the
// input is purely numeric and needs the classifier.
func Parse(raw string) (id types.Identifier, number int, ok bool, err error) {
	input := strings.TrimSpace(raw)
	if input == "" {
		return types.Identifier{}, 0, false, types.InputError("resolve", types.ErrEmptyInput)
	}

	// Free text can itself contain digits, so this runs first
	if IsDescription(input) {
		return types.DescriptionID(input), 0, true, nil
	}

	if m := prShorthandRe.FindStringSubmatch(input); m != nil {
		n, err := strconv.Atoi(m[2])
		if err != nil {
			return types.Identifier{}, 0, false, types.InputError("resolve", fmt.Errorf("invalid PR number %q: %w", m[2], err))
		}
		return types.PullRequestID(n), n, true, nil
	}

	if m := numericRe.FindStringSubmatch(input); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return types.Identifier{}, 0, false, types.InputError("resolve", fmt.Errorf("invalid number %q: %w", m[1], err))
		}
		return types.Identifier{}, n, false, nil
	}

	if !branchNameRe.MatchString(input) {
		return types.Identifier{}, 0, false, types.InputError("resolve",
			fmt.Errorf("%w: %q (allowed: letters, digits, '/', '_', '-')", types.ErrInvalidBranchName, input))
	}
	return types.BranchID(input), 0, true, nil
}

// Resolve classifies raw input. Checks run in strict priority order:
// description, PR shorthand, bare number (one classifier call), branch.
func (r *Resolver) Resolve(ctx context.Context, raw string) (types.Identifier, error) {
	id, number, ok, err := Parse(raw)
	if err != nil {
		return types.Identifier{}, err
	}
	if ok {
		return id, nil
	}

	if r.classifier == nil {
		return types.Identifier{}, types.InputError("resolve",
			fmt.Errorf("cannot tell whether #%d is an issue or a pull request: no issue tracker configured", number))
	}

	class, err := r.classifier.Classify(ctx, number)
	if err != nil {
		return types.Identifier{}, types.External(fmt.Sprintf("classify #%d", number), err)
	}

	switch class {
	case ClassIssue:
		return types.IssueID(number), nil
	case ClassPullRequest:
		return types.PullRequestID(number), nil
	default:
		return types.Identifier{}, types.NotFoundf("resolve", "#%d is neither an issue nor a pull request", number)
	}
}
