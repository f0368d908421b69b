package types

import (
	"fmt"
	"strconv"
	"strings"
)

// IdentifierKind tags which variant of Identifier is populated
type IdentifierKind string

const (
	// KindIssue identifies an issue by number
	KindIssue IdentifierKind = "issue"
	// KindPullRequest identifies a pull request by number
	KindPullRequest IdentifierKind = "pr"
	// KindBranch identifies an ad-hoc branch by name
	KindBranch IdentifierKind = "branch"
	// KindDescription is free text that still needs an issue created for it
	KindDescription IdentifierKind = "description"
)

// IsValid checks if the identifier kind value is valid
func (k IdentifierKind) IsValid() bool {
	switch k {
	case KindIssue, KindPullRequest, KindBranch, KindDescription:
		return true
	}
	return false
}

// Identifier is the resolved form of user input. Exactly one of Number,
// Name or Text is meaningful, selected by Kind. Values are immutable once
// constructed; the only permitted transition is Description -> Issue via
// WithIssueNumber.
type Identifier struct {
	Kind   IdentifierKind `json:"kind"`
	Number int            `json:"number,omitempty"`
	Name   string         `json:"name,omitempty"`
	Text   string         `json:"text,omitempty"`
}

// IssueID returns an Issue identifier
func IssueID(n int) Identifier { return Identifier{Kind: KindIssue, Number: n} }

// PullRequestID returns a PullRequest identifier
func PullRequestID(n int) Identifier { return Identifier{Kind: KindPullRequest, Number: n} }

// BranchID returns a Branch identifier
func BranchID(name string) Identifier { return Identifier{Kind: KindBranch, Name: name} }

// DescriptionID returns a Description identifier
func DescriptionID(text string) Identifier { return Identifier{Kind: KindDescription, Text: text} }

// IsNumbered reports whether the identifier carries an issue or PR number
func (id Identifier) IsNumbered() bool {
	return id.Kind == KindIssue || id.Kind == KindPullRequest
}

// WithIssueNumber replaces a Description with the Issue created for it.
// Any other variant is rejected.
func (id Identifier) WithIssueNumber(n int) (Identifier, error) {
	if id.Kind != KindDescription {
		return id, fmt.Errorf("only a description can become an issue (got %s)", id.Kind)
	}
	if n <= 0 {
		return id, fmt.Errorf("issue number must be positive (got %d)", n)
	}
	return IssueID(n), nil
}

// Validate checks the tagged-union invariant
func (id Identifier) Validate() error {
	switch id.Kind {
	case KindIssue, KindPullRequest:
		if id.Number < 0 {
			return fmt.Errorf("%s number cannot be negative", id.Kind)
		}
		if id.Name != "" || id.Text != "" {
			return fmt.Errorf("%s identifier must only carry a number", id.Kind)
		}
	case KindBranch:
		if id.Name == "" {
			return fmt.Errorf("branch identifier requires a name")
		}
		if id.Number != 0 || id.Text != "" {
			return fmt.Errorf("branch identifier must only carry a name")
		}
	case KindDescription:
		if id.Text == "" {
			return fmt.Errorf("description identifier requires text")
		}
		if id.Number != 0 || id.Name != "" {
			return fmt.Errorf("description identifier must only carry text")
		}
	default:
		return fmt.Errorf("invalid identifier kind: %q", id.Kind)
	}
	return nil
}

// Key returns the natural key used for reuse detection and naming:
// "issue-42", "pr-7", the branch name, or the raw description.
func (id Identifier) Key() string {
	switch id.Kind {
	case KindIssue:
		return "issue-" + strconv.Itoa(id.Number)
	case KindPullRequest:
		return "pr-" + strconv.Itoa(id.Number)
	case KindBranch:
		return id.Name
	default:
		return id.Text
	}
}

// String returns a human-readable representation
func (id Identifier) String() string {
	switch id.Kind {
	case KindIssue:
		return fmt.Sprintf("issue #%d", id.Number)
	case KindPullRequest:
		return fmt.Sprintf("PR #%d", id.Number)
	case KindBranch:
		return fmt.Sprintf("branch %s", id.Name)
	case KindDescription:
		text := id.Text
		if len(text) > 40 {
			text = strings.TrimSpace(text[:40]) + "..."
		}
		return fmt.Sprintf("description %q", text)
	}
	return "unknown identifier"
}

// Location is a derived workspace path and port. It is never stored.
type Location struct {
	Path string
	Port int
}

// WorkingTree is a git worktree bound to one branch
type WorkingTree struct {
	// Path is the absolute path of the checkout
	Path string `json:"path"`

	// Branch is the short branch name (empty when detached)
	Branch string `json:"branch,omitempty"`

	// Head is the commit the worktree's HEAD points at
	Head string `json:"head,omitempty"`

	Bare     bool `json:"bare,omitempty"`
	Detached bool `json:"detached,omitempty"`
	Locked   bool `json:"locked,omitempty"`

	// LockReason is set when Locked was given a reason
	LockReason string `json:"lock_reason,omitempty"`

	// Prunable is set when git reports the worktree directory as missing
	Prunable bool `json:"prunable,omitempty"`
}

// Capability is a project trait detected in a fresh workspace
type Capability string

const (
	// CapabilityWeb means the project runs a dev server
	CapabilityWeb Capability = "web"
	// CapabilityCLI means the project ships executables
	CapabilityCLI Capability = "cli"
)

// IssueData is the tracker metadata stored alongside a workspace
type IssueData struct {
	Number int    `json:"number"`
	Title  string `json:"title"`
	URL    string `json:"url,omitempty"`
	State  string `json:"state,omitempty"`

	// Branch is the head branch for pull requests
	Branch string `json:"branch,omitempty"`

	IsPullRequest bool `json:"is_pull_request,omitempty"`
}

// WorkspaceRecord is the immutable result of creating (or reusing) a workspace
type WorkspaceRecord struct {
	ID             string       `json:"id"`
	Identifier     Identifier   `json:"identifier"`
	Path           string       `json:"path"`
	Branch         string       `json:"branch"`
	Port           int          `json:"port,omitempty"`
	Capabilities   []Capability `json:"capabilities,omitempty"`
	GitHubData     *IssueData   `json:"github_data,omitempty"`
	DatabaseBranch string       `json:"database_branch,omitempty"`

	// Reused is true when an existing worktree was returned unchanged
	Reused bool `json:"reused"`
}

// HasCapability reports whether the capability was detected
func (r *WorkspaceRecord) HasCapability(c Capability) bool {
	for _, have := range r.Capabilities {
		if have == c {
			return true
		}
	}
	return false
}

// Summary is a short title and branch slug derived from free text
type Summary struct {
	Title string `json:"title"`
	Slug  string `json:"slug"`
}
