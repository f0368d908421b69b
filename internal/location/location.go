// Package location derives workspace paths and dev-server ports. Every
// result is a pure function of its inputs so a crashed or repeated
// invocation lands on the same path and port.
package location

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/steveyegge/loom/internal/types"
)

const (
	// BasePort is added to issue/PR numbers and branch hashes
	BasePort = 3000
	// MaxPort is the highest valid TCP port
	MaxPort = 65535

	branchPortRange = 999
	defaultSuffix   = "-looms"
	fallbackPrefix  = "looms"
)

var nonAlnumRe = regexp.MustCompile(`[^a-z0-9]+`)

// Sanitize lower-cases name and collapses every run of characters other
// than [a-z0-9] (including '/', '_' and '.') into a single '-'.
func Sanitize(name string) string {
	s := nonAlnumRe.ReplaceAllString(strings.ToLower(name), "-")
	return strings.Trim(s, "-")
}

// DefaultPrefix returns the prefix used when none is configured: a sibling
// directory named "<repo>-looms".
func DefaultPrefix(repoRoot string) string {
	base := filepath.Base(filepath.Clean(repoRoot))
	if base == "" || base == "." || base == string(filepath.Separator) {
		return fallbackPrefix + "/"
	}
	return base + defaultSuffix + "/"
}

// joinPrefix attaches name to prefix. A prefix ending in '-', '_' or '/'
// is its own separator; anything else gets a '-'.
func joinPrefix(prefix, name string) string {
	if strings.HasSuffix(prefix, "-") || strings.HasSuffix(prefix, "_") || strings.HasSuffix(prefix, "/") {
		return prefix + name
	}
	return prefix + "-" + name
}

// DirName returns the sanitized directory name for a workspace. PR
// workspaces get a "_pr_<n>" suffix so they never collide with an issue
// workspace built from the same branch.
func DirName(id types.Identifier, branch string) (string, error) {
	if branch == "" {
		branch = id.Key()
	}
	name := Sanitize(branch)
	if name == "" {
		return "", types.InputError("allocate path", fmt.Errorf("%w: %q sanitizes to nothing", types.ErrInvalidBranchName, branch))
	}
	if id.Kind == types.KindPullRequest {
		name += PRSuffix(id.Number)
	}
	return name, nil
}

// PRSuffix is the directory suffix marking a pull request workspace
func PRSuffix(number int) string {
	return "_pr_" + strconv.Itoa(number)
}

// AllocatePath returns the absolute workspace path for id checked out on
// branch. An empty prefix selects DefaultPrefix(repoRoot).
func AllocatePath(id types.Identifier, branch, repoRoot, prefix string) (string, error) {
	if repoRoot == "" {
		return "", types.InputError("allocate path", fmt.Errorf("repository root is required"))
	}
	name, err := DirName(id, branch)
	if err != nil {
		return "", err
	}
	if prefix == "" {
		prefix = DefaultPrefix(repoRoot)
	}
	root, err := filepath.Abs(repoRoot)
	if err != nil {
		return "", fmt.Errorf("failed to resolve repository root: %w", err)
	}
	return filepath.Join(filepath.Dir(root), joinPrefix(prefix, name)), nil
}

// AllocatePort returns the dev-server port for id. Issues and PRs map to
// BasePort+number; branches hash into (BasePort, BasePort+999].
func AllocatePort(id types.Identifier) (int, error) {
	switch id.Kind {
	case types.KindIssue, types.KindPullRequest:
		if id.Number < 0 {
			return 0, types.InputError("allocate port", fmt.Errorf("negative %s number %d", id.Kind, id.Number))
		}
		if id.Number > MaxPort-BasePort {
			return 0, types.InputError("allocate port", fmt.Errorf("%w: %s is above %d", types.ErrPortOverflow, id, MaxPort-BasePort))
		}
		return BasePort + id.Number, nil
	case types.KindBranch:
		return BranchPort(id.Name), nil
	default:
		return 0, types.InputError("allocate port", fmt.Errorf("cannot allocate a port for %s", id))
	}
}

// BranchPort hashes a branch name into a stable port
func BranchPort(name string) int {
	sum := sha256.Sum256([]byte(name))
	n := binary.BigEndian.Uint32(sum[:4])
	return BasePort + int(n%branchPortRange) + 1
}

// Allocate derives both path and port
func Allocate(id types.Identifier, branch, repoRoot, prefix string) (types.Location, error) {
	path, err := AllocatePath(id, branch, repoRoot, prefix)
	if err != nil {
		return types.Location{}, err
	}
	port, err := AllocatePort(id)
	if err != nil {
		return types.Location{}, err
	}
	return types.Location{Path: path, Port: port}, nil
}
