package types

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind classifies failures for callers deciding whether to retry,
// force, or give up.
type ErrorKind int

const (
	// KindUnknown is returned by KindOf for errors outside the taxonomy
	KindUnknown ErrorKind = iota
	// KindInput is a malformed or empty identifier; not retryable
	KindInput
	// KindNotFound means no matching resource exists
	KindNotFound
	// KindConflict needs force or manual resolution
	KindConflict
	// KindExternal is a failed collaborator call (git, gh, database, signals)
	KindExternal
	// KindTimeout is a collaborator call that ran out of time
	KindTimeout
)

func (k ErrorKind) String() string {
	switch k {
	case KindInput:
		return "input"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindExternal:
		return "external"
	case KindTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Sentinel errors. Match with errors.Is.
var (
	ErrEmptyInput         = errors.New("identifier is empty")
	ErrInvalidBranchName  = errors.New("invalid branch name")
	ErrNotFound           = errors.New("not found")
	ErrPortOverflow       = errors.New("port exceeds 65535")
	ErrPathExists         = errors.New("path already exists")
	ErrMissingBranch      = errors.New("branch name is required")
	ErrUncommittedChanges = errors.New("worktree has uncommitted changes")
	ErrSafetyBlocked      = errors.New("cleanup blocked by safety check")
	ErrWorktreeLocked     = errors.New("worktree is locked")
	ErrDeclined           = errors.New("operation declined")
)

// Error carries a kind and the operation that failed
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// InputError wraps err as KindInput
func InputError(op string, err error) error { return &Error{Kind: KindInput, Op: op, Err: err} }

// NotFoundError wraps err as KindNotFound
func NotFoundError(op string, err error) error { return &Error{Kind: KindNotFound, Op: op, Err: err} }

// ConflictError wraps err as KindConflict
func ConflictError(op string, err error) error { return &Error{Kind: KindConflict, Op: op, Err: err} }

// NotFoundf builds a KindNotFound error that matches ErrNotFound
func NotFoundf(op, format string, args ...interface{}) error {
	return NotFoundError(op, fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrNotFound))
}

// External wraps a collaborator failure. Deadline expiry becomes
// KindTimeout so it is never confused with a confirmed failure.
func External(op string, err error) error {
	if err == nil {
		return nil
	}
	var typed *Error
	if errors.As(err, &typed) && (typed.Kind == KindExternal || typed.Kind == KindTimeout) {
		return err
	}
	kind := KindExternal
	if errors.Is(err, context.DeadlineExceeded) {
		kind = KindTimeout
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// ExternalCtx is External for exec-style failures, where a killed process
// reports "signal: killed" rather than the context error.
func ExternalCtx(ctx context.Context, op string, err error) error {
	if err == nil {
		return nil
	}
	if ctx.Err() == context.DeadlineExceeded && !errors.Is(err, context.DeadlineExceeded) {
		err = fmt.Errorf("%w (%v)", context.DeadlineExceeded, err)
	}
	return External(op, err)
}

// KindOf returns the outermost classified kind of err
func KindOf(err error) ErrorKind {
	var typed *Error
	if errors.As(err, &typed) {
		return typed.Kind
	}
	return KindUnknown
}

// IsKind reports whether err is classified as kind
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}
