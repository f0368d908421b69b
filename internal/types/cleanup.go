package types

import "fmt"

// OperationType names a teardown stage
type OperationType string

const (
	OpDevServer OperationType = "dev-server"
	OpWorktree  OperationType = "worktree"
	OpBranch    OperationType = "branch"
	OpDatabase  OperationType = "database"
	OpBinaries  OperationType = "binaries"
)

// Operation is the outcome of one teardown stage
type Operation struct {
	Type    OperationType `json:"type"`
	Success bool          `json:"success"`
	Message string        `json:"message"`
	Error   string        `json:"error,omitempty"`
}

// CleanupReport aggregates the outcome of a teardown. Success is true iff
// Errors is empty; Operations is kept in execution order and holds at most
// one entry per OperationType.
type CleanupReport struct {
	Identifier string      `json:"identifier"`
	BranchName string      `json:"branch_name,omitempty"`
	Success    bool        `json:"success"`
	Operations []Operation `json:"operations"`
	Errors     []error     `json:"-"`

	// Warnings are the SafetyCheck findings that did not block
	Warnings []string `json:"warnings,omitempty"`
}

// NewCleanupReport creates an empty, successful report
func NewCleanupReport(identifier string) *CleanupReport {
	return &CleanupReport{
		Identifier: identifier,
		Success:    true,
		Operations: []Operation{},
	}
}

// Record appends a stage outcome. A stage recorded twice is a programming
// error and panics.
func (r *CleanupReport) Record(op Operation) {
	for _, existing := range r.Operations {
		if existing.Type == op.Type {
			panic(fmt.Sprintf("operation %s recorded twice", op.Type))
		}
	}
	r.Operations = append(r.Operations, op)
}

// Fail records err as an unrecovered error and clears Success
func (r *CleanupReport) Fail(err error) {
	if err == nil {
		return
	}
	r.Errors = append(r.Errors, err)
	r.Success = false
}

// Operation returns the recorded outcome for a stage, if any
func (r *CleanupReport) Operation(t OperationType) (Operation, bool) {
	for _, op := range r.Operations {
		if op.Type == t {
			return op, true
		}
	}
	return Operation{}, false
}

// SucceededOther reports whether any stage other than t succeeded
func (r *CleanupReport) SucceededOther(t OperationType) bool {
	for _, op := range r.Operations {
		if op.Type != t && op.Success {
			return true
		}
	}
	return false
}

// SafetyCheck is the outcome of pre-teardown validation. IsSafe is false iff
// Blockers is non-empty; warnings never block.
type SafetyCheck struct {
	IsSafe   bool     `json:"is_safe"`
	Warnings []string `json:"warnings,omitempty"`
	Blockers []string `json:"blockers,omitempty"`
}

// NewSafetyCheck returns a check with no findings
func NewSafetyCheck() *SafetyCheck {
	return &SafetyCheck{IsSafe: true}
}

// Warn adds a non-blocking finding
func (s *SafetyCheck) Warn(format string, args ...interface{}) {
	s.Warnings = append(s.Warnings, fmt.Sprintf(format, args...))
}

// Block adds a blocking finding
func (s *SafetyCheck) Block(format string, args ...interface{}) {
	s.Blockers = append(s.Blockers, fmt.Sprintf(format, args...))
	s.IsSafe = false
}
