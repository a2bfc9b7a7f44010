// Package errors provides the error vocabulary shared by otto's packages.
// It defines sentinel errors for the conditions callers branch on, domain
// error types that carry run and workflow context, and classification
// helpers used by the CLI to decide what to show an operator.
//
// # Error Types
//
// Domain errors describe a failure inside one subsystem:
//   - RunError: run lifecycle failures (state, tickets, cleanup)
//   - WorkflowError: phase, task and agent-runner failures
//   - LockError: a run lock is held by a live process
//   - GitError: git command failures (worktrees, merges, commits)
//
// Semantic errors describe a common condition:
//   - NotFoundError: a run, ticket or file does not exist
//   - ValidationError: input or persisted data failed validation
//   - TimeoutError: an external command exceeded its time budget
//
// # Usage
//
//	err := errors.NewWorkflowError("task execution failed", cause).
//		WithPhase("execution").
//		WithTask("task-1-add-cache.md")
//
//	if errors.Is(err, errors.ErrRunActive) { ... }
//
//	var gitErr *errors.GitError
//	if errors.As(err, &gitErr) { ... }
//
// # Error Classification
//
// Retryable errors are transient; user-facing errors are safe to print
// verbatim. The CLI prints user-facing errors as-is and prefixes others.
package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Re-export standard library functions so callers can import a single
// errors package.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Severity represents the severity level of an error.
type Severity int

const (
	// SeverityInfo is for conditions that are expected during normal use.
	SeverityInfo Severity = iota
	// SeverityWarning is for conditions the operator should notice.
	SeverityWarning
	// SeverityError is for failures that stop the current operation.
	SeverityError
	// SeverityCritical is for failures that leave a run needing manual repair.
	SeverityCritical
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Run-related sentinel errors
var (
	// ErrRunActive indicates that another live process holds the run lock.
	ErrRunActive = New("run is active")
	// ErrRunNotFound indicates that no state file exists for a run id.
	ErrRunNotFound = New("run not found")
	// ErrRunExists indicates that a run was already started for a ticket.
	ErrRunExists = New("run already exists")
	// ErrInvalidRunID indicates that a run id could escape the states directory.
	ErrInvalidRunID = New("invalid run id")
	// ErrUnsupportedState indicates that a state file has an unknown version or shape.
	ErrUnsupportedState = New("Unsupported state version")
)

// Ticket-related sentinel errors
var (
	// ErrTicketNotFound indicates that a ticket file does not exist.
	ErrTicketNotFound = New("ticket not found")
	// ErrInvalidTicketID indicates that a ticket id could escape the tickets directory.
	ErrInvalidTicketID = New("invalid ticket id")
)

// Workflow-related sentinel errors
var (
	// ErrMaxSteps indicates that the orchestrator exceeded its transition cap.
	ErrMaxSteps = New("Workflow exceeded max orchestrator steps.")
	// ErrPromptUnavailable indicates that no interactive prompt can be shown.
	ErrPromptUnavailable = New("Prompt UI unavailable (no TTY). Use non-interactive commands.")
	// ErrNoRunner indicates that the configuration does not define any runner.
	ErrNoRunner = New("Error, need to configure at least one runner. See README")
	// ErrAborted indicates that the operator declined to continue.
	ErrAborted = New("aborted by user")
)

// General sentinel errors
var (
	// ErrTimeout indicates that an operation timed out.
	ErrTimeout = New("operation timed out")
	// ErrInvalidInput indicates that input validation failed.
	ErrInvalidInput = New("invalid input")
)

// -----------------------------------------------------------------------------
// Base Error Interface
// -----------------------------------------------------------------------------

// OttoError is implemented by every error type in this package.
type OttoError interface {
	error
	Unwrap() error
	Is(target error) bool
	Severity() Severity
	IsRetryable() bool
	IsUserFacing() bool
}

type baseError struct {
	message    string
	cause      error
	severity   Severity
	retryable  bool
	userFacing bool
}

func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

func (e *baseError) Unwrap() error { return e.cause }

func (e *baseError) Is(target error) bool {
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

func (e *baseError) Severity() Severity { return e.severity }
func (e *baseError) IsRetryable() bool  { return e.retryable }
func (e *baseError) IsUserFacing() bool { return e.userFacing }

// formatContext renders "kind [k=v, ...]: message: cause".
func formatContext(kind string, parts []string, message string, cause error) string {
	prefix := kind
	if len(parts) > 0 {
		prefix = fmt.Sprintf("%s [%s]", kind, strings.Join(parts, ", "))
	}
	if cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, message, cause)
	}
	return fmt.Sprintf("%s: %s", prefix, message)
}

// -----------------------------------------------------------------------------
// Domain-Specific Errors
// -----------------------------------------------------------------------------

// RunError represents failures in the run lifecycle: creating, loading,
// resuming and deleting runs.
//
// Example:
//
//	err := errors.NewRunError("failed to load state", errors.ErrUnsupportedState).
//		WithRunID("2026-02-01-add-caching")
//	// "run error [run=2026-02-01-add-caching]: failed to load state: Unsupported state version"
type RunError struct {
	baseError
	RunID     string
	StatePath string
}

// NewRunError creates a new RunError.
func NewRunError(message string, cause error) *RunError {
	return &RunError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityError,
			userFacing: true,
		},
	}
}

// WithRunID adds the run id to the error context.
func (e *RunError) WithRunID(id string) *RunError {
	e.RunID = id
	return e
}

// WithStatePath adds the state file path to the error context.
func (e *RunError) WithStatePath(path string) *RunError {
	e.StatePath = path
	return e
}

// Error returns the formatted error message.
func (e *RunError) Error() string {
	var parts []string
	if e.RunID != "" {
		parts = append(parts, "run="+e.RunID)
	}
	if e.StatePath != "" {
		parts = append(parts, "state="+e.StatePath)
	}
	return formatContext("run error", parts, e.message, e.cause)
}

// Is checks if this error matches the target.
func (e *RunError) Is(target error) bool {
	if _, ok := target.(*RunError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// WorkflowError represents a failure inside a workflow phase, typically an
// agent runner call or a missing agent-written artifact.
//
// Example:
//
//	err := errors.NewWorkflowError("Plan file missing or empty", nil).
//		WithPhase("ticket-created").WithRole("lead")
type WorkflowError struct {
	baseError
	Phase string
	Task  string
	Role  string
}

// NewWorkflowError creates a new WorkflowError.
func NewWorkflowError(message string, cause error) *WorkflowError {
	return &WorkflowError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityError,
			userFacing: true,
		},
	}
}

// WithPhase adds the workflow phase to the error context.
func (e *WorkflowError) WithPhase(phase string) *WorkflowError {
	e.Phase = phase
	return e
}

// WithTask adds the task file to the error context.
func (e *WorkflowError) WithTask(task string) *WorkflowError {
	e.Task = task
	return e
}

// WithRole adds the agent role to the error context.
func (e *WorkflowError) WithRole(role string) *WorkflowError {
	e.Role = role
	return e
}

// WithRetryable sets whether the error is retryable.
func (e *WorkflowError) WithRetryable(r bool) *WorkflowError {
	e.retryable = r
	return e
}

// Error returns the bare message when no context is attached so that
// operator-facing messages print exactly as written.
func (e *WorkflowError) Error() string {
	var parts []string
	if e.Phase != "" {
		parts = append(parts, "phase="+e.Phase)
	}
	if e.Task != "" {
		parts = append(parts, "task="+e.Task)
	}
	if e.Role != "" {
		parts = append(parts, "role="+e.Role)
	}
	if len(parts) == 0 {
		return e.baseError.Error()
	}
	return formatContext("workflow error", parts, e.message, e.cause)
}

// Is checks if this error matches the target.
func (e *WorkflowError) Is(target error) bool {
	if _, ok := target.(*WorkflowError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// LockError is returned when a run lock is held by a live process. It is
// never retryable.
type LockError struct {
	baseError
	RunID string
	PID   int
}

// NewLockError creates a LockError for the given run and holder pid.
func NewLockError(runID string, pid int) *LockError {
	return &LockError{
		baseError: baseError{
			message:    fmt.Sprintf("Run is active (pid %d)", pid),
			cause:      ErrRunActive,
			severity:   SeverityWarning,
			userFacing: true,
		},
		RunID: runID,
		PID:   pid,
	}
}

// Error returns "Run is active (pid N)".
func (e *LockError) Error() string { return e.message }

// Is checks if this error matches the target.
func (e *LockError) Is(target error) bool {
	if _, ok := target.(*LockError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// GitError represents errors related to git operations.
//
// Example:
//
//	err := errors.NewGitError("failed to create worktree", cause).
//		WithBranch("otto-2026-02-01-add-caching").
//		WithRepository("/repo")
type GitError struct {
	baseError
	Branch     string
	Worktree   string
	Repository string
	GitOutput  string
}

// NewGitError creates a new GitError.
func NewGitError(message string, cause error) *GitError {
	return &GitError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityError,
			userFacing: true,
		},
	}
}

// WithBranch adds a branch name to the error context.
func (e *GitError) WithBranch(branch string) *GitError {
	e.Branch = branch
	return e
}

// WithWorktree adds a worktree path to the error context.
func (e *GitError) WithWorktree(path string) *GitError {
	e.Worktree = path
	return e
}

// WithRepository adds a repository path to the error context.
func (e *GitError) WithRepository(path string) *GitError {
	e.Repository = path
	return e
}

// WithGitOutput adds captured git output to the error context.
func (e *GitError) WithGitOutput(output string) *GitError {
	e.GitOutput = strings.TrimSpace(output)
	return e
}

// Error returns the formatted error message.
func (e *GitError) Error() string {
	var parts []string
	if e.Branch != "" {
		parts = append(parts, "branch="+e.Branch)
	}
	if e.Worktree != "" {
		parts = append(parts, "worktree="+e.Worktree)
	}
	if e.Repository != "" {
		parts = append(parts, "repo="+e.Repository)
	}
	msg := formatContext("git error", parts, e.message, e.cause)
	if e.GitOutput != "" {
		msg = fmt.Sprintf("%s\ngit output: %s", msg, e.GitOutput)
	}
	return msg
}

// Is checks if this error matches the target.
func (e *GitError) Is(target error) bool {
	if _, ok := target.(*GitError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Semantic Errors
// -----------------------------------------------------------------------------

// NotFoundError represents a resource that could not be found.
type NotFoundError struct {
	baseError
	ResourceType string
	ResourceID   string
}

// NewNotFoundError creates a new NotFoundError. The cause, when set, is one
// of the package sentinels so callers can match with errors.Is.
func NewNotFoundError(resourceType, resourceID string) *NotFoundError {
	return &NotFoundError{
		baseError: baseError{
			message:    fmt.Sprintf("%s not found: %s", resourceType, resourceID),
			severity:   SeverityWarning,
			userFacing: true,
		},
		ResourceType: resourceType,
		ResourceID:   resourceID,
	}
}

// WithCause adds a cause to the error.
func (e *NotFoundError) WithCause(cause error) *NotFoundError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *NotFoundError) Error() string { return e.message }

// Is checks if this error matches the target.
func (e *NotFoundError) Is(target error) bool {
	if _, ok := target.(*NotFoundError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// ValidationError represents invalid input or persisted data.
type ValidationError struct {
	baseError
	Field string
	Value any
}

// NewValidationError creates a new ValidationError.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{
		baseError: baseError{
			message:    message,
			severity:   SeverityWarning,
			userFacing: true,
		},
	}
}

// WithField adds a field name to the error context.
func (e *ValidationError) WithField(field string) *ValidationError {
	e.Field = field
	return e
}

// WithValue adds the invalid value to the error context.
func (e *ValidationError) WithValue(value any) *ValidationError {
	e.Value = value
	return e
}

// WithCause adds a cause to the error.
func (e *ValidationError) WithCause(cause error) *ValidationError {
	e.cause = cause
	return e
}

// Error returns the message unchanged. Validation messages are written
// for operators and already name the offending field.
func (e *ValidationError) Error() string { return e.message }

// Is checks if this error matches the target.
func (e *ValidationError) Is(target error) bool {
	if _, ok := target.(*ValidationError); ok {
		return true
	}
	if errors.Is(target, ErrInvalidInput) {
		return true
	}
	return e.baseError.Is(target)
}

// TimeoutError represents an operation that timed out.
type TimeoutError struct {
	baseError
	Operation string
	Duration  time.Duration
}

// NewTimeoutError creates a new TimeoutError.
func NewTimeoutError(operation string, duration time.Duration) *TimeoutError {
	return &TimeoutError{
		baseError: baseError{
			message:    operation,
			severity:   SeverityWarning,
			retryable:  true,
			userFacing: true,
		},
		Operation: operation,
		Duration:  duration,
	}
}

// Error returns the formatted error message.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timeout error: %s (timeout: %s)", e.Operation, e.Duration)
}

// Is checks if this error matches the target.
func (e *TimeoutError) Is(target error) bool {
	if _, ok := target.(*TimeoutError); ok {
		return true
	}
	if errors.Is(target, ErrTimeout) {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Error Classification Helpers
// -----------------------------------------------------------------------------

// IsRetryable returns true if the error represents a transient condition.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var ottoErr OttoError
	if As(err, &ottoErr) {
		return ottoErr.IsRetryable()
	}
	return Is(err, ErrTimeout)
}

// IsUserFacing returns true if the error message is safe to print verbatim.
// Package sentinels are written for operators and count as user-facing.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	var ottoErr OttoError
	if As(err, &ottoErr) {
		return ottoErr.IsUserFacing()
	}
	for _, s := range []error{ErrPromptUnavailable, ErrNoRunner, ErrMaxSteps, ErrRunActive, ErrAborted} {
		if Is(err, s) {
			return true
		}
	}
	return false
}

// GetSeverity returns the severity level of the error. Errors outside this
// package default to SeverityError.
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityInfo
	}
	var ottoErr OttoError
	if As(err, &ottoErr) {
		return ottoErr.Severity()
	}
	return SeverityError
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted context message.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
