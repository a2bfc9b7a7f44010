// Package runner defines the agent runner port and its implementations.
//
// A runner takes a role-scoped prompt, runs an agent to completion in the
// run's worktree and reports the agent's final text and session id. The
// workflow never sees the agent's wire protocol; it only inspects Result.
package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Iron-Ham/otto/internal/config"
	"github.com/Iron-Ham/otto/internal/errors"
	"github.com/Iron-Ham/otto/internal/execx"
	"github.com/Iron-Ham/otto/internal/logging"
)

// Role is the agent persona a prompt is addressed to.
type Role string

const (
	RoleProjectLead Role = "projectLead"
	RoleLead        Role = "lead"
	RoleTask        Role = "task"
	RoleReviewer    Role = "reviewer"
	RoleSummarize   Role = "summarize"
)

// Roles returns every role.
func Roles() []Role {
	return []Role{RoleProjectLead, RoleLead, RoleTask, RoleReviewer, RoleSummarize}
}

// Kind names a runner implementation in configuration.
type Kind string

const (
	KindEcho       Kind = "echo"
	KindClaudeCode Kind = "claude-code"
	KindCommand    Kind = "command"
)

// Options configures one runner invocation.
type Options struct {
	Role      Role
	Phase     string
	Prompt    string
	Cwd       string
	SessionID string // empty starts a fresh conversation
	Timeout   time.Duration
	// JSONSchema constrains the agent's final output when set.
	JSONSchema json.RawMessage
}

// Result is the outcome of an invocation.
type Result struct {
	Success         bool
	SessionID       string
	Output          string
	ContextOverflow bool
	TimedOut        bool
	Error           string
}

// Runner runs agent prompts.
type Runner interface {
	Kind() Kind
	Run(ctx context.Context, opts Options) Result
}

// Table resolves the runner for each role. It is built once per process.
type Table struct {
	runners map[Role]Runner
}

// NewTable builds runners for every role from cfg.
func NewTable(cfg *config.Config, exec execx.Runner, logger *logging.Logger) (*Table, error) {
	if !cfg.HasRunner() {
		return nil, errors.ErrNoRunner
	}
	t := &Table{runners: make(map[Role]Runner, len(Roles()))}
	for _, role := range Roles() {
		rc := cfg.RunnerFor(string(role))
		r, err := New(rc, exec, logger.WithRole(string(role)))
		if err != nil {
			return nil, fmt.Errorf("runner for role %s: %w", role, err)
		}
		t.runners[role] = r
	}
	return t, nil
}

// NewStaticTable uses r for every role unless overridden in byRole.
func NewStaticTable(r Runner, byRole map[Role]Runner) *Table {
	t := &Table{runners: make(map[Role]Runner, len(Roles()))}
	for _, role := range Roles() {
		t.runners[role] = r
		if o, ok := byRole[role]; ok && o != nil {
			t.runners[role] = o
		}
	}
	return t
}

// For returns the runner for role.
func (t *Table) For(role Role) Runner {
	return t.runners[role]
}

// New creates a runner from configuration.
func New(rc config.RunnerConfig, exec execx.Runner, logger *logging.Logger) (Runner, error) {
	switch Kind(strings.ToLower(rc.Kind)) {
	case KindEcho:
		return NewEcho(), nil
	case KindClaudeCode:
		return NewClaudeCode(rc, exec, logger), nil
	case KindCommand:
		if rc.Command == "" {
			return nil, errors.NewValidationError("command runner requires a command").WithField("command")
		}
		return NewCommand(rc, exec, logger), nil
	default:
		return nil, errors.NewValidationError(fmt.Sprintf("unknown runner kind: %q", rc.Kind)).WithField("kind")
	}
}

// withSchema appends the output schema to the prompt for runners that have
// no native structured-output switch.
func withSchema(prompt string, schema json.RawMessage) string {
	if len(schema) == 0 {
		return prompt
	}
	return prompt + "\n\n<JSON_SCHEMA>\n" + string(schema) + "\n</JSON_SCHEMA>\n" +
		"Respond with a single JSON document that validates against the schema above."
}

var overflowMarkers = []string{
	"prompt is too long",
	"context window",
	"context_length_exceeded",
	"maximum context length",
}

// IsContextOverflow reports whether text carries an agent's
// context-exhaustion error.
func IsContextOverflow(text string) bool {
	lower := strings.ToLower(text)
	for _, m := range overflowMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}
