package config

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "worktree.base_branch")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// branchPrefixRegex validates branch prefix characters
var branchPrefixRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_-]*$`)

// validLogLevels returns the list of valid log levels
func validLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// validRunnerKinds returns the list of supported runner kinds
func validRunnerKinds() []string {
	return []string{"echo", "claude-code", "command"}
}

// validRoles returns the agent roles a runner can be bound to
func validRoles() []string {
	return []string{"projectLead", "lead", "task", "reviewer", "summarize"}
}

// validPromptModes returns the list of valid prompt modes
func validPromptModes() []string {
	return []string{"auto", "tui", "headless"}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateWorktree()...)
	errors = append(errors, c.validateRunners()...)
	errors = append(errors, validateChecks("quality.checks", c.Quality.Checks)...)
	errors = append(errors, validateChecks("integration.checks", c.Integration.Checks)...)

	if c.Logging.Level != "" && !slices.Contains(validLogLevels(), strings.ToLower(c.Logging.Level)) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(validLogLevels(), ", ")),
		})
	}

	if c.Prompt.Mode != "" && !slices.Contains(validPromptModes(), c.Prompt.Mode) {
		errors = append(errors, ValidationError{
			Field:   "prompt.mode",
			Value:   c.Prompt.Mode,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(validPromptModes(), ", ")),
		})
	}

	return errors
}

func (c *Config) validateWorktree() []ValidationError {
	var errors []ValidationError

	if strings.TrimSpace(c.Worktree.BaseBranch) == "" {
		errors = append(errors, ValidationError{
			Field:   "worktree.base_branch",
			Value:   c.Worktree.BaseBranch,
			Message: "must not be empty",
		})
	}

	if c.Worktree.BranchPrefix != "" && !branchPrefixRegex.MatchString(c.Worktree.BranchPrefix) {
		errors = append(errors, ValidationError{
			Field:   "worktree.branch_prefix",
			Value:   c.Worktree.BranchPrefix,
			Message: "must start with a letter and contain only letters, digits, hyphens or underscores",
		})
	}

	return errors
}

func (c *Config) validateRunners() []ValidationError {
	var errors []ValidationError

	check := func(field string, r RunnerConfig) {
		if r.Kind == "" {
			return
		}
		if !slices.Contains(validRunnerKinds(), r.Kind) {
			errors = append(errors, ValidationError{
				Field:   field + ".kind",
				Value:   r.Kind,
				Message: fmt.Sprintf("must be one of: %s", strings.Join(validRunnerKinds(), ", ")),
			})
		}
		if r.Kind == "command" && strings.TrimSpace(r.Command) == "" {
			errors = append(errors, ValidationError{
				Field:   field + ".command",
				Value:   r.Command,
				Message: "is required for command runners",
			})
		}
	}

	check("runners.default", c.Runners.Default)
	for role, r := range c.Runners.ByRole {
		known := slices.ContainsFunc(validRoles(), func(v string) bool { return strings.EqualFold(v, role) })
		if !known {
			errors = append(errors, ValidationError{
				Field:   "runners.by_role",
				Value:   role,
				Message: fmt.Sprintf("unknown role, must be one of: %s", strings.Join(validRoles(), ", ")),
			})
			continue
		}
		check("runners.by_role."+role, r)
	}

	return errors
}

func validateChecks(field string, checks []CheckConfig) []ValidationError {
	var errors []ValidationError
	seen := make(map[string]bool)

	for i, chk := range checks {
		prefix := fmt.Sprintf("%s[%d]", field, i)
		if strings.TrimSpace(chk.Name) == "" {
			errors = append(errors, ValidationError{Field: prefix + ".name", Value: chk.Name, Message: "must not be empty"})
		} else if seen[chk.Name] {
			errors = append(errors, ValidationError{Field: prefix + ".name", Value: chk.Name, Message: "duplicate check name"})
		}
		seen[chk.Name] = true

		if len(chk.Cmd) == 0 {
			errors = append(errors, ValidationError{Field: prefix + ".cmd", Value: chk.Cmd, Message: "must not be empty"})
		}
		if chk.TimeoutSeconds < 0 {
			errors = append(errors, ValidationError{Field: prefix + ".timeout_seconds", Value: chk.TimeoutSeconds, Message: "must be non-negative"})
		}
	}

	return errors
}
