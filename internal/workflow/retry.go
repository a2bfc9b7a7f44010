package workflow

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/Iron-Ham/otto/internal/errors"
	"github.com/Iron-Ham/otto/internal/runner"
	"github.com/Iron-Ham/otto/internal/state"
)

const (
	maxAutoRetries    = 2
	microRetryTimeout = 2 * time.Minute
)

// maybeRetry decides whether a failed operation named label should run
// again. A non-nil cause that is not retryable ends the operation at
// once; otherwise the first two failures retry silently and after that
// the operator is asked.
func (rt *Runtime) maybeRetry(ctx context.Context, label string, cause error) (bool, error) {
	if cause != nil && !errors.IsRetryable(cause) {
		rt.logger.Warn("failure is not retryable", "label", label, "error", cause.Error())
		return false, nil
	}
	tries := rt.State().Workflow.AutoRetryCounts[label]
	if tries < maxAutoRetries {
		if err := rt.update(func(s *state.State) {
			s.Workflow.AutoRetryCounts[label] = tries + 1
		}); err != nil {
			return false, err
		}
		rt.logger.Info("auto retry", "label", label, "attempt", tries+1)
		return true, nil
	}
	return rt.confirm(ctx, label+" failed. Retry?", true)
}

// microRetry is a short follow-up on an existing session demanding a
// specific reply.
type microRetry struct {
	role      runner.Role
	sessionID string
	message   string
	// replyWith is the reply the agent is told to send; default "<OK>".
	replyWith string
	// required must match the reply; default is the <OK> sentinel.
	required *regexp.Regexp
	timeout  time.Duration
}

// microRetry reports whether the agent replied as required. It never
// starts a new session: without a session id it fails immediately.
func (rt *Runtime) microRetry(ctx context.Context, m microRetry) bool {
	_, ok := rt.microRetryReply(ctx, m)
	return ok
}

// microRetryReply is microRetry that also returns the agent's reply.
func (rt *Runtime) microRetryReply(ctx context.Context, m microRetry) (runner.Result, bool) {
	if m.sessionID == "" {
		return runner.Result{}, false
	}
	replyWith := m.replyWith
	if replyWith == "" {
		replyWith = "<OK>"
	}
	required := m.required
	if required == nil {
		required = okPattern
	}
	timeout := m.timeout
	if timeout == 0 {
		timeout = microRetryTimeout
	}

	p := strings.Join([]string{
		rt.reminder(m.role),
		"",
		"<INSTRUCTIONS>",
		strings.TrimSpace(m.message),
		"",
		"Reply with " + replyWith + " only when you have completed the above.",
		"</INSTRUCTIONS>",
		"",
	}, "\n")

	c := call{
		role:      m.role,
		phase:     string(m.role) + "-micro-retry",
		prompt:    p,
		timeout:   timeout,
		sessionID: m.sessionID,
	}
	if m.role == runner.RoleLead {
		c.slot = leadSlot()
	}
	res, err := rt.invoke(ctx, c)
	if err != nil {
		rt.logger.Error("failed to persist session after micro-retry", "error", err.Error())
	}
	return res, res.Success && required.MatchString(res.Output)
}

// techLeadMicroRetry runs a micro-retry on the lead session and fails
// when the lead does not comply.
func (rt *Runtime) techLeadMicroRetry(ctx context.Context, message string) error {
	ok := rt.microRetry(ctx, microRetry{
		role:      runner.RoleLead,
		sessionID: rt.State().Workflow.TechLeadSessionID,
		message:   message,
	})
	if !ok {
		return errors.NewWorkflowError("Tech lead micro-retry failed.", nil)
	}
	return nil
}
