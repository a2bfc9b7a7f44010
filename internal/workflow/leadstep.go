package workflow

import (
	"context"
	"time"

	"github.com/Iron-Ham/otto/internal/errors"
	"github.com/Iron-Ham/otto/internal/runner"
)

// leadStep is one planning exchange with the lead.
type leadStep struct {
	label   string
	phase   string
	prompt  string
	timeout time.Duration
	// retry decides whether a failed exchange runs again; nil fails at once.
	retry func(ctx context.Context, cause error) (bool, error)
	// okMessage, when set, requires the <OK> sentinel and is the
	// micro-retry message used when it is missing.
	okMessage string
}

// retryWithBudget retries via the auto-retry counter for label.
func (rt *Runtime) retryWithBudget(label string) func(context.Context, error) (bool, error) {
	return func(ctx context.Context, cause error) (bool, error) { return rt.maybeRetry(ctx, label, cause) }
}

// retryWithConfirm asks the operator about every retryable failure.
func (rt *Runtime) retryWithConfirm(question string) func(context.Context, error) (bool, error) {
	return func(ctx context.Context, cause error) (bool, error) {
		if cause != nil && !errors.IsRetryable(cause) {
			return false, nil
		}
		return rt.confirm(ctx, question, true)
	}
}

// agentFailure classifies an unsuccessful agent result. An overflow that
// survived the fresh-session retry is not retryable: the prompt alone does
// not fit.
func agentFailure(label string, res runner.Result, timeout time.Duration) error {
	switch {
	case res.TimedOut:
		return errors.NewTimeoutError(label, timeout)
	case res.ContextOverflow:
		return errors.NewWorkflowError(label+": prompt exceeds the agent context window.", nil)
	}
	msg := res.Error
	if msg == "" {
		msg = label + " failed."
	}
	return errors.NewWorkflowError(msg, nil).WithRetryable(true)
}

// runLeadStep runs s on the lead session until it succeeds or the retry
// policy gives up.
func (rt *Runtime) runLeadStep(ctx context.Context, s leadStep) (runner.Result, error) {
	for {
		res, err := rt.invoke(ctx, call{
			role:    runner.RoleLead,
			phase:   s.phase,
			prompt:  s.prompt,
			timeout: s.timeout,
			slot:    leadSlot(),
		})
		if err != nil {
			return res, err
		}

		var failure error
		switch {
		case !res.Success:
			failure = agentFailure(s.label, res, s.timeout)
		case s.okMessage != "" && !HasOK(res.Output):
			if rt.microRetry(ctx, microRetry{role: runner.RoleLead, sessionID: res.SessionID, message: s.okMessage}) {
				return res, nil
			}
			failure = errors.NewWorkflowError(s.label+" missing <OK> sentinel.", nil).WithRetryable(true)
		default:
			return res, nil
		}

		if s.retry == nil {
			return res, failure
		}
		again, err := s.retry(ctx, failure)
		if err != nil {
			return res, err
		}
		if !again {
			return res, failure
		}
	}
}
