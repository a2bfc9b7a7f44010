package workflow

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Iron-Ham/otto/internal/artifacts"
	"github.com/Iron-Ham/otto/internal/event"
	"github.com/Iron-Ham/otto/internal/runner"
	"github.com/Iron-Ham/otto/internal/state"
)

// slot names a persisted session: the singleton lead session, or the task
// or reviewer session of one base task.
type slot struct {
	role runner.Role
	key  string
}

func leadSlot() *slot { return &slot{role: runner.RoleLead} }

func taskSlot(taskFile string) *slot {
	return &slot{role: runner.RoleTask, key: artifacts.BaseTaskInfo(taskFile).Path}
}

func reviewerSlot(taskFile string) *slot {
	return &slot{role: runner.RoleReviewer, key: artifacts.BaseTaskInfo(taskFile).Path}
}

func (rt *Runtime) sessionID(s *slot) string {
	wf := rt.State().Workflow
	switch s.role {
	case runner.RoleLead:
		return wf.TechLeadSessionID
	case runner.RoleTask:
		return wf.TaskAgentSessions[s.key]
	case runner.RoleReviewer:
		return wf.ReviewerSessions[s.key]
	}
	return ""
}

// setSession persists id for s; an empty id clears it.
func (rt *Runtime) setSession(s *slot, id string) error {
	return rt.update(func(st *state.State) {
		wf := &st.Workflow
		switch s.role {
		case runner.RoleLead:
			wf.TechLeadSessionID = id
		case runner.RoleTask:
			if id == "" {
				delete(wf.TaskAgentSessions, s.key)
			} else {
				wf.TaskAgentSessions[s.key] = id
			}
		case runner.RoleReviewer:
			if id == "" {
				delete(wf.ReviewerSessions, s.key)
			} else {
				wf.ReviewerSessions[s.key] = id
			}
		}
	})
}

// call is one agent invocation.
type call struct {
	role    runner.Role
	phase   string
	prompt  string
	timeout time.Duration
	// slot, when set, receives the session id and supplies it when
	// sessionID is empty.
	slot      *slot
	sessionID string
	schema    json.RawMessage
}

// invoke runs c. When the agent reports a context overflow on a resumed
// session, the session is cleared and the call is retried once fresh. A
// successful result always carries the session id it ran under, and that
// id is persisted to the call's slot.
func (rt *Runtime) invoke(ctx context.Context, c call) (runner.Result, error) {
	sessionID := c.sessionID
	if sessionID == "" && c.slot != nil {
		sessionID = rt.sessionID(c.slot)
	}

	res := rt.runOnce(ctx, c, sessionID)
	if sessionID != "" && res.ContextOverflow {
		rt.logger.Warn("context overflow, retrying with a fresh session",
			"role", string(c.role), "phase", c.phase)
		if c.slot != nil {
			if err := rt.setSession(c.slot, ""); err != nil {
				return res, err
			}
		}
		sessionID = ""
		res = rt.runOnce(ctx, c, "")
	}
	if !res.Success {
		return res, nil
	}
	if res.SessionID == "" {
		res.SessionID = sessionID
	}
	if c.slot != nil && res.SessionID != "" && res.SessionID != rt.sessionID(c.slot) {
		if err := rt.setSession(c.slot, res.SessionID); err != nil {
			return res, err
		}
	}
	return res, nil
}

func (rt *Runtime) runOnce(ctx context.Context, c call, sessionID string) runner.Result {
	start := time.Now()
	res := rt.runners.For(c.role).Run(ctx, runner.Options{
		Role:       c.role,
		Phase:      c.phase,
		Prompt:     c.prompt,
		Cwd:        rt.worktreePath(),
		SessionID:  sessionID,
		Timeout:    c.timeout,
		JSONSchema: c.schema,
	})
	d := time.Since(start)

	log := rt.logger.WithRole(string(c.role)).WithPhase(c.phase)
	if res.Success {
		log.Info("runner finished", "duration", d.String(), "resumed", sessionID != "")
	} else {
		log.Warn("runner failed",
			"duration", d.String(),
			"context_overflow", res.ContextOverflow,
			"timed_out", res.TimedOut,
			"error", res.Error)
	}
	rt.publish(event.NewRunnerInvokedEvent(string(c.role), c.phase, res.Success, res.ContextOverflow, res.TimedOut, d))
	return res
}
