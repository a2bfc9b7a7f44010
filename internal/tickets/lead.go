package tickets

import (
	"context"
	"time"

	"github.com/Iron-Ham/otto/internal/logging"
	"github.com/Iron-Ham/otto/internal/runner"
)

const leadTimeout = 10 * time.Minute

// ProjectLead runs project-lead prompts, resuming the stored session.
type ProjectLead struct {
	runner   runner.Runner
	sessions *SessionStore
	cwd      string
	logger   *logging.Logger
}

// NewProjectLead creates a ProjectLead that runs in cwd.
func NewProjectLead(r runner.Runner, sessions *SessionStore, cwd string, logger *logging.Logger) *ProjectLead {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &ProjectLead{
		runner:   r,
		sessions: sessions,
		cwd:      cwd,
		logger:   logger.WithRole(string(runner.RoleProjectLead)),
	}
}

// Run sends prompt. When a resumed session fails the stored id is dropped
// and the prompt is sent once more in a fresh conversation. A successful
// reply's session id is stored for the next call.
func (p *ProjectLead) Run(ctx context.Context, phase, prompt string) runner.Result {
	sessionID, err := p.sessions.Load()
	if err != nil {
		p.logger.Warn("ignoring unreadable project lead session", "error", err)
		sessionID = ""
	}

	run := func(id string) runner.Result {
		return p.runner.Run(ctx, runner.Options{
			Role:      runner.RoleProjectLead,
			Phase:     phase,
			Prompt:    prompt,
			Cwd:       p.cwd,
			SessionID: id,
			Timeout:   leadTimeout,
		})
	}

	res := run(sessionID)
	if sessionID != "" && !res.Success {
		p.logger.Info("project lead session failed, starting fresh", "session", sessionID, "error", res.Error)
		if err := p.sessions.Clear(); err != nil {
			p.logger.Warn("failed to clear project lead session", "error", err)
		}
		sessionID = ""
		res = run("")
	}

	if res.Success {
		next := res.SessionID
		if next == "" {
			next = sessionID
		}
		if next != "" {
			if err := p.sessions.Save(next); err != nil {
				p.logger.Warn("failed to save project lead session", "error", err)
			}
		}
	}
	return res
}
