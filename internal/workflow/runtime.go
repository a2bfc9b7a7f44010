package workflow

import (
	"context"
	"time"

	"github.com/Iron-Ham/otto/internal/artifacts"
	"github.com/Iron-Ham/otto/internal/config"
	"github.com/Iron-Ham/otto/internal/event"
	"github.com/Iron-Ham/otto/internal/execx"
	"github.com/Iron-Ham/otto/internal/logging"
	"github.com/Iron-Ham/otto/internal/prompt"
	"github.com/Iron-Ham/otto/internal/quality"
	"github.com/Iron-Ham/otto/internal/runner"
	"github.com/Iron-Ham/otto/internal/state"
	"github.com/Iron-Ham/otto/internal/taskqueue"
	"github.com/Iron-Ham/otto/internal/worktree"
)

// Deps are the collaborators a Runtime is built from.
type Deps struct {
	Config    *config.Config
	Store     *state.Store
	Runners   *runner.Table
	Prompt    prompt.Adapter
	Exec      execx.Runner
	Worktrees worktree.Adapter
	Quality   quality.Gate
	// Integration runs integration checks; nil falls back to Quality.
	Integration quality.Gate
	Bus         *event.Bus
	Logger      *logging.Logger
	// Now is used for stash markers; nil means time.Now.
	Now     func() time.Time
	Cleanup CleanupOptions
}

// Runtime bundles everything a phase handler needs for one run. It is
// owned by the single process holding the run lock.
type Runtime struct {
	cfg         *config.Config
	store       *state.Store
	runners     *runner.Table
	prompt      prompt.Adapter
	exec        execx.Runner
	git         *worktree.Git
	worktrees   worktree.Adapter
	quality     quality.Gate
	integration quality.Gate
	queue       *taskqueue.Queue
	bus         *event.Bus
	logger      *logging.Logger
	now         func() time.Time

	qualityChecks          []quality.Check
	integrationChecks      []quality.Check
	maxRemediationAttempts int
	cleanupOpts            CleanupOptions

	// reminders queued for the next prompt sent to each role
	reminders map[runner.Role][]string
}

// NewRuntime creates a Runtime.
func NewRuntime(d Deps) *Runtime {
	cfg := d.Config
	if cfg == nil {
		cfg = config.Default()
	}
	logger := d.Logger.WithRun(d.Store.State().RunID)
	rt := &Runtime{
		cfg:                    cfg,
		store:                  d.Store,
		runners:                d.Runners,
		prompt:                 d.Prompt,
		exec:                   d.Exec,
		git:                    worktree.NewGit(d.Exec, logger),
		worktrees:              d.Worktrees,
		quality:                d.Quality,
		integration:            d.Integration,
		queue:                  taskqueue.New(d.Store, logger),
		bus:                    d.Bus,
		logger:                 logger,
		now:                    d.Now,
		qualityChecks:          quality.ChecksFromConfig(cfg.Quality.Checks),
		integrationChecks:      quality.ChecksFromConfig(cfg.Integration.Checks),
		maxRemediationAttempts: artifacts.DefaultMaxRemediationAttempts,
		cleanupOpts:            d.Cleanup,
		reminders:              make(map[runner.Role][]string),
	}
	if rt.now == nil {
		rt.now = time.Now
	}
	if rt.integration == nil {
		rt.integration = rt.quality
	}
	return rt
}

// State returns the live run state.
func (rt *Runtime) State() *state.State { return rt.store.State() }

// Queue returns the run's task queue.
func (rt *Runtime) Queue() *taskqueue.Queue { return rt.queue }

// RunDir returns the run's artifact directory in the main repo.
func (rt *Runtime) RunDir() string {
	s := rt.State()
	if s.Workflow.RunDir != "" {
		return s.Workflow.RunDir
	}
	return s.RunDir
}

// PlanPath returns the plan file path.
func (rt *Runtime) PlanPath() string {
	if p := rt.State().Workflow.PlanFilePath; p != "" {
		return p
	}
	return artifacts.PlanPath(rt.RunDir())
}

// DecisionCardsPath returns the decision cards path.
func (rt *Runtime) DecisionCardsPath() string {
	if p := rt.State().Workflow.DecisionCardsPath; p != "" {
		return p
	}
	return artifacts.DecisionCardsPath(rt.RunDir())
}

func (rt *Runtime) worktreePath() string { return rt.State().Worktree.WorktreePath }

// worktreeCopy returns where file would land if an agent wrote it relative
// to the worktree instead of the main repo.
func (rt *Runtime) worktreeCopy(file string) (string, bool) {
	s := rt.State()
	return artifacts.ToWorktreePath(s.MainRepoPath, s.Worktree.WorktreePath, file)
}

// update mutates and persists the run state.
func (rt *Runtime) update(fn func(s *state.State)) error {
	return rt.store.Update(fn)
}

// queueReminder adds a one-shot line to the next system reminder for role.
func (rt *Runtime) queueReminder(role runner.Role, msg string) {
	rt.reminders[role] = append(rt.reminders[role], msg)
}

func (rt *Runtime) publish(e event.Event) {
	rt.bus.Publish(e)
}

func (rt *Runtime) confirm(ctx context.Context, message string, def bool) (bool, error) {
	rt.logger.Debug("prompt confirm", "message", message)
	return rt.prompt.Confirm(ctx, message, def)
}

func (rt *Runtime) text(ctx context.Context, message string) (string, error) {
	rt.logger.Debug("prompt text", "message", message)
	return rt.prompt.Text(ctx, message, "")
}
