package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/Iron-Ham/otto/internal/errors"
	"github.com/Iron-Ham/otto/internal/event"
	"github.com/Iron-Ham/otto/internal/prompt"
	"github.com/Iron-Ham/otto/internal/quality"
	"github.com/Iron-Ham/otto/internal/runlock"
	"github.com/Iron-Ham/otto/internal/runs"
	"github.com/Iron-Ham/otto/internal/state"
	"github.com/Iron-Ham/otto/internal/tickets"
	"github.com/Iron-Ham/otto/internal/workflow"
	"github.com/Iron-Ham/otto/internal/worktree"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var startCmd = &cobra.Command{
	Use:   "start <ticket>",
	Short: "Start a run for a ticket",
	Long: `Start a run for a managed ticket. Otto creates a worktree on a new
branch cut from the base branch and drives the workflow until it finishes
or needs operator input.`,
	Args: cobra.ExactArgs(1),
	RunE: withApp(runStart),
}

var resumeCmd = &cobra.Command{
	Use:   "resume [ticket|state]",
	Short: "Resume a run",
	Long: `Resume a run from its persisted phase. Without arguments, lists the
runs that can be resumed.`,
	Args: cobra.MaximumNArgs(1),
	RunE: withApp(runResume),
}

func init() {
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(resumeCmd)
}

func runStart(ctx context.Context, a *app, args []string) error {
	return a.startRun(ctx, strings.TrimSpace(args[0]))
}

func runResume(ctx context.Context, a *app, args []string) error {
	if len(args) == 0 || strings.TrimSpace(args[0]) == "" {
		resumable, err := a.resumableRuns()
		if err != nil {
			return err
		}
		if len(resumable) == 0 {
			a.printf("No resumable runs.\n")
			return nil
		}
		a.printf("%s\n", headingStyle.Render("Resumable runs:"))
		for _, r := range resumable {
			a.printf("- %s\n", r.State.RunID)
		}
		return nil
	}
	return a.resumeRun(ctx, args[0])
}

// startRun creates the worktree and state for ticketID and runs it.
func (a *app) startRun(ctx context.Context, ticketID string) error {
	ticketPath, err := tickets.FilePath(a.paths.Root, ticketID)
	if err != nil {
		return err
	}
	if _, err := os.Stat(ticketPath); err != nil {
		return errors.NewNotFoundError("ticket", ticketID).WithCause(errors.ErrTicketNotFound)
	}

	statePath, err := state.FilePathFor(a.paths.Root, ticketID)
	if err != nil {
		return err
	}
	if _, err := os.Stat(statePath); err == nil {
		return errors.NewValidationError(fmt.Sprintf("Run already exists for ticket %s. Use: otto resume %s", ticketID, ticketID)).
			WithCause(errors.ErrRunExists)
	}

	date, slug, ok := state.SplitTicketID(ticketID)
	if !ok {
		return errors.NewValidationError(fmt.Sprintf("Invalid ticket id (expected YYYY-MM-DD-<slug>): %s", ticketID)).
			WithCause(errors.ErrInvalidTicketID)
	}
	wt := a.cfg.Worktree
	branch := worktree.BranchName(wt.BranchPrefix, date, slug)
	worktreePath, err := a.worktrees.Create(ctx, worktree.CreateOptions{
		MainRepoPath: a.mainRepo,
		BaseBranch:   wt.BaseBranch,
		BranchName:   branch,
		WorktreesDir: wt.WorktreesDir,
	})
	if err != nil {
		return err
	}

	s, err := state.Build(state.BuildOptions{
		MainRepoPath:    a.mainRepo,
		ArtifactRootDir: a.paths.Root,
		ConfigPath:      viper.ConfigFileUsed(),
		TicketID:        ticketID,
		TicketFilePath:  ticketPath,
		WorktreePath:    worktreePath,
		BranchName:      branch,
		BaseBranch:      wt.BaseBranch,
	})
	if err != nil {
		return err
	}
	store := state.NewStore(s.StateFilePath, s)
	if err := store.Save(); err != nil {
		return err
	}
	a.logger.Info("run created", "run_id", s.RunID, "worktree", worktreePath, "branch", branch)
	return a.drive(ctx, store)
}

// resumeRun loads the run named by arg and continues it.
func (a *app) resumeRun(ctx context.Context, arg string) error {
	path, err := runs.StateFilePath(a.paths.Root, arg)
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return errors.NewNotFoundError("run", arg).WithCause(errors.ErrRunNotFound)
	}
	store, err := state.Open(path)
	if err != nil {
		return err
	}
	return a.drive(ctx, store)
}

func (a *app) resumableRuns() ([]runs.Run, error) {
	all, err := runs.List(a.paths.Root, runs.ListOptions{Logger: a.logger})
	if err != nil {
		return nil, err
	}
	var out []runs.Run
	for _, r := range all {
		if r.Status != runs.StatusActive {
			out = append(out, r)
		}
	}
	return out, nil
}

// drive holds the run lock while the workflow runs and releases it on every
// path, including SIGINT and SIGTERM.
func (a *app) drive(ctx context.Context, store *state.Store) error {
	s := store.State()
	lock, err := runlock.Acquire(s.LockFilePath, s.RunID, s.StateFilePath, runlock.Options{Logger: a.logger})
	if err != nil {
		return err
	}
	defer func() { _ = lock.Release() }()

	stop := a.registry.InstallSignalHandlers(func(code int) {
		_ = lock.Release()
		os.Exit(code)
	})
	defer stop()

	table, err := a.runners()
	if err != nil {
		return err
	}
	bus := event.NewBus(a.logger)
	detach := progressPrinter{out: a.out, width: prompt.TerminalWidth()}.subscribe(bus)

	gate := quality.NewCommandGate(a.exec, a.cfg.Quality.EnvFile, a.logger)
	rt := workflow.NewRuntime(workflow.Deps{
		Config:    a.cfg,
		Store:     store,
		Runners:   table,
		Prompt:    a.prompt,
		Exec:      a.exec,
		Worktrees: a.worktrees,
		Quality:   gate,
		Bus:       bus,
		Logger:    a.logger,
	})

	phase, runErr := rt.Run(ctx)
	detach()
	a.printf("Run stopped at phase: %s\nPlan file: %s\n", phase, rt.PlanPath())
	return runErr
}
