package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/Iron-Ham/otto/internal/artifacts"
	"github.com/Iron-Ham/otto/internal/config"
	"github.com/Iron-Ham/otto/internal/errors"
	"github.com/Iron-Ham/otto/internal/execx"
	"github.com/Iron-Ham/otto/internal/logging"
	"github.com/Iron-Ham/otto/internal/procreg"
	"github.com/Iron-Ham/otto/internal/prompt"
	"github.com/Iron-Ham/otto/internal/runner"
	"github.com/Iron-Ham/otto/internal/tickets"
	"github.com/Iron-Ham/otto/internal/worktree"
	"github.com/spf13/cobra"
)

// app holds the collaborators every command builds from the current
// directory and configuration.
type app struct {
	cfg       *config.Config
	logger    *logging.Logger
	registry  *procreg.Registry
	exec      *execx.Exec
	git       *worktree.Git
	worktrees *worktree.GitAdapter
	prompt    prompt.Adapter
	mainRepo  string
	paths     artifacts.Paths
	out       io.Writer
}

// configError reports a configuration that failed to load or validate.
func configError(err error) error {
	return errors.NewValidationError("invalid configuration: " + err.Error()).WithCause(err)
}

// newApp loads configuration, locates the main repository and prepares the
// artifact layout. It fails with errors.ErrNoRunner when no agent runner is
// configured.
func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, configError(err)
	}
	if !cfg.HasRunner() {
		return nil, errors.ErrNoRunner
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get current directory")
	}

	// The log directory lives in the main repo, which git has to find first.
	bootstrap := logging.NopLogger()
	locator := worktree.NewGitAdapter(worktree.NewGit(execx.New(nil, bootstrap), bootstrap))
	mainRepo, err := locator.MainRepoPath(cmd.Context(), cwd)
	if err != nil {
		return nil, err
	}

	paths, _, err := artifacts.EnsureRepoSetup(mainRepo, cfg.Paths.ArtifactRoot, cfg.Worktree.WorktreesDir)
	if err != nil {
		return nil, err
	}

	logger, err := logging.NewLogger(paths.Logs, cfg.Logging.Level)
	if err != nil {
		return nil, err
	}

	registry := procreg.New(logger)
	exec := execx.New(registry, logger)
	git := worktree.NewGit(exec, logger)
	return &app{
		cfg:       cfg,
		logger:    logger,
		registry:  registry,
		exec:      exec,
		git:       git,
		worktrees: worktree.NewGitAdapter(git),
		prompt:    prompt.New(cfg.Prompt.Mode),
		mainRepo:  mainRepo,
		paths:     paths,
		out:       cmd.OutOrStdout(),
	}, nil
}

func (a *app) close() {
	_ = a.logger.Close()
}

// runners builds the role table from configuration.
func (a *app) runners() (*runner.Table, error) {
	return runner.NewTable(a.cfg, a.exec, a.logger)
}

// ticketService returns the project-lead backed ticket service.
func (a *app) ticketService() (*tickets.Service, error) {
	table, err := a.runners()
	if err != nil {
		return nil, err
	}
	sessions := tickets.NewSessionStore(a.paths.Sessions)
	lead := tickets.NewProjectLead(table.For(runner.RoleProjectLead), sessions, a.mainRepo, a.logger)
	return tickets.NewService(a.paths.Root, lead, a.logger), nil
}

func (a *app) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}

// withApp adapts a command body that needs an app into a cobra RunE.
func withApp(fn func(ctx context.Context, a *app, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.close()
		return fn(cmd.Context(), a, args)
	}
}
