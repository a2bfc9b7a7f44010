package cmd

import (
	"context"
	"strings"

	"github.com/Iron-Ham/otto/internal/errors"
	"github.com/Iron-Ham/otto/internal/runlock"
	"github.com/Iron-Ham/otto/internal/runs"
	"github.com/spf13/cobra"
)

var deleteCmd = &cobra.Command{
	Use:   "delete [ticket|state]",
	Short: "Delete a run",
	Long: `Delete a run's worktree, branch, artifacts, state and lock. A live
otto process holding the run is terminated first. The ticket is kept so
the run can be started again.`,
	Args: cobra.MaximumNArgs(1),
	RunE: withApp(runDelete),
}

func init() {
	rootCmd.AddCommand(deleteCmd)
}

func runDelete(ctx context.Context, a *app, args []string) error {
	if len(args) == 0 || strings.TrimSpace(args[0]) == "" {
		all, err := runs.List(a.paths.Root, runs.ListOptions{Logger: a.logger})
		if err != nil {
			return err
		}
		if len(all) == 0 {
			a.printf("No runs found.\n")
			return nil
		}
		a.printf("%s\n", headingStyle.Render("Runs:"))
		for _, r := range all {
			suffix := ""
			if r.Status == runs.StatusActive {
				suffix = " (active)"
			}
			a.printf("- %s%s\n", r.State.RunID, suffix)
		}
		a.printf("\n")
		return errors.NewValidationError("otto delete requires <ticket|state>")
	}
	return a.deleteRun(ctx, args[0])
}

func (a *app) deleteRun(ctx context.Context, arg string) error {
	s, err := runs.Resolve(a.paths.Root, arg)
	if err != nil {
		return err
	}
	d := &runs.Deleter{
		Worktrees: a.worktrees,
		Killer:    runlock.NewKiller(a.logger),
		Logger:    a.logger,
	}
	if err := d.Delete(ctx, s); err != nil {
		return err
	}
	a.printf("Deleted run: %s\nPreserved ticket: %s\n", s.RunID, s.Ticket.FilePath)
	return nil
}
