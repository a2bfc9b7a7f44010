package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/Iron-Ham/otto/internal/errors"
	"github.com/Iron-Ham/otto/internal/prompt"
	"github.com/Iron-Ham/otto/internal/runs"
	"github.com/Iron-Ham/otto/internal/tickets"
	"github.com/spf13/cobra"
)

// Menu actions.
const (
	actionCreate = "Create Ticket"
	actionStart  = "Start Run"
	actionResume = "Resume Run"
	actionDelete = "Delete Run"
	actionConfig = "Config"
	actionExit   = "Exit"
	actionAmend  = "Amend Ticket"
	actionBack   = "Back"
)

// NonInteractiveCommands is printed when the menu cannot be shown.
var NonInteractiveCommands = []string{
	"otto create <ticket-prompt>",
	"otto ingest <path>",
	"otto amend <ticket> <instructions>",
	"otto start <ticket>",
	"otto resume [ticket|state]",
	"otto active [--watch]",
	"otto delete <ticket|state>",
	"otto config [show|path|init]",
}

func runMenu(cmd *cobra.Command, _ []string) error {
	if !prompt.IsInteractive() {
		printNonInteractive(cmd)
		return errors.ErrPromptUnavailable
	}
	return withApp(menuLoop)(cmd, nil)
}

func printNonInteractive(cmd *cobra.Command) {
	fmt.Fprintln(cmd.ErrOrStderr(), "Non-interactive commands:")
	for _, c := range NonInteractiveCommands {
		fmt.Fprintf(cmd.ErrOrStderr(), "  %s\n", c)
	}
}

func menuLoop(ctx context.Context, a *app, _ []string) error {
	for {
		action, err := a.prompt.Select(ctx, phaseStyle.Render("otto")+"\n\nSelect an action:",
			[]string{actionCreate, actionStart, actionResume, actionDelete, actionConfig, actionExit}, actionCreate)
		if err != nil {
			if errors.Is(err, prompt.ErrCancelled) {
				return nil
			}
			return err
		}

		switch action {
		case actionExit:
			return nil
		case actionConfig:
			err = runConfigShow(configShowCmd, nil)
		case actionCreate:
			err = a.menuCreate(ctx)
		case actionStart:
			err = a.menuStart(ctx)
		case actionResume:
			err = a.menuResume(ctx)
		case actionDelete:
			err = a.menuDelete(ctx)
		}
		if err != nil {
			if errors.Is(err, prompt.ErrCancelled) {
				continue
			}
			// Menu actions report failures and return to the menu.
			fmt.Fprintln(os.Stderr, FormatError(err))
			a.logger.Warn("menu action failed", "action", action, "error", err)
		}
	}
}

func (a *app) menuCreate(ctx context.Context) error {
	text, err := a.prompt.Text(ctx, "Enter ticket request:", "")
	if err != nil || strings.TrimSpace(text) == "" {
		return err
	}
	created, err := a.createTicket(ctx, text)
	if err != nil {
		return err
	}
	next, err := a.prompt.Select(ctx, "Ticket created: "+created.TicketID,
		[]string{actionStart, actionAmend, actionBack}, actionStart)
	if err != nil {
		return err
	}
	switch next {
	case actionStart:
		return a.startRun(ctx, created.TicketID)
	case actionAmend:
		instructions, err := a.prompt.Text(ctx, "Amend instructions:", "")
		if err != nil || strings.TrimSpace(instructions) == "" {
			return err
		}
		_, err = a.amendTicket(ctx, created.TicketID, instructions)
		return err
	}
	return nil
}

func (a *app) menuStart(ctx context.Context) error {
	ids, err := tickets.List(a.paths.Root)
	if err != nil {
		return err
	}
	all, err := runs.List(a.paths.Root, runs.ListOptions{Logger: a.logger})
	if err != nil {
		return err
	}
	started := make(map[string]bool, len(all))
	for _, r := range all {
		started[r.State.RunID] = true
	}
	var available []string
	for _, id := range ids {
		if !started[id] {
			available = append(available, id)
		}
	}
	if len(available) == 0 {
		_, err := a.prompt.Confirm(ctx, "No tickets available to start.", true)
		return err
	}
	ticketID, err := a.prompt.Select(ctx, "Select a ticket:", available, available[0])
	if err != nil {
		return err
	}
	return a.startRun(ctx, ticketID)
}

func (a *app) menuResume(ctx context.Context) error {
	resumable, err := a.resumableRuns()
	if err != nil {
		return err
	}
	if len(resumable) == 0 {
		_, err := a.prompt.Confirm(ctx, "No resumable runs.", true)
		return err
	}
	choices := runIDs(resumable)
	runID, err := a.prompt.Select(ctx, "Select a run:", choices, choices[0])
	if err != nil {
		return err
	}
	return a.resumeRun(ctx, runID)
}

func (a *app) menuDelete(ctx context.Context) error {
	all, err := runs.List(a.paths.Root, runs.ListOptions{Logger: a.logger})
	if err != nil {
		return err
	}
	if len(all) == 0 {
		_, err := a.prompt.Confirm(ctx, "No runs to delete.", true)
		return err
	}
	choices := runIDs(all)
	runID, err := a.prompt.Select(ctx, "Select a run to delete:", choices, choices[0])
	if err != nil {
		return err
	}
	ok, err := a.prompt.Confirm(ctx, fmt.Sprintf("Delete run %s? (ticket will be preserved)", runID), false)
	if err != nil || !ok {
		return err
	}
	return a.deleteRun(ctx, runID)
}

func runIDs(list []runs.Run) []string {
	ids := make([]string, len(list))
	for i, r := range list {
		ids[i] = r.State.RunID
	}
	return ids
}
