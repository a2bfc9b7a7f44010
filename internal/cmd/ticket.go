package cmd

import (
	"context"
	"strings"

	"github.com/Iron-Ham/otto/internal/errors"
	"github.com/Iron-Ham/otto/internal/tickets"
	"github.com/spf13/cobra"
)

var createCmd = &cobra.Command{
	Use:   "create <ticket-prompt>",
	Short: "Create a managed ticket",
	Long: `Create a ticket from a short description. The project lead names the
ticket and writes its markdown content under .otto/tickets.`,
	Args: cobra.MinimumNArgs(1),
	RunE: withApp(runCreate),
}

var ingestCmd = &cobra.Command{
	Use:   "ingest <path>",
	Short: "Ingest an external ticket file",
	Long:  `Copy an existing markdown file into .otto/tickets under a project-lead chosen name.`,
	Args:  cobra.ExactArgs(1),
	RunE:  withApp(runIngest),
}

var amendCmd = &cobra.Command{
	Use:   "amend <ticket> [instructions]",
	Short: "Amend a managed ticket",
	Long: `Rewrite a ticket's content according to instructions. Without
instructions on the command line otto asks for them.`,
	Args: cobra.MinimumNArgs(1),
	RunE: withApp(runAmend),
}

func init() {
	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(amendCmd)
}

func runCreate(ctx context.Context, a *app, args []string) error {
	text := strings.TrimSpace(strings.Join(args, " "))
	if text == "" {
		return errors.NewValidationError("otto create requires <ticket-prompt>")
	}
	res, err := a.createTicket(ctx, text)
	if err != nil {
		return err
	}
	a.printf("Ticket created.\n- Id: %s\n- Path: %s\n", res.TicketID, res.FilePath)
	return nil
}

func runIngest(ctx context.Context, a *app, args []string) error {
	svc, err := a.ticketService()
	if err != nil {
		return err
	}
	res, err := svc.Ingest(ctx, strings.TrimSpace(args[0]))
	if err != nil {
		return err
	}
	a.printf("Ticket ingested.\n- Id: %s\n- Path: %s\n", res.TicketID, res.FilePath)
	return nil
}

func runAmend(ctx context.Context, a *app, args []string) error {
	instructions := strings.TrimSpace(strings.Join(args[1:], " "))
	if instructions == "" {
		answer, err := a.prompt.Text(ctx, "Amend instructions:", "")
		if err != nil {
			return err
		}
		instructions = strings.TrimSpace(answer)
	}
	if instructions == "" {
		return errors.NewValidationError("otto amend requires instructions")
	}
	res, err := a.amendTicket(ctx, args[0], instructions)
	if err != nil {
		return err
	}
	a.printf("Ticket amended.\n- Id: %s\n- Path: %s\n", res.TicketID, res.FilePath)
	return nil
}

func (a *app) createTicket(ctx context.Context, text string) (*tickets.WriteResult, error) {
	svc, err := a.ticketService()
	if err != nil {
		return nil, err
	}
	return svc.Create(ctx, text)
}

func (a *app) amendTicket(ctx context.Context, ticketID, instructions string) (*tickets.WriteResult, error) {
	svc, err := a.ticketService()
	if err != nil {
		return nil, err
	}
	return svc.Amend(ctx, ticketID, instructions)
}
