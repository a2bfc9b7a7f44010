package tickets

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Iron-Ham/otto/internal/errors"
	"github.com/Iron-Ham/otto/internal/logging"
)

// Lead phase names, as recorded in runner logs.
const (
	PhaseCreate = "ticket-create"
	PhaseIngest = "ticket-ingest"
	PhaseAmend  = "ticket-amend"
)

const leadAttempts = 2

// Service creates, ingests and amends tickets through the project lead.
type Service struct {
	root   string
	lead   *ProjectLead
	logger *logging.Logger
	now    func() time.Time
}

// NewService creates a Service for the artifact root.
func NewService(root string, lead *ProjectLead, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Service{root: root, lead: lead, logger: logger, now: time.Now}
}

// SetClock overrides the date source used for new ticket ids.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// Create drafts a ticket from free text.
func (s *Service) Create(ctx context.Context, text string) (*WriteResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.NewValidationError("Ticket text is required.").WithField("text")
	}
	date := s.now()
	return s.withRetry(ctx, PhaseCreate, CreatePrompt(text), func(output string) (*WriteResult, error) {
		return CreateFromOutput(s.root, output, date)
	})
}

// Ingest copies an existing markdown file into the tickets directory under
// a lead-chosen slug.
func (s *Service) Ingest(ctx context.Context, sourcePath string) (*WriteResult, error) {
	data, err := os.ReadFile(sourcePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", sourcePath, err)
	}
	date := s.now()
	return s.withRetry(ctx, PhaseIngest, IngestPrompt(string(data)), func(output string) (*WriteResult, error) {
		return IngestFromOutput(s.root, sourcePath, output, date)
	})
}

// Amend rewrites an existing ticket according to instructions.
func (s *Service) Amend(ctx context.Context, ticketID, instructions string) (*WriteResult, error) {
	existing, err := Read(s.root, ticketID)
	if err != nil {
		return nil, err
	}
	return s.withRetry(ctx, PhaseAmend, AmendPrompt(ticketID, existing, instructions), func(output string) (*WriteResult, error) {
		return AmendFromOutput(s.root, ticketID, output)
	})
}

// withRetry runs prompt and applies the reply. A reply rejected with an
// OutputError is retried once with the rejection appended.
func (s *Service) withRetry(ctx context.Context, phase, base string, apply func(string) (*WriteResult, error)) (*WriteResult, error) {
	prompt := base
	var lastErr error
	for attempt := 1; attempt <= leadAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res := s.lead.Run(ctx, phase, prompt)
		if !res.Success {
			msg := res.Error
			if msg == "" {
				msg = "Project lead failed."
			}
			return nil, errors.NewWorkflowError(msg, nil).WithPhase(phase).WithRole("projectLead")
		}
		result, err := apply(res.Output)
		if err == nil {
			s.logger.Info("ticket written", "phase", phase, "ticket", result.TicketID)
			return result, nil
		}
		var outErr *OutputError
		if !errors.As(err, &outErr) {
			return nil, err
		}
		s.logger.Warn("project lead reply rejected", "phase", phase, "attempt", attempt, "error", err)
		lastErr = err
		prompt = RetryPrompt(base, err.Error())
	}
	return nil, lastErr
}

// Read returns a ticket's content.
func Read(root, ticketID string) (string, error) {
	path, err := FilePath(root, ticketID)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", errors.NewNotFoundError("ticket", path).WithCause(errors.ErrTicketNotFound)
		}
		return "", fmt.Errorf("failed to read ticket: %w", err)
	}
	return string(data), nil
}
