package tickets

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Iron-Ham/otto/internal/errors"
)

// WriteResult describes a ticket file written from project-lead output.
type WriteResult struct {
	TicketID string
	FilePath string
	Slug     string
	Content  string
}

// OutputError reports project-lead output that cannot be turned into a
// ticket. The lead is given one more attempt when it occurs.
type OutputError struct {
	Message string
}

func (e *OutputError) Error() string { return e.Message }

func outputErr(msg string) error { return &OutputError{Message: msg} }

// CreateFromOutput writes a new ticket from a create reply.
func CreateFromOutput(root, output string, date time.Time) (*WriteResult, error) {
	slug := ExtractSlug(output)
	content := ExtractContent(output)
	if slug == "" {
		return nil, outputErr("Ticket creation missing <SLUG> tag.")
	}
	if content == "" {
		return nil, outputErr("Ticket creation missing <CONTENT> tag.")
	}
	id, path, normalized, err := newTicketPath(root, slug, date)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, []byte(withTrailingNewline(content)), 0o644); err != nil {
		return nil, fmt.Errorf("failed to write ticket: %w", err)
	}
	return &WriteResult{TicketID: id, FilePath: path, Slug: normalized, Content: strings.TrimSpace(content)}, nil
}

// IngestFromOutput copies sourcePath into a new ticket named by an ingest
// reply.
func IngestFromOutput(root, sourcePath, output string, date time.Time) (*WriteResult, error) {
	slug := ExtractSlug(output)
	if slug == "" {
		return nil, outputErr("Ticket ingest missing <SLUG> tag.")
	}
	id, path, normalized, err := newTicketPath(root, slug, date)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(sourcePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", sourcePath, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write ticket: %w", err)
	}
	return &WriteResult{TicketID: id, FilePath: path, Slug: normalized, Content: string(data)}, nil
}

// AmendFromOutput overwrites an existing ticket with an amend reply.
func AmendFromOutput(root, ticketID, output string) (*WriteResult, error) {
	content := ExtractContent(output)
	if content == "" {
		return nil, outputErr("Ticket amend missing <CONTENT> tag.")
	}
	path, err := FilePath(root, ticketID)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewNotFoundError("ticket", path).WithCause(errors.ErrTicketNotFound)
		}
		return nil, err
	}
	if err := os.WriteFile(path, []byte(withTrailingNewline(content)), 0o644); err != nil {
		return nil, fmt.Errorf("failed to write ticket: %w", err)
	}
	return &WriteResult{TicketID: ticketID, FilePath: path, Slug: SlugFromID(ticketID), Content: strings.TrimSpace(content)}, nil
}

// newTicketPath validates slug and reserves the ticket path for it.
func newTicketPath(root, slug string, date time.Time) (id, path, normalized string, err error) {
	if !ValidSlugWordCount(slug) {
		return "", "", "", outputErr("Ticket slug must be 3-5 words.")
	}
	normalized = NormalizeSlug(slug)
	if normalized == "" {
		return "", "", "", outputErr("Ticket slug could not be normalized.")
	}
	id = FormatID(date, normalized)
	path, err = FilePath(root, id)
	if err != nil {
		return "", "", "", err
	}
	if err := os.MkdirAll(Dir(root), 0o755); err != nil {
		return "", "", "", fmt.Errorf("failed to create tickets directory: %w", err)
	}
	if _, err := os.Stat(path); err == nil {
		return "", "", "", fmt.Errorf("Ticket already exists at %s", path)
	} else if !os.IsNotExist(err) {
		return "", "", "", err
	}
	return id, path, normalized, nil
}

func withTrailingNewline(content string) string {
	return strings.TrimSpace(content) + "\n"
}
