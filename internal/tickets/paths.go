package tickets

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/Iron-Ham/otto/internal/errors"
	"github.com/Iron-Ham/otto/internal/state"
)

const fileExt = ".md"

// IsIDSafe reports whether a ticket id can be used as a file name.
func IsIDSafe(id string) bool {
	if id == "" || strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") {
		return false
	}
	return !strings.HasSuffix(id, fileExt)
}

// Dir returns <root>/tickets.
func Dir(root string) string {
	return filepath.Join(root, state.TicketsDir)
}

// FilePath returns the ticket file for id under root.
func FilePath(root, id string) (string, error) {
	if !IsIDSafe(id) {
		return "", errors.NewValidationError(fmt.Sprintf("Invalid ticket id: %s", id)).
			WithField("ticketId").
			WithCause(errors.ErrInvalidTicketID)
	}
	return filepath.Join(Dir(root), id+fileExt), nil
}

// FormatID builds the ticket id for a normalized slug on date. The date is
// taken in UTC.
func FormatID(date time.Time, slug string) string {
	return date.UTC().Format("2006-01-02") + "-" + slug
}

// SlugFromID returns the slug part of a ticket id, or the id itself when it
// has no date prefix.
func SlugFromID(id string) string {
	if _, slug, ok := state.SplitTicketID(id); ok {
		return slug
	}
	return id
}
