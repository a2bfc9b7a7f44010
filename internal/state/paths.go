package state

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/Iron-Ham/otto/internal/errors"
)

// Directory names under the artifact root.
const (
	TicketsDir  = "tickets"
	RunsDir     = "runs"
	LogsDir     = "logs"
	StatesDir   = "states"
	LocksDir    = "locks"
	SessionsDir = "sessions"
)

var ticketDateRegex = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2})-(.+)$`)

// IsRunIDSafe reports whether a run id can be used as a path component.
func IsRunIDSafe(runID string) bool {
	if runID == "" || strings.ContainsAny(runID, `/\`) {
		return false
	}
	if strings.Contains(runID, "..") {
		return false
	}
	return !strings.HasSuffix(runID, ".json")
}

func checkRunID(runID string) error {
	if !IsRunIDSafe(runID) {
		return errors.NewValidationError(fmt.Sprintf("Invalid run id: %s", runID)).
			WithField("runId").
			WithCause(errors.ErrInvalidRunID)
	}
	return nil
}

// RunDirFor returns <root>/runs/<runID>.
func RunDirFor(artifactRoot, runID string) (string, error) {
	if err := checkRunID(runID); err != nil {
		return "", err
	}
	return filepath.Join(artifactRoot, RunsDir, runID), nil
}

// FilePathFor returns <root>/states/run-<runID>.json.
func FilePathFor(artifactRoot, runID string) (string, error) {
	if err := checkRunID(runID); err != nil {
		return "", err
	}
	return filepath.Join(artifactRoot, StatesDir, "run-"+runID+".json"), nil
}

// LockFilePathFor returns <root>/locks/run-<runID>.json.
func LockFilePathFor(artifactRoot, runID string) (string, error) {
	if err := checkRunID(runID); err != nil {
		return "", err
	}
	return filepath.Join(artifactRoot, LocksDir, "run-"+runID+".json"), nil
}

// SplitTicketID splits "YYYY-MM-DD-slug" into its date and slug.
func SplitTicketID(ticketID string) (date, slug string, ok bool) {
	m := ticketDateRegex.FindStringSubmatch(ticketID)
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}
