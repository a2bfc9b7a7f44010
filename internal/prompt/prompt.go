// Package prompt asks the operator questions. The workflow only depends
// on the Adapter interface; the terminal UI, the headless stub and the
// scripted test double all implement it.
package prompt

import (
	"context"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/Iron-Ham/otto/internal/errors"
)

// ErrCancelled is returned when the operator dismisses a prompt.
var ErrCancelled = errors.New("Prompt cancelled")

// Adapter blocks until the operator answers.
type Adapter interface {
	Confirm(ctx context.Context, message string, defaultValue bool) (bool, error)
	Text(ctx context.Context, message string, defaultValue string) (string, error)
	Select(ctx context.Context, message string, choices []string, defaultValue string) (string, error)
}

// Modes accepted by New.
const (
	ModeAuto     = "auto"
	ModeTUI      = "tui"
	ModeHeadless = "headless"
)

// New returns the adapter for mode. In auto mode the terminal UI is used
// only when IsInteractive reports true.
func New(mode string) Adapter {
	switch strings.ToLower(mode) {
	case ModeHeadless:
		return Headless{}
	case ModeTUI:
		return NewTUI()
	default:
		if IsInteractive() {
			return NewTUI()
		}
		return Headless{}
	}
}

// IsInteractive reports whether stdin and stdout are terminals and the
// process is not running under CI.
func IsInteractive() bool {
	if isCI(os.Getenv("CI")) {
		return false
	}
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

// TerminalWidth returns the width of the terminal on stdout, or 0 when
// stdout is not a terminal.
func TerminalWidth() int {
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		return 0
	}
	return w
}

func isCI(v string) bool {
	return strings.EqualFold(v, "true") || v == "1"
}

// Headless fails every prompt with ErrPromptUnavailable.
type Headless struct{}

// Confirm implements Adapter.
func (Headless) Confirm(context.Context, string, bool) (bool, error) {
	return false, errors.ErrPromptUnavailable
}

// Text implements Adapter.
func (Headless) Text(context.Context, string, string) (string, error) {
	return "", errors.ErrPromptUnavailable
}

// Select implements Adapter.
func (Headless) Select(context.Context, string, []string, string) (string, error) {
	return "", errors.ErrPromptUnavailable
}
