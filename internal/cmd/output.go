package cmd

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/Iron-Ham/otto/internal/errors"
	"github.com/Iron-Ham/otto/internal/event"
	"github.com/Iron-Ham/otto/internal/util"
	"github.com/charmbracelet/lipgloss"
)

var (
	phaseStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#A78BFA"))
	taskStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#60A5FA"))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#34D399"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FBBF24"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#9CA3AF"))
	headingStyle = lipgloss.NewStyle().Bold(true)
	errorStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#F87171"))
)

// FormatError renders a command failure for the terminal. User-facing
// errors print as written, warnings in the warning color. Anything else
// is labeled as unexpected.
func FormatError(err error) string {
	if err == nil {
		return ""
	}
	if !errors.IsUserFacing(err) {
		return errorStyle.Render("Unexpected error:") + " " + err.Error()
	}
	if errors.GetSeverity(err) <= errors.SeverityWarning {
		return warnStyle.Render(err.Error())
	}
	return errorStyle.Render("Error:") + " " + err.Error()
}

// progressPrinter renders workflow events as one line each. Lines are cut
// to width when it is set.
type progressPrinter struct {
	out   io.Writer
	width int
}

func (p progressPrinter) line(format string, args ...any) {
	s := fmt.Sprintf(format, args...)
	if p.width > 0 {
		s = util.TruncateANSI(s, p.width)
	}
	fmt.Fprintln(p.out, s)
}

func (p progressPrinter) handle(e event.Event) {
	switch ev := e.(type) {
	case event.PhaseChangedEvent:
		p.line("%s %s", phaseStyle.Render("phase"), ev.To)
	case event.TaskStartedEvent:
		p.line("%s %s %s", taskStyle.Render("task"), filepath.Base(ev.TaskFile),
			mutedStyle.Render(fmt.Sprintf("(%d queued)", ev.Remaining)))
	case event.TaskDecidedEvent:
		style := okStyle
		if ev.Decision != "accept" {
			style = warnStyle
		}
		p.line("%s %s %s", taskStyle.Render("task"), filepath.Base(ev.TaskFile), style.Render(ev.Decision))
	case event.IntegrationStepEvent:
		style := okStyle
		if ev.Outcome != "success" && ev.Outcome != "skipped" {
			style = warnStyle
		}
		p.line("%s %s %s", phaseStyle.Render("integration"), ev.Step, style.Render(ev.Outcome))
	}
}

// subscribe attaches the printer to bus and returns a func that detaches
// it. Events the printer does not render are ignored.
func (p progressPrinter) subscribe(bus *event.Bus) func() {
	id := bus.SubscribeAll(p.handle)
	return func() { bus.Unsubscribe(id) }
}
