package workflow

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Iron-Ham/otto/internal/artifacts"
	"github.com/Iron-Ham/otto/internal/runner"
	"github.com/Iron-Ham/otto/internal/util"
)

const (
	summarizeTimeout  = 2 * time.Minute
	summarizeAttempts = 2
)

// summaryKind configures the summary of one artifact type.
type summaryKind struct {
	phase    string
	maxChars int
	lines    []string
}

var (
	reportSummary = summaryKind{
		phase:    "summarize-report",
		maxChars: 6000,
		lines: []string{
			"Write a focused executive summary for the tech lead.",
			"Keep it <= 6000 characters.",
			"Use headings: ## Problems & Risks, ## Work Completed / Evidence, ## Next Steps / Decisions.",
		},
	}
	reviewSummary = summaryKind{
		phase:    "summarize-review",
		maxChars: 3000,
		lines: []string{
			"Produce a very short bullet summary for the tech lead.",
			"Keep it <= 3000 characters.",
		},
	}
)

// summarize condenses artifact into its summary sibling and returns the
// summary's content. Failure yields an empty string; the decision step
// then works without that summary.
func (rt *Runtime) summarize(ctx context.Context, artifact string, kind summaryKind) string {
	summaryPath := artifacts.SummaryPath(artifact)
	if util.FileHasContent(summaryPath) {
		return readSummary(summaryPath)
	}
	if !util.FileHasContent(artifact) {
		return ""
	}

	sessionID := ""
	for range summarizeAttempts {
		res, err := rt.invoke(ctx, call{
			role:      runner.RoleSummarize,
			phase:     kind.phase,
			prompt:    rt.summarizePrompt(artifact, summaryPath, kind),
			timeout:   summarizeTimeout,
			sessionID: sessionID,
		})
		if err != nil || !res.Success {
			break
		}
		sessionID = res.SessionID

		if !util.FileHasContent(summaryPath) {
			_ = util.RemoveIfExists(summaryPath)
			continue
		}
		content := readSummary(summaryPath)
		if utf8.RuneCountInString(content) <= kind.maxChars {
			return content
		}

		ok := rt.microRetry(ctx, microRetry{
			role:      runner.RoleSummarize,
			sessionID: sessionID,
			message:   fmt.Sprintf("Rewrite %s to be <= %d characters.", summaryPath, kind.maxChars),
		})
		if !ok {
			break
		}
		if content := readSummary(summaryPath); content != "" && utf8.RuneCountInString(content) <= kind.maxChars {
			return content
		}
	}

	rt.logger.Warn("summary unavailable", "artifact", artifact, "phase", kind.phase)
	_ = util.RemoveIfExists(summaryPath)
	return ""
}

func readSummary(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return string(data)
}

func (rt *Runtime) summarizePrompt(artifact, summaryPath string, kind summaryKind) string {
	lines := []string{rt.reminder(runner.RoleSummarize), "<INSTRUCTIONS>"}
	lines = append(lines, kind.lines...)
	lines = append(lines,
		"Save it to: "+summaryPath,
		"Reply <OK> when done.",
		"</INSTRUCTIONS>",
		"<INPUT>",
		artifact,
		"</INPUT>",
		"<OUTPUT>",
		summaryPath,
		"</OUTPUT>",
		exactPathsReminder,
	)
	return strings.Join(lines, "\n")
}
