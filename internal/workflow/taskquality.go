package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Iron-Ham/otto/internal/runner"
)

const (
	maxQualityFixAttempts = 2
	qualityFixTimeout     = 20 * time.Minute
)

// checkTaskQuality runs the quality checks after a task and gives the task
// agent a bounded number of chances to fix failures. Failures that remain
// are appended to the report for the lead to weigh; they never block.
func (rt *Runtime) checkTaskQuality(ctx context.Context, taskFile, reportPath string) (bool, error) {
	if rt.quality == nil || len(rt.qualityChecks) == 0 {
		return true, nil
	}

	report, err := rt.quality.RunChecks(ctx, rt.worktreePath(), rt.qualityChecks)
	if err != nil {
		return false, err
	}

	for attempt := 1; !report.OK && attempt <= maxQualityFixAttempts; attempt++ {
		failures := report.FailureLines(false)
		if failures == "" {
			failures = "(unknown failures)"
		}
		rt.logger.Info("quality checks failed, asking task agent to fix",
			"task", taskFile, "attempt", attempt)

		res, err := rt.invoke(ctx, call{
			role:    runner.RoleTask,
			phase:   "quality-fix",
			prompt:  rt.qualityFixPrompt(taskFile, reportPath, failures),
			timeout: qualityFixTimeout,
			slot:    taskSlot(taskFile),
		})
		if err != nil {
			return false, err
		}
		if !res.Success {
			break
		}
		report, err = rt.quality.RunChecks(ctx, rt.worktreePath(), rt.qualityChecks)
		if err != nil {
			return false, err
		}
	}

	if !report.OK {
		if unresolved := report.FailureLines(false); unresolved != "" {
			section := fmt.Sprintf("\n\n---\n\n## Quality Gate Failures (Unresolved)\n\n%s\n", unresolved)
			if err := appendToFile(reportPath, section); err != nil {
				return false, fmt.Errorf("failed to append quality failures to report: %w", err)
			}
		}
		rt.logger.Warn("quality checks still failing", "task", taskFile)
	}
	return report.OK, nil
}

func (rt *Runtime) qualityFixPrompt(taskFile, reportPath, failures string) string {
	return strings.Join([]string{
		rt.reminder(runner.RoleTask),
		"The following quality checks failed after task execution. Fix all issues:",
		failures,
		"",
		"Task: " + taskFile,
		"Report: " + reportPath,
		"",
		"Append a section to " + reportPath + " describing the fixes you made.",
		"Reply <OK> when done.",
		"",
	}, "\n")
}
