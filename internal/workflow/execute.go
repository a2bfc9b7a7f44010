package workflow

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/Iron-Ham/otto/internal/artifacts"
	"github.com/Iron-Ham/otto/internal/runner"
	"github.com/Iron-Ham/otto/internal/util"
)

const (
	taskExecutionTimeout = 25 * time.Minute
	taskReportTimeout    = 5 * time.Minute
)

// executeTask implements the task and has the task agent write its
// report. It reports the report path and whether both exchanges
// completed. An existing report means the task already ran.
func (rt *Runtime) executeTask(ctx context.Context, taskFile string) (string, bool, error) {
	reportPath := artifacts.ReportPath(rt.RunDir(), taskFile)
	if util.FileHasContent(reportPath) {
		rt.logger.Info("task already executed", "task", taskFile)
		return reportPath, true, nil
	}

	res, err := rt.invoke(ctx, call{
		role:    runner.RoleTask,
		phase:   "task-execution",
		prompt:  rt.taskExecutionPrompt(taskFile),
		timeout: taskExecutionTimeout,
		slot:    taskSlot(taskFile),
	})
	if err != nil {
		return "", false, err
	}
	if !res.Success || !rt.ensureOK(ctx, runner.RoleTask, res, "If you are done, reply with <OK>.") {
		return "", false, nil
	}

	res, err = rt.invoke(ctx, call{
		role:    runner.RoleTask,
		phase:   "task-report",
		prompt:  rt.taskReportPrompt(taskFile, reportPath),
		timeout: taskReportTimeout,
		slot:    taskSlot(taskFile),
	})
	if err != nil {
		return "", false, err
	}
	if !res.Success || !rt.ensureOK(ctx, runner.RoleTask, res, "If you are done, reply with <OK>.") {
		return "", false, nil
	}
	if !rt.ensureReport(ctx, reportPath, res.SessionID) {
		return "", false, nil
	}
	return reportPath, true, nil
}

// ensureOK accepts a reply carrying the sentinel, or one micro-retry on
// the same session that produces it.
func (rt *Runtime) ensureOK(ctx context.Context, role runner.Role, res runner.Result, message string) bool {
	if HasOK(res.Output) {
		return true
	}
	return rt.microRetry(ctx, microRetry{role: role, sessionID: res.SessionID, message: message})
}

// ensureReport self-corrects a report written under the worktree instead
// of the main repo.
func (rt *Runtime) ensureReport(ctx context.Context, reportPath, sessionID string) bool {
	if util.FileHasContent(reportPath) {
		return true
	}
	if wt, ok := rt.worktreeCopy(reportPath); ok && util.FileHasContent(wt) {
		rt.queueReminder(runner.RoleTask,
			"Write the task report to "+reportPath+". Avoid writing artifacts under the worktree .otto.")
		rt.microRetry(ctx, microRetry{
			role:      runner.RoleTask,
			sessionID: sessionID,
			message:   "Your report must be written to " + reportPath + ". Recreate it there and reply with <OK>.",
		})
	}
	if !util.FileHasContent(reportPath) {
		rt.microRetry(ctx, microRetry{
			role:      runner.RoleTask,
			sessionID: sessionID,
			message:   "Create the report file: " + reportPath,
		})
	}
	return util.FileHasContent(reportPath)
}

func (rt *Runtime) taskExecutionPrompt(taskFile string) string {
	return strings.Join([]string{
		rt.reminder(runner.RoleTask),
		"<INSTRUCTIONS>",
		"You are responsible for implementing the task in <INPUT_TASK>.",
		"ALWAYS read AGENTS.md before planning or work.",
		"Once you are satisfied with your implementation, reply with <OK> ONLY.",
		"</INSTRUCTIONS>",
		"<INPUT_TASK>",
		taskFile,
		"</INPUT_TASK>",
	}, "\n")
}

func (rt *Runtime) taskReportPrompt(taskFile, reportPath string) string {
	return strings.Join([]string{
		rt.reminder(runner.RoleTask),
		"<INSTRUCTIONS>",
		"Write a task report for the tech lead.",
		"Create `" + reportPath + "` using these headings:",
		"1. ## Problems & Risks",
		"2. ## Work Completed",
		"3. ## Next Steps / Requests",
		"Keep it concise and bias toward risks.",
		"Reply with <OK> when done.",
		"</INSTRUCTIONS>",
		"<INPUT_TASK>",
		taskFile,
		"</INPUT_TASK>",
		"<OUTPUT>",
		reportPath,
		"</OUTPUT>",
		exactPathsReminder,
	}, "\n")
}

// appendToFile appends text to path, creating it if needed.
func appendToFile(path, text string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(text); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
