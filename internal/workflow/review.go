package workflow

import (
	"context"
	"strings"
	"time"

	"github.com/Iron-Ham/otto/internal/artifacts"
	"github.com/Iron-Ham/otto/internal/runner"
	"github.com/Iron-Ham/otto/internal/util"
)

const codeReviewTimeout = 15 * time.Minute

// reviewTask has the reviewer write a review of the worktree's
// uncommitted changes. An existing review is reused.
func (rt *Runtime) reviewTask(ctx context.Context, taskFile, reportPath string) (string, bool, error) {
	reviewPath := artifacts.ReviewPath(rt.RunDir(), taskFile)
	if util.FileHasContent(reviewPath) {
		return reviewPath, true, nil
	}

	res, err := rt.invoke(ctx, call{
		role:    runner.RoleReviewer,
		phase:   "code-review",
		prompt:  rt.reviewPrompt(taskFile, reportPath, reviewPath),
		timeout: codeReviewTimeout,
		slot:    reviewerSlot(taskFile),
	})
	if err != nil {
		return "", false, err
	}
	if !res.Success {
		return "", false, nil
	}

	if wt, ok := rt.worktreeCopy(reviewPath); ok && !util.FileHasContent(reviewPath) && util.FileHasContent(wt) {
		rt.queueReminder(runner.RoleReviewer,
			"Write the code review to "+reviewPath+" (main repo .otto), not the worktree .otto.")
		rt.microRetry(ctx, microRetry{
			role:      runner.RoleReviewer,
			sessionID: res.SessionID,
			message:   "Your review must be written to " + reviewPath + ". Recreate it there and reply with <OK>.",
		})
	}
	if !util.FileHasContent(reviewPath) {
		return "", false, nil
	}
	return reviewPath, true, nil
}

func (rt *Runtime) reviewPrompt(taskFile, reportPath, reviewPath string) string {
	return strings.Join([]string{
		rt.reminder(runner.RoleReviewer),
		"<INSTRUCTIONS>",
		"You are reviewing uncommitted changes in the worktree.",
		"Write a concise review for the tech lead.",
		"Save it to: " + reviewPath,
		"</INSTRUCTIONS>",
		"<INPUT_TASK>",
		taskFile,
		"</INPUT_TASK>",
		"<INPUT_REPORT>",
		reportPath,
		"</INPUT_REPORT>",
		"<OUTPUT>",
		reviewPath,
		"</OUTPUT>",
		exactPathsReminder,
	}, "\n")
}
