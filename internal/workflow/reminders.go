package workflow

import (
	"strings"

	"github.com/Iron-Ham/otto/internal/runner"
)

const exactPathsReminder = "<system-reminder>Use the exact paths given to you to read and write the input and output files.</system-reminder>"

// reminder renders the system reminder for role, draining any queued
// one-shot lines.
func (rt *Runtime) reminder(role runner.Role) string {
	s := rt.State()
	root := s.ArtifactRootDir
	runDir := rt.RunDir()
	wt := s.Worktree.WorktreePath

	var lines []string
	switch role {
	case runner.RoleReviewer:
		lines = []string{
			"Review the uncommitted changes in the worktree: " + wt,
			"Reviews MUST be written under: " + runDir,
			"Do NOT modify code; only write the review file you are given.",
			"Use absolute paths for any file read/write directives you provide.",
			"Do NOT commit to git.",
		}
	case runner.RoleTask, runner.RoleSummarize:
		lines = []string{
			"Code changes MUST be made in the worktree: " + wt,
			"Task reports and summaries MUST be written under: " + runDir,
			"Never write workflow artifacts under the worktree's own .otto directory.",
			"When writing documentation text or code comments, use repo-root-relative paths (never absolute filesystem paths).",
			"Do NOT commit to git; accepted work is committed for you.",
		}
	default:
		lines = []string{
			"All workflow artifacts MUST be written under the main repo artifact root: " + root,
			"Plan/task markdown artifacts MUST be written under: " + runDir,
			"Code changes MUST be made in the worktree: " + wt,
			"Use absolute paths for any file read/write directives you provide.",
			"When writing artifacts under " + root + ", reference repo files using absolute paths into the worktree (" + wt + ").",
			"When writing documentation text or code comments, use repo-root-relative paths (never absolute filesystem paths).",
			"Do NOT commit to git unless the phase explicitly instructs you to commit.",
		}
	}

	queueRole := role
	if role == runner.RoleProjectLead {
		queueRole = runner.RoleLead
	}
	lines = append(lines, rt.reminders[queueRole]...)
	delete(rt.reminders, queueRole)

	var b strings.Builder
	b.WriteString("<system-reminder>\n")
	for _, l := range lines {
		b.WriteString("- " + l + "\n")
	}
	b.WriteString("</system-reminder>")
	return b.String()
}
