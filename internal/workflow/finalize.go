package workflow

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Iron-Ham/otto/internal/artifacts"
	"github.com/Iron-Ham/otto/internal/errors"
	"github.com/Iron-Ham/otto/internal/runner"
	"github.com/Iron-Ham/otto/internal/util"
)

const finalizeTimeout = 15 * time.Minute

// finalize has the lead write the final report, strips absolute paths
// from the markdown the run produced and commits what is left.
func (rt *Runtime) finalize(ctx context.Context) error {
	runDir := rt.RunDir()
	reportPath := artifacts.FinalReportPath(runDir)

	lines := []string{
		rt.reminder(runner.RoleLead),
		"<INSTRUCTIONS>",
		"All tasks have been executed and verified.",
		"Write a final report summarizing what was done, what changed, and any follow-ups.",
		"Read the plan and the task outcomes before writing the report.",
		"Create the final report file at: " + reportPath,
		"Use headings: ## Summary, ## Changes, ## Verification, ## Follow-ups.",
		"Reply <OK> when done.",
		"</INSTRUCTIONS>",
		"<INPUT_PLAN>",
		rt.PlanPath(),
		"</INPUT_PLAN>",
	}
	if outcomes := outcomeFiles(runDir); len(outcomes) > 0 {
		lines = append(lines, "<INPUT_OUTCOMES>")
		lines = append(lines, outcomes...)
		lines = append(lines, "</INPUT_OUTCOMES>")
	}
	lines = append(lines, "<OUTPUT>", reportPath, "</OUTPUT>", exactPathsReminder)

	if _, err := rt.runLeadStep(ctx, leadStep{
		label:     "Finalize",
		phase:     "finalize",
		prompt:    strings.Join(lines, "\n"),
		timeout:   finalizeTimeout,
		okMessage: "Reply with <OK> only when finalization is complete.",
	}); err != nil {
		return err
	}

	if !util.FileHasContent(reportPath) {
		if wt, ok := rt.worktreeCopy(reportPath); ok && util.FileHasContent(wt) {
			rt.queueReminder(runner.RoleLead,
				"You wrote Otto artifacts under the worktree. Create the final report at: "+reportPath)
			rt.microRetry(ctx, microRetry{
				role:      runner.RoleLead,
				sessionID: rt.State().Workflow.TechLeadSessionID,
				message:   "Move or recreate the final report at " + reportPath + " and reply with <OK>.",
			})
		}
		if !util.FileHasContent(reportPath) {
			return errors.NewWorkflowError("Final report missing or empty: "+reportPath, nil)
		}
	}

	s := rt.State()
	prefixes := []string{s.Worktree.WorktreePath, s.MainRepoPath}
	if err := sanitizeMarkdown(reportPath, prefixes); err != nil {
		return err
	}
	for _, rel := range rt.changedMarkdown(ctx) {
		path := filepath.Join(s.Worktree.WorktreePath, rel)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := sanitizeMarkdown(path, prefixes); err != nil {
			rt.logger.Warn("failed to sanitize markdown", "file", rel, "error", err.Error())
		}
	}

	msg := "Finalize: " + s.Ticket.Slug + " (" + s.RunID + ")"
	_, err := rt.git.CommitAll(ctx, rt.worktreePath(), msg)
	return err
}

// changedMarkdown lists modified or staged .md files in the worktree.
func (rt *Runtime) changedMarkdown(ctx context.Context) []string {
	wt := rt.worktreePath()
	seen := map[string]bool{}
	var files []string
	for _, args := range [][]string{
		{"diff", "--name-only"},
		{"diff", "--cached", "--name-only"},
	} {
		res := rt.git.Run(ctx, wt, 30*time.Second, args...)
		if !res.OK() {
			continue
		}
		for _, line := range strings.Split(res.Stdout, "\n") {
			line = strings.TrimSpace(line)
			if line == "" || !strings.HasSuffix(line, ".md") || seen[line] {
				continue
			}
			seen[line] = true
			files = append(files, line)
		}
	}
	return files
}

// sanitizeMarkdown removes every "<prefix>/" occurrence from the file so
// committed docs carry repo-relative paths only.
func sanitizeMarkdown(path string, prefixes []string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	next := string(raw)
	for _, prefix := range prefixes {
		if prefix == "" {
			continue
		}
		if !strings.HasSuffix(prefix, "/") {
			prefix += "/"
		}
		next = strings.ReplaceAll(next, prefix, "")
	}
	if next == string(raw) {
		return nil
	}
	return util.AtomicWriteFile(path, []byte(next), 0644)
}
