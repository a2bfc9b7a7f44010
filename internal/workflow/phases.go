package workflow

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/Iron-Ham/otto/internal/decisioncards"
	"github.com/Iron-Ham/otto/internal/errors"
	"github.com/Iron-Ham/otto/internal/runner"
	"github.com/Iron-Ham/otto/internal/state"
	"github.com/Iron-Ham/otto/internal/taskqueue"
	"github.com/Iron-Ham/otto/internal/util"
)

const (
	ingestionTimeout     = 15 * time.Minute
	planFeedbackTimeout  = 10 * time.Minute
	taskSplittingTimeout = 10 * time.Minute
	taskFeedbackTimeout  = 15 * time.Minute
	userFeedbackTimeout  = 10 * time.Minute
)

var taskFilePattern = regexp.MustCompile(`(?i)^task-\d+-.+\.md$`)

// ingestTicket has the lead turn the ticket into a plan.
func (rt *Runtime) ingestTicket(ctx context.Context) error {
	runDir := rt.RunDir()
	planPath := rt.PlanPath()
	cardsPath := rt.DecisionCardsPath()
	if err := rt.update(func(s *state.State) {
		s.Workflow.RunDir = runDir
		s.Workflow.PlanFilePath = planPath
		s.Workflow.DecisionCardsPath = cardsPath
	}); err != nil {
		return err
	}

	ticket, err := os.ReadFile(rt.State().Ticket.FilePath)
	if err != nil {
		return fmt.Errorf("failed to read ticket: %w", err)
	}

	prompt := strings.Join([]string{
		rt.reminder(runner.RoleLead),
		"",
		"<INSTRUCTIONS>",
		"1. **ALWAYS** read `@AGENTS.md` before planning or work.",
		"2. Read the user ticket in <INPUT>.",
		"3. Analyze the existing repo in the worktree.",
		"4. Create the run folder at: " + runDir,
		"5. Create the plan file at: " + planPath,
		"   - It should include context, assumptions, and acceptance criteria.",
		"   - It should be specific enough to drive task splitting.",
		"",
		"Reply with <OK> only when you have completed the above.",
		"</INSTRUCTIONS>",
		"",
		exactPathsReminder,
		"",
		"<INPUT>",
		strings.TrimRight(string(ticket), " \t\r\n"),
		"</INPUT>",
		"",
	}, "\n")

	if _, err := rt.runLeadStep(ctx, leadStep{
		label:     "Ticket ingestion",
		phase:     "ticket-ingestion",
		prompt:    prompt,
		timeout:   ingestionTimeout,
		okMessage: "Reply with <OK> only when ticket ingestion is complete.",
	}); err != nil {
		return err
	}

	if !util.FileHasContent(planPath) {
		if wt, ok := rt.worktreeCopy(planPath); ok && util.FileHasContent(wt) {
			rt.queueReminder(runner.RoleLead,
				"You wrote Otto artifacts under the worktree. All artifacts must be written under the main repo .otto. Move or recreate the plan at: "+planPath)
			if err := rt.techLeadMicroRetry(ctx, "Move or recreate the plan file at the correct path: "+planPath); err != nil {
				return err
			}
		}
	}
	if !util.FileHasContent(planPath) {
		return errors.NewWorkflowError("Plan file missing or empty: "+planPath, nil)
	}
	return nil
}

// cardOptions builds the options for a decision card generation.
func (rt *Runtime) cardOptions(existing *decisioncards.Document) decisioncards.GenerateOptions {
	return decisioncards.GenerateOptions{
		Invoke:    rt.invokeLead,
		Reminder:  rt.reminder(runner.RoleLead),
		PlanPath:  rt.PlanPath(),
		CardsPath: rt.DecisionCardsPath(),
		Cwd:       rt.worktreePath(),
		Existing:  existing,
		Logger:    rt.logger,
	}
}

// invokeLead runs a card generation on the lead session, with the same
// overflow recovery and session persistence as every other lead call.
func (rt *Runtime) invokeLead(ctx context.Context, o runner.Options) (runner.Result, error) {
	return rt.invoke(ctx, call{
		role:    runner.RoleLead,
		phase:   o.Phase,
		prompt:  o.Prompt,
		timeout: o.Timeout,
		slot:    leadSlot(),
		schema:  o.JSONSchema,
	})
}

func (rt *Runtime) ensureDecisionCards(ctx context.Context) (*decisioncards.Document, error) {
	return decisioncards.Ensure(ctx, rt.cardOptions(nil))
}

// cardGate adapts the runtime to the decision card review loop.
type cardGate struct{ rt *Runtime }

func (g cardGate) Ensure(ctx context.Context) (*decisioncards.Document, error) {
	return g.rt.ensureDecisionCards(ctx)
}

func (g cardGate) Review(ctx context.Context, doc *decisioncards.Document) (decisioncards.ReviewSummary, error) {
	return decisioncards.Review(ctx, g.rt.prompt, doc, g.rt.DecisionCardsPath())
}

func (g cardGate) UpdatePlan(ctx context.Context, feedback string, cards *decisioncards.Document) error {
	rt := g.rt
	prompt := strings.Join([]string{
		rt.reminder(runner.RoleLead),
		"<INSTRUCTIONS>",
		"Update " + rt.PlanPath() + " based on decision card feedback in <INPUT>.",
		"Reply <OK> when done.",
		"</INSTRUCTIONS>",
		"<INPUT>",
		feedback,
		"</INPUT>",
	}, "\n")

	if _, err := rt.runLeadStep(ctx, leadStep{
		label:     "Decision card feedback",
		phase:     "decision-cards-feedback",
		prompt:    prompt,
		timeout:   planFeedbackTimeout,
		retry:     rt.retryWithBudget("Decision card feedback"),
		okMessage: "Reply with <OK> only when the plan update is complete.",
	}); err != nil {
		return err
	}
	_, err := decisioncards.Generate(ctx, rt.cardOptions(cards))
	return err
}

// planFeedback applies free-form operator feedback to the plan until the
// operator submits an empty answer.
func (rt *Runtime) planFeedback(ctx context.Context) error {
	planPath := rt.PlanPath()
	for {
		feedback, err := rt.text(ctx, "Plan feedback? (empty to continue)\nPlan: "+planPath)
		if err != nil {
			return err
		}
		if strings.TrimSpace(feedback) == "" {
			return nil
		}

		prompt := strings.Join([]string{
			rt.reminder(runner.RoleLead),
			"<INSTRUCTIONS>",
			"Update " + planPath + " based on user feedback in <INPUT>.",
			"Reply <OK> when done.",
			"</INSTRUCTIONS>",
			"<INPUT>",
			feedback,
			"</INPUT>",
		}, "\n")
		if _, err := rt.runLeadStep(ctx, leadStep{
			label:   "Plan feedback",
			phase:   "plan-feedback",
			prompt:  prompt,
			timeout: planFeedbackTimeout,
			retry:   rt.retryWithBudget("Plan feedback"),
		}); err != nil {
			return err
		}
	}
}

func hasTaskFiles(dir string) bool {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false
	}
	for _, e := range entries {
		if taskFilePattern.MatchString(e.Name()) {
			return true
		}
	}
	return false
}

// splitTasks has the lead break the plan into task files in the run dir.
func (rt *Runtime) splitTasks(ctx context.Context) error {
	runDir := rt.RunDir()
	prompt := strings.Join([]string{
		rt.reminder(runner.RoleLead),
		"<INSTRUCTIONS>",
		"Create detailed tasks in " + runDir + " following `task-<N>-<desc>.md`.",
		"Each task should be appropriate for one agent session, be atomic, and include acceptance criteria.",
		"Do NOT create tasks whose sole purpose is to run lint/typecheck/test/format/coverage. Those are handled by the workflow.",
		"Database state is ephemeral between tasks; persistent changes require migrations/seed changes.",
		"Consider whether an integration test task is needed.",
		"Reply <OK> when done.",
		"</INSTRUCTIONS>",
		exactPathsReminder,
	}, "\n")

	for {
		res, err := rt.runLeadStep(ctx, leadStep{
			label:   "Task splitting",
			phase:   "task-splitting",
			prompt:  prompt,
			timeout: taskSplittingTimeout,
			retry:   rt.retryWithConfirm("Task splitting failed. Retry?"),
		})
		if err != nil {
			return err
		}
		if hasTaskFiles(runDir) {
			return nil
		}

		if wt, ok := rt.worktreeCopy(runDir); ok && hasTaskFiles(wt) {
			rt.queueReminder(runner.RoleLead,
				"Task files must be written to "+runDir+". You wrote them under the worktree. Move or recreate them at the main repo path.")
			moved := rt.microRetry(ctx, microRetry{
				role:      runner.RoleLead,
				sessionID: res.SessionID,
				message:   "Move or recreate your task files at " + runDir + " (absolute path) and reply with <OK>.",
			})
			if moved && hasTaskFiles(runDir) {
				return nil
			}
		}

		retry, err := rt.confirm(ctx, "Task files missing from main repo run dir. Retry task splitting?", true)
		if err != nil {
			return err
		}
		if !retry {
			return errors.NewWorkflowError("Task files missing from "+runDir, nil)
		}
	}
}

// taskFeedback lets the operator revise the split before execution.
func (rt *Runtime) taskFeedback(ctx context.Context) error {
	runDir := rt.RunDir()
	planPath := rt.PlanPath()
	question := "Task splitting feedback?"

	for {
		tasks, err := rt.queue.Load(runDir, false)
		if err != nil {
			return err
		}
		lines := []string{"Plan: " + planPath}
		if len(tasks) == 0 {
			lines = append(lines, "Tasks: (none)")
		} else {
			lines = append(lines, "Tasks:")
			for _, t := range tasks {
				rel, err := filepath.Rel(rt.State().MainRepoPath, t)
				if err != nil {
					rel = t
				}
				lines = append(lines, "- "+rel)
			}
		}

		feedback, err := rt.text(ctx, question+" (empty to continue)\n"+strings.Join(lines, "\n"))
		if err != nil {
			return err
		}
		question = "More task splitting feedback?"
		if strings.TrimSpace(feedback) == "" {
			return nil
		}

		prompt := strings.Join([]string{
			rt.reminder(runner.RoleLead),
			"<INSTRUCTIONS>",
			"Update " + planPath + " and task files in " + runDir + " based on feedback in <INPUT>. Reply <OK> when done.",
			"</INSTRUCTIONS>",
			"<INPUT>",
			feedback,
			"</INPUT>",
		}, "\n")
		if _, err := rt.runLeadStep(ctx, leadStep{
			label:     "Task feedback",
			phase:     "task-feedback",
			prompt:    prompt,
			timeout:   taskFeedbackTimeout,
			retry:     rt.retryWithBudget("Task feedback"),
			okMessage: "Reply with <OK> only when the task feedback updates are complete.",
		}); err != nil {
			return err
		}

		// Task files may have been renamed; rescan on the next pass.
		if err := rt.update(func(s *state.State) { s.Workflow.TaskQueue = []string{} }); err != nil {
			return err
		}
	}
}

// userFeedback turns operator feedback after execution into one more task.
// It reports whether a task was added.
func (rt *Runtime) userFeedback(ctx context.Context) (bool, error) {
	feedback, err := rt.text(ctx, "Any additional feedback or tasks? (empty to continue)")
	if err != nil {
		return false, err
	}
	feedback = strings.TrimSpace(feedback)
	if feedback == "" {
		return false, nil
	}

	runDir := rt.RunDir()
	taskPath := filepath.Join(runDir,
		fmt.Sprintf("task-%d-additional-user-feedback.md", taskqueue.NextTaskNumber(runDir)))
	prompt := strings.Join([]string{
		rt.reminder(runner.RoleLead),
		"<INSTRUCTIONS>",
		"Create task `" + taskPath + "` based on user feedback in <INPUT>. Follow the existing task format and include acceptance criteria.",
		"Reply <OK> when done.",
		"</INSTRUCTIONS>",
		"<INPUT>",
		feedback,
		"</INPUT>",
		"<OUTPUT>",
		taskPath,
		"</OUTPUT>",
		exactPathsReminder,
	}, "\n")

	for {
		if _, err := rt.runLeadStep(ctx, leadStep{
			label:   "User feedback task",
			phase:   "user-feedback",
			prompt:  prompt,
			timeout: userFeedbackTimeout,
			retry:   rt.retryWithBudget("User feedback task"),
		}); err != nil {
			return false, err
		}
		if util.FileHasContent(taskPath) {
			break
		}
		_ = util.RemoveIfExists(taskPath)
		missing := errors.NewWorkflowError("User feedback task file missing or empty: "+taskPath, nil).WithRetryable(true)
		retry, err := rt.maybeRetry(ctx, "User feedback task", missing)
		if err != nil {
			return false, err
		}
		if !retry {
			return false, missing
		}
	}

	if err := rt.queue.AddToFront(taskPath); err != nil {
		return false, err
	}
	return true, nil
}

// outcomeFiles lists the accepted task outcomes in the run dir.
func outcomeFiles(runDir string) []string {
	entries, err := os.ReadDir(runDir)
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, "outcome-task-") && strings.HasSuffix(name, ".md") {
			out = append(out, filepath.Join(runDir, name))
		}
	}
	return out
}

// runCardGate reviews decision cards with the operator until no plan
// update is needed.
func (rt *Runtime) runCardGate(ctx context.Context) error {
	return decisioncards.RunGate(ctx, cardGate{rt: rt})
}
