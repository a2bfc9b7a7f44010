package workflow

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/Iron-Ham/otto/internal/errors"
	"github.com/Iron-Ham/otto/internal/event"
	"github.com/Iron-Ham/otto/internal/quality"
	"github.com/Iron-Ham/otto/internal/runner"
	"github.com/Iron-Ham/otto/internal/taskqueue"
	"github.com/Iron-Ham/otto/internal/util"
)

const (
	fetchTimeout               = 2 * time.Minute
	mergeTimeout               = 5 * time.Minute
	remediationTaskTimeout     = 10 * time.Minute
	integrationRemediationName = "Integration remediation task"
)

// stepOutcome is the result of one integration step.
type stepOutcome string

const (
	outcomeSuccess      stepOutcome = "success"
	outcomeSkipped      stepOutcome = "skipped"
	outcomeTasksCreated stepOutcome = "tasks-created"
	outcomeAborted      stepOutcome = "aborted"
)

type stepResult struct {
	outcome stepOutcome
	message string
}

// remediationType names the integration safeguard that failed.
type remediationType string

const (
	remediationMergeConflict    remediationType = "merge-conflict"
	remediationQualityCheck     remediationType = "quality-check"
	remediationIntegrationTests remediationType = "integration-tests"
)

var remediationSlugs = map[remediationType]string{
	remediationMergeConflict:    "integration-merge-conflicts",
	remediationQualityCheck:     "quality-check-remediation",
	remediationIntegrationTests: "integration-tests-remediation",
}

// integrationResult tells the orchestrator where to go next.
type integrationResult struct {
	tasksCreated bool
	aborted      bool
}

// runIntegration merges the base branch, then runs the quality and
// integration checks. The first step that creates a remediation task or
// aborts ends the phase.
func (rt *Runtime) runIntegration(ctx context.Context) (integrationResult, error) {
	steps := []struct {
		name string
		run  func(context.Context) (stepResult, error)
	}{
		{"merge", rt.mergeStep},
		{"quality", rt.qualityStep},
		{"integration-tests", rt.integrationTestsStep},
	}
	for _, step := range steps {
		res, err := step.run(ctx)
		if err != nil {
			return integrationResult{}, err
		}
		rt.logger.Info("integration step finished",
			"step", step.name, "outcome", string(res.outcome), "message", res.message)
		rt.publish(event.NewIntegrationStepEvent(step.name, string(res.outcome), res.message))

		switch res.outcome {
		case outcomeTasksCreated:
			return integrationResult{tasksCreated: true}, nil
		case outcomeAborted:
			return integrationResult{aborted: true}, nil
		}
	}
	return integrationResult{}, nil
}

func (rt *Runtime) mergeStep(ctx context.Context) (stepResult, error) {
	base := rt.State().Worktree.BaseBranch
	ok, err := rt.confirm(ctx, "Integration: merge "+base+" into worktree?", true)
	if err != nil {
		return stepResult{}, err
	}
	if !ok {
		return stepResult{outcome: outcomeAborted, message: "User aborted merge step"}, nil
	}

	wt := rt.worktreePath()
	if rt.git.MergeInProgress(ctx, wt) {
		conflicts, err := rt.git.ConflictingFiles(ctx, wt)
		if err == nil && len(conflicts) > 0 {
			return rt.mergeConflictRemediation(ctx,
				"A merge is already in progress and there are unresolved conflicts (diff-filter=U).")
		}
		res := rt.git.Run(ctx, wt, mergeTimeout, "merge", "--continue")
		if !res.OK() {
			return rt.mergeConflictRemediation(ctx, "Merge continuation failed:\n"+res.Output())
		}
		return stepResult{outcome: outcomeSuccess}, nil
	}

	// Repos without a remote simply fail the fetch.
	rt.git.Run(ctx, wt, fetchTimeout, "fetch", "--prune", "origin", base)
	target := base
	if rt.git.RefExists(ctx, wt, "origin/"+base) {
		target = "origin/" + base
	}

	marker := "otto-integration-autostash-" + strconv.FormatInt(rt.now().UnixMilli(), 10)
	stashRef := ""
	if rt.git.StashIfDirty(ctx, wt, marker) {
		stashRef, _ = rt.git.StashRef(ctx, wt, marker)
	}

	res := rt.git.Run(ctx, wt, mergeTimeout, "merge", "--no-ff", "--no-edit", target)
	if !res.OK() && target != base {
		res = rt.git.Run(ctx, wt, mergeTimeout, "merge", "--no-ff", "--no-edit", base)
	}
	if !res.OK() {
		summary := "Merge failed:\n" + strings.TrimSpace(res.Output())
		if stashRef != "" {
			summary += "\n\nAutostash: " + stashRef
		}
		return rt.mergeConflictRemediation(ctx, summary)
	}

	if stashRef != "" {
		applied := rt.git.Run(ctx, wt, 0, "stash", "apply", stashRef)
		restored := applied.OK() && rt.git.Run(ctx, wt, 0, "stash", "drop", stashRef).OK()
		if !restored {
			return rt.mergeConflictRemediation(ctx,
				"Merge succeeded but failed to restore stash "+stashRef+". Resolve manually.")
		}
	}
	return stepResult{outcome: outcomeSuccess}, nil
}

func (rt *Runtime) mergeConflictRemediation(ctx context.Context, summary string) (stepResult, error) {
	created, err := rt.createRemediationTask(ctx, remediationMergeConflict, summary)
	if err != nil {
		return stepResult{}, err
	}
	if !created {
		return stepResult{outcome: outcomeAborted, message: "Failed to create remediation task"}, nil
	}
	return stepResult{outcome: outcomeTasksCreated, message: summary}, nil
}

func (rt *Runtime) qualityStep(ctx context.Context) (stepResult, error) {
	return rt.checkStep(ctx, checkStep{
		question:     "Integration: run quality gate checks?",
		declined:     "User skipped quality gate",
		unconfigured: "No quality config",
		unknown:      "(unknown quality failures)",
		gate:         rt.quality,
		checks:       rt.qualityChecks,
		kind:         remediationQualityCheck,
	})
}

func (rt *Runtime) integrationTestsStep(ctx context.Context) (stepResult, error) {
	return rt.checkStep(ctx, checkStep{
		question:     "Integration: run integration checks?",
		declined:     "User skipped integration checks",
		unconfigured: "No integration checks configured",
		unknown:      "(unknown integration failures)",
		gate:         rt.integration,
		checks:       rt.integrationChecks,
		kind:         remediationIntegrationTests,
	})
}

type checkStep struct {
	question     string
	declined     string
	unconfigured string
	unknown      string
	gate         quality.Gate
	checks       []quality.Check
	kind         remediationType
}

func (rt *Runtime) checkStep(ctx context.Context, cs checkStep) (stepResult, error) {
	ok, err := rt.confirm(ctx, cs.question, true)
	if err != nil {
		return stepResult{}, err
	}
	if !ok {
		return stepResult{outcome: outcomeSkipped, message: cs.declined}, nil
	}
	if cs.gate == nil || len(cs.checks) == 0 {
		return stepResult{outcome: outcomeSkipped, message: cs.unconfigured}, nil
	}

	report, err := cs.gate.RunChecks(ctx, rt.worktreePath(), cs.checks)
	if err != nil {
		return stepResult{}, err
	}
	if report.OK {
		return stepResult{outcome: outcomeSuccess}, nil
	}

	summary := report.FailureLines(true)
	if summary == "" {
		summary = cs.unknown
	}
	created, err := rt.createRemediationTask(ctx, cs.kind, summary)
	if err != nil {
		return stepResult{}, err
	}
	if !created {
		return stepResult{outcome: outcomeAborted}, nil
	}
	return stepResult{outcome: outcomeTasksCreated, message: summary}, nil
}

// createRemediationTask has the lead write a task that unblocks
// integration and puts it at the front of the queue. It reports false
// when the operator declines further retries.
func (rt *Runtime) createRemediationTask(ctx context.Context, kind remediationType, summary string) (bool, error) {
	runDir := rt.RunDir()
	taskPath := filepath.Join(runDir,
		fmt.Sprintf("task-%d-%s.md", taskqueue.NextTaskNumber(runDir), remediationSlugs[kind]))

	for {
		res, err := rt.invoke(ctx, call{
			role:    runner.RoleLead,
			phase:   "integration-remediation-task",
			prompt:  rt.remediationTaskPrompt(taskPath, kind, summary),
			timeout: remediationTaskTimeout,
			slot:    leadSlot(),
		})
		if err != nil {
			return false, err
		}
		if res.Success && util.FileHasContent(taskPath) {
			break
		}
		failure := agentFailure(integrationRemediationName, res, remediationTaskTimeout)
		if res.Success {
			_ = util.RemoveIfExists(taskPath)
			failure = errors.NewWorkflowError("Remediation task file missing or empty: "+taskPath, nil).WithRetryable(true)
		}
		retry, err := rt.maybeRetry(ctx, integrationRemediationName, failure)
		if err != nil {
			return false, err
		}
		if !retry {
			return false, nil
		}
	}

	rt.logger.Info("integration remediation task created", "task", filepath.Base(taskPath), "type", string(kind))
	return true, rt.queue.AddToFront(taskPath)
}

func remediationGuidance(kind remediationType) string {
	switch kind {
	case remediationMergeConflict:
		return strings.Join([]string{
			"- Resolve merge conflicts.",
			"- Stage resolved files: git add -A",
			"- Do NOT abort or commit; leave the merge in progress.",
			"- Rerun the integration phase after conflicts are staged.",
		}, "\n")
	case remediationQualityCheck:
		return strings.Join([]string{
			"- Fix the failing quality gate checks.",
			"- Rerun the configured quality checks if available.",
		}, "\n")
	default:
		return "- Fix the issue and rerun integration safeguards."
	}
}

func (rt *Runtime) remediationTaskPrompt(taskPath string, kind remediationType, summary string) string {
	return strings.Join([]string{
		rt.reminder(runner.RoleLead),
		"<INSTRUCTIONS>",
		"Create the task file `" + taskPath + "` describing the remediation work required to unblock integration.",
		"Follow the existing task format and include acceptance criteria.",
		"Reply <OK> when done.",
		"</INSTRUCTIONS>",
		"<INPUT>",
		"Type: " + string(kind),
		"",
		"Failure summary:",
		strings.TrimSpace(summary),
		"",
		"Guidance:",
		remediationGuidance(kind),
		"</INPUT>",
		"<OUTPUT>",
		taskPath,
		"</OUTPUT>",
		exactPathsReminder,
	}, "\n")
}
