package workflow

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/Iron-Ham/otto/internal/artifacts"
	"github.com/Iron-Ham/otto/internal/config"
	"github.com/Iron-Ham/otto/internal/errors"
	"github.com/Iron-Ham/otto/internal/prompt"
	"github.com/Iron-Ham/otto/internal/quality"
	"github.com/Iron-Ham/otto/internal/runner"
	"github.com/Iron-Ham/otto/internal/state"
	"github.com/Iron-Ham/otto/internal/testutil"
)

func TestIntegration_MergeConflictCreatesRemediation(t *testing.T) {
	h := newHarness(t, harnessOptions{
		handler: agentHandler(t, alwaysAccept),
		answers: []prompt.Answer{prompt.Yes()},
	})
	testutil.CommitFile(t, h.repo, "README.md", "# main side\n", "Change README on main")
	testutil.CommitFile(t, h.wt, "README.md", "# worktree side\n", "Change README in worktree")

	next, stop, err := h.rt.step(context.Background(), state.PhaseIntegration)
	if err != nil {
		t.Fatalf("step() error = %v", err)
	}
	if stop || next != state.PhaseExecution {
		t.Fatalf("step() = %s, stop=%v; want execution", next, stop)
	}

	var created []string
	entries, _ := os.ReadDir(h.runDir)
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), "-integration-merge-conflicts.md") {
			created = append(created, e.Name())
		}
	}
	if !slices.Equal(created, []string{"task-1-integration-merge-conflicts.md"}) {
		t.Fatalf("remediation tasks = %v", created)
	}

	tasks := h.rt.Queue().Tasks()
	if len(tasks) != 1 || filepath.Base(tasks[0]) != "task-1-integration-merge-conflicts.md" {
		t.Errorf("queue = %v", tasks)
	}
	if !h.rt.git.MergeInProgress(context.Background(), h.wt) {
		t.Error("merge should be left in progress for the task agent")
	}
	if msgs := h.prompts.Messages(); !slices.Equal(msgs, []string{"Integration: merge main into worktree?"}) {
		t.Errorf("prompts = %v", msgs)
	}

	var remediationPrompt string
	for _, c := range h.fake.Calls() {
		if c.Phase == "integration-remediation-task" {
			remediationPrompt = c.Prompt
		}
	}
	for _, want := range []string{"Type: merge-conflict", "Merge failed:", "- Do NOT abort or commit; leave the merge in progress."} {
		if !strings.Contains(remediationPrompt, want) {
			t.Errorf("remediation prompt missing %q", want)
		}
	}
}

func TestIntegration_MergeInProgressWithConflicts(t *testing.T) {
	h := newHarness(t, harnessOptions{
		handler: agentHandler(t, alwaysAccept),
		answers: []prompt.Answer{prompt.Yes()},
	})
	testutil.CommitFile(t, h.repo, "README.md", "# main side\n", "Change README on main")
	testutil.CommitFile(t, h.wt, "README.md", "# worktree side\n", "Change README in worktree")
	if _, err := testutil.TryGit(h.wt, "merge", "--no-edit", "main"); err == nil {
		t.Fatal("expected the merge to conflict")
	}

	res, err := h.rt.mergeStep(context.Background())
	if err != nil {
		t.Fatalf("mergeStep() error = %v", err)
	}
	if res.outcome != outcomeTasksCreated {
		t.Fatalf("outcome = %s", res.outcome)
	}
	if !strings.Contains(res.message, "diff-filter=U") {
		t.Errorf("message = %q", res.message)
	}
}

func TestIntegration_Aborted(t *testing.T) {
	h := newHarness(t, harnessOptions{answers: []prompt.Answer{prompt.No()}})

	next, stop, err := h.rt.step(context.Background(), state.PhaseIntegration)
	if err != nil {
		t.Fatalf("step() error = %v", err)
	}
	if !stop || next != "" {
		t.Errorf("step() = %q, stop=%v; want stop", next, stop)
	}
	if len(h.fake.Calls()) != 0 {
		t.Error("runner invoked after abort")
	}
}

func TestIntegration_QualityFailure(t *testing.T) {
	cfg := config.Default()
	cfg.Quality.Checks = []config.CheckConfig{{Name: "test", Cmd: []string{"go", "test", "./..."}}}
	gate := &stubGate{reports: []quality.Report{{
		Results: []quality.CheckResult{{Name: "test", Stdout: "FAIL pkg/cache\nmore"}},
	}}}
	h := newHarness(t, harnessOptions{
		handler: agentHandler(t, alwaysAccept),
		answers: []prompt.Answer{prompt.Yes(), prompt.Yes()},
		config:  cfg,
		quality: gate,
	})

	result, err := h.rt.runIntegration(context.Background())
	if err != nil {
		t.Fatalf("runIntegration() error = %v", err)
	}
	if !result.tasksCreated {
		t.Fatalf("result = %+v", result)
	}
	tasks := h.rt.Queue().Tasks()
	if len(tasks) != 1 || filepath.Base(tasks[0]) != "task-1-quality-check-remediation.md" {
		t.Errorf("queue = %v", tasks)
	}
	var p string
	for _, c := range h.fake.Calls() {
		p = c.Prompt
	}
	if !strings.Contains(p, "- test\n  FAIL pkg/cache") {
		t.Errorf("remediation prompt missing failure detail:\n%s", p)
	}
}

func TestIntegration_RemediationDeclined(t *testing.T) {
	h := newHarness(t, harnessOptions{
		handler: func(runner.Options) runner.Result { return runner.Result{Success: false, Error: "down"} },
		answers: []prompt.Answer{prompt.No()},
	})
	for i := 0; i < maxAutoRetries; i++ {
		if _, err := h.rt.maybeRetry(context.Background(), integrationRemediationName, nil); err != nil {
			t.Fatal(err)
		}
	}

	created, err := h.rt.createRemediationTask(context.Background(), remediationIntegrationTests, "- e2e")
	if err != nil {
		t.Fatalf("createRemediationTask() error = %v", err)
	}
	if created {
		t.Error("expected no task after the operator declined")
	}
	if msgs := h.prompts.Messages(); !slices.Equal(msgs, []string{"Integration remediation task failed. Retry?"}) {
		t.Errorf("prompts = %v", msgs)
	}
}

func TestRun_ExecutionThroughCleanup(t *testing.T) {
	h := newHarness(t, harnessOptions{
		handler: agentHandler(t, alwaysAccept),
		answers: []prompt.Answer{
			prompt.Say(""), // no extra feedback
			prompt.Yes(),   // merge
			prompt.Yes(),   // quality
			prompt.Yes(),   // integration checks
			prompt.No(),    // keep the worktree
		},
	})
	h.writeTask(t, "task-1-add-cache.md")
	if err := h.rt.setPhase(state.PhaseExecution); err != nil {
		t.Fatal(err)
	}

	phase, err := h.rt.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if phase != state.PhaseCleanup {
		t.Errorf("Run() stopped at %s", phase)
	}

	wantPrompts := []string{
		"Any additional feedback or tasks? (empty to continue)",
		"Integration: merge main into worktree?",
		"Integration: run quality gate checks?",
		"Integration: run integration checks?",
		"Remove worktree at " + h.wt + "?",
	}
	if got := h.prompts.Messages(); !slices.Equal(got, wantPrompts) {
		t.Errorf("prompts = %v", got)
	}

	report, err := os.ReadFile(artifacts.FinalReportPath(h.runDir))
	if err != nil {
		t.Fatalf("final report: %v", err)
	}
	if strings.Contains(string(report), h.wt) || !strings.Contains(string(report), "See cache.go") {
		t.Errorf("final report not sanitized: %q", report)
	}
	if _, err := os.Stat(h.wt); err != nil {
		t.Error("worktree removed although cleanup was declined")
	}

	reloaded, err := state.Load(h.store.Path())
	if err != nil {
		t.Fatalf("state.Load() error = %v", err)
	}
	if reloaded.Workflow.Phase != state.PhaseCleanup {
		t.Errorf("persisted phase = %s", reloaded.Workflow.Phase)
	}
}

func TestRun_CleanupRemovesWorktree(t *testing.T) {
	h := newHarness(t, harnessOptions{answers: []prompt.Answer{prompt.Yes()}})
	if err := h.rt.setPhase(state.PhaseCleanup); err != nil {
		t.Fatal(err)
	}

	if _, err := h.rt.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if _, err := os.Stat(h.wt); !os.IsNotExist(err) {
		t.Error("worktree still present")
	}
	if !artifacts.HasContent(h.store.Path()) {
		t.Error("run artifacts removed without DeleteArtifacts")
	}
}

// feedbackHandler extends agentHandler so the lead writes a task whenever
// the operator leaves feedback.
func feedbackHandler(t *testing.T) func(runner.Options) runner.Result {
	base := agentHandler(t, alwaysAccept)
	return func(opts runner.Options) runner.Result {
		if opts.Phase == "user-feedback" {
			writeOutput(t, opts, "# Log cache misses\n\nAcceptance: misses are logged.\n")
			return okResult("lead-session")
		}
		return base(opts)
	}
}

func TestRun_UserFeedbackReturnsToExecution(t *testing.T) {
	h := newHarness(t, harnessOptions{
		handler: feedbackHandler(t),
		answers: []prompt.Answer{
			prompt.Say("Also log cache misses."),
			prompt.Say(""),
			prompt.Yes(), // merge
			prompt.Yes(), // quality
			prompt.Yes(), // integration checks
			prompt.No(),  // keep the worktree
		},
	})
	if err := h.rt.setPhase(state.PhaseUserFeedback); err != nil {
		t.Fatal(err)
	}

	phase, err := h.rt.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if phase != state.PhaseCleanup {
		t.Errorf("Run() stopped at %s", phase)
	}

	var feedbackTask string
	var executed []string
	for _, c := range h.fake.Calls() {
		switch c.Phase {
		case "user-feedback":
			if !strings.Contains(c.Prompt, "<INPUT>\nAlso log cache misses.\n</INPUT>") {
				t.Errorf("feedback prompt = %q", c.Prompt)
			}
			feedbackTask, _ = ExtractTag(c.Prompt, "OUTPUT")
		case "task-execution":
			task, _ := ExtractTag(c.Prompt, "INPUT_TASK")
			executed = append(executed, task)
		}
	}
	if !strings.HasSuffix(feedbackTask, "-additional-user-feedback.md") {
		t.Fatalf("feedback task = %q", feedbackTask)
	}
	if len(executed) != 1 || executed[0] != feedbackTask {
		t.Errorf("executed tasks = %v, want [%s]", executed, feedbackTask)
	}
	if !artifacts.HasContent(artifacts.OutcomePath(h.runDir, feedbackTask)) {
		t.Error("feedback task was not accepted")
	}

	msgs := h.prompts.Messages()
	if len(msgs) != 6 || msgs[0] != msgs[1] || msgs[2] != "Integration: merge main into worktree?" {
		t.Errorf("prompts = %v", msgs)
	}
}

func TestRun_StopsAfterMaxSteps(t *testing.T) {
	// Every feedback round adds a task, so the workflow cycles between
	// user-feedback and execution until the step cap.
	var answers []prompt.Answer
	for range MaxSteps {
		answers = append(answers, prompt.Say("One more thing."))
	}
	h := newHarness(t, harnessOptions{handler: feedbackHandler(t), answers: answers})
	if err := h.rt.setPhase(state.PhaseUserFeedback); err != nil {
		t.Fatal(err)
	}

	phase, err := h.rt.Run(context.Background())
	if !errors.Is(err, errors.ErrMaxSteps) {
		t.Fatalf("Run() error = %v, want ErrMaxSteps", err)
	}
	if phase != state.PhaseUserFeedback {
		t.Errorf("Run() stopped at %s", phase)
	}
	if got := len(h.prompts.Messages()); got != MaxSteps/2 {
		t.Errorf("feedback prompts = %d, want %d", got, MaxSteps/2)
	}
	executions := 0
	for _, c := range h.fake.Calls() {
		if c.Phase == "task-execution" {
			executions++
		}
	}
	if executions != MaxSteps/2 {
		t.Errorf("task executions = %d, want %d", executions, MaxSteps/2)
	}
}
