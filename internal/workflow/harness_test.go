package workflow

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Iron-Ham/otto/internal/artifacts"
	"github.com/Iron-Ham/otto/internal/config"
	"github.com/Iron-Ham/otto/internal/event"
	"github.com/Iron-Ham/otto/internal/execx"
	"github.com/Iron-Ham/otto/internal/logging"
	"github.com/Iron-Ham/otto/internal/procreg"
	"github.com/Iron-Ham/otto/internal/prompt"
	"github.com/Iron-Ham/otto/internal/runner"
	"github.com/Iron-Ham/otto/internal/state"
	"github.com/Iron-Ham/otto/internal/testutil"
	"github.com/Iron-Ham/otto/internal/worktree"
)

const testTicketID = "2026-02-01-add-caching"

type harness struct {
	rt      *Runtime
	fake    *runner.Fake
	prompts *prompt.Scripted
	store   *state.Store
	repo    string
	wt      string
	runDir  string
}

type harnessOptions struct {
	handler func(runner.Options) runner.Result
	answers []prompt.Answer
	config  *config.Config
	quality *stubGate
}

// newHarness builds a runtime over a real repository and worktree with a
// fake runner and scripted prompts.
func newHarness(t *testing.T, opts harnessOptions) *harness {
	t.Helper()

	repo := testutil.SetupTestRepo(t)
	wt := filepath.Join(t.TempDir(), "wt")
	testutil.RunGit(t, repo, "worktree", "add", "-b", "otto/"+testTicketID, wt, "main")

	root := filepath.Join(repo, ".otto")
	ticket := testutil.WriteFile(t, root, "tickets/"+testTicketID+".md", "Add caching to hot reads.\n")

	s, err := state.Build(state.BuildOptions{
		MainRepoPath:    repo,
		ArtifactRootDir: root,
		TicketID:        testTicketID,
		TicketFilePath:  ticket,
		WorktreePath:    wt,
		BranchName:      "otto/" + testTicketID,
		BaseBranch:      "main",
	})
	if err != nil {
		t.Fatalf("state.Build() error = %v", err)
	}
	if err := os.MkdirAll(s.RunDir, 0o755); err != nil {
		t.Fatalf("failed to create run dir: %v", err)
	}
	store := state.NewStore(s.StateFilePath, s)
	if err := store.Save(); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	logger := logging.NopLogger()
	exec := execx.New(procreg.New(logger), logger)
	fake := &runner.Fake{Handler: opts.handler}
	prompts := prompt.NewScripted(opts.answers...)

	deps := Deps{
		Config:    opts.config,
		Store:     store,
		Runners:   runner.NewStaticTable(fake, nil),
		Prompt:    prompts,
		Exec:      exec,
		Worktrees: worktree.NewGitAdapter(worktree.NewGit(exec, logger)),
		Bus:       event.NewBus(logger),
		Logger:    logger,
		Now:       func() time.Time { return time.UnixMilli(1767225600000) },
	}
	if opts.quality != nil {
		deps.Quality = opts.quality
	}

	return &harness{
		rt:      NewRuntime(deps),
		fake:    fake,
		prompts: prompts,
		store:   store,
		repo:    repo,
		wt:      wt,
		runDir:  s.RunDir,
	}
}

// writeTask creates a task file in the run dir and returns its path.
func (h *harness) writeTask(t *testing.T, name string) string {
	t.Helper()
	return testutil.WriteFile(t, h.runDir, name, "# "+name+"\n\nAcceptance: cache hits are served.\n")
}

// writeOutput writes content to the path in the prompt's <OUTPUT> block.
func writeOutput(t *testing.T, opts runner.Options, content string) string {
	t.Helper()
	path, ok := ExtractTag(opts.Prompt, "OUTPUT")
	if !ok {
		t.Errorf("phase %s: prompt has no <OUTPUT> block", opts.Phase)
		return ""
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Errorf("phase %s: failed to write %s: %v", opts.Phase, path, err)
	}
	return path
}

func okResult(session string) runner.Result {
	return runner.Result{Success: true, SessionID: session, Output: "<OK>"}
}

// agentHandler plays every agent role competently. decide picks the lead's
// verdict for each task file.
func agentHandler(t *testing.T, decide func(taskFile string) artifacts.Decision) func(runner.Options) runner.Result {
	return func(opts runner.Options) runner.Result {
		switch opts.Phase {
		case "task-execution":
			task, _ := ExtractTag(opts.Prompt, "INPUT_TASK")
			content := "package cache\n\n// " + filepath.Base(task) + "\n"
			if err := os.WriteFile(filepath.Join(opts.Cwd, "cache.go"), []byte(content), 0o644); err != nil {
				t.Errorf("failed to write code: %v", err)
			}
			return okResult("task-session")
		case "task-report":
			writeOutput(t, opts, "## Problems & Risks\nNone.\n## Work Completed\nCache added.\n")
			return okResult("task-session")
		case "code-review":
			writeOutput(t, opts, "- Looks correct.\n")
			return okResult("review-session")
		case "summarize-report", "summarize-review":
			writeOutput(t, opts, "- short summary\n")
			return okResult("summary-session")
		case "tech-lead-decision":
			task, _ := ExtractTag(opts.Prompt, "INPUT_TASK")
			verdict := decide(task)
			if verdict == artifacts.DecisionRemediation {
				base := artifacts.BaseTaskInfo(task)
				path := artifacts.RemediationTaskPath(filepath.Dir(task), base.Name, base.Attempt+1)
				if err := os.WriteFile(path, []byte("# Fix the cache\n"), 0o644); err != nil {
					t.Errorf("failed to write remediation: %v", err)
				}
			}
			if verdict == artifacts.DecisionAcceptance {
				path := artifacts.OutcomePath(filepath.Dir(task), task)
				if err := os.WriteFile(path, []byte("Accepted.\n"), 0o644); err != nil {
					t.Errorf("failed to write outcome: %v", err)
				}
			}
			return runner.Result{Success: true, SessionID: "lead-session", Output: "<DECISION>" + string(verdict) + "</DECISION>"}
		case "finalize":
			writeOutput(t, opts, "## Summary\nSee "+opts.Cwd+"/cache.go for the cache.\n")
			return okResult("lead-session")
		case "integration-remediation-task":
			writeOutput(t, opts, "# Resolve conflicts\n")
			return okResult("lead-session")
		}
		return okResult("lead-session")
	}
}

func alwaysAccept(string) artifacts.Decision { return artifacts.DecisionAcceptance }
