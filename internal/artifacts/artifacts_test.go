package artifacts

import (
	"os"
	"path/filepath"
	"slices"
	"testing"
)

func TestResolve(t *testing.T) {
	p := Resolve("/repo", "")
	if p.Root != "/repo/.otto" || p.States != "/repo/.otto/states" || p.Sessions != "/repo/.otto/sessions" {
		t.Errorf("Resolve() = %+v", p)
	}
	if got := Resolve("/repo", "/abs/art").Root; got != "/abs/art" {
		t.Errorf("absolute root = %q", got)
	}
}

func TestEnsureGitignoreHasDir(t *testing.T) {
	tests := []struct {
		name     string
		existing string
		want     string
	}{
		{"no file", "", ".otto/\n"},
		{"appends with blank separator", "node_modules", "node_modules\n\n.otto/\n"},
		{"already separated", "bin/\n\n", "bin/\n\n.otto/\n"},
		{"equivalent pattern", "/.otto\n", "/.otto\n"},
		{"glob pattern", "  .otto/**  \n", "  .otto/**  \n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := t.TempDir()
			gi := filepath.Join(repo, ".gitignore")
			if tt.existing != "" {
				if err := os.WriteFile(gi, []byte(tt.existing), 0o644); err != nil {
					t.Fatal(err)
				}
			}
			if err := ensureGitignoreHasDir(repo, filepath.Join(repo, ".otto")); err != nil {
				t.Fatalf("ensureGitignoreHasDir() error = %v", err)
			}
			got, _ := os.ReadFile(gi)
			if string(got) != tt.want {
				t.Errorf(".gitignore = %q, want %q", got, tt.want)
			}
		})
	}

	t.Run("outside repo is ignored", func(t *testing.T) {
		repo := t.TempDir()
		if err := ensureGitignoreHasDir(repo, t.TempDir()); err != nil {
			t.Fatal(err)
		}
		if _, err := os.Stat(filepath.Join(repo, ".gitignore")); !os.IsNotExist(err) {
			t.Error(".gitignore should not be created")
		}
	})
}

func TestEnsureRepoSetup(t *testing.T) {
	repo := t.TempDir()
	paths, wtDir, err := EnsureRepoSetup(repo, "", "")
	if err != nil {
		t.Fatalf("EnsureRepoSetup() error = %v", err)
	}
	for _, dir := range []string{paths.Tickets, paths.Runs, paths.Logs, paths.States, paths.Locks, paths.Sessions, wtDir} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Errorf("missing dir %s", dir)
		}
	}
	got, _ := os.ReadFile(filepath.Join(repo, ".gitignore"))
	if string(got) != ".otto/\n\n.worktrees/\n" {
		t.Errorf(".gitignore = %q", got)
	}
}

func TestToWorktreePath(t *testing.T) {
	got, ok := ToWorktreePath("/repo", "/repo/.worktrees/x", "/repo/.otto/runs/r/plan.md")
	if !ok || got != "/repo/.worktrees/x/.otto/runs/r/plan.md" {
		t.Errorf("ToWorktreePath() = %q, %v", got, ok)
	}
	if _, ok := ToWorktreePath("/repo", "/wt", "/elsewhere/plan.md"); ok {
		t.Error("expected false for path outside repo")
	}
	if _, ok := ToWorktreePath("/repo", "/wt", "/repo"); ok {
		t.Error("expected false for the repo root itself")
	}
}

func TestTaskArtifactPaths(t *testing.T) {
	runDir := "/r"
	task := "/r/task-1-add-cache.md"
	if got := ReportPath(runDir, task); got != "/r/report-task-1-add-cache.md" {
		t.Errorf("ReportPath = %q", got)
	}
	if got := ReviewPath(runDir, task); got != "/r/review-task-1-add-cache.md" {
		t.Errorf("ReviewPath = %q", got)
	}
	if got := OutcomePath(runDir, task); got != "/r/outcome-task-1-add-cache.md" {
		t.Errorf("OutcomePath = %q", got)
	}
	if got := SummaryPath(ReportPath(runDir, task)); got != "/r/summary-report-task-1-add-cache.md" {
		t.Errorf("SummaryPath = %q", got)
	}
	if got := RemediationTaskPath(runDir, "task-1-add-cache", 2); got != "/r/task-1-add-cache-remediation-2.md" {
		t.Errorf("RemediationTaskPath = %q", got)
	}
}

func TestBaseTaskInfo(t *testing.T) {
	tests := []struct {
		in      string
		name    string
		attempt int
	}{
		{"/r/task-1-a.md", "task-1-a", 0},
		{"/r/task-1-a-remediation-2.md", "task-1-a", 2},
		{"/r/task-12-multi-word-remediation-10.md", "task-12-multi-word", 10},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := BaseTaskInfo(tt.in)
			if got.Name != tt.name || got.Attempt != tt.attempt || got.Path != filepath.Join("/r", tt.name+".md") {
				t.Errorf("BaseTaskInfo() = %+v", got)
			}
		})
	}
}

func TestRemediationBudget(t *testing.T) {
	for attempt := 0; attempt < DefaultMaxRemediationAttempts; attempt++ {
		allowed := AllowedDecisions(AttemptsRemaining(attempt, DefaultMaxRemediationAttempts))
		if !slices.Contains(allowed, DecisionRemediation) {
			t.Errorf("attempt %d: remediation should be allowed, got %v", attempt, allowed)
		}
	}
	allowed := AllowedDecisions(AttemptsRemaining(3, DefaultMaxRemediationAttempts))
	if slices.Contains(allowed, DecisionRemediation) || !slices.Contains(allowed, DecisionFailed) {
		t.Errorf("after 3 attempts allowed = %v", allowed)
	}
	if got := AttemptsRemaining(1, -1); got != 2 {
		t.Errorf("AttemptsRemaining(1, -1) = %d", got)
	}
}

func TestClearTaskArtifacts(t *testing.T) {
	dir := t.TempDir()
	task := filepath.Join(dir, "task-1-a.md")
	files := []string{
		ReportPath(dir, task),
		ReviewPath(dir, task),
		SummaryPath(ReportPath(dir, task)),
		SummaryPath(ReviewPath(dir, task)),
	}
	for _, f := range append(files, task) {
		if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := ClearTaskArtifacts(dir, task); err != nil {
		t.Fatalf("ClearTaskArtifacts() error = %v", err)
	}
	for _, f := range files {
		if HasContent(f) {
			t.Errorf("%s should be removed", f)
		}
	}
	if !HasContent(task) {
		t.Error("task file must be kept")
	}
}
