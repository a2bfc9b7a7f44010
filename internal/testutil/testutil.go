// Package testutil provides git and filesystem helpers for otto tests.
package testutil

import (
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

var gitIdentity = []string{
	"GIT_AUTHOR_NAME=Otto Test",
	"GIT_AUTHOR_EMAIL=test@otto.dev",
	"GIT_COMMITTER_NAME=Otto Test",
	"GIT_COMMITTER_EMAIL=test@otto.dev",
}

// SetupTestRepo creates a git repository in a temp dir with one commit on
// main and a committer identity configured locally.
func SetupTestRepo(t *testing.T) string {
	t.Helper()
	SkipIfNoGit(t)

	dir := t.TempDir()
	RunGit(t, dir, "init")
	RunGit(t, dir, "config", "user.email", "test@otto.dev")
	RunGit(t, dir, "config", "user.name", "Otto Test")
	RunGit(t, dir, "config", "commit.gpgsign", "false")

	WriteFile(t, dir, "README.md", "# Test Repository\n")
	RunGit(t, dir, "add", ".")
	RunGit(t, dir, "commit", "-m", "Initial commit")
	// Some systems still default to master.
	RunGit(t, dir, "branch", "-M", "main")
	return dir
}

// SetupTestRepoWithContent creates a test repository and commits files,
// keyed by relative path.
func SetupTestRepoWithContent(t *testing.T, files map[string]string) string {
	t.Helper()

	dir := SetupTestRepo(t)
	for path, content := range files {
		WriteFile(t, dir, path, content)
	}
	RunGit(t, dir, "add", ".")
	RunGit(t, dir, "commit", "-m", "Add test files")
	return dir
}

// WriteFile writes content to dir/rel, creating parent directories.
func WriteFile(t *testing.T, dir, rel, content string) string {
	t.Helper()

	full := filepath.Join(dir, rel)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatalf("failed to create directory for %s: %v", rel, err)
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write file %s: %v", rel, err)
	}
	return full
}

// CommitFile writes and commits one file.
func CommitFile(t *testing.T, repoDir, rel, content, message string) {
	t.Helper()

	WriteFile(t, repoDir, rel, content)
	RunGit(t, repoDir, "add", rel)
	RunGit(t, repoDir, "commit", "-m", message)
}

// RunGit runs git in dir, failing the test on error, and returns trimmed
// stdout.
func RunGit(t *testing.T, dir string, args ...string) string {
	t.Helper()

	out, err := gitOutput(dir, args...)
	if err != nil {
		t.Fatalf("git %s: %v\n%s", strings.Join(args, " "), err, out)
	}
	return strings.TrimSpace(out)
}

// TryGit runs git in dir and returns combined output and error without
// failing the test.
func TryGit(dir string, args ...string) (string, error) {
	return gitOutput(dir, args...)
}

func gitOutput(dir string, args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), gitIdentity...)
	out, err := cmd.CombinedOutput()
	return string(out), err
}

// LastCommitSubject returns the subject of HEAD.
func LastCommitSubject(t *testing.T, repoDir string) string {
	t.Helper()
	return RunGit(t, repoDir, "log", "-1", "--format=%s")
}

// GetCommitCount returns the number of commits reachable from HEAD.
func GetCommitCount(t *testing.T, repoDir string) int {
	t.Helper()

	n, err := strconv.Atoi(RunGit(t, repoDir, "rev-list", "--count", "HEAD"))
	if err != nil {
		t.Fatalf("failed to parse commit count: %v", err)
	}
	return n
}

// HasUncommittedChanges reports whether the working tree is dirty.
func HasUncommittedChanges(t *testing.T, repoDir string) bool {
	t.Helper()
	return RunGit(t, repoDir, "status", "--porcelain") != ""
}

// ListWorktrees returns the paths of every worktree of the repository.
func ListWorktrees(t *testing.T, repoDir string) []string {
	t.Helper()

	var out []string
	for _, line := range strings.Split(RunGit(t, repoDir, "worktree", "list", "--porcelain"), "\n") {
		if path, ok := strings.CutPrefix(line, "worktree "); ok {
			out = append(out, path)
		}
	}
	return out
}

// SkipIfNoGit skips the test if git is not installed.
func SkipIfNoGit(t *testing.T) {
	t.Helper()

	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not found in PATH, skipping test")
	}
}
