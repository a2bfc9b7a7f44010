// Package worktree provides the git worktree adapter and the git
// operations the workflow performs inside a run's worktree.
//
// Every command goes through an execx.Runner so it is registered with the
// process registry, honours timeouts and can be scripted in tests.
package worktree

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Iron-Ham/otto/internal/errors"
	"github.com/Iron-Ham/otto/internal/execx"
	"github.com/Iron-Ham/otto/internal/logging"
)

// Git runs git commands through an execx.Runner.
type Git struct {
	exec   execx.Runner
	logger *logging.Logger
}

// NewGit creates a Git.
func NewGit(exec execx.Runner, logger *logging.Logger) *Git {
	return &Git{exec: exec, logger: logger}
}

// Run executes "git <args...>" in dir.
func (g *Git) Run(ctx context.Context, dir string, timeout time.Duration, args ...string) execx.Result {
	label := "git"
	if len(args) > 0 {
		label = "git-" + args[0]
	}
	return g.exec.Run(ctx, append([]string{"git"}, args...), execx.Options{
		Cwd:     dir,
		Timeout: timeout,
		Label:   label,
	})
}

func gitFailure(msg, dir string, res execx.Result) error {
	return errors.NewGitError(msg, nil).
		WithRepository(dir).
		WithGitOutput(res.Output())
}

// HasUncommittedChanges reports whether path has staged, unstaged or
// untracked changes.
func (g *Git) HasUncommittedChanges(ctx context.Context, path string) (bool, error) {
	res := g.Run(ctx, path, 0, "status", "--porcelain=v1")
	if !res.OK() {
		return false, gitFailure("failed to check git status", path, res)
	}
	return strings.TrimSpace(res.Stdout) != "", nil
}

// CommitAll stages everything and commits with message. It reports false
// without committing when nothing is staged.
func (g *Git) CommitAll(ctx context.Context, path, message string) (bool, error) {
	if res := g.Run(ctx, path, 0, "add", "-A"); !res.OK() {
		return false, gitFailure("git add failed", path, res)
	}

	// diff --cached --quiet: 0 means nothing staged, 1 means changes.
	diff := g.Run(ctx, path, 0, "diff", "--cached", "--quiet")
	switch {
	case diff.TimedOut:
		return false, errors.NewGitError("git diff --cached timed out", nil).WithRepository(path)
	case diff.ExitCode == 0:
		return false, nil
	case diff.ExitCode != 1:
		return false, gitFailure("git diff --cached failed", path, diff)
	}

	if res := g.Run(ctx, path, 0, "commit", "-m", message); !res.OK() {
		return false, gitFailure("git commit failed", path, res)
	}
	g.logger.Info("committed changes", "worktree", path, "message", message)
	return true, nil
}

// StashIfDirty stashes all changes, untracked files included, under
// marker. It reports whether a stash was created; failures are logged and
// reported as false.
func (g *Git) StashIfDirty(ctx context.Context, path, marker string) bool {
	dirty, err := g.HasUncommittedChanges(ctx, path)
	if err != nil || !dirty {
		return false
	}
	res := g.Run(ctx, path, 0, "stash", "push", "-u", "-m", marker)
	if !res.OK() {
		g.logger.Warn("git stash failed", "worktree", path, "output", res.Output())
		return false
	}
	return true
}

// StashRef returns the stash@{n} ref whose message contains marker.
func (g *Git) StashRef(ctx context.Context, path, marker string) (string, bool) {
	res := g.Run(ctx, path, 0, "stash", "list", "--format=%gd:%s")
	if !res.OK() {
		return "", false
	}
	for _, line := range strings.Split(res.Stdout, "\n") {
		if !strings.Contains(line, marker) {
			continue
		}
		if ref, _, ok := strings.Cut(line, ":"); ok && ref != "" {
			return ref, true
		}
	}
	return "", false
}

// DiscardUncommitted stashes any dirt under marker as a backup and then
// resets the worktree to HEAD, removing untracked files.
func (g *Git) DiscardUncommitted(ctx context.Context, path, marker string) error {
	g.StashIfDirty(ctx, path, marker)

	if res := g.Run(ctx, path, 0, "reset", "--hard"); !res.OK() {
		return gitFailure("git reset --hard failed", path, res)
	}
	if res := g.Run(ctx, path, 0, "clean", "-fd"); !res.OK() {
		return gitFailure("git clean -fd failed", path, res)
	}
	g.logger.Warn("discarded uncommitted changes", "worktree", path, "stash", marker)
	return nil
}

// MergeInProgress reports whether MERGE_HEAD exists for path.
func (g *Git) MergeInProgress(ctx context.Context, path string) bool {
	res := g.Run(ctx, path, 0, "rev-parse", "--git-path", "MERGE_HEAD")
	if !res.OK() {
		return false
	}
	p := strings.TrimSpace(res.Stdout)
	if p == "" {
		return false
	}
	if !filepath.IsAbs(p) {
		p = filepath.Join(path, p)
	}
	_, err := os.Stat(p)
	return err == nil
}

// ConflictingFiles lists paths with unresolved conflicts.
func (g *Git) ConflictingFiles(ctx context.Context, path string) ([]string, error) {
	res := g.Run(ctx, path, 0, "diff", "--name-only", "--diff-filter=U")
	if !res.OK() {
		return nil, gitFailure("failed to list conflicting files", path, res)
	}
	var files []string
	for _, line := range strings.Split(res.Stdout, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			files = append(files, line)
		}
	}
	return files, nil
}

// RefExists reports whether ref resolves to a commit.
func (g *Git) RefExists(ctx context.Context, path, ref string) bool {
	return g.Run(ctx, path, 0, "rev-parse", "--verify", "--quiet", ref).OK()
}
