package worktree

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Iron-Ham/otto/internal/errors"
)

const gitTimeout = 2 * time.Minute

// CreateOptions describes a worktree to create.
type CreateOptions struct {
	MainRepoPath string
	BaseBranch   string
	BranchName   string
	// WorktreesDir is resolved against MainRepoPath; empty means ".worktrees".
	WorktreesDir string
}

// RemoveOptions describes a worktree to remove.
type RemoveOptions struct {
	MainRepoPath string
	WorktreePath string
	BranchName   string
	DeleteBranch bool
}

// Adapter provisions and tears down run worktrees.
type Adapter interface {
	MainRepoPath(ctx context.Context, cwd string) (string, error)
	Create(ctx context.Context, opts CreateOptions) (string, error)
	Remove(ctx context.Context, opts RemoveOptions) error
}

// GitAdapter implements Adapter with "git worktree".
type GitAdapter struct {
	git *Git
}

// NewGitAdapter creates a GitAdapter.
func NewGitAdapter(git *Git) *GitAdapter {
	return &GitAdapter{git: git}
}

// MainRepoPath returns the top level of the repository containing cwd.
func (a *GitAdapter) MainRepoPath(ctx context.Context, cwd string) (string, error) {
	res := a.git.Run(ctx, cwd, gitTimeout, "-C", cwd, "rev-parse", "--show-toplevel")
	if !res.OK() {
		return "", gitFailure("not a git repository", cwd, res)
	}
	return strings.TrimSpace(res.Stdout), nil
}

// Create adds a worktree at <worktreesDir>/<branch> on a new branch cut
// from the base branch and returns its path.
func (a *GitAdapter) Create(ctx context.Context, opts CreateOptions) (string, error) {
	dir := opts.WorktreesDir
	if dir == "" {
		dir = ".worktrees"
	}
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(opts.MainRepoPath, dir)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create worktrees dir: %w", err)
	}
	path := filepath.Join(dir, opts.BranchName)

	res := a.git.Run(ctx, opts.MainRepoPath, gitTimeout,
		"-C", opts.MainRepoPath, "worktree", "add", "-b", opts.BranchName, path, opts.BaseBranch)
	if !res.OK() {
		return "", errors.NewGitError("failed to create worktree", nil).
			WithBranch(opts.BranchName).
			WithWorktree(path).
			WithRepository(opts.MainRepoPath).
			WithGitOutput(res.Output())
	}
	a.git.logger.Info("worktree created", "path", path, "branch", opts.BranchName, "base", opts.BaseBranch)
	return path, nil
}

// Remove force-removes the worktree, prunes stale entries and optionally
// deletes the branch.
func (a *GitAdapter) Remove(ctx context.Context, opts RemoveOptions) error {
	repo := opts.MainRepoPath
	res := a.git.Run(ctx, repo, gitTimeout, "-C", repo, "worktree", "remove", "--force", opts.WorktreePath)
	if !res.OK() {
		return errors.NewGitError("failed to remove worktree", nil).
			WithWorktree(opts.WorktreePath).
			WithRepository(repo).
			WithGitOutput(res.Output())
	}
	if res := a.git.Run(ctx, repo, gitTimeout, "-C", repo, "worktree", "prune"); !res.OK() {
		return gitFailure("failed to prune worktrees", repo, res)
	}
	if opts.DeleteBranch {
		if res := a.git.Run(ctx, repo, gitTimeout, "-C", repo, "branch", "-D", opts.BranchName); !res.OK() {
			return errors.NewGitError("failed to delete branch", nil).
				WithBranch(opts.BranchName).
				WithRepository(repo).
				WithGitOutput(res.Output())
		}
	}
	a.git.logger.Info("worktree removed", "path", opts.WorktreePath, "branch_deleted", opts.DeleteBranch)
	return nil
}

// BranchName returns "<prefix>-<date>-<slug>", or "<date>-<slug>" with an
// empty prefix.
func BranchName(prefix, date, slug string) string {
	name := date + "-" + slug
	if prefix == "" {
		return name
	}
	return prefix + "-" + name
}
