package workflow

import (
	"context"
	"os"

	"github.com/Iron-Ham/otto/internal/worktree"
)

// CleanupOptions controls the cleanup phase.
type CleanupOptions struct {
	// Force skips the confirmation prompt.
	Force           bool
	DeleteBranch    bool
	DeleteArtifacts bool
}

// cleanup removes the run's worktree once the operator agrees. Declining
// is not an error.
func (rt *Runtime) cleanup(ctx context.Context) error {
	s := rt.State()
	if !rt.cleanupOpts.Force {
		ok, err := rt.confirm(ctx, "Remove worktree at "+s.Worktree.WorktreePath+"?", false)
		if err != nil {
			return err
		}
		if !ok {
			rt.logger.Info("Cleanup cancelled.")
			return nil
		}
	}

	if err := rt.worktrees.Remove(ctx, worktree.RemoveOptions{
		MainRepoPath: s.MainRepoPath,
		WorktreePath: s.Worktree.WorktreePath,
		BranchName:   s.Worktree.BranchName,
		DeleteBranch: rt.cleanupOpts.DeleteBranch,
	}); err != nil {
		return err
	}
	rt.logger.Info("worktree removed", "worktree", s.Worktree.WorktreePath, "branch_deleted", rt.cleanupOpts.DeleteBranch)

	if rt.cleanupOpts.DeleteArtifacts {
		if err := os.RemoveAll(rt.RunDir()); err != nil {
			return err
		}
		rt.logger.Info("run artifacts removed", "run_dir", rt.RunDir())
	}
	return nil
}
