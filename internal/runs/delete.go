package runs

import (
	"context"
	"os"

	"github.com/Iron-Ham/otto/internal/logging"
	"github.com/Iron-Ham/otto/internal/runlock"
	"github.com/Iron-Ham/otto/internal/state"
	"github.com/Iron-Ham/otto/internal/util"
	"github.com/Iron-Ham/otto/internal/worktree"
)

// ProcessKiller stops the process holding a run lock.
type ProcessKiller interface {
	Kill(ctx context.Context, pid int) error
}

// Deleter removes a run: its holder process, worktree, branch, artifacts,
// state and lock. The ticket is preserved.
type Deleter struct {
	Worktrees worktree.Adapter
	Killer    ProcessKiller
	IsAlive   runlock.IsAliveFunc
	Logger    *logging.Logger
	// SelfPID is never signalled; zero means the current process.
	SelfPID int
}

// Delete removes s. A live foreign lock holder is terminated first.
func (d *Deleter) Delete(ctx context.Context, s *state.State) error {
	logger := d.Logger
	if logger == nil {
		logger = logging.NopLogger()
	}
	logger = logger.WithRun(s.RunID)
	isAlive := d.IsAlive
	if isAlive == nil {
		isAlive = runlock.IsPIDAlive
	}
	self := d.SelfPID
	if self == 0 {
		self = os.Getpid()
	}

	lock, err := runlock.Read(s.LockFilePath)
	if err != nil {
		logger.Warn("ignoring unreadable run lock", "error", err)
	}
	if lock != nil {
		if lock.PID != self && !runlock.IsStale(lock, isAlive) {
			if err := d.Killer.Kill(ctx, lock.PID); err != nil {
				return err
			}
		}
		if err := runlock.Remove(s.LockFilePath); err != nil {
			return err
		}
	}

	if _, err := os.Stat(s.Worktree.WorktreePath); err == nil {
		if err := d.Worktrees.Remove(ctx, worktree.RemoveOptions{
			MainRepoPath: s.MainRepoPath,
			WorktreePath: s.Worktree.WorktreePath,
			BranchName:   s.Worktree.BranchName,
			DeleteBranch: true,
		}); err != nil {
			return err
		}
	} else {
		logger.Warn("worktree already gone", "worktree", s.Worktree.WorktreePath)
	}

	if err := os.RemoveAll(s.RunDir); err != nil {
		return err
	}
	if err := util.RemoveIfExists(s.StateFilePath); err != nil {
		return err
	}
	if err := runlock.Remove(s.LockFilePath); err != nil {
		return err
	}
	logger.Info("run deleted", "ticket", s.Ticket.FilePath)
	return nil
}
