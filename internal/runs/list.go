// Package runs discovers persisted runs under an artifact root and manages
// their lifecycle outside of a workflow: listing, resolving and deleting.
package runs

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Iron-Ham/otto/internal/logging"
	"github.com/Iron-Ham/otto/internal/runlock"
	"github.com/Iron-Ham/otto/internal/state"
)

// Status classifies a run by its lock.
type Status string

const (
	// StatusInactive means no lock file exists.
	StatusInactive Status = "inactive"
	// StatusActive means a live process holds the lock.
	StatusActive Status = "active"
	// StatusStale means the lock holder is dead.
	StatusStale Status = "stale"
)

// Run is a discovered run.
type Run struct {
	State         *state.State
	StateFilePath string
	Status        Status
	// Lock is the lock found on disk; nil for inactive runs.
	Lock *runlock.File
}

// ListOptions customize List.
type ListOptions struct {
	// KeepStaleLocks leaves stale lock files in place.
	KeepStaleLocks bool
	IsAlive        runlock.IsAliveFunc
	Logger         *logging.Logger
}

// List loads every state file under root/states and classifies each run.
// State files that fail to load are skipped. Stale locks are removed
// unless opts.KeepStaleLocks is set. Runs are sorted newest first.
func List(root string, opts ListOptions) ([]Run, error) {
	if opts.IsAlive == nil {
		opts.IsAlive = runlock.IsPIDAlive
	}
	if opts.Logger == nil {
		opts.Logger = logging.NopLogger()
	}

	dir := filepath.Join(root, state.StatesDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []Run{}, nil
		}
		return nil, err
	}

	runs := make([]Run, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		s, err := state.Load(path)
		if err != nil {
			opts.Logger.Debug("skipping unreadable state", "path", path, "error", err)
			continue
		}
		runs = append(runs, classify(s, path, opts))
	}

	sort.SliceStable(runs, func(i, j int) bool {
		return runs[i].State.CreatedAt > runs[j].State.CreatedAt
	})
	return runs, nil
}

func classify(s *state.State, path string, opts ListOptions) Run {
	run := Run{State: s, StateFilePath: path, Status: StatusInactive}
	lock, err := runlock.Read(s.LockFilePath)
	if err != nil || lock == nil {
		return run
	}
	run.Lock = lock
	if !runlock.IsStale(lock, opts.IsAlive) {
		run.Status = StatusActive
		return run
	}
	run.Status = StatusStale
	if !opts.KeepStaleLocks {
		if _, _, err := runlock.ClearIfStale(s.LockFilePath, opts.IsAlive, opts.Logger); err != nil {
			opts.Logger.Warn("failed to remove stale lock", "run_id", s.RunID, "error", err)
		}
	}
	return run
}

// Active filters runs down to those held by a live process.
func Active(runs []Run) []Run {
	var out []Run
	for _, r := range runs {
		if r.Status == StatusActive {
			out = append(out, r)
		}
	}
	return out
}
