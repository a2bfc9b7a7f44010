// Package runlock provides the per-run lock that guarantees at most one
// live otto process drives a run.
//
// A lock is a JSON file at <artifactRoot>/locks/run-<id>.json recording the
// holder's pid. Liveness is re-derived on every read: a lock whose pid is no
// longer alive is stale and may be replaced. There is no heartbeat, so a
// wedged but alive holder blocks acquisition until an operator intervenes.
package runlock

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Iron-Ham/otto/internal/errors"
	"github.com/Iron-Ham/otto/internal/logging"
	"github.com/Iron-Ham/otto/internal/util"
)

// File is the on-disk lock document.
type File struct {
	PID           int    `json:"pid"`
	StartedAt     string `json:"startedAt"`
	RunID         string `json:"runId"`
	StateFilePath string `json:"stateFilePath"`
}

// IsAliveFunc reports whether a pid refers to a running process.
type IsAliveFunc func(pid int) bool

// Lock is an acquired run lock.
type Lock struct {
	File
	path   string
	logger *logging.Logger
}

// Options customize Acquire. Zero values use the current process and the
// OS liveness check.
type Options struct {
	PID     int
	IsAlive IsAliveFunc
	Logger  *logging.Logger
	Now     func() time.Time
}

// Read returns the lock at path, or nil when no lock file exists.
func Read(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read run lock: %w", err)
	}

	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse run lock: %w", err)
	}
	if err := f.validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

func (f *File) validate() error {
	switch {
	case f.PID <= 0:
		return errors.NewValidationError("Invalid run lock: expected pid to be a number").WithField("pid")
	case strings.TrimSpace(f.StartedAt) == "":
		return errors.NewValidationError("Invalid run lock: expected startedAt to be a string").WithField("startedAt")
	case strings.TrimSpace(f.RunID) == "":
		return errors.NewValidationError("Invalid run lock: expected runId to be a string").WithField("runId")
	case strings.TrimSpace(f.StateFilePath) == "":
		return errors.NewValidationError("Invalid run lock: expected stateFilePath to be a string").WithField("stateFilePath")
	}
	return nil
}

// IsStale reports whether the lock holder is no longer alive.
func IsStale(f *File, isAlive IsAliveFunc) bool {
	if isAlive == nil {
		isAlive = IsPIDAlive
	}
	return !isAlive(f.PID)
}

// maxAcquireAttempts bounds how often Acquire retries after clearing a
// stale or unreadable lock that another process may be clearing too.
const maxAcquireAttempts = 50

const (
	evictGuardTTL = 10 * time.Second
	evictBackoff  = 5 * time.Millisecond
)

// Acquire takes the lock at path for runID. It fails with a *errors.LockError
// when a live process holds the lock, and replaces stale or unreadable locks.
//
// The lock file is published with a hard link from a fully written temp
// file, so creation is exclusive and readers never see a partial document.
func Acquire(path, runID, stateFilePath string, opts Options) (*Lock, error) {
	if opts.PID == 0 {
		opts.PID = os.Getpid()
	}
	if opts.IsAlive == nil {
		opts.IsAlive = IsPIDAlive
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	logger := opts.Logger.WithRun(runID)

	lock := &Lock{
		File: File{
			PID:           opts.PID,
			StartedAt:     opts.Now().UTC().Format(time.RFC3339Nano),
			RunID:         runID,
			StateFilePath: stateFilePath,
		},
		path:   path,
		logger: logger,
	}
	data, err := json.MarshalIndent(lock.File, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode run lock: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create locks directory: %w", err)
	}

	for range maxAcquireAttempts {
		err := createExclusive(path, append(data, '\n'))
		if err == nil {
			logger.Info("run lock acquired", "pid", lock.PID)
			return lock, nil
		}
		if !os.IsExist(err) {
			return nil, fmt.Errorf("failed to write run lock: %w", err)
		}

		existing, readErr := Read(path)
		switch {
		case readErr != nil:
			logger.Warn("replacing unreadable run lock", "path", path, "error", readErr.Error())
		case existing == nil:
			// Released between our create and read.
			continue
		case existing.PID == opts.PID:
			if err := util.WriteJSONAtomic(path, lock.File); err != nil {
				return nil, fmt.Errorf("failed to write run lock: %w", err)
			}
			logger.Info("run lock re-acquired", "pid", lock.PID)
			return lock, nil
		case opts.IsAlive(existing.PID):
			logger.Error("failed to acquire run lock", "holder_pid", existing.PID)
			return nil, errors.NewLockError(runID, existing.PID)
		default:
			logger.Warn("replacing stale run lock", "old_pid", existing.PID)
		}

		if _, err := removeStale(path, func(f *File) bool {
			return f == nil || (f.PID != opts.PID && !opts.IsAlive(f.PID))
		}); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("failed to acquire run lock %s: too much contention", path)
}

// createExclusive publishes data at path, failing with an os.IsExist error
// when path already exists.
func createExclusive(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".lock-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Link(tmpPath, path)
}

// removeStale deletes the lock at path when stale reports true for its
// current content (nil when unreadable). Removal happens under a guard file
// so a lock created by another process after the check is never deleted.
// It returns false without error when another process holds the guard.
func removeStale(path string, stale func(*File) bool) (bool, error) {
	guard := path + ".evict"
	g, err := os.OpenFile(guard, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if !os.IsExist(err) {
			return false, fmt.Errorf("failed to guard run lock: %w", err)
		}
		// A guard left by a crashed process expires.
		if info, statErr := os.Stat(guard); statErr == nil && time.Since(info.ModTime()) > evictGuardTTL {
			_ = os.Remove(guard)
		}
		time.Sleep(evictBackoff)
		return false, nil
	}
	g.Close()
	defer os.Remove(guard)

	f, err := Read(path)
	if err == nil && f == nil {
		return false, nil
	}
	if err != nil {
		f = nil
	}
	if !stale(f) {
		return false, nil
	}
	if err := Remove(path); err != nil {
		return false, err
	}
	return true, nil
}

// Path returns the lock file path.
func (l *Lock) Path() string { return l.path }

// Release removes the lock file. It is safe to call more than once.
func (l *Lock) Release() error {
	if l == nil || l.path == "" {
		return nil
	}
	if err := Remove(l.path); err != nil {
		return err
	}
	l.logger.Info("run lock released")
	return nil
}

// Remove deletes a lock file unconditionally.
func Remove(path string) error {
	if err := util.RemoveIfExists(path); err != nil {
		return fmt.Errorf("failed to remove run lock: %w", err)
	}
	return nil
}

// ClearIfStale removes the lock at path when its holder is dead. It returns
// the lock that was found, if any, and whether it was removed.
func ClearIfStale(path string, isAlive IsAliveFunc, logger *logging.Logger) (*File, bool, error) {
	f, err := Read(path)
	if err != nil || f == nil {
		return nil, false, err
	}
	if !IsStale(f, isAlive) {
		return f, false, nil
	}
	removed, err := removeStale(path, func(cur *File) bool {
		return cur != nil && cur.PID == f.PID && cur.StartedAt == f.StartedAt
	})
	if err != nil || !removed {
		return f, false, err
	}
	logger.Warn("stale run lock cleaned", "run_id", f.RunID, "old_pid", f.PID)
	return f, true, nil
}
