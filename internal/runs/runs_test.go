package runs

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Iron-Ham/otto/internal/errors"
	"github.com/Iron-Ham/otto/internal/runlock"
	"github.com/Iron-Ham/otto/internal/state"
	"github.com/Iron-Ham/otto/internal/util"
	"github.com/Iron-Ham/otto/internal/worktree"
)

const livePID = 4242

func aliveOnly(pid int) bool { return pid == livePID }

func saveRun(t *testing.T, root, ticketID string, createdAt time.Time) *state.State {
	t.Helper()
	s, err := state.Build(state.BuildOptions{
		MainRepoPath:    filepath.Dir(root),
		ArtifactRootDir: root,
		TicketID:        ticketID,
		TicketFilePath:  filepath.Join(root, "tickets", ticketID+".md"),
		WorktreePath:    filepath.Join(filepath.Dir(root), ".worktrees", "otto-"+ticketID),
		BranchName:      "otto-" + ticketID,
		BaseBranch:      "main",
		CreatedAt:       createdAt,
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.StateFilePath), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := state.NewStore(s.StateFilePath, s).Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}
	return s
}

func writeLock(t *testing.T, s *state.State, pid int) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(s.LockFilePath), 0o755); err != nil {
		t.Fatal(err)
	}
	err := util.WriteJSONAtomic(s.LockFilePath, runlock.File{
		PID:           pid,
		StartedAt:     "2026-02-01T10:00:00Z",
		RunID:         s.RunID,
		StateFilePath: s.StateFilePath,
	})
	if err != nil {
		t.Fatal(err)
	}
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func TestList(t *testing.T) {
	root := filepath.Join(t.TempDir(), ".otto")
	base := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	inactive := saveRun(t, root, "2026-02-01-first-run", base)
	active := saveRun(t, root, "2026-02-02-second-run", base.Add(24*time.Hour))
	stale := saveRun(t, root, "2026-02-03-third-run", base.Add(48*time.Hour))
	writeLock(t, active, livePID)
	writeLock(t, stale, 99)

	if err := os.WriteFile(filepath.Join(root, "states", "run-broken.json"), []byte("{"), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Run("keep stale locks", func(t *testing.T) {
		runs, err := List(root, ListOptions{IsAlive: aliveOnly, KeepStaleLocks: true})
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if len(runs) != 3 {
			t.Fatalf("len(runs) = %d, want 3", len(runs))
		}
		want := []struct {
			id     string
			status Status
		}{
			{stale.RunID, StatusStale},
			{active.RunID, StatusActive},
			{inactive.RunID, StatusInactive},
		}
		for i, w := range want {
			if runs[i].State.RunID != w.id || runs[i].Status != w.status {
				t.Errorf("runs[%d] = %s/%s, want %s/%s", i, runs[i].State.RunID, runs[i].Status, w.id, w.status)
			}
		}
		if !exists(stale.LockFilePath) {
			t.Error("stale lock removed despite KeepStaleLocks")
		}
		if got := Active(runs); len(got) != 1 || got[0].State.RunID != active.RunID {
			t.Errorf("Active() = %v", got)
		}
	})

	t.Run("clears stale locks", func(t *testing.T) {
		runs, err := List(root, ListOptions{IsAlive: aliveOnly})
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if runs[0].Status != StatusStale || runs[0].Lock == nil || runs[0].Lock.PID != 99 {
			t.Errorf("runs[0] = %+v", runs[0])
		}
		if exists(stale.LockFilePath) {
			t.Error("stale lock still on disk")
		}
		if !exists(active.LockFilePath) {
			t.Error("active lock must be kept")
		}
	})

	t.Run("missing states dir", func(t *testing.T) {
		runs, err := List(t.TempDir(), ListOptions{})
		if err != nil || len(runs) != 0 {
			t.Errorf("List() = %v, %v", runs, err)
		}
	})
}

func TestResolve(t *testing.T) {
	root := filepath.Join(t.TempDir(), ".otto")
	s := saveRun(t, root, "2026-02-01-first-run", time.Now())

	byID, err := Resolve(root, s.RunID)
	if err != nil {
		t.Fatalf("Resolve(id) error = %v", err)
	}
	if byID.StateFilePath != s.StateFilePath {
		t.Errorf("StateFilePath = %q", byID.StateFilePath)
	}

	byPath, err := Resolve(root, s.StateFilePath)
	if err != nil || byPath.RunID != s.RunID {
		t.Fatalf("Resolve(path) = %v, %v", byPath, err)
	}

	if _, err := Resolve(root, "2026-02-09-missing-run"); !errors.Is(err, errors.ErrRunNotFound) {
		t.Errorf("Resolve(missing) error = %v", err)
	}
	if _, err := Resolve(root, ".."); !errors.Is(err, errors.ErrInvalidRunID) {
		t.Errorf("Resolve(..) error = %v", err)
	}
}

func TestStateFilePath(t *testing.T) {
	root := "/repo/.otto"
	got, err := StateFilePath(root, "2026-02-01-x")
	if err != nil || got != filepath.Join(root, "states", "run-2026-02-01-x.json") {
		t.Errorf("StateFilePath(id) = %q, %v", got, err)
	}
	got, err = StateFilePath(root, "run.json")
	if err != nil || !filepath.IsAbs(got) {
		t.Errorf("StateFilePath(file) = %q, %v", got, err)
	}
	if _, err := StateFilePath(root, "  "); err == nil {
		t.Error("expected error for empty argument")
	}
}

type fakeWorktrees struct {
	removed []worktree.RemoveOptions
}

func (f *fakeWorktrees) MainRepoPath(context.Context, string) (string, error) { return "", nil }

func (f *fakeWorktrees) Create(context.Context, worktree.CreateOptions) (string, error) {
	return "", nil
}

func (f *fakeWorktrees) Remove(_ context.Context, opts worktree.RemoveOptions) error {
	f.removed = append(f.removed, opts)
	return os.RemoveAll(opts.WorktreePath)
}

type fakeKiller struct {
	killed []int
	err    error
}

func (k *fakeKiller) Kill(_ context.Context, pid int) error {
	k.killed = append(k.killed, pid)
	return k.err
}

func TestDelete(t *testing.T) {
	setup := func(t *testing.T) (*state.State, *fakeWorktrees, *fakeKiller, *Deleter) {
		t.Helper()
		root := filepath.Join(t.TempDir(), ".otto")
		s := saveRun(t, root, "2026-02-01-first-run", time.Now())
		for _, dir := range []string{s.RunDir, s.Worktree.WorktreePath} {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				t.Fatal(err)
			}
		}
		wt := &fakeWorktrees{}
		killer := &fakeKiller{}
		return s, wt, killer, &Deleter{Worktrees: wt, Killer: killer, IsAlive: aliveOnly, SelfPID: 1}
	}

	t.Run("kills live holder and removes everything", func(t *testing.T) {
		s, wt, killer, d := setup(t)
		writeLock(t, s, livePID)

		if err := d.Delete(context.Background(), s); err != nil {
			t.Fatalf("Delete() error = %v", err)
		}
		if len(killer.killed) != 1 || killer.killed[0] != livePID {
			t.Errorf("killed = %v", killer.killed)
		}
		if len(wt.removed) != 1 || !wt.removed[0].DeleteBranch || wt.removed[0].BranchName != s.Worktree.BranchName {
			t.Errorf("removed = %+v", wt.removed)
		}
		for _, p := range []string{s.RunDir, s.StateFilePath, s.LockFilePath, s.Worktree.WorktreePath} {
			if exists(p) {
				t.Errorf("%s still exists", p)
			}
		}
	})

	t.Run("stale lock is not signalled", func(t *testing.T) {
		s, _, killer, d := setup(t)
		writeLock(t, s, 99)
		if err := d.Delete(context.Background(), s); err != nil {
			t.Fatalf("Delete() error = %v", err)
		}
		if len(killer.killed) != 0 {
			t.Errorf("killed = %v", killer.killed)
		}
	})

	t.Run("kill failure keeps the run", func(t *testing.T) {
		s, wt, killer, d := setup(t)
		writeLock(t, s, livePID)
		killer.err = errors.New("Refusing to kill pid 4242")

		if err := d.Delete(context.Background(), s); err == nil {
			t.Fatal("expected error")
		}
		if len(wt.removed) != 0 || !exists(s.StateFilePath) {
			t.Error("run was modified after a failed kill")
		}
	})

	t.Run("missing worktree", func(t *testing.T) {
		s, wt, _, d := setup(t)
		if err := os.RemoveAll(s.Worktree.WorktreePath); err != nil {
			t.Fatal(err)
		}
		if err := d.Delete(context.Background(), s); err != nil {
			t.Fatalf("Delete() error = %v", err)
		}
		if len(wt.removed) != 0 {
			t.Errorf("removed = %+v", wt.removed)
		}
		if exists(s.StateFilePath) {
			t.Error("state file still exists")
		}
	})
}
