//go:build unix

package procreg

import (
	"os/exec"
	"testing"
	"time"
)

func startSleep(t *testing.T) *exec.Cmd {
	t.Helper()
	cmd := exec.Command("sleep", "30")
	if err := cmd.Start(); err != nil {
		t.Skipf("sleep unavailable: %v", err)
	}
	t.Cleanup(func() { _ = cmd.Process.Kill() })
	return cmd
}

func TestRegisterUnregister(t *testing.T) {
	r := New(nil)
	cmd := startSleep(t)

	unregister := r.Register(cmd.Process, Entry{Label: "sleep", Cmd: []string{"sleep", "30"}, Cwd: "/"})
	if r.Size() != 1 {
		t.Fatalf("Size = %d, want 1", r.Size())
	}
	entries := r.Entries()
	if entries[0].PID != cmd.Process.Pid || entries[0].ID == "" || entries[0].Label != "sleep" {
		t.Errorf("entry = %+v", entries[0])
	}

	unregister()
	unregister()
	if r.Size() != 0 {
		t.Errorf("Size after unregister = %d", r.Size())
	}

	if fn := r.Register(nil, Entry{}); fn == nil {
		t.Error("Register(nil) should return a no-op func")
	}
}

func TestKillAll(t *testing.T) {
	r := New(nil)
	r.sweepDelay = 10 * time.Millisecond

	cmd := startSleep(t)
	unregister := r.Register(cmd.Process, Entry{Label: "sleep"})
	defer unregister()

	waited := make(chan error, 1)
	go func() { waited <- cmd.Wait() }()

	select {
	case <-r.KillAll("test"):
	case <-time.After(2 * time.Second):
		t.Fatal("sweep did not complete")
	}

	select {
	case err := <-waited:
		if err == nil {
			t.Error("expected sleep to exit with a signal")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("process survived KillAll")
	}
}

func TestKillAllNilRegistry(t *testing.T) {
	var r *Registry
	select {
	case <-r.KillAll("nil"):
	case <-time.After(time.Second):
		t.Fatal("nil registry should close immediately")
	}
}

func TestInstallSignalHandlersStop(t *testing.T) {
	r := New(nil)
	stop := r.InstallSignalHandlers(func(int) { t.Error("exit should not be called") })
	stop()
	stop()
}
