//go:build unix

package execx

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/Iron-Ham/otto/internal/procreg"
)

func TestExecRun(t *testing.T) {
	reg := procreg.New(nil)
	e := New(reg, nil)
	ctx := context.Background()

	t.Run("captures output and exit code", func(t *testing.T) {
		res := e.Run(ctx, []string{"sh", "-c", "echo out; echo err >&2; exit 3"}, Options{})
		if res.ExitCode != 3 {
			t.Errorf("ExitCode = %d, want 3", res.ExitCode)
		}
		if res.Stdout != "out\n" || res.Stderr != "err\n" {
			t.Errorf("stdout=%q stderr=%q", res.Stdout, res.Stderr)
		}
		if res.OK() {
			t.Error("OK() should be false")
		}
		if res.Output() != "err" {
			t.Errorf("Output() = %q", res.Output())
		}
	})

	t.Run("cwd env and stdin", func(t *testing.T) {
		dir := t.TempDir()
		res := e.Run(ctx, []string{"sh", "-c", "pwd; echo $OTTO_TEST_VAR; cat"}, Options{
			Cwd:   dir,
			Env:   map[string]string{"OTTO_TEST_VAR": "hello"},
			Stdin: "piped",
		})
		if !res.OK() {
			t.Fatalf("unexpected failure: %+v", res)
		}
		lines := strings.Split(strings.TrimSpace(res.Stdout), "\n")
		if len(lines) != 3 || !strings.HasSuffix(lines[0], strings.TrimPrefix(dir, "/private")) || lines[1] != "hello" || lines[2] != "piped" {
			t.Errorf("stdout = %q", res.Stdout)
		}
	})

	t.Run("timeout kills process", func(t *testing.T) {
		start := time.Now()
		res := e.Run(ctx, []string{"sh", "-c", "sleep 30"}, Options{Timeout: 100 * time.Millisecond})
		if !res.TimedOut {
			t.Error("expected TimedOut")
		}
		if res.ExitCode == 0 {
			t.Error("expected non-zero exit code")
		}
		if time.Since(start) > 10*time.Second {
			t.Error("timeout did not kill the process promptly")
		}
	})

	t.Run("timeout sends SIGTERM first", func(t *testing.T) {
		res := e.Run(ctx, []string{"sh", "-c", `trap 'echo terminated; exit 7' TERM; sleep 30 & wait`}, Options{Timeout: 100 * time.Millisecond})
		if !res.TimedOut {
			t.Error("expected TimedOut")
		}
		if res.ExitCode != 7 || !strings.Contains(res.Stdout, "terminated") {
			t.Errorf("process did not handle SIGTERM: exit=%d stdout=%q", res.ExitCode, res.Stdout)
		}
	})

	t.Run("timeout escalates to SIGKILL", func(t *testing.T) {
		quick := New(reg, nil)
		quick.grace = 200 * time.Millisecond
		start := time.Now()
		res := quick.Run(ctx, []string{"sh", "-c", `trap '' TERM; sleep 30`}, Options{Timeout: 100 * time.Millisecond})
		elapsed := time.Since(start)
		if !res.TimedOut || res.ExitCode == 0 {
			t.Errorf("result = %+v", res)
		}
		if elapsed < 300*time.Millisecond {
			t.Errorf("process ignoring SIGTERM exited after %v, before the grace period", elapsed)
		}
		if elapsed > 4*time.Second {
			t.Errorf("process ignoring SIGTERM survived %v", elapsed)
		}
	})

	t.Run("spawn failure", func(t *testing.T) {
		res := e.Run(ctx, []string{"/definitely/not/a/binary"}, Options{})
		if res.ExitCode != 1 || res.Stderr == "" {
			t.Errorf("result = %+v", res)
		}
	})

	t.Run("empty argv", func(t *testing.T) {
		if res := e.Run(ctx, nil, Options{}); res.ExitCode != 1 {
			t.Errorf("ExitCode = %d", res.ExitCode)
		}
	})

	if reg.Size() != 0 {
		t.Errorf("registry should be empty after runs, size=%d", reg.Size())
	}
}

func TestMergeEnv(t *testing.T) {
	base := []string{"A=1", "B=2"}
	got := MergeEnv(base, map[string]string{"B": "x", "D": "4", "C": "3"})
	want := []string{"A=1", "B=x", "C=3", "D=4"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("MergeEnv = %v, want %v", got, want)
	}
	if got := MergeEnv(base, nil); len(got) != 2 {
		t.Errorf("MergeEnv(nil) = %v", got)
	}
}

func TestFake(t *testing.T) {
	f := &Fake{Handler: func(argv []string, _ Options) Result {
		if argv[0] == "git" {
			return Result{Stdout: "ok"}
		}
		return Result{ExitCode: 2}
	}}
	if res := f.Run(context.Background(), []string{"git", "status"}, Options{}); res.Stdout != "ok" {
		t.Errorf("git result = %+v", res)
	}
	if res := f.Run(context.Background(), []string{"make"}, Options{}); res.ExitCode != 2 {
		t.Errorf("make result = %+v", res)
	}
	if got := f.Commands(); len(got) != 2 || got[0] != "git status" {
		t.Errorf("Commands() = %v", got)
	}
}
