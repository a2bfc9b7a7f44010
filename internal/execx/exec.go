// Package execx runs external commands for the workflow: git, quality
// checks and agent CLIs. Every command runs in its own process group so a
// timeout or an interrupt can take down the whole tree it spawned.
package execx

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"
	"time"

	"github.com/Iron-Ham/otto/internal/logging"
	"github.com/Iron-Ham/otto/internal/procreg"
)

const (
	// killGrace is how long a process group has to exit after SIGTERM
	// before it is sent SIGKILL.
	killGrace = 3 * time.Second
	// waitDelay bounds how long Wait blocks on output pipes held open by
	// grandchildren after the direct child was killed.
	waitDelay = 5 * time.Second
)

// Options configures a single command invocation.
type Options struct {
	// Cwd is the working directory. Empty means the current directory.
	Cwd string
	// Env entries are layered over the parent environment.
	Env map[string]string
	// Timeout terminates the process group when exceeded. Zero disables it.
	Timeout time.Duration
	// Stdin is written to the process and then closed.
	Stdin string
	// Label names the process in the registry and in logs.
	Label string
}

// Result is the outcome of a command. Run never returns an error: spawn
// failures are reported as exit code 1 with the error appended to Stderr.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
	TimedOut bool
}

// OK reports whether the command exited zero without timing out.
func (r Result) OK() bool { return r.ExitCode == 0 && !r.TimedOut }

// Output returns Stderr when non-blank, otherwise Stdout, trimmed.
func (r Result) Output() string {
	if s := strings.TrimSpace(r.Stderr); s != "" {
		return s
	}
	return strings.TrimSpace(r.Stdout)
}

// Runner executes commands. Tests substitute fakes.
type Runner interface {
	Run(ctx context.Context, argv []string, opts Options) Result
}

// Exec is the os/exec backed Runner.
type Exec struct {
	registry *procreg.Registry
	logger   *logging.Logger
	grace    time.Duration
}

// New creates an Exec. A nil registry disables process tracking.
func New(registry *procreg.Registry, logger *logging.Logger) *Exec {
	return &Exec{registry: registry, logger: logger, grace: killGrace}
}

// Run starts argv[0] with the remaining arguments and waits for it to exit.
func (e *Exec) Run(ctx context.Context, argv []string, opts Options) Result {
	if len(argv) == 0 {
		return Result{ExitCode: 1, Stderr: "execx: empty command"}
	}
	label := opts.Label
	if label == "" {
		label = argv[0]
	}
	log := e.logger.With("cmd", label)

	runCtx := ctx
	cancel := func() {}
	if opts.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
	}
	defer cancel()

	cmd := exec.CommandContext(runCtx, argv[0], argv[1:]...)
	cmd.Dir = opts.Cwd
	cmd.Env = MergeEnv(os.Environ(), opts.Env)
	configureProcessGroup(cmd)
	cmd.Cancel = func() error { return terminateProcessGroup(cmd.Process, e.grace) }
	cmd.WaitDelay = waitDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if opts.Stdin != "" {
		cmd.Stdin = strings.NewReader(opts.Stdin)
	}

	start := time.Now()
	if err := cmd.Start(); err != nil {
		log.Warn("command failed to start", "error", err)
		return Result{ExitCode: 1, Stderr: appendError(stderr.String(), err)}
	}

	unregister := e.registry.Register(cmd.Process, procreg.Entry{
		Label:    label,
		Cmd:      argv,
		Cwd:      opts.Cwd,
		Detached: true,
	})
	waitErr := cmd.Wait()
	unregister()

	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}
	if opts.Timeout > 0 && errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		res.TimedOut = true
	}

	var exitErr *exec.ExitError
	switch {
	case waitErr == nil:
		res.ExitCode = 0
	case errors.As(waitErr, &exitErr):
		res.ExitCode = exitErr.ExitCode()
		if res.ExitCode < 0 {
			// Killed by a signal.
			res.ExitCode = 1
		}
	default:
		res.ExitCode = 1
		res.Stderr = appendError(res.Stderr, waitErr)
	}

	log.Debug("command finished",
		"exit_code", res.ExitCode,
		"timed_out", res.TimedOut,
		"duration", time.Since(start).Round(time.Millisecond))
	return res
}

// MergeEnv returns base with overrides applied. Overridden keys replace
// their existing entries; new keys are appended in sorted order.
func MergeEnv(base []string, overrides map[string]string) []string {
	if len(overrides) == 0 {
		return base
	}
	out := make([]string, 0, len(base)+len(overrides))
	seen := make(map[string]bool, len(overrides))
	for _, kv := range base {
		key, _, _ := strings.Cut(kv, "=")
		if v, ok := overrides[key]; ok {
			out = append(out, key+"="+v)
			seen[key] = true
			continue
		}
		out = append(out, kv)
	}
	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		if !seen[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		out = append(out, k+"="+overrides[k])
	}
	return out
}

func appendError(stderr string, err error) string {
	if stderr == "" {
		return err.Error()
	}
	return fmt.Sprintf("%s\n%v", strings.TrimRight(stderr, "\n"), err)
}
