package runlock

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/Iron-Ham/otto/internal/logging"
)

var ottoNameRegex = regexp.MustCompile(`(?i)\botto\b`)

// LooksLikeOtto reports whether a process name or command line plausibly
// belongs to otto.
func LooksLikeOtto(nameOrCmdline string) bool {
	return nameOrCmdline != "" && ottoNameRegex.MatchString(nameOrCmdline)
}

// Killer terminates a foreign otto process that holds a run lock.
type Killer struct {
	IsAlive     IsAliveFunc
	ProcessName func(ctx context.Context, pid int) string
	Signal      func(pid int, kill bool) error
	Grace       time.Duration
	Poll        time.Duration
	Logger      *logging.Logger
}

// NewKiller returns a Killer using OS signals and ps(1).
func NewKiller(logger *logging.Logger) *Killer {
	return &Killer{
		IsAlive:     IsPIDAlive,
		ProcessName: processName,
		Signal: func(pid int, kill bool) error {
			if kill {
				return signalKill(pid)
			}
			return signalTerm(pid)
		},
		Grace:  2 * time.Second,
		Poll:   100 * time.Millisecond,
		Logger: logger,
	}
}

// Kill sends SIGTERM to pid, waits up to the grace period, then sends
// SIGKILL. A dead pid is a no-op. It refuses to signal a process whose
// name does not look like otto.
func (k *Killer) Kill(ctx context.Context, pid int) error {
	if !k.IsAlive(pid) {
		return nil
	}

	name := k.ProcessName(ctx, pid)
	if !LooksLikeOtto(name) {
		if name == "" {
			name = "(unknown)"
		}
		return fmt.Errorf("Refusing to kill pid %d (process does not look like otto: %s)", pid, name)
	}

	k.Logger.Warn("terminating run holder", "pid", pid, "name", name)
	_ = k.Signal(pid, false)

	deadline := time.Now().Add(k.Grace)
	for time.Now().Before(deadline) {
		if !k.IsAlive(pid) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(k.Poll):
		}
	}

	k.Logger.Warn("run holder ignored SIGTERM, sending SIGKILL", "pid", pid)
	_ = k.Signal(pid, true)
	return nil
}

func processName(ctx context.Context, pid int) string {
	if !supportsProcessName {
		return ""
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	out, err := exec.CommandContext(ctx, "ps", "-p", strconv.Itoa(pid), "-o", "comm=").Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}
