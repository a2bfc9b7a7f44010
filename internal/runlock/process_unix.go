//go:build unix

package runlock

import (
	"golang.org/x/sys/unix"
)

// IsPIDAlive reports whether pid refers to a running process. A process
// owned by another user (EPERM) counts as alive.
func IsPIDAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := unix.Kill(pid, 0)
	return err == nil || err == unix.EPERM
}

func signalTerm(pid int) error { return unix.Kill(pid, unix.SIGTERM) }
func signalKill(pid int) error { return unix.Kill(pid, unix.SIGKILL) }

const supportsProcessName = true
