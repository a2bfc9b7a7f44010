//go:build windows

package runlock

import "os"

// IsPIDAlive reports whether pid refers to a running process.
func IsPIDAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	p, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	_ = p.Release()
	return true
}

func signalTerm(pid int) error { return signalKill(pid) }

func signalKill(pid int) error {
	p, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return p.Kill()
}

const supportsProcessName = false
