//go:build unix

package procreg

import (
	"os"

	"golang.org/x/sys/unix"
)

func terminate(p *os.Process, detached bool) { send(p, detached, unix.SIGTERM) }
func kill(p *os.Process, detached bool)      { send(p, detached, unix.SIGKILL) }

// send signals the process group for detached processes, falling back to
// the process itself.
func send(p *os.Process, detached bool, sig unix.Signal) {
	if p == nil {
		return
	}
	if detached && p.Pid > 0 {
		if err := unix.Kill(-p.Pid, sig); err == nil {
			return
		}
	}
	_ = p.Signal(sig)
}
