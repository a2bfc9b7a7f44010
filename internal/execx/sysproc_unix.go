//go:build unix

package execx

import (
	"os"
	"os/exec"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

func configureProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// terminateProcessGroup sends SIGTERM to the group led by p and SIGKILL to
// the same group once grace has passed.
func terminateProcessGroup(p *os.Process, grace time.Duration) error {
	if p == nil {
		return nil
	}
	pgid := p.Pid
	if err := unix.Kill(-pgid, unix.SIGTERM); err != nil {
		return p.Kill()
	}
	time.AfterFunc(grace, func() {
		_ = unix.Kill(-pgid, unix.SIGKILL)
	})
	return nil
}
