//go:build windows

package execx

import (
	"os"
	"os/exec"
	"syscall"
	"time"
)

func configureProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP,
	}
}

// terminateProcessGroup kills p at once. Windows has no SIGTERM for
// console process groups, so there is no grace period.
func terminateProcessGroup(p *os.Process, _ time.Duration) error {
	if p == nil {
		return nil
	}
	return p.Kill()
}
