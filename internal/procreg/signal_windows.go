//go:build windows

package procreg

import "os"

// Windows has no process groups to signal; both steps kill the child.
func terminate(p *os.Process, _ bool) { kill(p, false) }

func kill(p *os.Process, _ bool) {
	if p != nil {
		_ = p.Kill()
	}
}
