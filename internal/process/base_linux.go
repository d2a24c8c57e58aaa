//go:build linux

package process

import (
	"os/exec"
	"syscall"
)

// configureSysProcAttr gives cmd its own process group. Detached processes
// also get their own session, leaving the controlling terminal behind.
// Attached processes get Pdeathsig so the engine does not outlive an
// abruptly killed supervisor.
func configureSysProcAttr(cmd *exec.Cmd, mode Mode) {
	if mode == Detached {
		cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
		return
	}
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid:   true,
		Pdeathsig: syscall.SIGTERM,
	}
}
