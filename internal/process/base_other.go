//go:build !linux

package process

import (
	"os/exec"
	"syscall"
)

// configureSysProcAttr gives cmd its own process group, and detached
// processes their own session. Pdeathsig is Linux-only.
func configureSysProcAttr(cmd *exec.Cmd, mode Mode) {
	if mode == Detached {
		cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
		return
	}
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}
