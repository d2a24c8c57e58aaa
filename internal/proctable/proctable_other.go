//go:build !linux

package proctable

import (
	"fmt"
	"syscall"

	ps "github.com/mitchellh/go-ps"
)

// FullCmdline reports whether Proc.Cmdline holds the full command line.
// Here it holds the executable name only.
const FullCmdline = false

func listProcs() ([]Proc, error) {
	all, err := ps.Processes()
	if err != nil {
		return nil, fmt.Errorf("list processes: %w", err)
	}
	procs := make([]Proc, 0, len(all))
	for _, p := range all {
		pgid, err := syscall.Getpgid(p.Pid())
		if err != nil {
			pgid = 0
		}
		procs = append(procs, Proc{
			PID:     p.Pid(),
			PPID:    p.PPid(),
			PGID:    pgid,
			Name:    p.Executable(),
			Cmdline: p.Executable(),
		})
	}
	return procs, nil
}

func isZombie(int) bool {
	return false
}

func startTime(pid int) (uint64, error) {
	p, err := ps.FindProcess(pid)
	if err != nil {
		return 0, fmt.Errorf("find process %d: %w", pid, err)
	}
	if p == nil {
		return 0, fmt.Errorf("find process %d: not found", pid)
	}
	return 0, nil
}
