//go:build linux

package proctable

import (
	"fmt"
	"strings"

	"github.com/prometheus/procfs"
)

// FullCmdline reports whether Proc.Cmdline holds the full command line.
const FullCmdline = true

func listProcs() ([]Proc, error) {
	fs, err := procfs.NewDefaultFS()
	if err != nil {
		return nil, fmt.Errorf("open procfs: %w", err)
	}
	all, err := fs.AllProcs()
	if err != nil {
		return nil, fmt.Errorf("list processes: %w", err)
	}

	procs := make([]Proc, 0, len(all))
	for _, p := range all {
		stat, err := p.Stat()
		if err != nil {
			// Exited between the directory listing and the read.
			continue
		}
		argv, err := p.CmdLine()
		if err != nil {
			continue
		}
		procs = append(procs, Proc{
			PID:       p.PID,
			PPID:      stat.PPID,
			PGID:      stat.PGRP,
			Name:      stat.Comm,
			Cmdline:   strings.Join(argv, " "),
			StartTime: stat.Starttime,
		})
	}
	return procs, nil
}

func procStat(pid int) (procfs.ProcStat, error) {
	p, err := procfs.NewProc(pid)
	if err != nil {
		return procfs.ProcStat{}, fmt.Errorf("open /proc/%d: %w", pid, err)
	}
	stat, err := p.Stat()
	if err != nil {
		return procfs.ProcStat{}, fmt.Errorf("read /proc/%d/stat: %w", pid, err)
	}
	return stat, nil
}

func isZombie(pid int) bool {
	stat, err := procStat(pid)
	if err != nil {
		return false
	}
	return stat.State == "Z" || stat.State == "X"
}

func startTime(pid int) (uint64, error) {
	stat, err := procStat(pid)
	if err != nil {
		return 0, err
	}
	return stat.Starttime, nil
}
