package proctable

import (
	"context"
	"os"
	"slices"
	"strings"

	"github.com/giantswarm/enginectl/internal/process"
)

var _ process.Prober = OS{}

// Proc is one entry of the process table.
type Proc struct {
	PID  int
	PPID int
	// PGID is the process group; zero when unknown.
	PGID int
	// Name is the short executable name.
	Name string
	// Cmdline is the full command line joined with spaces. On platforms
	// without command-line access it equals Name.
	Cmdline string
	// StartTime is in clock ticks since boot; zero when unknown.
	StartTime uint64
}

// Handle returns a process handle for p that signals only p itself.
func (p Proc) Handle() process.Handle {
	return process.Handle{PID: p.PID, StartTime: p.StartTime}
}

// List returns a snapshot of the process table sorted by PID. Processes
// that exit while the table is being read are skipped.
func List(ctx context.Context) ([]Proc, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	procs, err := listProcs()
	if err != nil {
		return nil, err
	}
	slices.SortFunc(procs, func(a, b Proc) int { return a.PID - b.PID })
	return procs, nil
}

// Match returns the processes whose command line contains substr, minus any
// whose PID is in exclude. An empty substr matches nothing.
func Match(procs []Proc, substr string, exclude []int) []Proc {
	if substr == "" {
		return nil
	}
	var out []Proc
	for _, p := range procs {
		if slices.Contains(exclude, p.PID) {
			continue
		}
		if strings.Contains(p.Cmdline, substr) {
			out = append(out, p)
		}
	}
	return out
}

// SelfAndAncestors returns the PID of this program followed by the PIDs of
// its ancestors found in procs. A stop by substring must never signal the
// shell that invoked it, even when that shell's command line contains the
// substring.
func SelfAndAncestors(procs []Proc) []int {
	byPID := make(map[int]Proc, len(procs))
	for _, p := range procs {
		byPID[p.PID] = p
	}
	pids := []int{os.Getpid()}
	for pid := os.Getppid(); pid > 1 && !slices.Contains(pids, pid); {
		pids = append(pids, pid)
		p, ok := byPID[pid]
		if !ok {
			break
		}
		pid = p.PPID
	}
	return pids
}

// OS answers liveness questions from the live process table.
type OS struct{}

// Alive reports whether pid is running. Zombies count as gone.
func (OS) Alive(pid int) bool {
	return process.SignalAlive(pid) && !isZombie(pid)
}

// StartTime returns the start time of pid, or 0 where the platform does not
// expose it.
func (OS) StartTime(pid int) (uint64, error) {
	return startTime(pid)
}
