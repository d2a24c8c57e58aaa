package core

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/giantswarm/enginectl/internal/process"
	"github.com/giantswarm/enginectl/internal/proctable"
	"github.com/giantswarm/enginectl/internal/registry"
)

// DefaultStatusHistory is how many launch records Status returns.
const DefaultStatusHistory = 10

// EngineStatus is one launch record and whether its engine still runs.
type EngineStatus struct {
	registry.Record
	Alive bool
}

// Status is a snapshot of recorded launches and untracked engine processes.
type Status struct {
	Name string
	// Launches are the most recent launch records, newest first.
	Launches []EngineStatus
	// Untracked are running processes matching Name that no live launch
	// record accounts for.
	Untracked []proctable.Proc
}

// Running reports whether any engine process is running.
func (s Status) Running() bool {
	if len(s.Untracked) > 0 {
		return true
	}
	for _, l := range s.Launches {
		if l.Alive {
			return true
		}
	}
	return false
}

// Status reports the recorded launches and scans for untracked engine
// processes. It only reads state and does not take the state lock.
func (s *Supervisor) Status(ctx context.Context) (Status, error) {
	name := s.config.Engine.ProcessName
	st := Status{Name: name}

	store, err := s.openRegistry(ctx)
	if err != nil {
		return st, err
	}
	defer func() {
		if err := store.Close(); err != nil {
			s.log.Warn("failed to close registry", "error", err)
		}
	}()

	recs, err := store.List(ctx, DefaultStatusHistory)
	if err != nil {
		return st, err
	}
	var tracked []int
	for _, rec := range recs {
		es := EngineStatus{Record: rec}
		if rec.Active() {
			err := process.Verify(rec.Handle(), s.prober)
			es.Alive = err == nil || errors.Is(err, process.ErrPermissionDenied)
		}
		if es.Alive {
			tracked = append(tracked, rec.PID)
		}
		st.Launches = append(st.Launches, es)
	}

	procs, err := s.lister(ctx)
	if err != nil {
		return st, fmt.Errorf("list processes: %w", err)
	}
	exclude := append(proctable.SelfAndAncestors(procs), tracked...)
	for _, p := range proctable.Match(procs, name, exclude) {
		// Workers in a tracked engine's process group are accounted for.
		if slices.Contains(tracked, p.PGID) {
			continue
		}
		st.Untracked = append(st.Untracked, p)
	}
	return st, nil
}

func (s *Supervisor) openRegistry(ctx context.Context) (*registry.Store, error) {
	return registry.Open(ctx, s.config.registryPath(), s.log)
}

// Uptime is how long the launch has been running, or ran for.
func (e EngineStatus) Uptime(now time.Time) time.Duration {
	if !e.Active() {
		return e.StoppedAt.Sub(e.LaunchedAt)
	}
	return now.Sub(e.LaunchedAt)
}

func joinArgv(argv []string) string {
	return strings.Join(argv, " ")
}
