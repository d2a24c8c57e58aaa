package core

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
	"k8s.io/apimachinery/pkg/util/wait"

	"github.com/giantswarm/enginectl/internal/engine"
	"github.com/giantswarm/enginectl/internal/probes"
	"github.com/giantswarm/enginectl/internal/process"
	"github.com/giantswarm/enginectl/internal/terminator"
)

// RunOptions configures Run.
type RunOptions struct {
	// ProbesAddr is the listen address of the probes server. Empty disables
	// it.
	ProbesAddr string
}

// Run starts the engine as a child of this program and supervises it until
// it exits or ctx is canceled, then stops it gracefully. On Linux the engine
// also receives SIGTERM if this program dies.
//
// Run returns nil when ctx was canceled and the engine stopped cleanly, and
// an error wrapping ErrEngineExited when the engine exited on its own with a
// failure status.
func (s *Supervisor) Run(ctx context.Context, opts RunOptions) error {
	if err := s.config.ValidateLaunch(); err != nil {
		return err
	}

	ss, err := s.begin(ctx)
	if err != nil {
		return err
	}
	defer ss.close(s.log)

	proc, rec, err := s.prepare(ctx, ss.store, process.Attached)
	if err == nil {
		err = proc.Start(ctx)
	}
	if err != nil {
		s.metrics.Launches.WithLabelValues(launchResult(err)).Inc()
		return err
	}

	rec, err = s.record(ctx, ss.store, proc, rec)
	if err != nil {
		s.metrics.Launches.WithLabelValues(launchResult(err)).Inc()
		pid := proc.PID()
		if stopErr := process.StopCloseAndNil(&proc, s.config.StopTimeout); stopErr != nil {
			s.log.Warn("failed to stop unrecorded engine", "pid", pid, "error", stopErr)
		}
		return fmt.Errorf("record launch: %w", err)
	}
	s.metrics.Launches.WithLabelValues(launchResult(nil)).Inc()
	ss.unlock()

	log := s.log.With("id", rec.ID, "pid", rec.PID)
	log.Info("engine running", "log", rec.LogPath)

	state := &probes.State{}
	state.SetLive(true)
	s.metrics.SetUp(true)
	defer func() {
		state.SetReady(false)
		s.metrics.SetUp(false)
		s.metrics.SetReady(false)
	}()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)
	if opts.ProbesAddr != "" {
		handler := probes.Handler(state, s.metrics.Registry)
		g.Go(func() error {
			return probes.Serve(gctx, opts.ProbesAddr, handler, s.log)
		})
	}
	eng := proc
	g.Go(func() error {
		s.pollHealth(gctx, eng, state)
		return nil
	})

	exitedOnItsOwn := false
	select {
	case <-proc.Exited():
		exitedOnItsOwn = true
		log.Warn("engine exited")
	case <-gctx.Done():
		log.Info("stopping engine")
	}

	stopErr := process.StopCloseAndNil(&proc, s.config.StopTimeout)
	cancel()
	groupErr := g.Wait()

	outcome := terminator.OutcomeStopped
	if exitedOnItsOwn {
		outcome = OutcomeExited
	}
	s.markStopped(ctx, ss.store, rec.ID, outcome)

	switch {
	case exitedOnItsOwn && stopErr != nil:
		return s.startupError(fmt.Errorf("%w: %w", ErrEngineExited, stopErr), rec.LogPath)
	case stopErr != nil:
		return fmt.Errorf("stop engine: %w", stopErr)
	case groupErr != nil:
		return groupErr
	}
	log.Info("engine stopped", "outcome", outcome)
	return nil
}

// pollHealth keeps the readiness state in line with the engine's health
// endpoint until ctx is done.
func (s *Supervisor) pollHealth(ctx context.Context, proc *engine.Process, state *probes.State) {
	ready := false
	wait.UntilWithContext(ctx, func(ctx context.Context) {
		ok, err := proc.CheckHealth(ctx)
		if err != nil {
			s.log.Debug("health check failed", "error", err)
		}
		if ok != ready {
			s.log.Info("engine readiness changed", "ready", ok)
			ready = ok
		}
		state.SetReady(ok)
		s.metrics.SetReady(ok)
	}, s.config.ReadyPollInterval)
}
