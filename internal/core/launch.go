package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/giantswarm/enginectl/internal/process"
	"github.com/giantswarm/enginectl/internal/registry"
)

// LaunchOptions configures Launch.
type LaunchOptions struct {
	// Wait blocks until the engine's health endpoint answers 200.
	Wait bool
	// ReadyTimeout overrides SupervisorConfig.ReadyTimeout when positive.
	ReadyTimeout time.Duration
}

// Launch starts the engine detached from this program and records it. By
// default it returns as soon as the engine is spawned; the engine keeps
// running after this program exits.
//
// Launch fails with ErrAlreadyRunning when a recorded engine is still alive,
// with netutil.ErrPortInUse when the service port is taken, and, with
// opts.Wait, with ErrEngineExited when the engine dies before becoming ready.
// A readiness timeout leaves the engine running.
func (s *Supervisor) Launch(ctx context.Context, opts LaunchOptions) (rec registry.Record, err error) {
	defer func() {
		s.metrics.Launches.WithLabelValues(launchResult(err)).Inc()
	}()

	if err := s.config.ValidateLaunch(); err != nil {
		return rec, err
	}

	ss, err := s.begin(ctx)
	if err != nil {
		return rec, err
	}
	defer ss.close(s.log)

	proc, rec, err := s.prepare(ctx, ss.store, process.Detached)
	if err != nil {
		return rec, err
	}
	if err := proc.Start(ctx); err != nil {
		return rec, err
	}
	defer proc.Close()

	rec, err = s.record(ctx, ss.store, proc, rec)
	if err != nil {
		if stopErr := proc.Stop(s.config.StopTimeout); stopErr != nil {
			s.log.Warn("failed to stop unrecorded engine", "pid", proc.PID(), "error", stopErr)
		}
		return rec, fmt.Errorf("record launch: %w", err)
	}
	s.log.Info("engine launched", "id", rec.ID, "pid", rec.PID, "log", rec.LogPath)

	// Waiting can take minutes; stop must not be blocked meanwhile.
	ss.unlock()

	if opts.Wait {
		timeout := s.config.ReadyTimeout
		if opts.ReadyTimeout > 0 {
			timeout = opts.ReadyTimeout
		}
		if err := proc.WaitReady(ctx, timeout, s.config.ReadyPollInterval); err != nil {
			if errors.Is(err, process.ErrProcessExited) {
				// Collects the exit status.
				_ = proc.Stop(s.config.StopTimeout)
				s.markStopped(ctx, ss.store, rec.ID, OutcomeFailed)
				return rec, s.startupError(fmt.Errorf("%w: %w", ErrEngineExited, err), rec.LogPath)
			}
			return rec, s.startupError(err, rec.LogPath)
		}
		s.log.Info("engine ready", "id", rec.ID, "url", proc.HealthURL())
	}

	if _, err := proc.Detach(); err != nil {
		return rec, err
	}
	return rec, nil
}
