package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"syscall"
	"time"

	"github.com/giantswarm/enginectl/internal/engine"
	"github.com/giantswarm/enginectl/internal/fileutil"
	"github.com/giantswarm/enginectl/internal/metrics"
	"github.com/giantswarm/enginectl/internal/netutil"
	"github.com/giantswarm/enginectl/internal/process"
	"github.com/giantswarm/enginectl/internal/proctable"
	"github.com/giantswarm/enginectl/internal/registry"
	"github.com/giantswarm/enginectl/internal/statelock"
)

// Outcomes recorded on launch records besides terminator.OutcomeStopped.
const (
	// OutcomeExited marks a record whose engine was found gone, or which
	// exited on its own.
	OutcomeExited = "exited"
	// OutcomeFailed marks a record whose engine exited during start-up.
	OutcomeFailed = "failed"
)

// Supervisor launches, stops and inspects the engine described by its
// configuration. Its methods are safe to call from separate processes: state
// changes are serialized by the state lock.
type Supervisor struct {
	config  SupervisorConfig
	metrics *metrics.Metrics
	prober  process.Prober
	lister  func(context.Context) ([]proctable.Proc, error)
	log     *slog.Logger
}

// NewSupervisor validates cfg and returns a Supervisor. It performs no I/O.
func NewSupervisor(cfg SupervisorConfig) (*Supervisor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Supervisor{
		config:  cfg,
		metrics: cfg.Metrics,
		prober:  cfg.Prober,
		lister:  cfg.Lister,
		log:     Logger(),
	}
	if s.metrics == nil {
		s.metrics = metrics.New()
	}
	if s.prober == nil {
		s.prober = proctable.OS{}
	}
	if s.lister == nil {
		s.lister = proctable.List
	}
	return s, nil
}

// Config returns the configuration the supervisor was created with.
func (s *Supervisor) Config() SupervisorConfig {
	return s.config
}

// Metrics returns the collectors updated by the supervisor.
func (s *Supervisor) Metrics() *metrics.Metrics {
	return s.metrics
}

// session is the lock and registry held for one state-changing operation.
type session struct {
	lock  *statelock.Lock
	store *registry.Store
}

// unlock releases the lock early; close still closes the store.
func (ss *session) unlock() {
	ss.lock.Release()
}

func (ss *session) close(log *slog.Logger) {
	ss.lock.Release()
	if err := ss.store.Close(); err != nil {
		log.Warn("failed to close registry", "error", err)
	}
}

// begin acquires the state lock and opens the registry.
func (s *Supervisor) begin(ctx context.Context) (*session, error) {
	lock, err := statelock.Acquire(ctx, s.config.lockPath(), s.log)
	if err != nil {
		return nil, err
	}
	store, err := registry.Open(ctx, s.config.registryPath(), s.log)
	if err != nil {
		lock.Release()
		return nil, err
	}
	return &session{lock: lock, store: store}, nil
}

// reconcile returns the active records for name whose process is still the
// one that was launched. Records whose process is gone are marked exited.
func (s *Supervisor) reconcile(ctx context.Context, store *registry.Store, name string) ([]registry.Record, error) {
	recs, err := store.Active(ctx, name)
	if err != nil {
		return nil, err
	}
	live := recs[:0]
	for _, rec := range recs {
		err := process.Verify(rec.Handle(), s.prober)
		switch {
		case err == nil, errors.Is(err, process.ErrPermissionDenied):
			live = append(live, rec)
		case errors.Is(err, process.ErrAlreadyExited), errors.Is(err, process.ErrProcessNotFound):
			s.log.Debug("recorded engine is gone", "id", rec.ID, "pid", rec.PID, "reason", err)
			if err := store.MarkStopped(ctx, rec.ID, OutcomeExited, time.Now()); err != nil {
				return nil, err
			}
		default:
			return nil, err
		}
	}
	return live, nil
}

// prepare performs the checks shared by Launch and Run and builds the engine
// process. The caller holds the state lock.
func (s *Supervisor) prepare(ctx context.Context, store *registry.Store, mode process.Mode) (*engine.Process, registry.Record, error) {
	var rec registry.Record
	e := s.config.Engine
	f := e.Flags

	live, err := s.reconcile(ctx, store, e.ProcessName)
	if err != nil {
		return nil, rec, err
	}
	if len(live) > 0 {
		return nil, rec, fmt.Errorf("%w: pid %d launched at %s",
			ErrAlreadyRunning, live[0].PID, live[0].LaunchedAt.Format(time.RFC3339))
	}

	if err := netutil.CheckPortFree(f.Host, f.Port); err != nil {
		return nil, rec, err
	}

	id, err := s.config.Pod.Resolve(ctx)
	if err != nil {
		return nil, rec, fmt.Errorf("resolve pod identity: %w", err)
	}
	if err := fileutil.EnsureDir(e.LogDir); err != nil {
		return nil, rec, err
	}

	argv := e.Argv()
	logPath := engine.LogFilePath(e.LogDir, id.Name, id.IP)
	proc, err := engine.New(engine.Config{
		Name:        e.ProcessName,
		Binary:      argv[0],
		Args:        argv[1:],
		WorkDir:     e.BaseDir,
		LogPath:     logPath,
		Env:         e.Env,
		Host:        f.Host,
		Port:        f.Port,
		Mode:        mode,
		StopTimeout: s.config.StopTimeout,
		Logger:      s.log,
	})
	if err != nil {
		return nil, rec, err
	}
	rec = registry.Record{
		Name:    e.ProcessName,
		Argv:    argv,
		LogPath: logPath,
		PodName: id.Name,
		PodIP:   id.IP,
	}
	return proc, rec, nil
}

// record stores the launch of a started engine.
func (s *Supervisor) record(ctx context.Context, store *registry.Store, proc *engine.Process, rec registry.Record) (registry.Record, error) {
	rec.PID = proc.PID()
	rec.PGID = rec.PID
	st, err := s.prober.StartTime(rec.PID)
	if err != nil {
		s.log.Warn("failed to read engine start time; PID reuse will not be detected",
			"pid", rec.PID, "error", err)
	}
	rec.StartTime = st
	return store.Insert(ctx, rec)
}

// markStopped records the end of a launch, even when ctx is already canceled.
func (s *Supervisor) markStopped(ctx context.Context, store *registry.Store, id, outcome string) {
	if err := store.MarkStopped(context.WithoutCancel(ctx), id, outcome, time.Now()); err != nil {
		s.log.Warn("failed to record engine stop", "id", id, "outcome", outcome, "error", err)
	}
}

// startupError describes an engine that failed to become ready, with the
// end of its log attached.
func (s *Supervisor) startupError(cause error, logPath string) error {
	tail, err := fileutil.Tail(logPath, logTailLines)
	if err != nil {
		s.log.Debug("failed to read engine log", "path", logPath, "error", err)
	}
	if tail == "" {
		return cause
	}
	return fmt.Errorf("%w\nlast lines of %s:\n%s", cause, logPath, tail)
}

// launchResult maps a Launch or Run error to a launches_total label.
func launchResult(err error) string {
	switch {
	case err == nil:
		return metrics.ResultSuccess
	case errors.Is(err, ErrAlreadyRunning):
		return metrics.ResultAlreadyRunning
	case errors.Is(err, netutil.ErrPortInUse):
		return metrics.ResultPortInUse
	default:
		return metrics.ResultError
	}
}

func signalLabel(sig syscall.Signal) string {
	switch sig {
	case syscall.SIGTERM:
		return "SIGTERM"
	case syscall.SIGKILL:
		return "SIGKILL"
	default:
		return fmt.Sprintf("signal %d", int(sig))
	}
}
