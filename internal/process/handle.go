package process

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"syscall"
	"time"

	"k8s.io/apimachinery/pkg/util/wait"

	"github.com/giantswarm/enginectl/internal/sentinel"
)

// Error kinds reported when signaling a process by handle.
const (
	// ErrProcessNotFound means the handle does not identify a live process:
	// the PID is invalid or now belongs to a different process.
	ErrProcessNotFound = sentinel.Error("process not found")

	// ErrPermissionDenied means the caller may not signal the process.
	ErrPermissionDenied = sentinel.Error("permission denied")

	// ErrAlreadyExited means the process was gone by the time it was signaled.
	ErrAlreadyExited = sentinel.Error("process already exited")

	// ErrStillRunning means the process survived SIGKILL for the whole
	// stop timeout, typically because it is stuck in uninterruptible sleep.
	ErrStillRunning = sentinel.Error("process still running after SIGKILL")

	// ErrNotStarted is returned by Detach when nothing is running.
	ErrNotStarted = sentinel.Error("process not started")
)

// DefaultPollInterval is how often StopPID checks whether a signaled process
// is gone.
const DefaultPollInterval = 100 * time.Millisecond

// killWaitFloor is the minimum time StopPID waits after SIGKILL, even when
// the stop timeout is already spent.
const killWaitFloor = 2 * time.Second

// Handle identifies a running process independently of the program that
// started it.
type Handle struct {
	PID int
	// PGID is the process group to signal. Zero signals PID alone.
	PGID int
	// StartTime is the process start time in clock ticks since boot as
	// reported by the OS. Zero disables the PID-reuse check.
	StartTime uint64
}

// Prober answers liveness questions about PIDs.
type Prober interface {
	// Alive reports whether pid names a running, non-zombie process.
	Alive(pid int) bool
	// StartTime returns the start time of pid, or 0 when the platform does
	// not expose one.
	StartTime(pid int) (uint64, error)
}

// SignalProber is a Prober built on kill(pid, 0). It cannot tell zombies
// from running processes and knows no start times.
type SignalProber struct{}

// Alive implements Prober.
func (SignalProber) Alive(pid int) bool {
	return SignalAlive(pid)
}

// StartTime implements Prober.
func (SignalProber) StartTime(int) (uint64, error) {
	return 0, nil
}

// SignalAlive reports whether signal 0 can be delivered to pid. EPERM counts
// as alive: the process exists but belongs to someone else.
func SignalAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := syscall.Kill(pid, 0)
	return err == nil || errors.Is(err, syscall.EPERM)
}

// StopOptions configures StopPID.
type StopOptions struct {
	// Grace is how long to wait after SIGTERM before sending SIGKILL.
	Grace time.Duration
	// Timeout bounds the whole stop.
	Timeout time.Duration
	// Force sends SIGKILL immediately instead of SIGTERM.
	Force bool
	// PollInterval defaults to DefaultPollInterval.
	PollInterval time.Duration
	// Prober defaults to SignalProber.
	Prober Prober
	Logger *slog.Logger
}

func (o StopOptions) withDefaults() StopOptions {
	if o.Timeout <= 0 {
		o.Timeout = DefaultStopTimeout
	}
	if o.Grace < 0 {
		o.Grace = 0
	}
	o.Grace = min(o.Grace, o.Timeout)
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	if o.Prober == nil {
		o.Prober = SignalProber{}
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// StopResult describes what StopPID did.
type StopResult struct {
	// Signal is the last signal delivered; zero if none was.
	Signal syscall.Signal
	// Escalated is set when SIGTERM was not enough and SIGKILL followed.
	Escalated bool
	Elapsed   time.Duration
}

// StopPID stops the process identified by h: SIGTERM, then SIGKILL once the
// grace period passes, or SIGKILL at once when opts.Force is set. It returns
// when the process is gone, the timeout expires or ctx is canceled.
//
// Failures wrap ErrProcessNotFound, ErrPermissionDenied, ErrAlreadyExited or
// ErrStillRunning. A process that exits between SIGTERM and SIGKILL is a
// successful stop, not ErrAlreadyExited.
func StopPID(ctx context.Context, h Handle, opts StopOptions) (StopResult, error) {
	opts = opts.withDefaults()
	var res StopResult

	if h.PID <= 0 {
		return res, fmt.Errorf("stop pid %d: %w", h.PID, ErrProcessNotFound)
	}
	if err := Verify(h, opts.Prober); err != nil {
		return res, err
	}

	start := time.Now()
	first := syscall.SIGTERM
	if opts.Force {
		first = syscall.SIGKILL
	}
	if err := h.Signal(first); err != nil {
		return res, err
	}
	res.Signal = first
	log := opts.Logger.With("pid", h.PID)
	log.Debug("signal sent", "signal", first)

	if !opts.Force {
		gone, err := waitGone(ctx, h.PID, opts.Prober, opts.Grace, opts.PollInterval)
		if err != nil {
			res.Elapsed = time.Since(start)
			return res, err
		}
		if gone {
			h.sweepGroup()
			res.Elapsed = time.Since(start)
			return res, nil
		}
		log.Info("grace period expired; sending SIGKILL", "grace", opts.Grace)
		if err := h.Signal(syscall.SIGKILL); err != nil {
			res.Elapsed = time.Since(start)
			if errors.Is(err, ErrAlreadyExited) {
				return res, nil
			}
			return res, err
		}
		res.Signal = syscall.SIGKILL
		res.Escalated = true
	}

	remaining := max(opts.Timeout-time.Since(start), killWaitFloor)
	gone, err := waitGone(ctx, h.PID, opts.Prober, remaining, opts.PollInterval)
	res.Elapsed = time.Since(start)
	if err != nil {
		return res, err
	}
	if !gone {
		return res, fmt.Errorf("stop pid %d: %w", h.PID, ErrStillRunning)
	}
	h.sweepGroup()
	return res, nil
}

// Verify checks that h still refers to the process it was created for.
func Verify(h Handle, prober Prober) error {
	if prober == nil {
		prober = SignalProber{}
	}
	if !prober.Alive(h.PID) {
		return fmt.Errorf("pid %d: %w", h.PID, ErrAlreadyExited)
	}
	if h.StartTime == 0 {
		return nil
	}
	st, err := prober.StartTime(h.PID)
	if err != nil {
		if !prober.Alive(h.PID) {
			return fmt.Errorf("pid %d: %w", h.PID, ErrAlreadyExited)
		}
		return fmt.Errorf("read start time of pid %d: %w", h.PID, err)
	}
	if st != 0 && st != h.StartTime {
		return fmt.Errorf("pid %d started at %d, expected %d: %w", h.PID, st, h.StartTime, ErrProcessNotFound)
	}
	return nil
}

// Signal delivers sig to the handle's process group, or to the PID alone when
// no group is recorded or the group is already empty.
func (h Handle) Signal(sig syscall.Signal) error {
	var err error
	if h.PGID > 0 {
		err = syscall.Kill(-h.PGID, sig)
		if errors.Is(err, syscall.ESRCH) {
			err = syscall.Kill(h.PID, sig)
		}
	} else {
		err = syscall.Kill(h.PID, sig)
	}
	if err == nil {
		return nil
	}
	if kind := ClassifySignalError(err); kind != err {
		return fmt.Errorf("send %v to pid %d: %w: %w", sig, h.PID, kind, err)
	}
	return fmt.Errorf("send %v to pid %d: %w", sig, h.PID, err)
}

// sweepGroup kills whatever is left of the process group once its leader is
// gone, so that worker processes do not outlive the engine.
func (h Handle) sweepGroup() {
	if h.PGID > 0 {
		_ = syscall.Kill(-h.PGID, syscall.SIGKILL)
	}
}

// ClassifySignalError maps an errno from kill(2) to one of the package's
// error kinds. Unknown errors are returned unchanged.
func ClassifySignalError(err error) error {
	switch {
	case errors.Is(err, syscall.ESRCH):
		return ErrAlreadyExited
	case errors.Is(err, syscall.EPERM):
		return ErrPermissionDenied
	default:
		return err
	}
}

// waitGone polls until pid is no longer alive or d elapses. It returns an
// error only when ctx is canceled.
func waitGone(ctx context.Context, pid int, prober Prober, d, interval time.Duration) (bool, error) {
	if !prober.Alive(pid) {
		return true, nil
	}
	if d <= 0 {
		return false, nil
	}
	err := wait.PollUntilContextTimeout(ctx, interval, d, false, func(context.Context) (bool, error) {
		return !prober.Alive(pid), nil
	})
	switch {
	case err == nil:
		return true, nil
	case ctx.Err() != nil:
		return false, fmt.Errorf("wait for pid %d to exit: %w", pid, ctx.Err())
	case wait.Interrupted(err):
		return false, nil
	default:
		return false, err
	}
}
