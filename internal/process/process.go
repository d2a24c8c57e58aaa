package process

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"syscall"
	"time"
)

// DefaultStopTimeout is the overall stop timeout used when none is configured.
const DefaultStopTimeout = 30 * time.Second

// DefaultGracePeriod is how long a process gets after SIGTERM before SIGKILL
// is sent. The effective grace period never exceeds the stop timeout.
const DefaultGracePeriod = 10 * time.Second

// killDrainTimeout bounds the wait for cmd.Wait after SIGKILL has been sent
// or after the process has already exited.
const killDrainTimeout = 10 * time.Second

// drainDone reads from done with timeout as a hard upper bound. It returns
// true and the cmd.Wait error if a value arrived in time.
func drainDone(done <-chan error, timeout time.Duration) (bool, error) {
	t := time.NewTimer(timeout)
	defer t.Stop()

	select {
	case err := <-done:
		return true, err
	case <-t.C:
		return false, nil
	}
}

// signalGroup delivers sig to the process group led by p, falling back to p
// alone when the group cannot be signaled.
func signalGroup(p *os.Process, sig syscall.Signal) error {
	if err := syscall.Kill(-p.Pid, sig); err == nil {
		return nil
	}
	return p.Signal(sig)
}

// stopWithDone runs the SIGTERM-then-SIGKILL sequence against a process whose
// cmd.Wait result arrives on done. It never calls cmd.Wait itself.
//
//  1. SIGTERM the process group.
//  2. Arm a timer that SIGKILLs the group after min(DefaultGracePeriod, timeout).
//  3. Wait for the exit or for timeout.
//
// Worst-case blocking is timeout + killDrainTimeout.
func stopWithDone(cmd *exec.Cmd, done <-chan error, timeout time.Duration, name string) error {
	if cmd == nil || cmd.Process == nil {
		return nil
	}
	if done == nil {
		return fmt.Errorf("%s: done channel must not be nil", name)
	}

	if err := signalGroup(cmd.Process, syscall.SIGTERM); err != nil {
		// Already gone; collect the exit status.
		ok, waitErr := drainDone(done, killDrainTimeout)
		if !ok {
			return fmt.Errorf("%s: timed out draining process after signal failure", name)
		}
		return expectSignalExit(waitErr, name)
	}

	grace := min(DefaultGracePeriod, timeout)
	killTimer := time.AfterFunc(grace, func() {
		_ = signalGroup(cmd.Process, syscall.SIGKILL)
	})
	defer killTimer.Stop()

	totalTimer := time.NewTimer(timeout)
	defer totalTimer.Stop()

	select {
	case err := <-done:
		return expectSignalExit(err, name)
	case <-totalTimer.C:
		ok, waitErr := drainDone(done, killDrainTimeout)
		if !ok {
			return fmt.Errorf("%s: timed out waiting for process to exit after SIGKILL", name)
		}
		if err := expectSignalExit(waitErr, name); err != nil {
			return fmt.Errorf("%s stop timeout: %w", name, err)
		}
		return nil
	}
}

// expectSignalExit interprets a cmd.Wait error after a stop was requested.
// Exits caused by SIGTERM or SIGKILL are successful stops.
func expectSignalExit(err error, name string) error {
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok {
			sig := status.Signal()
			if sig == syscall.SIGTERM || sig == syscall.SIGKILL {
				return nil
			}
		}
	}
	return fmt.Errorf("%s: %w", name, err)
}
