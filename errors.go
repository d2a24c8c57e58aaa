package enginectl

import (
	"github.com/giantswarm/enginectl/internal/core"
	"github.com/giantswarm/enginectl/internal/netutil"
	"github.com/giantswarm/enginectl/internal/process"
)

// Sentinel errors for error inspection with errors.Is.
// These are immutable constants safe for use in wrapped error chain comparison.
const (
	// ErrAlreadyRunning is returned by Launch and Run when a previously
	// launched engine is still alive.
	ErrAlreadyRunning = core.ErrAlreadyRunning

	// ErrNotRunning is returned by operations that need a running engine.
	ErrNotRunning = core.ErrNotRunning

	// ErrPortInUse is returned by Launch and Run when the service port is
	// already bound.
	ErrPortInUse = netutil.ErrPortInUse

	// ErrEngineExited is returned when the engine dies before becoming ready,
	// or, in Run, exits on its own with a failure status. The error message
	// carries the last lines of the engine log.
	ErrEngineExited = core.ErrEngineExited

	// ErrInvalidConfig wraps every settings and configuration error.
	ErrInvalidConfig = core.ErrInvalidConfig

	// ErrProcessNotFound is reported per process by Stop when a PID is
	// invalid or has been reused by an unrelated process.
	ErrProcessNotFound = process.ErrProcessNotFound

	// ErrPermissionDenied is reported per process by Stop when this program
	// may not signal the process.
	ErrPermissionDenied = process.ErrPermissionDenied

	// ErrAlreadyExited is reported per process by Stop when the process went
	// away between being found and being signaled. It does not make Stop fail.
	ErrAlreadyExited = process.ErrAlreadyExited

	// ErrStillRunning is reported per process by Stop when a process survives
	// SIGKILL for the whole stop timeout.
	ErrStillRunning = process.ErrStillRunning
)
