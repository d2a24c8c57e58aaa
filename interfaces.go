package enginectl

import (
	"context"

	"github.com/giantswarm/enginectl/internal/core"
	"github.com/giantswarm/enginectl/internal/registry"
	"github.com/giantswarm/enginectl/internal/terminator"
)

type (
	// LaunchOptions configures Supervisor.Launch.
	LaunchOptions = core.LaunchOptions
	// StopOptions configures Supervisor.Stop.
	StopOptions = core.StopOptions
	// RunOptions configures Supervisor.Run.
	RunOptions = core.RunOptions

	// Launch is the record of one engine launch.
	Launch = registry.Record
	// Status lists recent launches and untracked engine processes.
	Status = core.Status
	// EngineStatus is a Launch annotated with whether the engine still runs.
	EngineStatus = core.EngineStatus

	// StopReport describes what Stop did, process by process.
	StopReport = terminator.Report
	// StopResult is the outcome for one process.
	StopResult = terminator.Result
)

// Stop outcomes, as returned by StopReport.Outcome.
const (
	OutcomeStopped       = terminator.OutcomeStopped
	OutcomeNothingToStop = terminator.OutcomeNothingToStop
)

// Supervisor launches and stops the engine.
//
// All methods may be called from separate programs sharing a state
// directory; launches and stops are serialized by a file lock.
type Supervisor interface {
	// Launch starts the engine in the background, detached from this
	// program, and returns once it is spawned or, with Wait, once it is
	// healthy. The engine's stdout and stderr are appended to
	// <LOG_PATH>/app_<POD_NAME>_<POD_IP>.log.
	//
	// Returns ErrAlreadyRunning if a launched engine is still alive,
	// ErrPortInUse if the service port is taken, and with Wait,
	// ErrEngineExited if the engine dies while starting.
	Launch(ctx context.Context, opts LaunchOptions) (Launch, error)

	// Stop stops recorded engines by handle and, when none is recorded or
	// opts.Scan is set, every process whose command line contains the
	// process name. Processes get SIGTERM and, after the grace period,
	// SIGKILL; opts.Force sends SIGKILL straight away.
	//
	// Finding nothing is not an error. The error joins per-process failures
	// such as ErrPermissionDenied; the report is valid either way.
	Stop(ctx context.Context, opts StopOptions) (StopReport, error)

	// Status reports recent launches and untracked engine processes.
	Status(ctx context.Context) (Status, error)

	// Run starts the engine attached to this program and supervises it until
	// ctx is canceled or the engine exits. Returns nil after a clean stop and
	// an error wrapping ErrEngineExited when the engine fails on its own.
	Run(ctx context.Context, opts RunOptions) error
}
