package core

import (
	"context"
	"errors"
	"time"

	"github.com/giantswarm/enginectl/internal/process"
	"github.com/giantswarm/enginectl/internal/registry"
	"github.com/giantswarm/enginectl/internal/terminator"
)

// methodHandleAndScan is the Report method when both strategies ran.
const methodHandleAndScan = terminator.MethodHandle + "+" + terminator.MethodScan

// StopOptions configures Stop. Zero durations select the configured ones.
type StopOptions struct {
	// Name overrides the configured process name.
	Name string
	// Scan also stops untracked processes whose command line contains Name.
	Scan bool
	// Force sends SIGKILL without a SIGTERM first.
	Force   bool
	Grace   time.Duration
	Timeout time.Duration
}

// Stop stops the engine. Live launch records are stopped by handle; when
// there are none, or opts.Scan is set, processes are also found by scanning
// command lines for the process name. Finding nothing is not an error: the
// report's Outcome is then terminator.OutcomeNothingToStop.
//
// The returned error joins the per-process failures, such as
// process.ErrPermissionDenied.
func (s *Supervisor) Stop(ctx context.Context, opts StopOptions) (terminator.Report, error) {
	name := opts.Name
	if name == "" {
		name = s.config.Engine.ProcessName
	}
	topts := terminator.Options{
		Name:    name,
		Grace:   opts.Grace,
		Timeout: opts.Timeout,
		Force:   opts.Force,
		Lister:  s.lister,
		Prober:  s.prober,
		Logger:  s.log,
	}
	if topts.Grace <= 0 {
		topts.Grace = s.config.GracePeriod
	}
	if topts.Timeout <= 0 {
		topts.Timeout = s.config.StopTimeout
	}

	report := terminator.Report{Method: terminator.MethodHandle, Name: name}

	ss, err := s.begin(ctx)
	if err != nil {
		return report, err
	}
	defer ss.close(s.log)

	live, err := s.reconcile(ctx, ss.store, name)
	if err != nil {
		return report, err
	}

	var handled []int
	if len(live) > 0 {
		targets := make([]terminator.Target, 0, len(live))
		for _, rec := range live {
			targets = append(targets, terminator.Target{Handle: rec.Handle(), Cmdline: joinArgv(rec.Argv)})
			handled = append(handled, rec.PID)
		}
		report.Results = terminator.StopAll(ctx, targets, topts).Results
		s.recordStops(ctx, ss.store, live, report.Results)
	}

	if len(live) == 0 || opts.Scan {
		topts.Exclude = handled
		scanned, err := terminator.Terminate(ctx, topts)
		if err != nil {
			return report, err
		}
		if len(live) == 0 {
			report.Method = terminator.MethodScan
		} else {
			report.Method = methodHandleAndScan
		}
		report.Results = append(report.Results, scanned.Results...)
	}

	s.metrics.Stops.WithLabelValues(report.Method, report.Outcome()).Inc()
	for _, res := range report.Results {
		if res.Signaled() {
			s.metrics.StoppedProcesses.WithLabelValues(signalLabel(res.Signal)).Inc()
		}
	}
	s.log.Info("stop finished", "name", name, "method", report.Method,
		"outcome", report.Outcome(), "stopped", report.Stopped())
	return report, report.Err()
}

// recordStops marks every record whose process is gone. Records whose stop
// failed stay active.
func (s *Supervisor) recordStops(ctx context.Context, store *registry.Store, recs []registry.Record, results []terminator.Result) {
	for i, res := range results {
		switch {
		case res.Err == nil:
			s.markStopped(ctx, store, recs[i].ID, terminator.OutcomeStopped)
		case errors.Is(res.Err, process.ErrAlreadyExited), errors.Is(res.Err, process.ErrProcessNotFound):
			s.markStopped(ctx, store, recs[i].ID, OutcomeExited)
		}
	}
}
