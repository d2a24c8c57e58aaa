// Package terminator stops engine processes, either every process whose
// command line contains a name or an explicit list of handles, and reports
// per-PID results.
package terminator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/giantswarm/enginectl/internal/process"
	"github.com/giantswarm/enginectl/internal/proctable"
)

// Report outcomes.
const (
	OutcomeStopped       = "stopped"
	OutcomeNothingToStop = "nothing to stop"
)

// Methods recorded in a Report.
const (
	MethodScan   = "scan"
	MethodHandle = "handle"
)

// DefaultConcurrency bounds how many processes are stopped in parallel.
const DefaultConcurrency = 8

// Options configures Terminate and StopAll.
type Options struct {
	// Name is the command-line substring Terminate matches on.
	Name    string
	Grace   time.Duration
	Timeout time.Duration
	// Force sends SIGKILL without a SIGTERM first.
	Force       bool
	Concurrency int
	// Exclude lists PIDs never to signal, on top of this program and its
	// ancestors.
	Exclude []int
	// Lister defaults to proctable.List.
	Lister func(context.Context) ([]proctable.Proc, error)
	// Prober defaults to proctable.OS.
	Prober process.Prober
	Logger *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.Concurrency <= 0 {
		o.Concurrency = DefaultConcurrency
	}
	if o.Lister == nil {
		o.Lister = proctable.List
	}
	if o.Prober == nil {
		o.Prober = proctable.OS{}
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Target is one process to stop.
type Target struct {
	Handle  process.Handle
	Cmdline string
}

// Result is the outcome for one target.
type Result struct {
	PID     int
	Cmdline string
	process.StopResult
	Err error
}

// Signaled reports whether this program delivered a signal to the process.
// A process that survived the signal still counts; its failure is in Err.
func (r Result) Signaled() bool {
	return r.Signal != 0
}

// Report summarizes a stop.
type Report struct {
	Method  string
	Name    string
	Results []Result
}

// Stopped returns how many processes were signaled.
func (r Report) Stopped() int {
	n := 0
	for _, res := range r.Results {
		if res.Signaled() {
			n++
		}
	}
	return n
}

// Outcome is OutcomeStopped when at least one process was signaled and
// OutcomeNothingToStop otherwise.
func (r Report) Outcome() string {
	if r.Stopped() > 0 {
		return OutcomeStopped
	}
	return OutcomeNothingToStop
}

// Err joins the per-process failures. Processes that exited on their own
// before being signaled are not failures.
func (r Report) Err() error {
	var errs []error
	for _, res := range r.Results {
		if res.Err != nil && !errors.Is(res.Err, process.ErrAlreadyExited) {
			errs = append(errs, fmt.Errorf("pid %d: %w", res.PID, res.Err))
		}
	}
	return errors.Join(errs...)
}

// Terminate stops every process whose command line contains opts.Name,
// never including this program or its ancestors. Finding no process is not
// an error. The returned error covers listing failures only; per-process
// failures are in the Report.
func Terminate(ctx context.Context, opts Options) (Report, error) {
	opts = opts.withDefaults()
	report := Report{Method: MethodScan, Name: opts.Name}
	if opts.Name == "" {
		return report, nil
	}

	procs, err := opts.Lister(ctx)
	if err != nil {
		return report, fmt.Errorf("list processes: %w", err)
	}
	exclude := append(proctable.SelfAndAncestors(procs), opts.Exclude...)
	matches := proctable.Match(procs, opts.Name, exclude)
	if len(matches) == 0 {
		logNoMatch(opts.Logger, opts.Name, proctable.FullCmdline)
		return report, nil
	}

	// Matches are signaled by PID only: other members of a matching
	// leader's group need not contain the name.
	targets := make([]Target, 0, len(matches))
	for _, p := range matches {
		targets = append(targets, Target{Handle: p.Handle(), Cmdline: p.Cmdline})
	}
	report.Results = StopAll(ctx, targets, opts).Results
	return report, nil
}

func logNoMatch(logger *slog.Logger, name string, fullCmdline bool) {
	if fullCmdline {
		logger.Info("no matching process", "name", name)
		return
	}
	logger.Warn("no matching process; this platform exposes executable names only, not command lines",
		"name", name)
}

// StopAll stops targets concurrently, at most opts.Concurrency at a time.
// Results are in the order of targets.
func StopAll(ctx context.Context, targets []Target, opts Options) Report {
	opts = opts.withDefaults()
	report := Report{Method: MethodHandle, Name: opts.Name, Results: make([]Result, len(targets))}

	var g errgroup.Group
	g.SetLimit(opts.Concurrency)
	for i, target := range targets {
		g.Go(func() error {
			log := opts.Logger.With("pid", target.Handle.PID)
			res, err := process.StopPID(ctx, target.Handle, process.StopOptions{
				Grace:   opts.Grace,
				Timeout: opts.Timeout,
				Force:   opts.Force,
				Prober:  opts.Prober,
				Logger:  opts.Logger,
			})
			report.Results[i] = Result{PID: target.Handle.PID, Cmdline: target.Cmdline, StopResult: res, Err: err}
			switch {
			case err == nil:
				log.Info("process stopped", "signal", res.Signal, "escalated", res.Escalated, "elapsed", res.Elapsed)
			case errors.Is(err, process.ErrAlreadyExited):
				log.Info("process already exited")
			default:
				log.Warn("process stop failed", "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()
	return report
}
