package main

import (
	"github.com/spf13/cobra"

	"github.com/giantswarm/enginectl"
)

func newStopCmd(a *app) *cobra.Command {
	var opts enginectl.StopOptions

	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the engine",
		Long: `Stop the engine launched by "enginectl launch". When no launch is
recorded, or with --scan, every process whose command line contains the
process name is stopped as well.

Processes receive SIGTERM and, after the grace period, SIGKILL. --force sends
SIGKILL straight away. Prints "stopped" when at least one process was
stopped and "nothing to stop" otherwise.`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sup, err := a.supervisor()
			if err != nil {
				return err
			}
			report, err := sup.Stop(cmd.Context(), opts)
			a.printf("%s\n", report.Outcome())
			return err
		},
	}
	f := cmd.Flags()
	f.BoolVar(&opts.Scan, "scan", false, "also stop untracked processes found by command line")
	f.BoolVar(&opts.Force, "force", false, "send SIGKILL without SIGTERM first")
	f.DurationVar(&opts.Grace, "grace", 0,
		"time between SIGTERM and SIGKILL (default "+enginectl.DefaultGracePeriod.String()+")")
	f.DurationVar(&opts.Timeout, "timeout", 0,
		"upper bound for the whole stop (default "+enginectl.DefaultStopTimeout.String()+")")
	f.StringVar(&opts.Name, "name", "", "command-line substring to match instead of PROCESS_NAME")
	return cmd
}
