package main

import (
	"github.com/spf13/cobra"

	"github.com/giantswarm/enginectl"
)

func newLaunchCmd(a *app) *cobra.Command {
	var opts enginectl.LaunchOptions

	cmd := &cobra.Command{
		Use:   "launch",
		Short: "Start the engine in the background",
		Long: `Start the engine detached from this terminal and return.

With --wait, block until GET http://$HOST:$PORT/health answers 200. If the
engine exits while starting, the last lines of its log are shown.`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sup, err := a.supervisor()
			if err != nil {
				return err
			}
			launch, err := sup.Launch(cmd.Context(), opts)
			if err != nil {
				return err
			}
			a.printf("launched engine (pid %d), logging to %s\n", launch.PID, launch.LogPath)
			return nil
		},
	}
	cmd.Flags().BoolVar(&opts.Wait, "wait", false, "wait until the engine reports healthy")
	cmd.Flags().DurationVar(&opts.ReadyTimeout, "ready-timeout", 0,
		"how long --wait waits (default "+enginectl.DefaultReadyTimeout.String()+")")
	return cmd
}
