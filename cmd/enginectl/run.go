package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/giantswarm/enginectl"
)

func newRunCmd(a *app) *cobra.Command {
	var probesPort int

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the engine in the foreground",
		Long: `Start the engine as a child of this process and supervise it until
SIGINT or SIGTERM arrives, then stop it gracefully. Exits non-zero when the
engine fails on its own.

With --probes-port, serves GET /live, GET /ready and GET /metrics.`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if probesPort < 0 || probesPort > 65535 {
				return usageError{err: fmt.Errorf("--probes-port must be between 0 and 65535, got %d", probesPort)}
			}
			sup, err := a.supervisor()
			if err != nil {
				return err
			}
			var opts enginectl.RunOptions
			if probesPort > 0 {
				opts.ProbesAddr = ":" + strconv.Itoa(probesPort)
			}
			return sup.Run(cmd.Context(), opts)
		},
	}
	cmd.Flags().IntVar(&probesPort, "probes-port", 0, "port for the probes server; 0 disables it")
	return cmd
}
