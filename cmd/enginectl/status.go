package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/giantswarm/enginectl"
)

const (
	outputText = "text"
	outputJSON = "json"
)

type launchView struct {
	ID         string     `json:"id"`
	PID        int        `json:"pid"`
	Alive      bool       `json:"alive"`
	Argv       []string   `json:"argv"`
	LogPath    string     `json:"logPath"`
	PodName    string     `json:"podName"`
	PodIP      string     `json:"podIP"`
	LaunchedAt time.Time  `json:"launchedAt"`
	StoppedAt  *time.Time `json:"stoppedAt,omitempty"`
	Outcome    string     `json:"outcome,omitempty"`
}

type processView struct {
	PID     int    `json:"pid"`
	Cmdline string `json:"cmdline"`
}

type statusView struct {
	Name      string        `json:"name"`
	Running   bool          `json:"running"`
	Launches  []launchView  `json:"launches"`
	Untracked []processView `json:"untracked"`
}

func newStatusView(st enginectl.Status) statusView {
	v := statusView{
		Name:      st.Name,
		Running:   st.Running(),
		Launches:  make([]launchView, 0, len(st.Launches)),
		Untracked: make([]processView, 0, len(st.Untracked)),
	}
	for _, l := range st.Launches {
		lv := launchView{
			ID:         l.ID,
			PID:        l.PID,
			Alive:      l.Alive,
			Argv:       l.Argv,
			LogPath:    l.LogPath,
			PodName:    l.PodName,
			PodIP:      l.PodIP,
			LaunchedAt: l.LaunchedAt,
			Outcome:    l.Outcome,
		}
		if !l.Active() {
			stopped := l.StoppedAt
			lv.StoppedAt = &stopped
		}
		v.Launches = append(v.Launches, lv)
	}
	for _, p := range st.Untracked {
		v.Untracked = append(v.Untracked, processView{PID: p.PID, Cmdline: p.Cmdline})
	}
	return v
}

func newStatusCmd(a *app) *cobra.Command {
	output := outputText

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show recent launches and running engine processes",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if output != outputText && output != outputJSON {
				return usageError{err: fmt.Errorf("--output must be %q or %q, got %q", outputText, outputJSON, output)}
			}
			sup, err := a.supervisor()
			if err != nil {
				return err
			}
			st, err := sup.Status(cmd.Context())
			if err != nil {
				return err
			}
			if output == outputJSON {
				enc := json.NewEncoder(a.out)
				enc.SetIndent("", "  ")
				return enc.Encode(newStatusView(st))
			}
			return printStatus(a, st, time.Now())
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", output, "output format: text or json")
	return cmd
}

func printStatus(a *app, st enginectl.Status, now time.Time) error {
	state := "not running"
	if st.Running() {
		state = "running"
	}
	a.printf("engine %s: %s\n", st.Name, state)

	if len(st.Launches) > 0 {
		a.printf("\n")
		w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tPID\tSTATE\tLAUNCHED\tUPTIME\tLOG") //nolint:errcheck
		for _, l := range st.Launches {
			fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\t%s\n", //nolint:errcheck
				shortID(l.ID), l.PID, launchState(l), l.LaunchedAt.Local().Format(time.DateTime),
				l.Uptime(now).Truncate(time.Second), l.LogPath)
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}

	if len(st.Untracked) > 0 {
		a.printf("\nuntracked processes:\n")
		w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "PID\tCOMMAND") //nolint:errcheck
		for _, p := range st.Untracked {
			fmt.Fprintf(w, "%d\t%s\n", p.PID, p.Cmdline) //nolint:errcheck
		}
		return w.Flush()
	}
	return nil
}

func launchState(l enginectl.EngineStatus) string {
	switch {
	case l.Alive:
		return "running"
	case l.Active():
		return "gone"
	default:
		return l.Outcome
	}
}

func shortID(id string) string {
	if i := strings.IndexByte(id, '-'); i > 0 {
		return id[:i]
	}
	return id
}
