package proctable

import (
	"context"
	"os"
	"os/exec"
	"slices"
	"testing"
)

func TestMatch(t *testing.T) {
	t.Parallel()

	procs := []Proc{
		{PID: 10, Cmdline: "python3 -m vllm.entrypoints.openai.api_server --model m"},
		{PID: 11, Cmdline: "bash"},
		{PID: 12, Cmdline: "enginectl stop --name vllm.entrypoints.openai.api_server"},
		{PID: 13, Cmdline: "python3 -m vllm.entrypoints.openai.api_server --port 8001"},
	}

	tests := map[string]struct {
		substr  string
		exclude []int
		want    []int
	}{
		"matches all engines and the cli": {substr: "vllm.entrypoints.openai.api_server", want: []int{10, 12, 13}},
		"excludes self":                   {substr: "vllm.entrypoints.openai.api_server", exclude: []int{12}, want: []int{10, 13}},
		"narrower substring":              {substr: "--port 8001", want: []int{13}},
		"no match":                        {substr: "sglang", want: nil},
		"empty substring matches nothing": {substr: "", want: nil},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			var got []int
			for _, p := range Match(procs, tc.substr, tc.exclude) {
				got = append(got, p.PID)
			}
			if !slices.Equal(got, tc.want) {
				t.Errorf("Match() pids = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestSelfAndAncestors(t *testing.T) {
	t.Parallel()

	self, parent := os.Getpid(), os.Getppid()
	procs := []Proc{
		{PID: self, PPID: parent},
		{PID: parent, PPID: 7001},
		{PID: 7001, PPID: 1},
		{PID: 7002, PPID: 7001},
	}

	got := SelfAndAncestors(procs)
	want := []int{self, parent, 7001}
	if parent <= 1 {
		want = []int{self}
	}
	if !slices.Equal(got, want) {
		t.Errorf("SelfAndAncestors() = %v, want %v", got, want)
	}
}

func TestList_IncludesChild(t *testing.T) {
	t.Parallel()

	cmd := exec.Command("sleep", "60")
	if err := cmd.Start(); err != nil {
		t.Fatalf("start sleep: %v", err)
	}
	t.Cleanup(func() {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
	})

	procs, err := List(context.Background())
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if !slices.IsSortedFunc(procs, func(a, b Proc) int { return a.PID - b.PID }) {
		t.Error("List() result is not sorted by PID")
	}
	i := slices.IndexFunc(procs, func(p Proc) bool { return p.PID == cmd.Process.Pid })
	if i < 0 {
		t.Fatalf("child pid %d not listed", cmd.Process.Pid)
	}
	if procs[i].PPID != os.Getpid() {
		t.Errorf("PPID = %d, want %d", procs[i].PPID, os.Getpid())
	}
	if len(Match(procs, "sleep", nil)) == 0 {
		t.Error("Match(sleep) found nothing")
	}
}

func TestList_CanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := List(ctx); err == nil {
		t.Fatal("expected error for canceled context")
	}
}
