package terminator

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/giantswarm/enginectl/internal/process"
	"github.com/giantswarm/enginectl/internal/proctable"
)

const engineCmdline = "python3 -m vllm.entrypoints.openai.api_server --model facebook/opt-125m"

// startEngine starts a stand-in engine in its own process group and reaps it
// in the background.
func startEngine(t *testing.T) (int, <-chan struct{}) {
	t.Helper()

	cmd := exec.Command("sleep", "60")
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	require.NoError(t, cmd.Start())
	reaped := make(chan struct{})
	go func() {
		_ = cmd.Wait()
		close(reaped)
	}()
	pid := cmd.Process.Pid
	t.Cleanup(func() {
		_ = syscall.Kill(-pid, syscall.SIGKILL)
		<-reaped
	})
	return pid, reaped
}

func staticLister(procs ...proctable.Proc) func(context.Context) ([]proctable.Proc, error) {
	return func(context.Context) ([]proctable.Proc, error) { return procs, nil }
}

func testOptions(lister func(context.Context) ([]proctable.Proc, error)) Options {
	return Options{
		Name:    "vllm.entrypoints.openai.api_server",
		Grace:   2 * time.Second,
		Timeout: 5 * time.Second,
		Lister:  lister,
		Prober:  process.SignalProber{},
	}
}

func TestTerminate_NothingToStop(t *testing.T) {
	t.Parallel()

	opts := testOptions(staticLister(proctable.Proc{PID: 999999, Cmdline: "bash"}))
	report, err := Terminate(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNothingToStop, report.Outcome())
	assert.Empty(t, report.Results)
	assert.NoError(t, report.Err())
}

func TestTerminate_EmptyNameMatchesNothing(t *testing.T) {
	t.Parallel()

	opts := testOptions(func(context.Context) ([]proctable.Proc, error) {
		t.Error("lister must not be called for an empty name")
		return nil, nil
	})
	opts.Name = ""
	report, err := Terminate(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNothingToStop, report.Outcome())
}

func TestTerminate_StopsEveryMatch(t *testing.T) {
	t.Parallel()

	pid1, reaped1 := startEngine(t)
	pid2, reaped2 := startEngine(t)
	opts := testOptions(staticLister(
		proctable.Proc{PID: pid1, PGID: pid1, Cmdline: engineCmdline},
		proctable.Proc{PID: pid2, PGID: pid2, Cmdline: engineCmdline + " --port 8001"},
	))

	report, err := Terminate(context.Background(), opts)
	require.NoError(t, err)
	require.Len(t, report.Results, 2)
	assert.Equal(t, MethodScan, report.Method)
	assert.Equal(t, OutcomeStopped, report.Outcome())
	assert.Equal(t, 2, report.Stopped())
	assert.NoError(t, report.Err())
	for _, res := range report.Results {
		assert.Equal(t, syscall.SIGTERM, res.Signal, "pid %d", res.PID)
	}
	<-reaped1
	<-reaped2
}

func TestTerminate_ForceKills(t *testing.T) {
	t.Parallel()

	pid, reaped := startEngine(t)
	opts := testOptions(staticLister(proctable.Proc{PID: pid, PGID: pid, Cmdline: engineCmdline}))
	opts.Force = true

	report, err := Terminate(context.Background(), opts)
	require.NoError(t, err)
	require.Len(t, report.Results, 1)
	assert.Equal(t, syscall.SIGKILL, report.Results[0].Signal)
	<-reaped
}

func TestTerminate_ExcludedPID(t *testing.T) {
	t.Parallel()

	pid, _ := startEngine(t)
	opts := testOptions(staticLister(proctable.Proc{PID: pid, Cmdline: engineCmdline}))
	opts.Exclude = []int{pid}

	report, err := Terminate(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNothingToStop, report.Outcome())
	assert.True(t, process.SignalAlive(pid), "excluded process must not be signaled")
}

func TestTerminate_SparesGroupMembersWithoutName(t *testing.T) {
	t.Parallel()

	// The shell leads its own group; its background sleep shares the group
	// but not the command line.
	cmd := exec.Command("sh", "-c", "sleep 60 & echo $!; wait")
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	stdout, err := cmd.StdoutPipe()
	require.NoError(t, err)
	require.NoError(t, cmd.Start())
	leader := cmd.Process.Pid
	reaped := make(chan struct{})
	line, readErr := bufio.NewReader(stdout).ReadString('\n')
	go func() {
		_ = cmd.Wait()
		close(reaped)
	}()
	require.NoError(t, readErr)
	member, err := strconv.Atoi(strings.TrimSpace(line))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = syscall.Kill(-leader, syscall.SIGKILL)
		<-reaped
	})

	opts := testOptions(staticLister(
		proctable.Proc{PID: leader, PGID: leader, Cmdline: engineCmdline},
		proctable.Proc{PID: member, PPID: leader, PGID: leader, Cmdline: "sleep 60"},
	))
	report, err := Terminate(context.Background(), opts)
	require.NoError(t, err)
	require.Len(t, report.Results, 1)
	assert.Equal(t, leader, report.Results[0].PID)
	assert.Equal(t, OutcomeStopped, report.Outcome())
	<-reaped

	assert.True(t, process.SignalAlive(member), "group member %d without the name must not be signaled", member)
}

func TestLogNoMatch(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		fullCmdline bool
		wantLevel   string
	}{
		"full command lines":    {fullCmdline: true, wantLevel: "level=INFO"},
		"executable names only": {fullCmdline: false, wantLevel: "level=WARN"},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			logger := slog.New(slog.NewTextHandler(&buf, nil))
			logNoMatch(logger, "vllm.entrypoints.openai.api_server", tc.fullCmdline)
			assert.Contains(t, buf.String(), tc.wantLevel)
			assert.Contains(t, buf.String(), "name=vllm.entrypoints.openai.api_server")
		})
	}
}

func TestTerminate_ListerError(t *testing.T) {
	t.Parallel()

	boom := errors.New("procfs unavailable")
	opts := testOptions(func(context.Context) ([]proctable.Proc, error) { return nil, boom })
	_, err := Terminate(context.Background(), opts)
	require.ErrorIs(t, err, boom)
}

func TestTerminate_MatchAlreadyGone(t *testing.T) {
	t.Parallel()

	pid, reaped := startEngine(t)
	require.NoError(t, syscall.Kill(pid, syscall.SIGKILL))
	<-reaped

	opts := testOptions(staticLister(proctable.Proc{PID: pid, Cmdline: engineCmdline}))
	report, err := Terminate(context.Background(), opts)
	require.NoError(t, err)
	require.Len(t, report.Results, 1)
	assert.ErrorIs(t, report.Results[0].Err, process.ErrAlreadyExited)
	assert.Equal(t, OutcomeNothingToStop, report.Outcome())
	assert.NoError(t, report.Err(), "a process that exited on its own is not a failure")
}

func TestReport(t *testing.T) {
	t.Parallel()

	denied := fmt.Errorf("send terminated to pid 3: %w", process.ErrPermissionDenied)
	tests := map[string]struct {
		results     []Result
		wantOutcome string
		wantStopped int
		wantErr     error
	}{
		"empty": {
			wantOutcome: OutcomeNothingToStop,
		},
		"one stopped, one gone": {
			results: []Result{
				{PID: 1, StopResult: process.StopResult{Signal: syscall.SIGTERM}},
				{PID: 2, Err: process.ErrAlreadyExited},
			},
			wantOutcome: OutcomeStopped,
			wantStopped: 1,
		},
		"permission denied only": {
			results:     []Result{{PID: 3, Err: denied}},
			wantOutcome: OutcomeNothingToStop,
			wantErr:     process.ErrPermissionDenied,
		},
		"survived SIGKILL": {
			results: []Result{
				{PID: 4, StopResult: process.StopResult{Signal: syscall.SIGKILL, Escalated: true}, Err: process.ErrStillRunning},
			},
			wantOutcome: OutcomeStopped,
			wantStopped: 1,
			wantErr:     process.ErrStillRunning,
		},
		"mixed failure": {
			results: []Result{
				{PID: 1, StopResult: process.StopResult{Signal: syscall.SIGKILL, Escalated: true}},
				{PID: 3, Err: denied},
			},
			wantOutcome: OutcomeStopped,
			wantStopped: 1,
			wantErr:     process.ErrPermissionDenied,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			r := Report{Results: tc.results}
			assert.Equal(t, tc.wantOutcome, r.Outcome())
			assert.Equal(t, tc.wantStopped, r.Stopped())
			if tc.wantErr == nil {
				assert.NoError(t, r.Err())
			} else {
				assert.ErrorIs(t, r.Err(), tc.wantErr)
			}
		})
	}
}

func TestStopAll_PreservesOrder(t *testing.T) {
	t.Parallel()

	var targets []Target
	var reaped []<-chan struct{}
	for range 4 {
		pid, ch := startEngine(t)
		targets = append(targets, Target{Handle: process.Handle{PID: pid, PGID: pid}, Cmdline: engineCmdline})
		reaped = append(reaped, ch)
	}

	opts := testOptions(nil)
	opts.Concurrency = 2
	report := StopAll(context.Background(), targets, opts)

	require.Len(t, report.Results, len(targets))
	assert.Equal(t, MethodHandle, report.Method)
	for i, res := range report.Results {
		assert.Equal(t, targets[i].Handle.PID, res.PID)
		assert.NoError(t, res.Err)
	}
	for _, ch := range reaped {
		<-ch
	}
}
