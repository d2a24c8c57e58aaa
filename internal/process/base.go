package process

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"github.com/giantswarm/enginectl/internal/fileutil"
	"github.com/giantswarm/enginectl/internal/sentinel"
)

// ErrAlreadyStarted is returned when SetupAndStart is called on a process
// that is still owned by this BaseProcess.
const ErrAlreadyStarted = sentinel.Error("process already started")

// ErrNilCmd is returned when SetupAndStart is called with a nil *exec.Cmd.
const ErrNilCmd = sentinel.Error("cmd must not be nil")

// ErrEmptyCmdPath is returned when SetupAndStart is called with an empty cmd.Path.
const ErrEmptyCmdPath = sentinel.Error("cmd.Path must not be empty")

// ErrEmptyLogPath is returned when SetupAndStart is called without a log file path.
const ErrEmptyLogPath = sentinel.Error("log path must not be empty")

// Mode selects how a started process relates to this program.
type Mode int

const (
	// Attached processes receive SIGTERM on Linux if this program dies and
	// are expected to be stopped through Stop.
	Attached Mode = iota
	// Detached processes survive this program. Call Detach once the launch
	// is complete.
	Detached
)

// BaseProcess owns one started command. Embed it in a package-specific
// process type to reuse Stop, Close and Detach.
//
// BaseProcess is not safe for concurrent use, apart from Exited, whose channel
// may be selected on from any goroutine.
type BaseProcess struct {
	cmd         *exec.Cmd
	waitDone    <-chan error    // receives cmd.Wait result; started once in SetupAndStart
	exited      <-chan struct{} // closed when the process exits
	logFile     *os.File
	logPath     string
	name        string
	mode        Mode
	log         *slog.Logger
	stopTimeout time.Duration // used by Close; zero means DefaultStopTimeout
}

// NewBaseProcess creates a BaseProcess. A nil logger means slog.Default().
// Panics if name is empty.
func NewBaseProcess(name string, mode Mode, logger *slog.Logger, stopTimeout time.Duration) BaseProcess {
	if name == "" {
		panic("enginectl: process name must not be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return BaseProcess{name: name, mode: mode, log: logger, stopTimeout: stopTimeout}
}

// Stop sends SIGTERM to the process group, escalates to SIGKILL after the
// grace period, and waits up to timeout for the exit. Exits caused by either
// signal count as success. Stop on a process that was never started or was
// detached returns nil.
func (b *BaseProcess) Stop(timeout time.Duration) error {
	if b.cmd == nil || b.cmd.Process == nil {
		b.forget()
		return nil
	}
	pid := b.cmd.Process.Pid
	err := stopWithDone(b.cmd, b.waitDone, timeout, b.name)
	if err != nil {
		b.log.Warn("process stop failed; process may be orphaned",
			"process", b.name, "pid", pid, "error", err)
	}
	b.forget()
	return err
}

// Close releases the parent's handle on the log file. An attached process
// that is still running is stopped first.
func (b *BaseProcess) Close() {
	if b.cmd != nil && b.mode == Attached {
		b.log.Warn("process.Close called without Stop; stopping automatically",
			"process", b.name)
		timeout := b.stopTimeout
		if timeout <= 0 {
			timeout = DefaultStopTimeout
		}
		if err := b.Stop(timeout); err != nil {
			b.log.Warn("auto-stop during Close failed",
				"process", b.name, "error", err)
		}
	}
	b.closeLog()
}

// Detach gives up ownership of a running process and returns its handle.
// The process keeps running and keeps writing to its log file; only this
// program's copy of the log descriptor is closed. The cmd.Wait goroutine is
// left in place and ends when the process does or when this program exits.
func (b *BaseProcess) Detach() (Handle, error) {
	if b.cmd == nil || b.cmd.Process == nil {
		return Handle{}, fmt.Errorf("detach %s: %w", b.name, ErrNotStarted)
	}
	pid := b.cmd.Process.Pid
	h := Handle{PID: pid, PGID: pid}
	b.forget()
	b.closeLog()
	b.log.Debug("process detached", "process", b.name, "pid", pid)
	return h, nil
}

// Logger returns the logger used by this process.
func (b *BaseProcess) Logger() *slog.Logger {
	return b.log
}

// Exited returns a channel that is closed when the process exits, or nil when
// nothing is running.
func (b *BaseProcess) Exited() <-chan struct{} {
	return b.exited
}

// IsStarted reports whether a process is owned and not yet stopped or detached.
func (b *BaseProcess) IsStarted() bool {
	return b.cmd != nil
}

// PID returns the process ID, or 0 when nothing is running.
func (b *BaseProcess) PID() int {
	if b.cmd == nil || b.cmd.Process == nil {
		return 0
	}
	return b.cmd.Process.Pid
}

// LogPath returns the log file the process writes to.
func (b *BaseProcess) LogPath() string {
	return b.logPath
}

// SetupAndStart opens logPath in append mode, points both stdout and stderr
// of cmd at it, places cmd in a new process group, and starts it. The cmd
// must already have its Path and Args set. workDir may be empty to inherit
// the current directory.
//
// Exactly one goroutine calls cmd.Wait; its result is consumed by Stop and
// its completion closes the Exited channel.
func (b *BaseProcess) SetupAndStart(cmd *exec.Cmd, workDir, logPath string) error {
	if cmd == nil {
		return ErrNilCmd
	}
	if cmd.Path == "" {
		return ErrEmptyCmdPath
	}
	if logPath == "" {
		return ErrEmptyLogPath
	}
	if b.cmd != nil {
		return ErrAlreadyStarted
	}

	logFile, err := fileutil.OpenAppend(logPath)
	if err != nil {
		return fmt.Errorf("open %s log: %w", b.name, err)
	}

	cmd.Dir = workDir
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	configureSysProcAttr(cmd, b.mode)

	if err := cmd.Start(); err != nil {
		_ = logFile.Close()
		return fmt.Errorf("start %s process: %w", b.name, err)
	}
	b.cmd = cmd
	b.logFile = logFile
	b.logPath = logPath

	done := make(chan error, 1)
	exited := make(chan struct{})
	go func() {
		done <- cmd.Wait()
		close(exited)
	}()
	b.waitDone = done
	b.exited = exited

	b.log.Debug("process started", "process", b.name, "pid", cmd.Process.Pid, "log", logPath)
	return nil
}

func (b *BaseProcess) forget() {
	b.cmd = nil
	b.waitDone = nil
	b.exited = nil
}

func (b *BaseProcess) closeLog() {
	if b.logFile != nil {
		_ = b.logFile.Close()
		b.logFile = nil
	}
}
