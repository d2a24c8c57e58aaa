package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/exec"
	"strconv"
	"time"

	"github.com/giantswarm/enginectl/internal/netutil"
	"github.com/giantswarm/enginectl/internal/process"
)

// healthCheckTimeout is the per-request timeout of a health probe.
const healthCheckTimeout = 5 * time.Second

// DefaultHealthPath is the engine's health endpoint.
const DefaultHealthPath = "/health"

var _ process.Stoppable = (*Process)(nil)

// Config describes one engine process.
type Config struct {
	// Name labels the process in logs and errors.
	Name   string
	Binary string
	Args   []string
	// WorkDir is the engine's working directory; empty inherits ours.
	WorkDir string
	// LogPath receives stdout and stderr, appended.
	LogPath string
	// Env is added to this program's environment.
	Env []string
	// Host and Port locate the health endpoint.
	Host       string
	Port       int
	HealthPath string
	Mode       process.Mode
	// StopTimeout is used when Close has to stop a running attached engine.
	StopTimeout time.Duration

	Logger *slog.Logger
}

func (c Config) validate() error {
	if c.Binary == "" {
		return errors.New("binary must not be empty")
	}
	if c.LogPath == "" {
		return errors.New("log path must not be empty")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return errors.New("port must be between 1 and 65535")
	}
	return nil
}

// Process manages one engine process.
type Process struct {
	config Config
	base   process.BaseProcess
	client *http.Client
}

// New returns an unstarted engine process. It performs no I/O.
func New(cfg Config) (*Process, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid engine config: %w", err)
	}
	if cfg.Name == "" {
		cfg.Name = "engine"
	}
	if cfg.HealthPath == "" {
		cfg.HealthPath = DefaultHealthPath
	}
	return &Process{
		config: cfg,
		base:   process.NewBaseProcess(cfg.Name, cfg.Mode, cfg.Logger, cfg.StopTimeout),
		client: &http.Client{
			Transport: &http.Transport{DisableKeepAlives: true},
			Timeout:   healthCheckTimeout,
		},
	}, nil
}

// Start spawns the engine. It does not wait for readiness. Spawn failures
// such as a missing binary are returned.
func (p *Process) Start(_ context.Context) error {
	if p.base.IsStarted() {
		return process.ErrAlreadyStarted
	}
	// Not CommandContext: canceling ctx must not SIGKILL a detached engine.
	cmd := exec.Command(p.config.Binary, p.config.Args...)
	if len(p.config.Env) > 0 {
		cmd.Env = append(os.Environ(), p.config.Env...)
	}
	if err := p.base.SetupAndStart(cmd, p.config.WorkDir, p.config.LogPath); err != nil {
		return fmt.Errorf("setup and start %s process: %w", p.config.Name, err)
	}
	p.base.Logger().Info("engine started",
		"name", p.config.Name, "pid", p.base.PID(), "log", p.config.LogPath)
	return nil
}

// HealthURL is the URL probed by CheckHealth.
func (p *Process) HealthURL() string {
	host := netutil.ProbeHost(p.config.Host)
	return "http://" + net.JoinHostPort(host, strconv.Itoa(p.config.Port)) + p.config.HealthPath
}

// CheckHealth sends one GET to the health endpoint. Connection errors and
// non-200 answers mean not ready and are not returned as errors.
func (p *Process) CheckHealth(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.HealthURL(), http.NoBody)
	if err != nil {
		return false, fmt.Errorf("create health check request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return false, nil
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()
	return resp.StatusCode == http.StatusOK, nil
}

// WaitReady polls the health endpoint every interval until it answers 200.
// It fails fast with process.ErrProcessExited if the engine dies first.
func (p *Process) WaitReady(ctx context.Context, timeout, interval time.Duration) error {
	log := p.base.Logger()
	if err := process.WaitReady(ctx, process.WaitReadyConfig{
		Interval:      interval,
		Timeout:       timeout,
		Name:          p.config.Name,
		Target:        p.HealthURL(),
		Logger:        log,
		ProcessExited: p.base.Exited(),
	}, func(checkCtx context.Context, attempt int) (bool, error) {
		ready, err := p.CheckHealth(checkCtx)
		if err == nil && !ready {
			log.Debug("health check attempt", "name", p.config.Name, "attempt", attempt)
		}
		return ready, err
	}); err != nil {
		return fmt.Errorf("%s not ready: %w", p.config.Name, err)
	}
	return nil
}

// PID returns the engine's process ID, or 0 if it is not owned.
func (p *Process) PID() int {
	return p.base.PID()
}

// Exited is closed when an owned engine exits.
func (p *Process) Exited() <-chan struct{} {
	return p.base.Exited()
}

// LogPath returns the engine's log file.
func (p *Process) LogPath() string {
	return p.config.LogPath
}

// Detach releases ownership of the engine, which keeps running.
func (p *Process) Detach() (process.Handle, error) {
	return p.base.Detach()
}

// Stop terminates an owned engine.
func (p *Process) Stop(timeout time.Duration) error {
	return p.base.Stop(timeout)
}

// Close releases the log file handle, stopping an attached engine first if
// needed.
func (p *Process) Close() {
	p.base.Close()
	p.client.CloseIdleConnections()
}
