package core

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/giantswarm/enginectl/internal/engine"
	"github.com/giantswarm/enginectl/internal/metrics"
	"github.com/giantswarm/enginectl/internal/podinfo"
	"github.com/giantswarm/enginectl/internal/process"
	"github.com/giantswarm/enginectl/internal/proctable"
)

// State file names inside SupervisorConfig.StateDir.
const (
	registryFile = "state.db"
	lockFile     = "enginectl.lock"
)

// logTailLines is how many log lines are attached to start-up failures.
const logTailLines = 20

// PodResolver resolves the pod identity used to name the log file.
type PodResolver interface {
	Resolve(ctx context.Context) (podinfo.Identity, error)
}

// EngineConfig describes how to launch the engine.
type EngineConfig struct {
	Binary string
	// PrefixArgs come before the generated flags, e.g. "-m <module>".
	PrefixArgs []string
	Flags      engine.Flags
	// ProcessName is the command-line substring that identifies engine
	// processes when stopping by scan, and the key launch records are
	// stored under.
	ProcessName string
	// BaseDir is the engine's working directory.
	BaseDir string
	// LogDir receives app_<pod>_<ip>.log.
	LogDir string
	// Env is added to the engine's environment.
	Env []string
}

// Argv returns the full engine command line, binary first.
func (c EngineConfig) Argv() []string {
	return append([]string{c.Binary}, engine.BuildArgs(c.PrefixArgs, c.Flags)...)
}

// SupervisorConfig holds everything the Supervisor needs. All fields are
// read-only after NewSupervisor.
type SupervisorConfig struct {
	Engine   EngineConfig
	Pod      PodResolver
	StateDir string

	// StopTimeout bounds a whole stop; GracePeriod is the SIGTERM-to-SIGKILL
	// delay within it.
	StopTimeout time.Duration
	GracePeriod time.Duration
	// ReadyTimeout and ReadyPollInterval drive readiness waiting and the
	// health poller in Run.
	ReadyTimeout      time.Duration
	ReadyPollInterval time.Duration

	// Optional collaborators; nil selects the real implementation.
	Metrics *metrics.Metrics
	Prober  process.Prober
	Lister  func(context.Context) ([]proctable.Proc, error)
}

// Validate reports every violation of the settings needed by all
// operations. Launch-only settings are checked by ValidateLaunch.
func (c SupervisorConfig) Validate() error {
	var errs []error

	if c.Engine.ProcessName == "" {
		errs = append(errs, errors.New("process name must not be empty"))
	}
	if c.StateDir == "" {
		errs = append(errs, errors.New("state directory must not be empty"))
	}
	if c.StopTimeout <= 0 {
		errs = append(errs, fmt.Errorf("stop timeout must be greater than 0, got %s", c.StopTimeout))
	}
	if c.GracePeriod < 0 {
		errs = append(errs, fmt.Errorf("grace period must not be negative, got %s", c.GracePeriod))
	}
	if c.ReadyTimeout <= 0 {
		errs = append(errs, fmt.Errorf("ready timeout must be greater than 0, got %s", c.ReadyTimeout))
	}
	if c.ReadyPollInterval <= 0 {
		errs = append(errs, fmt.Errorf("ready poll interval must be greater than 0, got %s", c.ReadyPollInterval))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// ValidateLaunch reports every violation of the settings needed to start
// the engine.
func (c SupervisorConfig) ValidateLaunch() error {
	var errs []error
	e := c.Engine
	f := e.Flags

	if e.Binary == "" {
		errs = append(errs, errors.New("engine binary must not be empty"))
	}
	if f.Model == "" {
		errs = append(errs, errors.New("model name must not be empty (set MODEL_NAME)"))
	}
	if f.TensorParallelSize < 1 {
		errs = append(errs, fmt.Errorf("tensor parallel size must be at least 1, got %d", f.TensorParallelSize))
	}
	if f.Host == "" {
		errs = append(errs, errors.New("host must not be empty"))
	}
	if f.Port < 1 || f.Port > 65535 {
		errs = append(errs, fmt.Errorf("port must be between 1 and 65535, got %d", f.Port))
	}
	if f.GPUMemoryUtilization <= 0 || f.GPUMemoryUtilization > 1 {
		errs = append(errs, fmt.Errorf("gpu memory utilization must be in (0, 1], got %g", f.GPUMemoryUtilization))
	}
	if f.DType == "" {
		errs = append(errs, errors.New("dtype must not be empty"))
	}
	if e.LogDir == "" {
		errs = append(errs, errors.New("log directory must not be empty"))
	}
	if c.Pod == nil {
		errs = append(errs, errors.New("pod resolver must not be nil"))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

func (c SupervisorConfig) registryPath() string {
	return filepath.Join(c.StateDir, registryFile)
}

func (c SupervisorConfig) lockPath() string {
	return filepath.Join(c.StateDir, lockFile)
}
