package enginectl

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variable names read by LoadSettings.
const (
	EnvModelName            = "MODEL_NAME"
	EnvTensorParallelSize   = "TENSOR_PARALLEL_SIZE"
	EnvHost                 = "HOST"
	EnvPort                 = "PORT"
	EnvGPUMemoryUtilization = "GPU_MEMORY_UTILIZATION"
	EnvDType                = "DTYPE"
	EnvExtraParams          = "EXTRA_PARAMS"
	EnvLogPath              = "LOG_PATH"
	EnvPodName              = "POD_NAME"
	EnvPodIP                = "POD_IP"
	EnvPodNamespace         = "POD_NAMESPACE"
	EnvBaseDir              = "BASE_DIR"
	EnvProcessName          = "PROCESS_NAME"
	EnvEngineBinary         = "ENGINE_BINARY"
	EnvEngineArgs           = "ENGINE_ARGS"
	EnvStopTimeout          = "ENGINECTL_STOP_TIMEOUT"
	EnvGracePeriod          = "ENGINECTL_GRACE_PERIOD"
	EnvReadyTimeout         = "ENGINECTL_READY_TIMEOUT"
)

// Settings is the complete, immutable configuration of enginectl. Build it
// with LoadSettings; the zero value is not usable.
type Settings struct {
	Model                string  `yaml:"model"`
	TensorParallelSize   int     `yaml:"tensorParallelSize"`
	Host                 string  `yaml:"host"`
	Port                 int     `yaml:"port"`
	GPUMemoryUtilization float64 `yaml:"gpuMemoryUtilization"`
	DType                string  `yaml:"dtype"`
	// ExtraParams is split into words with shell quoting rules.
	ExtraParams string `yaml:"extraParams"`

	// LogPath is the log directory, not a file.
	LogPath      string `yaml:"logPath"`
	PodName      string `yaml:"podName"`
	PodIP        string `yaml:"podIP"`
	PodNamespace string `yaml:"podNamespace"`
	BaseDir      string `yaml:"baseDir"`

	ProcessName  string `yaml:"processName"`
	EngineBinary string `yaml:"engineBinary"`
	EngineArgs   string `yaml:"engineArgs"`

	StopTimeout  time.Duration `yaml:"stopTimeout"`
	GracePeriod  time.Duration `yaml:"gracePeriod"`
	ReadyTimeout time.Duration `yaml:"readyTimeout"`
}

// DefaultSettings returns the settings used when neither a file nor the
// environment says otherwise. BaseDir and LogPath are left empty and are
// derived by LoadSettings.
func DefaultSettings() Settings {
	return Settings{
		TensorParallelSize:   DefaultTensorParallelSize,
		Host:                 DefaultHost,
		Port:                 DefaultPort,
		GPUMemoryUtilization: DefaultGPUMemoryUtilization,
		DType:                DefaultDType,
		ProcessName:          DefaultProcessName,
		EngineBinary:         DefaultEngineBinary,
		EngineArgs:           DefaultEngineArgs,
		StopTimeout:          DefaultStopTimeout,
		GracePeriod:          DefaultGracePeriod,
		ReadyTimeout:         DefaultReadyTimeout,
	}
}

// LoadSettings builds Settings from, in increasing precedence, the
// defaults, the YAML file at path (skipped when path is empty) and the
// environment. lookup reads the environment; nil means os.LookupEnv.
// Environment variables set to the empty string count as unset.
//
// Every malformed value is reported, joined, in an error wrapping
// ErrInvalidConfig. Launch-specific requirements such as MODEL_NAME are
// checked when launching, so stop and status work without them.
func LoadSettings(path string, lookup func(string) (string, bool)) (Settings, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	s := DefaultSettings()

	if path != "" {
		if err := s.loadFile(path); err != nil {
			return Settings{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	}
	if err := s.applyEnv(lookup); err != nil {
		return Settings{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	if s.BaseDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return Settings{}, fmt.Errorf("determine base directory: %w", err)
		}
		s.BaseDir = wd
	}
	if s.LogPath == "" {
		s.LogPath = filepath.Join(s.BaseDir, DefaultLogDirName)
	}
	return s, nil
}

// StateDir is where the launch registry and the state lock live.
func (s Settings) StateDir() string {
	return filepath.Join(s.BaseDir, DefaultStateDirName)
}

func (s *Settings) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read settings file: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(s); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse settings file %s: %w", path, err)
	}
	return nil
}

func (s *Settings) applyEnv(lookup func(string) (string, bool)) error {
	get := func(name string) (string, bool) {
		v, ok := lookup(name)
		return v, ok && v != ""
	}
	var errs []error

	strs := []struct {
		name string
		dst  *string
	}{
		{EnvModelName, &s.Model},
		{EnvHost, &s.Host},
		{EnvDType, &s.DType},
		{EnvExtraParams, &s.ExtraParams},
		{EnvLogPath, &s.LogPath},
		{EnvPodName, &s.PodName},
		{EnvPodIP, &s.PodIP},
		{EnvPodNamespace, &s.PodNamespace},
		{EnvBaseDir, &s.BaseDir},
		{EnvProcessName, &s.ProcessName},
		{EnvEngineBinary, &s.EngineBinary},
		{EnvEngineArgs, &s.EngineArgs},
	}
	for _, e := range strs {
		if v, ok := get(e.name); ok {
			*e.dst = v
		}
	}

	ints := []struct {
		name string
		dst  *int
	}{
		{EnvTensorParallelSize, &s.TensorParallelSize},
		{EnvPort, &s.Port},
	}
	for _, e := range ints {
		if v, ok := get(e.name); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s must be an integer, got %q", e.name, v))
				continue
			}
			*e.dst = n
		}
	}

	if v, ok := get(EnvGPUMemoryUtilization); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s must be a number, got %q", EnvGPUMemoryUtilization, v))
		} else {
			s.GPUMemoryUtilization = f
		}
	}

	durations := []struct {
		name string
		dst  *time.Duration
	}{
		{EnvStopTimeout, &s.StopTimeout},
		{EnvGracePeriod, &s.GracePeriod},
		{EnvReadyTimeout, &s.ReadyTimeout},
	}
	for _, e := range durations {
		if v, ok := get(e.name); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s must be a duration such as 30s, got %q", e.name, v))
				continue
			}
			*e.dst = d
		}
	}

	return errors.Join(errs...)
}
