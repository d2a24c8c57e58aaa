package enginectl

import "time"

// ConfigSnapshot holds a copy of supervisorConfig fields for test
// assertions in package enginectl_test.
type ConfigSnapshot struct {
	Binary            string
	PrefixArgs        []string
	ExtraParams       []string
	ProcessName       string
	LogDir            string
	StateDir          string
	Env               []string
	StopTimeout       time.Duration
	GracePeriod       time.Duration
	ReadyTimeout      time.Duration
	ReadyPollInterval time.Duration
	HasKubeClient     bool
}

// ApplyOptionsForTesting maps settings onto a supervisor configuration,
// applies opts and returns a snapshot of the result.
func ApplyOptionsForTesting(settings Settings, opts ...Option) (ConfigSnapshot, error) {
	cfg, err := newSupervisorConfig(settings)
	if err != nil {
		return ConfigSnapshot{}, err
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return ConfigSnapshot{
		Binary:            cfg.Engine.Binary,
		PrefixArgs:        cfg.Engine.PrefixArgs,
		ExtraParams:       cfg.Engine.Flags.ExtraParams,
		ProcessName:       cfg.Engine.ProcessName,
		LogDir:            cfg.Engine.LogDir,
		StateDir:          cfg.StateDir,
		Env:               cfg.Engine.Env,
		StopTimeout:       cfg.StopTimeout,
		GracePeriod:       cfg.GracePeriod,
		ReadyTimeout:      cfg.ReadyTimeout,
		ReadyPollInterval: cfg.ReadyPollInterval,
		HasKubeClient:     cfg.kubeClient != nil,
	}, nil
}
