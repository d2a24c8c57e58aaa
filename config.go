package enginectl

import (
	"fmt"

	"k8s.io/client-go/kubernetes"

	"github.com/giantswarm/enginectl/internal/core"
	"github.com/giantswarm/enginectl/internal/engine"
)

// supervisorConfig wraps core.SupervisorConfig, keeping internal/core types
// out of the public API signature, plus what New needs to build the pod
// resolver.
type supervisorConfig struct {
	core.SupervisorConfig
	kubeClient kubernetes.Interface
}

// newSupervisorConfig maps s onto the supervisor configuration.
func newSupervisorConfig(s Settings) (supervisorConfig, error) {
	prefix, err := engine.SplitParams(s.EngineArgs)
	if err != nil {
		return supervisorConfig{}, fmt.Errorf("%w: %s: %w", ErrInvalidConfig, EnvEngineArgs, err)
	}
	extra, err := engine.SplitParams(s.ExtraParams)
	if err != nil {
		return supervisorConfig{}, fmt.Errorf("%w: %s: %w", ErrInvalidConfig, EnvExtraParams, err)
	}

	return supervisorConfig{SupervisorConfig: core.SupervisorConfig{
		Engine: core.EngineConfig{
			Binary:      s.EngineBinary,
			PrefixArgs:  prefix,
			ProcessName: s.ProcessName,
			BaseDir:     s.BaseDir,
			LogDir:      s.LogPath,
			Flags: engine.Flags{
				Model:                s.Model,
				TensorParallelSize:   s.TensorParallelSize,
				Host:                 s.Host,
				Port:                 s.Port,
				GPUMemoryUtilization: s.GPUMemoryUtilization,
				DType:                s.DType,
				ExtraParams:          extra,
			},
		},
		StateDir:          s.StateDir(),
		StopTimeout:       s.StopTimeout,
		GracePeriod:       s.GracePeriod,
		ReadyTimeout:      s.ReadyTimeout,
		ReadyPollInterval: DefaultReadyPollInterval,
	}}, nil
}
