package enginectl

import "time"

// Default settings. They are exported so callers can build configurations
// relative to them.
const (
	// DefaultEngineBinary is the executable that runs the engine.
	DefaultEngineBinary = "python3"

	// DefaultEngineArgs select the vLLM OpenAI-compatible server entry point.
	// They are placed before the generated flags.
	DefaultEngineArgs = "-m vllm.entrypoints.openai.api_server"

	// DefaultProcessName is the command-line substring that identifies engine
	// processes.
	DefaultProcessName = "vllm.entrypoints.openai.api_server"

	// DefaultTensorParallelSize runs the model on a single GPU.
	DefaultTensorParallelSize = 1

	// DefaultHost makes the engine listen on all interfaces.
	DefaultHost = "0.0.0.0"

	// DefaultPort is the engine's HTTP port.
	DefaultPort = 8000

	// DefaultGPUMemoryUtilization is the fraction of GPU memory the engine
	// may claim.
	DefaultGPUMemoryUtilization = 0.9

	// DefaultDType lets the engine pick the model's data type.
	DefaultDType = "auto"

	// DefaultLogDirName is the log directory under BASE_DIR used when
	// LOG_PATH is not set.
	DefaultLogDirName = "logs"

	// DefaultStateDirName is the directory under BASE_DIR holding the launch
	// registry and the state lock.
	DefaultStateDirName = ".enginectl"

	// DefaultStopTimeout bounds a whole stop, including the grace period.
	DefaultStopTimeout = 30 * time.Second

	// DefaultGracePeriod is the time between SIGTERM and SIGKILL.
	DefaultGracePeriod = 10 * time.Second

	// DefaultReadyTimeout bounds waiting for the engine to become healthy.
	// Loading large models can take several minutes.
	DefaultReadyTimeout = 10 * time.Minute

	// DefaultReadyPollInterval is the delay between health checks.
	DefaultReadyPollInterval = 2 * time.Second
)
