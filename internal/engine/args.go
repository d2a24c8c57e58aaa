package engine

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/google/shlex"
)

// Flags are the engine settings passed as command-line flags.
type Flags struct {
	Model                string
	TensorParallelSize   int
	Host                 string
	Port                 int
	GPUMemoryUtilization float64
	DType                string
	// ExtraParams are appended verbatim after the generated flags.
	ExtraParams []string
}

// BuildArgs returns prefix followed by the generated flags and the extra
// parameters. prefix holds whatever selects the engine entry point, such as
// "-m vllm.entrypoints.openai.api_server".
func BuildArgs(prefix []string, f Flags) []string {
	args := make([]string, 0, len(prefix)+12+len(f.ExtraParams))
	args = append(args, prefix...)
	args = append(args,
		"--model", f.Model,
		"--tensor-parallel-size", strconv.Itoa(f.TensorParallelSize),
		"--host", f.Host,
		"--port", strconv.Itoa(f.Port),
		"--gpu-memory-utilization", strconv.FormatFloat(f.GPUMemoryUtilization, 'f', -1, 64),
		"--dtype", f.DType,
	)
	return append(args, f.ExtraParams...)
}

// SplitParams splits a free-form parameter string into words using shell
// quoting rules, so that EXTRA_PARAMS='--served-model-name "my model"'
// yields two words.
func SplitParams(s string) ([]string, error) {
	words, err := shlex.Split(s)
	if err != nil {
		return nil, fmt.Errorf("split parameters %q: %w", s, err)
	}
	return words, nil
}

// LogFilePath returns <dir>/app_<podName>_<podIP>.log.
func LogFilePath(dir, podName, podIP string) string {
	return filepath.Join(dir, "app_"+podName+"_"+podIP+".log")
}
