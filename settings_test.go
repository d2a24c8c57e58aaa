package enginectl_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/giantswarm/enginectl"
)

// envMap returns a lookup function backed by m.
func envMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func writeSettingsFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "enginectl.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadSettings_Defaults(t *testing.T) {
	t.Parallel()

	s, err := enginectl.LoadSettings("", envMap(map[string]string{"BASE_DIR": "/srv/engine"}))
	require.NoError(t, err)

	assert.Empty(t, s.Model)
	assert.Equal(t, enginectl.DefaultTensorParallelSize, s.TensorParallelSize)
	assert.Equal(t, enginectl.DefaultHost, s.Host)
	assert.Equal(t, enginectl.DefaultPort, s.Port)
	assert.InDelta(t, enginectl.DefaultGPUMemoryUtilization, s.GPUMemoryUtilization, 1e-9)
	assert.Equal(t, enginectl.DefaultDType, s.DType)
	assert.Equal(t, enginectl.DefaultProcessName, s.ProcessName)
	assert.Equal(t, "/srv/engine", s.BaseDir)
	assert.Equal(t, "/srv/engine/logs", s.LogPath)
	assert.Equal(t, "/srv/engine/.enginectl", s.StateDir())
	assert.Equal(t, enginectl.DefaultStopTimeout, s.StopTimeout)
}

func TestLoadSettings_BaseDirDefaultsToWorkingDir(t *testing.T) {
	t.Parallel()

	s, err := enginectl.LoadSettings("", envMap(nil))
	require.NoError(t, err)

	wd, err := os.Getwd()
	require.NoError(t, err)
	assert.Equal(t, wd, s.BaseDir)
}

func TestLoadSettings_Environment(t *testing.T) {
	t.Parallel()

	s, err := enginectl.LoadSettings("", envMap(map[string]string{
		"MODEL_NAME":              "meta-llama/Llama-3.1-8B-Instruct",
		"TENSOR_PARALLEL_SIZE":    "4",
		"HOST":                    "127.0.0.1",
		"PORT":                    "9000",
		"GPU_MEMORY_UTILIZATION":  "0.85",
		"DTYPE":                   "bfloat16",
		"EXTRA_PARAMS":            `--served-model-name "llama 8b" --enforce-eager`,
		"LOG_PATH":                "/var/log/engine",
		"POD_NAME":                "engine-7f9c",
		"POD_IP":                  "10.1.2.3",
		"POD_NAMESPACE":           "inference",
		"BASE_DIR":                "/srv/engine",
		"PROCESS_NAME":            "my_server",
		"ENGINE_BINARY":           "/usr/bin/python3.11",
		"ENGINE_ARGS":             "-m my_server",
		"ENGINECTL_STOP_TIMEOUT":  "1m",
		"ENGINECTL_GRACE_PERIOD":  "0s",
		"ENGINECTL_READY_TIMEOUT": "30m",
	}))
	require.NoError(t, err)

	assert.Equal(t, enginectl.Settings{
		Model:                "meta-llama/Llama-3.1-8B-Instruct",
		TensorParallelSize:   4,
		Host:                 "127.0.0.1",
		Port:                 9000,
		GPUMemoryUtilization: 0.85,
		DType:                "bfloat16",
		ExtraParams:          `--served-model-name "llama 8b" --enforce-eager`,
		LogPath:              "/var/log/engine",
		PodName:              "engine-7f9c",
		PodIP:                "10.1.2.3",
		PodNamespace:         "inference",
		BaseDir:              "/srv/engine",
		ProcessName:          "my_server",
		EngineBinary:         "/usr/bin/python3.11",
		EngineArgs:           "-m my_server",
		StopTimeout:          time.Minute,
		GracePeriod:          0,
		ReadyTimeout:         30 * time.Minute,
	}, s)
}

func TestLoadSettings_EmptyEnvironmentValueIsUnset(t *testing.T) {
	t.Parallel()

	s, err := enginectl.LoadSettings("", envMap(map[string]string{
		"PORT":     "",
		"BASE_DIR": "/srv/engine",
	}))
	require.NoError(t, err)
	assert.Equal(t, enginectl.DefaultPort, s.Port)
}

func TestLoadSettings_Precedence(t *testing.T) {
	t.Parallel()

	path := writeSettingsFile(t, `
model: facebook/opt-125m
port: 8100
dtype: float16
stopTimeout: 45s
baseDir: /srv/from-file
`)
	s, err := enginectl.LoadSettings(path, envMap(map[string]string{
		"PORT": "8200",
	}))
	require.NoError(t, err)

	assert.Equal(t, "facebook/opt-125m", s.Model, "file overrides default")
	assert.Equal(t, 8200, s.Port, "environment overrides file")
	assert.Equal(t, "float16", s.DType)
	assert.Equal(t, 45*time.Second, s.StopTimeout)
	assert.Equal(t, enginectl.DefaultHost, s.Host, "default kept when neither sets it")
	assert.Equal(t, "/srv/from-file/logs", s.LogPath)
}

func TestLoadSettings_Errors(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		file         string
		env          map[string]string
		wantContains []string
	}{
		"non-integer numerics reported together": {
			env: map[string]string{
				"TENSOR_PARALLEL_SIZE":   "two",
				"PORT":                   "80a",
				"GPU_MEMORY_UTILIZATION": "most",
			},
			wantContains: []string{"TENSOR_PARALLEL_SIZE", "PORT", "GPU_MEMORY_UTILIZATION"},
		},
		"bad duration": {
			env:          map[string]string{"ENGINECTL_STOP_TIMEOUT": "soon"},
			wantContains: []string{"ENGINECTL_STOP_TIMEOUT"},
		},
		"unknown file field": {
			file:         "modle: typo\n",
			wantContains: []string{"modle"},
		},
		"malformed file": {
			file:         "port: [8000\n",
			wantContains: []string{"parse settings file"},
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			path := ""
			if tc.file != "" {
				path = writeSettingsFile(t, tc.file)
			}
			_, err := enginectl.LoadSettings(path, envMap(tc.env))
			require.ErrorIs(t, err, enginectl.ErrInvalidConfig)
			for _, want := range tc.wantContains {
				assert.Contains(t, err.Error(), want)
			}
		})
	}
}

func TestLoadSettings_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := enginectl.LoadSettings(filepath.Join(t.TempDir(), "absent.yaml"), envMap(nil))
	require.ErrorIs(t, err, enginectl.ErrInvalidConfig)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadSettings_EmptyFile(t *testing.T) {
	t.Parallel()

	s, err := enginectl.LoadSettings(writeSettingsFile(t, ""), envMap(map[string]string{"BASE_DIR": "/srv"}))
	require.NoError(t, err)
	assert.Equal(t, enginectl.DefaultPort, s.Port)
}
