package enginectl_test

import (
	"fmt"
	"testing"
	"time"

	"k8s.io/client-go/kubernetes/fake"

	"github.com/giantswarm/enginectl"
)

// panicTestCase defines a test case for option validation panic tests.
type panicTestCase struct {
	name     string
	panics   bool
	panicMsg string
	fn       func()
}

// requirePanics calls fn and verifies it panics (or not) with the expected message.
func requirePanics(t *testing.T, shouldPanic bool, wantMsg string, fn func()) {
	t.Helper()
	defer func() {
		r := recover()
		if shouldPanic && r == nil {
			t.Fatal("expected panic but didn't get one")
		}
		if !shouldPanic && r != nil {
			t.Fatalf("unexpected panic: %v", r)
		}
		if shouldPanic && r != nil {
			if msg := fmt.Sprint(r); msg != wantMsg {
				t.Fatalf("expected panic message %q, got %q", wantMsg, msg)
			}
		}
	}()
	fn()
}

func runPanicTests(t *testing.T, tests []panicTestCase) {
	t.Helper()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			requirePanics(t, tt.panics, tt.panicMsg, tt.fn)
		})
	}
}

func TestOptionsPanicOnInvalid(t *testing.T) {
	t.Parallel()
	runPanicTests(t, []panicTestCase{
		{
			name:     "empty state dir",
			panics:   true,
			panicMsg: "enginectl: state directory must not be empty",
			fn:       func() { enginectl.WithStateDir("") },
		},
		{
			name:     "zero stop timeout",
			panics:   true,
			panicMsg: "enginectl: stop timeout must be greater than 0, got 0s",
			fn:       func() { enginectl.WithStopTimeout(0) },
		},
		{
			name:   "positive stop timeout",
			panics: false,
			fn:     func() { enginectl.WithStopTimeout(time.Second) },
		},
		{
			name:     "negative grace period",
			panics:   true,
			panicMsg: "enginectl: grace period must not be negative, got -1s",
			fn:       func() { enginectl.WithGracePeriod(-time.Second) },
		},
		{
			name:   "zero grace period",
			panics: false,
			fn:     func() { enginectl.WithGracePeriod(0) },
		},
		{
			name:     "negative ready timeout",
			panics:   true,
			panicMsg: "enginectl: ready timeout must be greater than 0, got -1ns",
			fn:       func() { enginectl.WithReadyTimeout(-1) },
		},
		{
			name:     "zero ready poll interval",
			panics:   true,
			panicMsg: "enginectl: ready poll interval must be greater than 0, got 0s",
			fn:       func() { enginectl.WithReadyPollInterval(0) },
		},
		{
			name:     "env entry without equals",
			panics:   true,
			panicMsg: `enginectl: engine environment entry must be KEY=VALUE, got "CUDA_VISIBLE_DEVICES"`,
			fn:       func() { enginectl.WithEngineEnv("CUDA_VISIBLE_DEVICES") },
		},
		{
			name:     "env entry with empty key",
			panics:   true,
			panicMsg: `enginectl: engine environment entry must be KEY=VALUE, got "=1"`,
			fn:       func() { enginectl.WithEngineEnv("=1") },
		},
		{
			name:   "env entry with empty value",
			panics: false,
			fn:     func() { enginectl.WithEngineEnv("VLLM_LOGGING_LEVEL=") },
		},
		{
			name:     "nil kubernetes client",
			panics:   true,
			panicMsg: "enginectl: kubernetes client must not be nil",
			fn:       func() { enginectl.WithKubernetesClient(nil) },
		},
	})
}

func TestOptionsApply(t *testing.T) {
	t.Parallel()

	settings := enginectl.DefaultSettings()
	settings.BaseDir = "/srv/engine"
	settings.LogPath = "/srv/engine/logs"

	snap, err := enginectl.ApplyOptionsForTesting(settings,
		enginectl.WithStateDir("/var/lib/enginectl"),
		enginectl.WithStopTimeout(time.Minute),
		enginectl.WithGracePeriod(5*time.Second),
		enginectl.WithReadyTimeout(20*time.Minute),
		enginectl.WithReadyPollInterval(time.Second),
		enginectl.WithEngineEnv("CUDA_VISIBLE_DEVICES=0,1"),
		enginectl.WithEngineEnv("VLLM_LOGGING_LEVEL=DEBUG"),
		enginectl.WithKubernetesClient(fake.NewClientset()),
	)
	if err != nil {
		t.Fatalf("ApplyOptionsForTesting() error = %v", err)
	}

	if snap.StateDir != "/var/lib/enginectl" {
		t.Errorf("StateDir = %q", snap.StateDir)
	}
	if snap.StopTimeout != time.Minute {
		t.Errorf("StopTimeout = %v", snap.StopTimeout)
	}
	if snap.GracePeriod != 5*time.Second {
		t.Errorf("GracePeriod = %v", snap.GracePeriod)
	}
	if snap.ReadyTimeout != 20*time.Minute {
		t.Errorf("ReadyTimeout = %v", snap.ReadyTimeout)
	}
	if snap.ReadyPollInterval != time.Second {
		t.Errorf("ReadyPollInterval = %v", snap.ReadyPollInterval)
	}
	if len(snap.Env) != 2 || snap.Env[0] != "CUDA_VISIBLE_DEVICES=0,1" || snap.Env[1] != "VLLM_LOGGING_LEVEL=DEBUG" {
		t.Errorf("Env = %q", snap.Env)
	}
	if !snap.HasKubeClient {
		t.Error("kubernetes client not set")
	}
}

func TestOptionsDefaults(t *testing.T) {
	t.Parallel()

	settings := enginectl.DefaultSettings()
	settings.BaseDir = "/srv/engine"
	settings.LogPath = "/srv/engine/logs"

	snap, err := enginectl.ApplyOptionsForTesting(settings)
	if err != nil {
		t.Fatalf("ApplyOptionsForTesting() error = %v", err)
	}

	if snap.StateDir != "/srv/engine/.enginectl" {
		t.Errorf("StateDir = %q, want /srv/engine/.enginectl", snap.StateDir)
	}
	if snap.Binary != enginectl.DefaultEngineBinary {
		t.Errorf("Binary = %q", snap.Binary)
	}
	if want := []string{"-m", "vllm.entrypoints.openai.api_server"}; fmt.Sprint(snap.PrefixArgs) != fmt.Sprint(want) {
		t.Errorf("PrefixArgs = %q, want %q", snap.PrefixArgs, want)
	}
	if snap.ProcessName != enginectl.DefaultProcessName {
		t.Errorf("ProcessName = %q", snap.ProcessName)
	}
	if snap.StopTimeout != enginectl.DefaultStopTimeout {
		t.Errorf("StopTimeout = %v", snap.StopTimeout)
	}
	if snap.GracePeriod != enginectl.DefaultGracePeriod {
		t.Errorf("GracePeriod = %v", snap.GracePeriod)
	}
	if snap.ReadyPollInterval != enginectl.DefaultReadyPollInterval {
		t.Errorf("ReadyPollInterval = %v", snap.ReadyPollInterval)
	}
	if snap.HasKubeClient {
		t.Error("no kubernetes client expected before New")
	}
}
