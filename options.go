package enginectl

import (
	"fmt"
	"strings"
	"time"

	"k8s.io/client-go/kubernetes"
)

// requirePositive panics if v <= 0 with a descriptive message.
func requirePositive(name string, v time.Duration) {
	if v <= 0 {
		panic(fmt.Sprintf("enginectl: %s must be greater than 0, got %v", name, v))
	}
}

// requireNonEmpty panics if s is empty with a descriptive message.
func requireNonEmpty(name, s string) {
	if s == "" {
		panic(fmt.Sprintf("enginectl: %s must not be empty", name))
	}
}

// Option adjusts a Supervisor during construction via New. Options take
// precedence over Settings.
//
// The With* functions panic on invalid input. Option values are typically
// constants, so an invalid value is a programmer error.
type Option func(*supervisorConfig)

// WithStateDir sets the directory holding the launch registry and the state
// lock. Supervisors sharing a state directory see each other's launches.
//
// Default: <BaseDir>/.enginectl.
//
// Panics if dir is empty.
func WithStateDir(dir string) Option {
	requireNonEmpty("state directory", dir)
	return func(c *supervisorConfig) {
		c.StateDir = dir
	}
}

// WithStopTimeout bounds a whole stop, including the grace period.
//
// Default: 30 seconds.
//
// Panics if d <= 0.
func WithStopTimeout(d time.Duration) Option {
	requirePositive("stop timeout", d)
	return func(c *supervisorConfig) {
		c.StopTimeout = d
	}
}

// WithGracePeriod sets the time between SIGTERM and SIGKILL. Zero sends
// SIGKILL as soon as SIGTERM has been delivered.
//
// Default: 10 seconds.
//
// Panics if d < 0.
func WithGracePeriod(d time.Duration) Option {
	if d < 0 {
		panic(fmt.Sprintf("enginectl: grace period must not be negative, got %v", d))
	}
	return func(c *supervisorConfig) {
		c.GracePeriod = d
	}
}

// WithReadyTimeout bounds waiting for the engine to become healthy.
//
// Default: 10 minutes.
//
// Panics if d <= 0.
func WithReadyTimeout(d time.Duration) Option {
	requirePositive("ready timeout", d)
	return func(c *supervisorConfig) {
		c.ReadyTimeout = d
	}
}

// WithReadyPollInterval sets the delay between health checks.
//
// Default: 2 seconds.
//
// Panics if d <= 0.
func WithReadyPollInterval(d time.Duration) Option {
	requirePositive("ready poll interval", d)
	return func(c *supervisorConfig) {
		c.ReadyPollInterval = d
	}
}

// WithEngineEnv adds KEY=VALUE pairs to the engine's environment, on top of
// this program's.
//
// Panics if a pair has no '=' or an empty key.
func WithEngineEnv(pairs ...string) Option {
	for _, kv := range pairs {
		if k, _, ok := strings.Cut(kv, "="); !ok || k == "" {
			panic(fmt.Sprintf("enginectl: engine environment entry must be KEY=VALUE, got %q", kv))
		}
	}
	return func(c *supervisorConfig) {
		c.Engine.Env = append(c.Engine.Env, pairs...)
	}
}

// WithKubernetesClient sets the client used to look up the pod IP when
// POD_IP is not set. Without it, New uses the in-cluster configuration when
// available.
//
// Panics if client is nil.
func WithKubernetesClient(client kubernetes.Interface) Option {
	if client == nil {
		panic("enginectl: kubernetes client must not be nil")
	}
	return func(c *supervisorConfig) {
		c.kubeClient = client
	}
}
