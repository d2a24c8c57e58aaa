package core

import "github.com/giantswarm/enginectl/internal/sentinel"

const (
	// ErrAlreadyRunning is returned by Launch and Run when a live engine
	// launched earlier is still recorded.
	ErrAlreadyRunning = sentinel.Error("engine already running")

	// ErrNotRunning is returned by operations that need a running engine.
	ErrNotRunning = sentinel.Error("engine not running")

	// ErrEngineExited is returned when the engine exits before becoming
	// ready or, in Run, on its own with a failure status.
	ErrEngineExited = sentinel.Error("engine exited")

	// ErrInvalidConfig wraps every configuration validation failure.
	ErrInvalidConfig = sentinel.Error("invalid configuration")
)
