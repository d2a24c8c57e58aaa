// Package process manages the lifecycle of the inference engine as an
// operating-system process.
//
// BaseProcess starts a command in its own process group with its combined
// output appended to a log file, and stops it with SIGTERM followed by
// SIGKILL. A started process can be detached, after which it is tracked only
// by its Handle. StopPID applies the same graceful-then-forced policy to a
// process this program did not start, classifying failures as
// ErrProcessNotFound, ErrPermissionDenied or ErrAlreadyExited.
//
// The package targets Unix systems.
package process
