package enginectl_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/giantswarm/enginectl"
)

func publicErrors() map[string]error {
	return map[string]error{
		"ErrAlreadyExited":    enginectl.ErrAlreadyExited,
		"ErrAlreadyRunning":   enginectl.ErrAlreadyRunning,
		"ErrEngineExited":     enginectl.ErrEngineExited,
		"ErrInvalidConfig":    enginectl.ErrInvalidConfig,
		"ErrNotRunning":       enginectl.ErrNotRunning,
		"ErrPermissionDenied": enginectl.ErrPermissionDenied,
		"ErrPortInUse":        enginectl.ErrPortInUse,
		"ErrProcessNotFound":  enginectl.ErrProcessNotFound,
		"ErrStillRunning":     enginectl.ErrStillRunning,
	}
}

// TestPublicErrorConstants verifies that every exported error constant has a
// message and matches itself, directly and when wrapped.
func TestPublicErrorConstants(t *testing.T) {
	t.Parallel()

	for name, sentinel := range publicErrors() {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			if msg := sentinel.Error(); msg == "" {
				t.Errorf("%s.Error() returned empty string", name)
			}
			if !errors.Is(sentinel, sentinel) {
				t.Errorf("errors.Is(%s, %s) = false, want true", name, name)
			}
			wrapped := fmt.Errorf("stop engine: %w", sentinel)
			if !errors.Is(wrapped, sentinel) {
				t.Errorf("errors.Is(wrapped %s) = false, want true", name)
			}
			if errors.Is(sentinel, errors.New(sentinel.Error())) {
				t.Errorf("errors.Is(%s, errors.New(...)) = true, want false", name)
			}
		})
	}
}

// TestPublicErrorConstantsAreDistinct verifies that no two exported error
// constants match each other.
func TestPublicErrorConstantsAreDistinct(t *testing.T) {
	t.Parallel()

	all := publicErrors()
	for a, errA := range all {
		for b, errB := range all {
			if a != b && errors.Is(errA, errB) {
				t.Errorf("errors.Is(%s, %s) = true: constants must be distinct", a, b)
			}
		}
	}
}
