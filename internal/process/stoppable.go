package process

import (
	"time"
)

// Stoppable is a process that can be stopped and then have its resources
// released.
type Stoppable interface {
	Stop(timeout time.Duration) error
	Close()
}

// StopCloseAndNil stops *p, closes it and sets it to nil. Close and the
// nil-out happen even when Stop fails; the Stop error is returned. A nil p
// or *p is a no-op.
//
//	var eng *engine.Process
//	// ... start eng ...
//	err := process.StopCloseAndNil(&eng, 30*time.Second)
func StopCloseAndNil[P interface {
	*E
	Stoppable
}, E any](p *P, timeout time.Duration) error {
	if p == nil || *p == nil {
		return nil
	}
	defer func() {
		(*p).Close()
		*p = nil
	}()
	return (*p).Stop(timeout)
}
