// Package statelock serializes launch and stop operations across separate
// invocations of the CLI with an advisory file lock.
package statelock

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofrs/flock"

	"github.com/giantswarm/enginectl/internal/fileutil"
)

// retryInterval is the delay between lock attempts.
const retryInterval = 50 * time.Millisecond

// Lock is a held exclusive lock.
type Lock struct {
	fl  *flock.Flock
	log *slog.Logger
}

// Acquire blocks until the exclusive lock on path is held or ctx is done.
// The lock file and its directory are created if missing.
func Acquire(ctx context.Context, path string, logger *slog.Logger) (*Lock, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := fileutil.EnsureDirForFile(path); err != nil {
		return nil, err
	}

	fl := flock.New(path)
	locked, err := fl.TryLockContext(ctx, retryInterval)
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", path, err)
	}
	if !locked {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("acquire lock %s: %w", path, ctx.Err())
		}
		return nil, fmt.Errorf("acquire lock %s: lock not acquired", path)
	}
	logger.Debug("state lock acquired", "path", path)
	return &Lock{fl: fl, log: logger}, nil
}

// Release unlocks and closes the lock file. The file stays on disk: removing
// it could break a lock another process acquires concurrently. Safe on a nil
// Lock and safe to call twice.
func (l *Lock) Release() {
	if l == nil || l.fl == nil {
		return
	}
	if err := l.fl.Close(); err != nil {
		l.log.Debug("failed to release state lock", "path", l.fl.Path(), "err", err)
	}
	l.fl = nil
}
