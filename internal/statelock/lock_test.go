package statelock

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func TestAcquire_CreatesDirectoryAndReleases(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "state", "enginectl.lock")
	l, err := Acquire(context.Background(), path, nil)
	if err != nil {
		t.Fatalf("Acquire() error: %v", err)
	}
	l.Release()
	l.Release()

	again, err := Acquire(context.Background(), path, nil)
	if err != nil {
		t.Fatalf("re-Acquire() after release: %v", err)
	}
	again.Release()
}

func TestAcquire_BlocksWhileHeld(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "enginectl.lock")
	held, err := Acquire(context.Background(), path, nil)
	if err != nil {
		t.Fatalf("Acquire() error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	if _, err := Acquire(ctx, path, nil); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("second Acquire() = %v, want %v", err, context.DeadlineExceeded)
	}

	acquired := make(chan error, 1)
	go func() {
		l, err := Acquire(context.Background(), path, nil)
		if err == nil {
			l.Release()
		}
		acquired <- err
	}()
	held.Release()

	select {
	case err := <-acquired:
		if err != nil {
			t.Fatalf("Acquire() after release: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("waiter never acquired the released lock")
	}
}

func TestRelease_NilLock(t *testing.T) {
	t.Parallel()

	var l *Lock
	l.Release()
}
