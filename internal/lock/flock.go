// Package lock provides cross-process advisory file locks.
//
// Locks are taken with gofrs/flock so the same code serializes separate CLI
// invocations on Unix and Windows. They protect read-modify-write sequences on
// shared state files and the check-then-spawn section of worker startup.
package lock

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// DefaultRetryDelay is how often a blocked FlockAcquireContext re-attempts the lock.
const DefaultRetryDelay = 50 * time.Millisecond

// FlockAcquireContext acquires an exclusive lock on path, giving up when ctx is done.
// Returns (cleanup, true, nil) on success and (nil, false, nil) if ctx expired first.
func FlockAcquireContext(ctx context.Context, path string) (func(), bool, error) {
	fl, err := newFlock(path)
	if err != nil {
		return nil, false, err
	}
	locked, err := fl.TryLockContext(ctx, DefaultRetryDelay)
	if err != nil {
		if ctx.Err() != nil {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("acquiring flock: %w", err)
	}
	if !locked {
		return nil, false, nil
	}
	return func() { _ = fl.Unlock() }, true, nil
}

func newFlock(path string) (*flock.Flock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating lock directory: %w", err)
	}
	return flock.New(path), nil
}
