package lock

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func acquire(t *testing.T, path string, wait time.Duration) (func(), bool) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), wait)
	defer cancel()
	release, ok, err := FlockAcquireContext(ctx, path)
	if err != nil {
		t.Fatalf("FlockAcquireContext() error: %v", err)
	}
	return release, ok
}

func TestFlockAcquireContext(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), "nested", "test.lock")

	release, ok := acquire(t, lockPath, time.Second)
	if !ok {
		t.Fatal("expected to acquire free lock")
	}
	release()

	release2, ok := acquire(t, lockPath, time.Second)
	if !ok {
		t.Fatal("expected acquire after release")
	}
	release2()
}

func TestFlockAcquireContext_Timeout(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), "spawn.lock")

	release, ok := acquire(t, lockPath, time.Second)
	if !ok {
		t.Fatal("expected to acquire free lock")
	}
	defer release()

	start := time.Now()
	if _, ok := acquire(t, lockPath, 150*time.Millisecond); ok {
		t.Fatal("expected timeout while lock is held")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("FlockAcquireContext blocked for %v", elapsed)
	}
}

func TestFlockAcquireContext_Serializes(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), "rmw.lock")

	var inside int32
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			release, ok, err := FlockAcquireContext(ctx, lockPath)
			if err != nil || !ok {
				t.Errorf("FlockAcquireContext() ok=%v err=%v", ok, err)
				return
			}
			defer release()
			if n := atomic.AddInt32(&inside, 1); n != 1 {
				t.Errorf("%d holders inside critical section", n)
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&inside, -1)
		}()
	}
	wg.Wait()
}
