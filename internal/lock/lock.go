// Package lock provides the run lock that keeps scans from overlapping.
package lock

import (
	"context"
	"errors"
	"time"
)

// ErrNotHeld is returned by Release when this locker does not hold the lock,
// including when its lease expired and another owner took it.
var ErrNotHeld = errors.New("lock not held")

// Locker is a non-reentrant, process-wide mutual exclusion lock.
type Locker interface {
	// TryAcquire waits at most timeout for the lock. It reports false, not an
	// error, when another holder kept it for the whole wait.
	TryAcquire(ctx context.Context, timeout time.Duration) (bool, error)
	Release(ctx context.Context) error
}

// defaultRetryInterval is the pause between acquire attempts on remote backends.
const defaultRetryInterval = 250 * time.Millisecond

// retry calls attempt until it acquires, fails, or timeout elapses.
func retry(ctx context.Context, timeout, interval time.Duration, now func() time.Time, attempt func() (bool, error)) (bool, error) {
	deadline := now().Add(timeout)
	for {
		ok, err := attempt()
		if err != nil || ok {
			return ok, err
		}
		if !now().Before(deadline) {
			return false, nil
		}
		t := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			t.Stop()
			return false, ctx.Err()
		case <-t.C:
		}
	}
}
