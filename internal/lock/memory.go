package lock

import (
	"context"
	"time"
)

// MemoryLocker is a single-slot lock for one process. Share one instance
// between everything that must not overlap.
type MemoryLocker struct {
	slot chan struct{}
}

// NewMemoryLocker returns an unlocked MemoryLocker.
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{slot: make(chan struct{}, 1)}
}

// TryAcquire implements Locker.
func (l *MemoryLocker) TryAcquire(ctx context.Context, timeout time.Duration) (bool, error) {
	if timeout <= 0 {
		select {
		case l.slot <- struct{}{}:
			return true, nil
		default:
			return false, nil
		}
	}

	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case l.slot <- struct{}{}:
		return true, nil
	case <-t.C:
		return false, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// Release implements Locker.
func (l *MemoryLocker) Release(ctx context.Context) error {
	select {
	case <-l.slot:
		return nil
	default:
		return ErrNotHeld
	}
}
