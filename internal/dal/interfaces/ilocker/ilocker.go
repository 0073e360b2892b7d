package ilocker

import "context"

// ILocker is a non-blocking mutual exclusion lock.
type ILocker interface {
	// TryAcquire reports false without waiting when the lock is held elsewhere.
	TryAcquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}
