package local

import (
	"context"
	"sync/atomic"
)

// Locker is a non-blocking in-process lock for single-instance deployments.
type Locker struct {
	state atomic.Int32 // 0 = unlocked, 1 = locked
}

func NewLocker() *Locker {
	return &Locker{}
}

// TryAcquire returns false without waiting when another run holds the lock.
func (l *Locker) TryAcquire(_ context.Context) (bool, error) {
	return l.state.CompareAndSwap(0, 1), nil
}

// Release must only be called by the holder.
func (l *Locker) Release(_ context.Context) error {
	l.state.Store(0)

	return nil
}
