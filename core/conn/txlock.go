package conn

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// TxLock is an exclusive lock held for the duration of one transaction.
// Waiters queue in FIFO order and may give up through their context.
type TxLock struct {
	sem *semaphore.Weighted
}

// NewTxLock returns an unlocked TxLock.
func NewTxLock() *TxLock {
	return &TxLock{sem: semaphore.NewWeighted(1)}
}

// Acquire blocks until the lock is held or ctx is done.
func (l *TxLock) Acquire(ctx context.Context) error {
	return l.sem.Acquire(ctx, 1)
}

// TryAcquire takes the lock if it is free and reports whether it did.
func (l *TxLock) TryAcquire() bool {
	return l.sem.TryAcquire(1)
}

// Release frees the lock. Releasing an unheld lock panics.
func (l *TxLock) Release() {
	l.sem.Release(1)
}
