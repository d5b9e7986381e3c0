// Package lock serializes builds of the same image tag. Two builds in
// one context would race over the rendered recipe file, so the builder
// holds a lock for the duration of the pipeline.
package lock

import "context"

// Locker acquires a lock for a key, blocking until the lock is held or
// ctx is cancelled.
type Locker interface {
	Acquire(ctx context.Context, key string) (Lock, error)
}

// Lock is an acquired lock that must be released.
type Lock interface {
	Release() error
}

// NoOpLocker hands out locks without any exclusion. Useful for tests
// and single-build callers.
type NoOpLocker struct{}

func NewNoOpLocker() *NoOpLocker {
	return &NoOpLocker{}
}

func (l *NoOpLocker) Acquire(ctx context.Context, key string) (Lock, error) {
	return noopLock{}, nil
}

type noopLock struct{}

func (noopLock) Release() error { return nil }
