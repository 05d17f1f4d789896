package ports

import (
	"context"
	"time"
)

// UnlockFunc is a function that releases a lock.
type UnlockFunc func(ctx context.Context) error

// Locker serializes access to a shared simulation resource (a working directory or
// a single-instance program). Implementations may be process-local or distributed.
type Locker interface {
	// Lock blocks until the lock for key is acquired or ctx is cancelled.
	// The TTL bounds how long a crashed holder can keep a distributed lock.
	// Returns an UnlockFunc that MUST be called to release the lock.
	Lock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error)
}
