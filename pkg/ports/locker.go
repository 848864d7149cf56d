package ports

import (
	"context"
	"time"
)

// UnlockFunc releases a lock obtained from a DistributedLocker.
type UnlockFunc func(ctx context.Context) error

// DistributedLocker serializes checkpoint writes for one player and mission
// across replicas sharing a progress store.
type DistributedLocker interface {
	// Lock blocks until key is held, ctx ends or acquisition fails. The lock
	// expires after ttl if the returned UnlockFunc is never called.
	Lock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error)
}
