package lock

import (
	"context"
	"time"
)

// Locker is a set-if-absent mutual-exclusion primitive with expiry.
// TryAcquire never blocks waiting for a holder; it reports false instead.
type Locker interface {
	TryAcquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}
