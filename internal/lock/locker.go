// Package lock provides local and distributed locking. Regeneration of
// a missing certificate file runs under a lock so concurrent requests
// for the same token do not render it twice.
package lock

import (
	"context"
	"fmt"
	"time"
)

// Locker is the locking contract. Locks expire after their TTL so a
// crashed holder cannot wedge the key forever.
type Locker interface {
	// Acquire attempts to take the lock.
	// Returns true if acquired, false if held elsewhere.
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// AcquireWithRetry retries up to maxRetries times with retryDelay
	// between attempts.
	AcquireWithRetry(ctx context.Context, key string, ttl time.Duration, maxRetries int, retryDelay time.Duration) (bool, error)

	// Release releases the lock.
	// Returns true if it was held.
	Release(ctx context.Context, key string) (bool, error)
}

// RegenerateKey is the lock key guarding regeneration of the file
// addressed by one secure token.
func RegenerateKey(organizationID int64, token, extension string) string {
	return fmt.Sprintf("certlock:regen:%d:%s.%s", organizationID, token, extension)
}
