// Package cache defines the small keyed store the token service uses for
// usage counters and the jti denylist.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable indicates the backing store cannot be reached.
var ErrUnavailable = errors.New("cache unavailable")

// Store is a TTL'd key store with an atomic counter. The token service
// uses Increment to make maxUses authoritative across verifications and
// Set/Exists to implement the revocation denylist. Both the in-memory
// and the Redis backends satisfy it; multi-node deployments must use
// Redis, since the counter has to be shared.
type Store interface {
	// Set stores a value under key with the given TTL. A ttl of zero
	// means no expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Exists reports whether key is present and not expired.
	Exists(ctx context.Context, key string) (bool, error)

	// Delete removes key.
	Delete(ctx context.Context, key string) error

	// Increment atomically increments the counter at key and returns
	// the new value. The TTL is applied when the counter is first
	// created and left untouched afterwards.
	Increment(ctx context.Context, key string, ttl time.Duration) (int64, error)
}
