package cache

import (
	"context"
	"time"
)

// Cache defines the primitive operations for a keyed store with TTLs.
// T is the type of value stored (e.g. string, or a struct).
//
// SetNX and GetDel are the primitives single-use consumers build on: SetNX
// guarantees create-only writes, GetDel guarantees that of two concurrent
// reads exactly one observes the value.
type Cache[T any] interface {
	// Get retrieves a single value.
	// Returns ErrCacheMiss if the key does not exist or has expired.
	Get(ctx context.Context, key string) (T, error)

	// Set stores a single value with TTL, overwriting any existing key
	Set(ctx context.Context, key string, value T, ttl time.Duration) error

	// SetNX stores a value only if the key does not already exist.
	// Returns ErrKeyExists when it does.
	SetNX(ctx context.Context, key string, value T, ttl time.Duration) error

	// GetDel atomically retrieves and removes a key in one operation.
	// Returns ErrCacheMiss if the key does not exist or has expired.
	GetDel(ctx context.Context, key string) (T, error)

	// Delete removes a key
	Delete(ctx context.Context, key string) error

	// Close closes the cache connection
	Close() error

	// Health checks if the cache is healthy
	Health(ctx context.Context) error
}
