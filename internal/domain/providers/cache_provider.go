package providers

import (
	"context"
	"errors"
)

// ErrCacheMiss is returned by Get when the key does not exist.
var ErrCacheMiss = errors.New("cache miss")

// CacheProvider defines the interface for caching operations
type CacheProvider interface {
	// Get retrieves a value; ErrCacheMiss when absent
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value with expiration
	Set(ctx context.Context, key string, value []byte, expirationSeconds int) error

	// Incr increments a counter, setting its expiry on first use
	Incr(ctx context.Context, key string, expirationSeconds int) (int64, error)

	// SetNX stores value only when key is absent and reports whether it did
	SetNX(ctx context.Context, key string, value []byte, expirationSeconds int) (bool, error)

	// Delete removes a value
	Delete(ctx context.Context, key string) error

	// DeletePattern removes every key matching a glob pattern
	DeletePattern(ctx context.Context, pattern string) error
}
