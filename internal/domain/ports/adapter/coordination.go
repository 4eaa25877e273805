package adapter

import (
	"context"
	"time"
)

// Locker provides short-lived mutual exclusion keyed by string.
type Locker interface {
	// TryLock returns a token on success and domain.ErrCheckoutInProgress when the key is held.
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}

// RateLimiter counts attempts per key inside a fixed window.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}
