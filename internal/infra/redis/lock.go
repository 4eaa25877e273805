// File: internal/infra/redis/lock.go
package redis

import (
	"context"
	"time"

	"zapfollow-billing/internal/domain"
	"zapfollow-billing/internal/domain/ports/adapter"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

var _ adapter.Locker = (*RedisLocker)(nil)

type RedisLocker struct {
	cli     *redis.Client
	retries int
	wait    time.Duration
}

func NewLocker(c *Client) *RedisLocker {
	return &RedisLocker{cli: c.cli, retries: 3, wait: 50 * time.Millisecond}
}

// TryLock sets key to a fresh token if absent, pausing between attempts.
// A held key yields domain.ErrCheckoutInProgress; a redis failure on the last
// attempt is returned as is.
func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	var lastErr error
	for i := 0; i < l.retries; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(l.wait):
			}
		}
		ok, err := l.cli.SetNX(ctx, key, token, ttl).Result()
		if err != nil {
			lastErr = err
			continue
		}
		if ok {
			return token, nil
		}
		lastErr = nil
	}
	if lastErr != nil {
		return "", lastErr
	}
	return "", domain.ErrCheckoutInProgress
}

var luaUnlock = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end`)

// Unlock deletes key only while it still holds token.
func (l *RedisLocker) Unlock(ctx context.Context, key, token string) error {
	_, err := luaUnlock.Run(ctx, l.cli, []string{key}, token).Result()
	return err
}
