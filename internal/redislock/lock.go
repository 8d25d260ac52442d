// Package redislock provides a minimal distributed lock used to serialize
// reservation attempts on one appointment slot across API instances.
package redislock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNotAcquired means another instance holds the lock; the caller should
// treat the slot as contended rather than wait.
var ErrNotAcquired = errors.New("redislock: lock not acquired")

// releaseScript deletes the key only when the stored token matches, so an
// expired lock taken over by another instance is never released by us.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker acquires per-key locks in Redis via SET NX with a TTL.
type Locker struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// New creates a Locker. ttl bounds how long a crashed holder can block a key.
func New(client *redis.Client, ttl time.Duration) *Locker {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &Locker{client: client, ttl: ttl, prefix: "lock:"}
}

// WithLock runs fn while holding the lock for key. It does not retry; a held
// lock returns ErrNotAcquired immediately.
func (l *Locker) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	token := uuid.NewString()
	full := l.prefix + key

	ok, err := l.client.SetNX(ctx, full, token, l.ttl).Result()
	if err != nil {
		return fmt.Errorf("redislock: acquire %q: %w", key, err)
	}
	if !ok {
		return ErrNotAcquired
	}
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		_ = releaseScript.Run(releaseCtx, l.client, []string{full}, token).Err()
	}()

	return fn(ctx)
}

// Noop satisfies the same contract without any coordination. Used when no
// Redis address is configured; store-level uniqueness remains the backstop.
type Noop struct{}

func (Noop) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
