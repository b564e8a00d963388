package sweeper

import (
	"context"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// LockName is the Redis key guarding the sweep across replicas.
const LockName = "docchat:stale-sweep"

// Locker serialises a sweep across replicas. fn is not called when the lock is held elsewhere.
type Locker interface {
	WithLock(ctx context.Context, name string, ttl time.Duration, fn func(ctx context.Context) error) error
}

// RedisLocker implements Locker with a redsync mutex.
type RedisLocker struct {
	rs  *redsync.Redsync
	log zerolog.Logger
}

// NewRedisLocker builds a locker on an existing Redis client.
func NewRedisLocker(client redis.UniversalClient, log zerolog.Logger) *RedisLocker {
	return &RedisLocker{
		rs:  redsync.New(goredis.NewPool(client)),
		log: log.With().Str("component", "sweep-lock").Logger(),
	}
}

// WithLock implements Locker. A single attempt is made; a held lock is returned as an error.
func (l *RedisLocker) WithLock(ctx context.Context, name string, ttl time.Duration, fn func(ctx context.Context) error) error {
	mutex := l.rs.NewMutex(name, redsync.WithExpiry(ttl), redsync.WithTries(1))
	if err := mutex.LockContext(ctx); err != nil {
		return err
	}
	defer func() {
		if _, err := mutex.UnlockContext(context.WithoutCancel(ctx)); err != nil {
			l.log.Error().Err(err).Str("lock", name).Msg("failed to unlock mutex")
		}
	}()
	return fn(ctx)
}
