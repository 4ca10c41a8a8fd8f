package lock

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrLockNotAcquired lock acquisition failed
	ErrLockNotAcquired = errors.New("failed to acquire lock")
	// ErrLockNotHeld lock is not held
	ErrLockNotHeld = errors.New("lock not held")
)

// unlockScript deletes the lock only when it still carries our token, so a
// holder whose TTL expired cannot release somebody else's lock.
const unlockScript = `
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`

// RedisLock cross-process advisory lock based on SET NX with a TTL. The value
// is a caller-supplied token identifying the holder.
type RedisLock struct {
	client *redis.Client
	key    string
	value  string
	ttl    time.Duration
}

// NewRedisLock creates a new Redis lock.
func NewRedisLock(client *redis.Client, key, value string, ttl time.Duration) *RedisLock {
	return &RedisLock{
		client: client,
		key:    key,
		value:  value,
		ttl:    ttl,
	}
}

// Lock makes a single acquisition attempt. It does not spin: the fulfillment
// path treats a held lock as an anomaly and drops the task instead of waiting.
func (l *RedisLock) Lock(ctx context.Context) error {
	success, err := l.client.SetNX(ctx, l.key, l.value, l.ttl).Result()
	if err != nil {
		return err
	}

	if !success {
		return ErrLockNotAcquired
	}

	return nil
}

// TryLock attempts acquisition up to maxRetries times with a fixed delay.
// Used by cache rebuild paths where waiting briefly is preferable to failing.
func (l *RedisLock) TryLock(ctx context.Context, maxRetries int, retryDelay time.Duration) error {
	for i := 0; i < maxRetries; i++ {
		err := l.Lock(ctx)
		if err == nil {
			return nil
		}

		if !errors.Is(err, ErrLockNotAcquired) {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryDelay):
		}
	}

	return ErrLockNotAcquired
}

// Unlock releases the lock if this instance still holds it.
func (l *RedisLock) Unlock(ctx context.Context) error {
	result, err := l.client.Eval(ctx, unlockScript, []string{l.key}, l.value).Int()
	if err != nil {
		return err
	}

	if result == 0 {
		return ErrLockNotHeld
	}

	return nil
}

// IsHeld checks if the lock is held by this instance.
func (l *RedisLock) IsHeld(ctx context.Context) (bool, error) {
	value, err := l.client.Get(ctx, l.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}

	return value == l.value, nil
}
