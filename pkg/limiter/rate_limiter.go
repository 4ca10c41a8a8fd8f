package limiter

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// RateLimiter rate limiter interface
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// slidingWindowScript counts requests in the window and admits atomically, so
// concurrent callers across instances cannot exceed the limit. Each request
// is recorded under a unique member; reusing the timestamp as the member
// would collapse same-millisecond requests into one entry.
const slidingWindowScript = `
	local key = KEYS[1]
	local now = tonumber(ARGV[1])
	local window_start = tonumber(ARGV[2])
	local limit = tonumber(ARGV[3])
	local window_seconds = tonumber(ARGV[4])
	local member = ARGV[5]

	redis.call('ZREMRANGEBYSCORE', key, 0, window_start)

	local current = redis.call('ZCARD', key)

	if current < limit then
		redis.call('ZADD', key, now, member)
		redis.call('EXPIRE', key, window_seconds)
		return 1
	else
		return 0
	end
`

// SlidingWindowLimiter sliding window rate limiter using Redis
type SlidingWindowLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
	now    func() time.Time
}

// NewSlidingWindowLimiter creates a new sliding window rate limiter
func NewSlidingWindowLimiter(client *redis.Client, limit int, window time.Duration) *SlidingWindowLimiter {
	return &SlidingWindowLimiter{
		client: client,
		limit:  limit,
		window: window,
		now:    time.Now,
	}
}

// Allow checks if the request is allowed
func (l *SlidingWindowLimiter) Allow(ctx context.Context, key string) (bool, error) {
	now := l.now().UnixMilli()
	windowStart := now - l.window.Milliseconds()
	member := fmt.Sprintf("%d-%s", now, uuid.NewString())

	result, err := l.client.Eval(ctx, slidingWindowScript,
		[]string{fmt.Sprintf("rate_limit:%s", key)},
		now,
		windowStart,
		l.limit,
		int(l.window.Seconds()),
		member).Int()
	if err != nil {
		return false, err
	}

	return result == 1, nil
}

// TokenBucketLimiter process-local token bucket built on golang.org/x/time/rate,
// used as a cheap first line in front of the Redis limiter.
type TokenBucketLimiter struct {
	limiter *rate.Limiter
}

// NewTokenBucketLimiter creates a new token bucket rate limiter
func NewTokenBucketLimiter(r rate.Limit, b int) *TokenBucketLimiter {
	return &TokenBucketLimiter{
		limiter: rate.NewLimiter(r, b),
	}
}

// Allow checks if the request is allowed
func (l *TokenBucketLimiter) Allow(ctx context.Context, key string) (bool, error) {
	return l.limiter.Allow(), nil
}
