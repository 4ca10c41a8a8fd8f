package idgen

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrGeneratorUnavailable is returned when the shared counter store cannot be
// reached. Callers must not fall back to locally generated ids, that would
// break global uniqueness across instances.
var ErrGeneratorUnavailable = errors.New("id generator unavailable")

const (
	// beginTimestamp is the generator epoch: 2024-06-16 00:00:00 UTC.
	beginTimestamp int64 = 1718496000

	// countBits is the width of the sequence component. The timestamp is
	// shifted above it, so one second admits up to 2^32 ids per category.
	countBits uint = 32
)

// Generator produces unique, roughly time-ordered 64-bit ids. The sequence
// component comes from a Redis counter keyed by category and day, so ids stay
// unique across service instances without in-process coordination.
type Generator struct {
	client *redis.Client
	now    func() time.Time
}

// NewGenerator creates an id generator backed by the given Redis client.
func NewGenerator(client *redis.Client) *Generator {
	return &Generator{
		client: client,
		now:    time.Now,
	}
}

// NewGeneratorWithClock creates a generator with an injected clock.
func NewGeneratorWithClock(client *redis.Client, now func() time.Time) *Generator {
	return &Generator{
		client: client,
		now:    now,
	}
}

// NextID returns the next id for the given category.
//
// The high 32 bits hold seconds elapsed since the epoch, the low 32 bits an
// atomic per-day, per-category counter. Daily key rotation keeps the counter
// small and implicitly resets it.
func (g *Generator) NextID(ctx context.Context, category string) (uint64, error) {
	now := g.now().UTC()
	timestamp := now.Unix() - beginTimestamp

	date := now.Format("2006:01:02")
	count, err := g.client.Incr(ctx, fmt.Sprintf("icr:%s:%s", category, date)).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrGeneratorUnavailable, err)
	}

	return uint64(timestamp)<<countBits | uint64(count), nil
}

// Timestamp extracts the time component of an id as seconds since the epoch.
func Timestamp(id uint64) int64 {
	return int64(id >> countBits)
}

// Time reconstructs the UTC creation time encoded in an id.
func Time(id uint64) time.Time {
	return time.Unix(int64(id>>countBits)+beginTimestamp, 0).UTC()
}
