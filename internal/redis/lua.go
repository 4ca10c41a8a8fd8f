package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// AdmitResult is the outcome of the atomic admission script.
type AdmitResult int

const (
	// AdmitOK means the user passed the gate: stock was decremented and the
	// user was recorded in the order set.
	AdmitOK AdmitResult = 0
	// AdmitOutOfStock means the cached stock was exhausted. Nothing changed.
	AdmitOutOfStock AdmitResult = 1
	// AdmitDuplicate means the user already holds an admission for this
	// voucher. Nothing changed.
	AdmitDuplicate AdmitResult = 2
)

const (
	// AdmitScript atomically decides one admission attempt. The duplicate
	// check runs before the stock check so that a repeat buyer never consumes
	// a unit, and the decrement plus set-add happen in the same script
	// execution: concurrent attempts can never oversell or double-admit.
	AdmitScript = `
		local stock_key = KEYS[1]
		local order_key = KEYS[2]
		local user_id = ARGV[1]

		if redis.call('SISMEMBER', order_key, user_id) == 1 then
			return 2
		end

		local stock = tonumber(redis.call('GET', stock_key))
		if stock == nil or stock <= 0 then
			return 1
		end

		redis.call('DECR', stock_key)
		redis.call('SADD', order_key, user_id)
		return 0
	`
)

// Key layouts for voucher admission state.
const (
	stockKeyFormat = "seckill:stock:%d"
	orderKeyFormat = "seckill:order:%d"
)

// StockKey returns the cached stock key for a voucher.
func StockKey(voucherID uint64) string {
	return fmt.Sprintf(stockKeyFormat, voucherID)
}

// OrderKey returns the admitted-user set key for a voucher.
func OrderKey(voucherID uint64) string {
	return fmt.Sprintf(orderKeyFormat, voucherID)
}

// AdmissionGate runs the admission script against a Redis instance.
type AdmissionGate struct {
	client redis.Cmdable
	script *redis.Script
}

// NewAdmissionGate creates a gate bound to the given client.
func NewAdmissionGate(client redis.Cmdable) *AdmissionGate {
	return &AdmissionGate{
		client: client,
		script: redis.NewScript(AdmitScript),
	}
}

// Load preloads the admission script into the Redis script cache.
func (g *AdmissionGate) Load(ctx context.Context) error {
	if err := g.script.Load(ctx, g.client).Err(); err != nil {
		return fmt.Errorf("failed to load admission script: %w", err)
	}
	return nil
}

// TryReserve attempts to reserve one unit of the voucher for the user.
func (g *AdmissionGate) TryReserve(ctx context.Context, voucherID, userID uint64) (AdmitResult, error) {
	keys := []string{StockKey(voucherID), OrderKey(voucherID)}
	args := []interface{}{strconv.FormatUint(userID, 10)}

	result, err := g.script.Run(ctx, g.client, keys, args...).Result()
	if err != nil {
		return 0, fmt.Errorf("admission script failed: %w", err)
	}

	code, ok := result.(int64)
	if !ok {
		return 0, fmt.Errorf("unexpected admission script result: %v", result)
	}

	switch AdmitResult(code) {
	case AdmitOK, AdmitOutOfStock, AdmitDuplicate:
		return AdmitResult(code), nil
	default:
		return 0, fmt.Errorf("unknown admission script code: %d", code)
	}
}

// InitVoucherStock seeds (or resets) the cached stock counter for a voucher.
func (g *AdmissionGate) InitVoucherStock(ctx context.Context, voucherID uint64, stock int, ttl time.Duration) error {
	return g.client.Set(ctx, StockKey(voucherID), stock, ttl).Err()
}

// GetVoucherStock reads the cached stock counter.
func (g *AdmissionGate) GetVoucherStock(ctx context.Context, voucherID uint64) (int, error) {
	result, err := g.client.Get(ctx, StockKey(voucherID)).Result()
	if err == redis.Nil {
		return 0, fmt.Errorf("stock not cached for voucher %d", voucherID)
	}
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(result)
}

// IsAdmitted reports whether the user already passed the gate for a voucher.
func (g *AdmissionGate) IsAdmitted(ctx context.Context, voucherID, userID uint64) (bool, error) {
	return g.client.SIsMember(ctx, OrderKey(voucherID), strconv.FormatUint(userID, 10)).Result()
}

// AdmittedCount returns how many users have passed the gate for a voucher.
func (g *AdmissionGate) AdmittedCount(ctx context.Context, voucherID uint64) (int64, error) {
	return g.client.SCard(ctx, OrderKey(voucherID)).Result()
}

// 全局admission gate
var Gate *AdmissionGate

// InitGate initializes the global admission gate and preloads its script.
func InitGate(client redis.Cmdable) error {
	Gate = NewAdmissionGate(client)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return Gate.Load(ctx)
}
