package degrade

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	statusKeyFormat   = "degrade:voucher:%d"
	strategyKeyFormat = "degrade:strategy:%d"
)

// Strategy describes what clients are told while a voucher is degraded.
type Strategy struct {
	// Message returned to rejected clients
	Message string `json:"message"`
	// EstWaitTime estimated recovery time in seconds, 0 if unknown
	EstWaitTime int `json:"est_wait_time"`
}

// DefaultStrategy is used when no strategy was stored alongside the switch.
var DefaultStrategy = &Strategy{
	Message: "System busy, please try again later",
}

// Manager is a per-voucher admission kill switch backed by Redis, shared by
// every instance. Operators flip a voucher off during incidents without
// touching its stock or sale window.
type Manager struct {
	redis *redis.Client
}

// NewManager creates a degrade manager
func NewManager(redisClient *redis.Client) *Manager {
	return &Manager{
		redis: redisClient,
	}
}

// IsDegraded reports whether admissions for the voucher are switched off.
// Redis errors read as "not degraded" so an unreachable Redis does not take
// the sale down by itself.
func (m *Manager) IsDegraded(ctx context.Context, voucherID uint64) bool {
	val, err := m.redis.Get(ctx, fmt.Sprintf(statusKeyFormat, voucherID)).Result()
	if err != nil {
		return false
	}
	return val == "1"
}

// GetStrategy returns the stored strategy, or DefaultStrategy if none exists.
func (m *Manager) GetStrategy(ctx context.Context, voucherID uint64) *Strategy {
	data, err := m.redis.Get(ctx, fmt.Sprintf(strategyKeyFormat, voucherID)).Bytes()
	if err != nil {
		return DefaultStrategy
	}

	var strategy Strategy
	if err := json.Unmarshal(data, &strategy); err != nil {
		return DefaultStrategy
	}
	return &strategy
}

// Enable switches admissions off for the voucher. A zero ttl keeps the
// switch until Disable is called.
func (m *Manager) Enable(ctx context.Context, voucherID uint64, strategy *Strategy, ttl time.Duration) error {
	if strategy == nil {
		strategy = DefaultStrategy
	}

	if err := m.redis.Set(ctx, fmt.Sprintf(statusKeyFormat, voucherID), "1", ttl).Err(); err != nil {
		return fmt.Errorf("failed to set degrade status: %w", err)
	}

	data, err := json.Marshal(strategy)
	if err != nil {
		return fmt.Errorf("failed to marshal strategy: %w", err)
	}
	if err := m.redis.Set(ctx, fmt.Sprintf(strategyKeyFormat, voucherID), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set degrade strategy: %w", err)
	}

	return nil
}

// Disable switches admissions back on for the voucher.
func (m *Manager) Disable(ctx context.Context, voucherID uint64) error {
	statusKey := fmt.Sprintf(statusKeyFormat, voucherID)
	strategyKey := fmt.Sprintf(strategyKeyFormat, voucherID)

	if err := m.redis.Del(ctx, statusKey, strategyKey).Err(); err != nil {
		return fmt.Errorf("failed to disable degrade: %w", err)
	}
	return nil
}

// ListDegraded returns the strategies of every currently degraded voucher.
func (m *Manager) ListDegraded(ctx context.Context) (map[uint64]*Strategy, error) {
	result := make(map[uint64]*Strategy)

	iter := m.redis.Scan(ctx, 0, "degrade:voucher:*", 0).Iterator()
	for iter.Next(ctx) {
		var voucherID uint64
		if _, err := fmt.Sscanf(iter.Val(), statusKeyFormat, &voucherID); err != nil {
			continue
		}
		result[voucherID] = m.GetStrategy(ctx, voucherID)
	}

	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan degrade keys: %w", err)
	}

	return result, nil
}
