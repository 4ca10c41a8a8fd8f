package seckill

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/allegro/bigcache/v3"
	"github.com/redis/go-redis/v9"

	"flashsale/internal/model"
	"flashsale/internal/repository"
	"flashsale/pkg/log"
)

const voucherConfigKeyFormat = "seckill:voucher:%d"

// VoucherCache caches flash-sale voucher configs in two levels: an
// in-process bigcache in front of Redis, with MySQL as the source of
// truth. Configs are immutable during a sale, so a short local TTL is
// enough to keep the hot path off Redis.
type VoucherCache struct {
	local       *bigcache.BigCache
	redis       *redis.Client
	voucherRepo repository.VoucherRepository
	redisTTL    time.Duration
}

// NewVoucherCache creates a voucher config cache.
func NewVoucherCache(redisClient *redis.Client, voucherRepo repository.VoucherRepository, localTTL, redisTTL time.Duration) (*VoucherCache, error) {
	local, err := bigcache.New(context.Background(), bigcache.DefaultConfig(localTTL))
	if err != nil {
		return nil, fmt.Errorf("failed to create local voucher cache: %w", err)
	}

	return &VoucherCache{
		local:       local,
		redis:       redisClient,
		voucherRepo: voucherRepo,
		redisTTL:    redisTTL,
	}, nil
}

// Get returns the flash-sale config of a voucher, loading through the
// cache levels as needed.
func (c *VoucherCache) Get(ctx context.Context, voucherID uint64) (*model.SeckillVoucher, error) {
	localKey := fmt.Sprintf("%d", voucherID)

	if data, err := c.local.Get(localKey); err == nil {
		var sv model.SeckillVoucher
		if err := json.Unmarshal(data, &sv); err == nil {
			return &sv, nil
		}
	}

	redisKey := fmt.Sprintf(voucherConfigKeyFormat, voucherID)
	if data, err := c.redis.Get(ctx, redisKey).Bytes(); err == nil {
		var sv model.SeckillVoucher
		if err := json.Unmarshal(data, &sv); err == nil {
			c.local.Set(localKey, data)
			return &sv, nil
		}
	}

	sv, err := c.voucherRepo.GetSeckillVoucher(ctx, voucherID)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(sv); err == nil {
		if err := c.redis.Set(ctx, redisKey, data, c.redisTTL).Err(); err != nil {
			log.Warnf("Failed to cache voucher %d config in redis: %v", voucherID, err)
		}
		c.local.Set(localKey, data)
	}

	return sv, nil
}

// Put stores a config in both cache levels, used during prewarm.
func (c *VoucherCache) Put(ctx context.Context, sv *model.SeckillVoucher) error {
	data, err := json.Marshal(sv)
	if err != nil {
		return err
	}

	redisKey := fmt.Sprintf(voucherConfigKeyFormat, sv.VoucherID)
	if err := c.redis.Set(ctx, redisKey, data, c.redisTTL).Err(); err != nil {
		return fmt.Errorf("failed to cache voucher config: %w", err)
	}

	return c.local.Set(fmt.Sprintf("%d", sv.VoucherID), data)
}
