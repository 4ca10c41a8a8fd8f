package shop

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"flashsale/internal/model"
	"flashsale/internal/repository"
	"flashsale/pkg/bloom"
	"flashsale/pkg/breaker"
	"flashsale/pkg/lock"
	"flashsale/pkg/log"
)

// ErrShopNotFound mirrors the repository sentinel so handlers depend on
// the service package only.
var ErrShopNotFound = repository.ErrShopNotFound

// ErrCacheBusy is returned when a cache rebuild is in flight and the
// bounded wait for it ran out.
var ErrCacheBusy = errors.New("shop cache rebuild in progress, try again")

const (
	shopCacheKeyFormat = "cache:shop:%d"
	shopLockKeyFormat  = "lock:shop:%d"

	// nullCacheTTL bounds how long a cached miss shields the database.
	nullCacheTTL = 2 * time.Minute

	rebuildLockTTL    = 10 * time.Second
	rebuildMaxRetries = 5
	rebuildRetryDelay = 50 * time.Millisecond
)

// ShopService shop service interface
type ShopService interface {
	// Get shop by ID through the cache
	GetShopByID(ctx context.Context, id uint64) (*model.Shop, error)

	// Update shop and invalidate its cache entry
	UpdateShop(ctx context.Context, shop *model.Shop) error

	// Load all shop IDs into the existence filter
	WarmExistenceFilter(ctx context.Context) error
}

// shopService shop service implementation
type shopService struct {
	shopRepo  repository.ShopRepository
	redis     *goredis.Client
	filter    *bloom.ExistenceFilter
	dbBreaker *breaker.CircuitBreaker
	cacheTTL  time.Duration
}

// NewShopService creates a shop service
func NewShopService(
	shopRepo repository.ShopRepository,
	redisClient *goredis.Client,
	filter *bloom.ExistenceFilter,
	cacheTTL time.Duration,
) ShopService {
	return &shopService{
		shopRepo: shopRepo,
		redis:    redisClient,
		filter:   filter,
		dbBreaker: breaker.NewCircuitBreaker("shop-db", breaker.Config{
			Timeout: 10 * time.Second,
			OnStateChange: func(name string, from, to breaker.State) {
				log.Warnf("Circuit breaker %s: %s -> %s", name, from, to)
			},
		}),
		cacheTTL: cacheTTL,
	}
}

// GetShopByID reads a shop through the cache. Misses are rebuilt under a
// per-shop mutex so only one caller hits MySQL; the others wait with a
// bounded retry instead of recursing. Absent shops are cached as an empty
// value to stop penetration.
func (s *shopService) GetShopByID(ctx context.Context, id uint64) (*model.Shop, error) {
	if s.filter != nil && !s.filter.MayExist(id) {
		return nil, ErrShopNotFound
	}

	cacheKey := fmt.Sprintf(shopCacheKeyFormat, id)

	shop, found, err := s.readCache(ctx, cacheKey)
	if err == nil && found {
		if shop == nil {
			return nil, ErrShopNotFound
		}
		return shop, nil
	}

	mutex := lock.NewRedisLock(s.redis, fmt.Sprintf(shopLockKeyFormat, id), uuid.NewString(), rebuildLockTTL)
	if err := mutex.TryLock(ctx, rebuildMaxRetries, rebuildRetryDelay); err != nil {
		// Someone else is rebuilding; their write may already have landed.
		if shop, found, err := s.readCache(ctx, cacheKey); err == nil && found {
			if shop == nil {
				return nil, ErrShopNotFound
			}
			return shop, nil
		}
		return nil, ErrCacheBusy
	}
	defer func() {
		if err := mutex.Unlock(ctx); err != nil {
			log.Warnf("Failed to release shop cache lock %d: %v", id, err)
		}
	}()

	// Double-check after winning the lock.
	if shop, found, err := s.readCache(ctx, cacheKey); err == nil && found {
		if shop == nil {
			return nil, ErrShopNotFound
		}
		return shop, nil
	}

	return s.rebuildCache(ctx, id, cacheKey)
}

// readCache returns (shop, found, err). A cached empty value reports
// found=true with a nil shop.
func (s *shopService) readCache(ctx context.Context, cacheKey string) (*model.Shop, bool, error) {
	data, err := s.redis.Get(ctx, cacheKey).Bytes()
	if err == goredis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	if len(data) == 0 {
		return nil, true, nil
	}

	var shop model.Shop
	if err := json.Unmarshal(data, &shop); err != nil {
		return nil, false, err
	}
	return &shop, true, nil
}

// rebuildCache loads the shop from MySQL behind a circuit breaker so a miss
// storm against a failing database is shed instead of piling on.
func (s *shopService) rebuildCache(ctx context.Context, id uint64, cacheKey string) (*model.Shop, error) {
	var shop *model.Shop
	err := s.dbBreaker.Execute(ctx, func() error {
		loaded, err := s.shopRepo.GetByID(ctx, id)
		if errors.Is(err, repository.ErrShopNotFound) {
			// Not found is an answer, not a backend failure.
			return nil
		}
		if err != nil {
			return err
		}
		shop = loaded
		return nil
	})
	if breaker.IsCircuitBreakerError(err) {
		return nil, ErrCacheBusy
	}
	if err != nil {
		return nil, err
	}

	if shop == nil {
		if err := s.redis.Set(ctx, cacheKey, "", nullCacheTTL).Err(); err != nil {
			log.Warnf("Failed to cache shop %d miss: %v", id, err)
		}
		return nil, ErrShopNotFound
	}

	data, err := json.Marshal(shop)
	if err != nil {
		return nil, err
	}
	if err := s.redis.Set(ctx, cacheKey, data, s.cacheTTL).Err(); err != nil {
		log.Warnf("Failed to cache shop %d: %v", id, err)
	}

	return shop, nil
}

// UpdateShop writes the database first, then drops the cache entry.
func (s *shopService) UpdateShop(ctx context.Context, shop *model.Shop) error {
	if shop.ID == 0 {
		return errors.New("shop id is required")
	}

	if err := s.shopRepo.Update(ctx, shop); err != nil {
		return err
	}

	cacheKey := fmt.Sprintf(shopCacheKeyFormat, shop.ID)
	if err := s.redis.Del(ctx, cacheKey).Err(); err != nil {
		log.Warnf("Failed to invalidate shop %d cache: %v", shop.ID, err)
	}

	return nil
}

// WarmExistenceFilter loads every shop ID into the existence filter.
func (s *shopService) WarmExistenceFilter(ctx context.Context) error {
	if s.filter == nil {
		return nil
	}

	ids, err := s.shopRepo.ListIDs(ctx)
	if err != nil {
		return err
	}

	for _, id := range ids {
		s.filter.Add(id)
	}

	log.Infof("Loaded %d shop ids into existence filter", len(ids))
	return nil
}
