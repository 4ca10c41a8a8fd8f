package seckill

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"flashsale/internal/model"
	"flashsale/internal/monitor"
	"flashsale/internal/redis"
	"flashsale/internal/repository"
	"flashsale/pkg/degrade"
	"flashsale/pkg/idgen"
	"flashsale/pkg/log"
	"flashsale/pkg/queue"
)

// OrderTopic is the queue topic admitted orders are published to.
const OrderTopic = "seckill:orders"

// SeckillService seckill service interface
type SeckillService interface {
	// Attempt to buy one unit of a flash-sale voucher. On success the
	// returned order ID is already admitted and queued for fulfillment.
	SeckillVoucher(ctx context.Context, voucherID, userID uint64) (uint64, error)

	// Prewarm one voucher: seed Redis stock and cache its config
	PrewarmVoucher(ctx context.Context, voucherID uint64) error

	// Prewarm every voucher whose sale window has not yet closed
	PrewarmAll(ctx context.Context) error

	// Switch admissions off for one voucher. A zero ttl keeps the switch
	// until RestoreVoucher is called.
	DegradeVoucher(ctx context.Context, voucherID uint64, message string, ttl time.Duration) error

	// Switch admissions back on for one voucher
	RestoreVoucher(ctx context.Context, voucherID uint64) error
}

// seckillService seckill service implementation
type seckillService struct {
	voucherRepo  repository.VoucherRepository
	voucherCache *VoucherCache
	gate         *redis.AdmissionGate
	idGenerator  *idgen.Generator
	orderQueue   queue.MessageQueue
	redis        *goredis.Client
	degrade      *degrade.Manager
	stockTTL     time.Duration
	now          func() time.Time
}

// NewSeckillService creates a seckill service
func NewSeckillService(
	voucherRepo repository.VoucherRepository,
	voucherCache *VoucherCache,
	gate *redis.AdmissionGate,
	idGenerator *idgen.Generator,
	orderQueue queue.MessageQueue,
	redisClient *goredis.Client,
	stockTTL time.Duration,
) SeckillService {
	return &seckillService{
		voucherRepo:  voucherRepo,
		voucherCache: voucherCache,
		gate:         gate,
		idGenerator:  idGenerator,
		orderQueue:   orderQueue,
		redis:        redisClient,
		degrade:      degrade.NewManager(redisClient),
		stockTTL:     stockTTL,
		now:          time.Now,
	}
}

// SeckillVoucher executes one admission attempt
func (s *seckillService) SeckillVoucher(ctx context.Context, voucherID, userID uint64) (uint64, error) {
	// Operator kill switch, checked before anything else so it works even
	// when the voucher config itself is the problem.
	if s.degrade.IsDegraded(ctx, voucherID) {
		monitor.RecordAdmission("degraded")
		return 0, ErrServiceDegraded
	}

	sv, err := s.voucherCache.Get(ctx, voucherID)
	if err != nil {
		return 0, err
	}

	now := s.now()
	if !sv.IsStarted(now) {
		monitor.RecordAdmission("not_started")
		return 0, ErrSeckillNotStarted
	}
	if sv.IsEnded(now) {
		monitor.RecordAdmission("ended")
		return 0, ErrSeckillEnded
	}

	gateStart := time.Now()
	result, err := s.gate.TryReserve(ctx, voucherID, userID)
	monitor.ObserveGateDuration(time.Since(gateStart))
	if err != nil {
		monitor.RecordAdmission("gate_error")
		return 0, err
	}

	switch result {
	case redis.AdmitOutOfStock:
		monitor.RecordAdmission("out_of_stock")
		return 0, ErrInsufficientStock
	case redis.AdmitDuplicate:
		monitor.RecordAdmission("duplicate")
		return 0, ErrAlreadyPurchased
	}

	// Rejected attempts never reach the generator; only a passed gate
	// mints an id.
	orderID, err := s.idGenerator.NextID(ctx, "order")
	if err != nil {
		monitor.RecordAdmission("id_unavailable")
		return 0, err
	}

	msg := &model.OrderMessage{
		OrderID:   orderID,
		UserID:    userID,
		VoucherID: voucherID,
		Timestamp: now.UnixMilli(),
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return 0, err
	}

	if err := s.orderQueue.Publish(ctx, OrderTopic, data); err != nil {
		if errors.Is(err, queue.ErrQueueFull) {
			log.WithFields(map[string]interface{}{
				"voucher_id": voucherID,
				"user_id":    userID,
				"order_id":   orderID,
			}).Warn("Fulfillment queue full, rejecting admitted order")
			monitor.RecordAdmission("overloaded")
			return 0, ErrSystemOverloaded
		}
		return 0, err
	}

	monitor.RecordAdmission("admitted")

	log.WithFields(map[string]interface{}{
		"voucher_id": voucherID,
		"user_id":    userID,
		"order_id":   orderID,
	}).Info("Seckill order admitted")

	return orderID, nil
}

// PrewarmVoucher seeds Redis admission state for one voucher
func (s *seckillService) PrewarmVoucher(ctx context.Context, voucherID uint64) error {
	sv, err := s.voucherRepo.GetSeckillVoucher(ctx, voucherID)
	if err != nil {
		monitor.RecordPrewarm("error")
		return err
	}

	if err := s.gate.InitVoucherStock(ctx, voucherID, sv.Stock, s.stockTTL); err != nil {
		monitor.RecordPrewarm("error")
		return err
	}

	if err := s.voucherCache.Put(ctx, sv); err != nil {
		monitor.RecordPrewarm("error")
		return err
	}

	monitor.RecordPrewarm("success")

	log.WithFields(map[string]interface{}{
		"voucher_id": voucherID,
		"stock":      sv.Stock,
	}).Info("Voucher prewarmed")

	return nil
}

// PrewarmAll seeds Redis admission state for every active voucher
func (s *seckillService) PrewarmAll(ctx context.Context) error {
	vouchers, err := s.voucherRepo.ListActiveSeckillVouchers(ctx)
	if err != nil {
		return err
	}

	for _, sv := range vouchers {
		if err := s.PrewarmVoucher(ctx, sv.VoucherID); err != nil {
			log.Errorf("Failed to prewarm voucher %d: %v", sv.VoucherID, err)
			continue
		}
	}

	log.Infof("Prewarmed %d vouchers", len(vouchers))
	return nil
}

// DegradeVoucher switches admissions off for one voucher
func (s *seckillService) DegradeVoucher(ctx context.Context, voucherID uint64, message string, ttl time.Duration) error {
	strategy := degrade.DefaultStrategy
	if message != "" {
		strategy = &degrade.Strategy{Message: message}
	}

	if err := s.degrade.Enable(ctx, voucherID, strategy, ttl); err != nil {
		return err
	}

	log.WithFields(map[string]interface{}{
		"voucher_id": voucherID,
		"ttl":        ttl,
	}).Warn("Voucher admissions degraded")
	return nil
}

// RestoreVoucher switches admissions back on for one voucher
func (s *seckillService) RestoreVoucher(ctx context.Context, voucherID uint64) error {
	if err := s.degrade.Disable(ctx, voucherID); err != nil {
		return err
	}

	log.Infof("Voucher %d admissions restored", voucherID)
	return nil
}
