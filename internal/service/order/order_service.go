package order

import (
	"context"
	"time"

	"gorm.io/gorm"

	"flashsale/internal/model"
	"flashsale/internal/monitor"
	"flashsale/internal/repository"
	"flashsale/pkg/log"
)

// OrderService order service interface
type OrderService interface {
	// Durably fulfill an admitted order: one-per-user check, conditional
	// stock decrement and insert in a single transaction
	CreateVoucherOrder(ctx context.Context, msg *model.OrderMessage) error

	// Get order by ID
	GetOrderByID(ctx context.Context, id uint64) (*model.VoucherOrder, error)

	// List user orders
	ListUserOrders(ctx context.Context, userID uint64, page, pageSize int) ([]*model.VoucherOrder, int64, error)
}

// orderService order service implementation
type orderService struct {
	db          *gorm.DB
	orderRepo   repository.OrderRepository
	voucherRepo repository.VoucherRepository
}

// NewOrderService creates an order service
func NewOrderService(
	db *gorm.DB,
	orderRepo repository.OrderRepository,
	voucherRepo repository.VoucherRepository,
) OrderService {
	return &orderService{
		db:          db,
		orderRepo:   orderRepo,
		voucherRepo: voucherRepo,
	}
}

// CreateVoucherOrder durably fulfills one admitted order. The database is
// the source of truth: the one-per-user count and the stock > 0 decrement
// are re-checked here even though the Redis gate already enforced them, so
// a lost or replayed message can never oversell or double-create. Both
// re-check failures are logged and swallowed; the message is consumed
// either way.
func (s *orderService) CreateVoucherOrder(ctx context.Context, msg *model.OrderMessage) error {
	start := time.Now()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		orderRepo := s.orderRepo.WithTx(tx)
		voucherRepo := s.voucherRepo.WithTx(tx)

		count, err := orderRepo.CountByUserAndVoucher(ctx, msg.UserID, msg.VoucherID)
		if err != nil {
			return err
		}
		if count > 0 {
			log.WithFields(map[string]interface{}{
				"user_id":    msg.UserID,
				"voucher_id": msg.VoucherID,
				"order_id":   msg.OrderID,
			}).Warn("User already holds an order for this voucher, skipping")
			monitor.RecordFulfillment("duplicate")
			return nil
		}

		decremented, err := voucherRepo.DecrementStock(ctx, msg.VoucherID)
		if err != nil {
			return err
		}
		if !decremented {
			log.WithFields(map[string]interface{}{
				"voucher_id": msg.VoucherID,
				"order_id":   msg.OrderID,
			}).Warn("Durable stock exhausted, skipping admitted order")
			monitor.RecordFulfillment("out_of_stock")
			return nil
		}

		order := &model.VoucherOrder{
			ID:        msg.OrderID,
			UserID:    msg.UserID,
			VoucherID: msg.VoucherID,
			PayType:   model.PayTypeBalance,
			Status:    model.OrderStatusUnpaid,
		}
		if err := orderRepo.Create(ctx, order); err != nil {
			return err
		}

		monitor.RecordFulfillment("created")
		return nil
	})

	if err != nil {
		log.WithFields(map[string]interface{}{
			"order_id": msg.OrderID,
			"error":    err.Error(),
		}).Error("Failed to fulfill voucher order")
		monitor.RecordFulfillment("error")
		return err
	}

	monitor.ObserveFulfillmentDuration(time.Since(start))
	return nil
}

// GetOrderByID gets an order by ID
func (s *orderService) GetOrderByID(ctx context.Context, id uint64) (*model.VoucherOrder, error) {
	return s.orderRepo.GetByID(ctx, id)
}

// ListUserOrders lists user orders
func (s *orderService) ListUserOrders(ctx context.Context, userID uint64, page, pageSize int) ([]*model.VoucherOrder, int64, error) {
	return s.orderRepo.ListUserOrders(ctx, userID, page, pageSize)
}
