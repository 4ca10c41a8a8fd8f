package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"flashsale/internal/model"
)

// ErrOrderNotFound is returned when an order lookup matches nothing.
var ErrOrderNotFound = errors.New("order not found")

// OrderRepository order repository interface
type OrderRepository interface {
	// Create order (ID pre-assigned by the generator)
	Create(ctx context.Context, order *model.VoucherOrder) error

	// Get order by ID
	GetByID(ctx context.Context, id uint64) (*model.VoucherOrder, error)

	// Count orders a user holds for a voucher (one-per-user check)
	CountByUserAndVoucher(ctx context.Context, userID, voucherID uint64) (int64, error)

	// Count fulfilled orders for a voucher
	CountByVoucher(ctx context.Context, voucherID uint64) (int64, error)

	// Update order status
	UpdateStatus(ctx context.Context, id uint64, status int8) error

	// List user orders
	ListUserOrders(ctx context.Context, userID uint64, page, pageSize int) ([]*model.VoucherOrder, int64, error)

	// WithTx returns a repository bound to the given transaction
	WithTx(tx *gorm.DB) OrderRepository
}

// orderRepository order repository implementation
type orderRepository struct {
	db *gorm.DB
}

// NewOrderRepository creates an order repository
func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepository{db: db}
}

// WithTx returns a repository bound to the given transaction
func (r *orderRepository) WithTx(tx *gorm.DB) OrderRepository {
	return &orderRepository{db: tx}
}

// Create creates an order
func (r *orderRepository) Create(ctx context.Context, order *model.VoucherOrder) error {
	return r.db.WithContext(ctx).Create(order).Error
}

// GetByID gets an order by ID
func (r *orderRepository) GetByID(ctx context.Context, id uint64) (*model.VoucherOrder, error) {
	var order model.VoucherOrder
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&order).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return &order, nil
}

// CountByUserAndVoucher counts orders a user holds for a voucher
func (r *orderRepository) CountByUserAndVoucher(ctx context.Context, userID, voucherID uint64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.VoucherOrder{}).
		Where("user_id = ? AND voucher_id = ?", userID, voucherID).
		Count(&count).Error
	return count, err
}

// CountByVoucher counts fulfilled orders for a voucher
func (r *orderRepository) CountByVoucher(ctx context.Context, voucherID uint64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.VoucherOrder{}).
		Where("voucher_id = ?", voucherID).
		Count(&count).Error
	return count, err
}

// UpdateStatus updates order status
func (r *orderRepository) UpdateStatus(ctx context.Context, id uint64, status int8) error {
	updates := map[string]interface{}{
		"status": status,
	}

	now := time.Now()
	switch status {
	case model.OrderStatusPaid:
		updates["pay_time"] = &now
	case model.OrderStatusRedeemed:
		updates["use_time"] = &now
	case model.OrderStatusRefunded:
		updates["refund_time"] = &now
	}

	return r.db.WithContext(ctx).
		Model(&model.VoucherOrder{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// ListUserOrders lists user orders
func (r *orderRepository) ListUserOrders(ctx context.Context, userID uint64, page, pageSize int) ([]*model.VoucherOrder, int64, error) {
	var orders []*model.VoucherOrder
	var total int64

	offset := (page - 1) * pageSize

	db := r.db.WithContext(ctx).
		Model(&model.VoucherOrder{}).
		Where("user_id = ?", userID)

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := db.Offset(offset).
		Limit(pageSize).
		Order("created_at DESC").
		Find(&orders).Error

	return orders, total, err
}
