package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"flashsale/internal/model"
)

// ErrVoucherNotFound is returned when a voucher lookup matches nothing.
var ErrVoucherNotFound = errors.New("voucher not found")

// VoucherRepository voucher repository interface
type VoucherRepository interface {
	// Get voucher by ID
	GetByID(ctx context.Context, id uint64) (*model.Voucher, error)

	// Get flash-sale extension of a voucher
	GetSeckillVoucher(ctx context.Context, voucherID uint64) (*model.SeckillVoucher, error)

	// List flash-sale vouchers whose window has not yet closed (for prewarm)
	ListActiveSeckillVouchers(ctx context.Context) ([]*model.SeckillVoucher, error)

	// Decrement durable stock if any remains; reports whether a row changed
	DecrementStock(ctx context.Context, voucherID uint64) (bool, error)

	// WithTx returns a repository bound to the given transaction
	WithTx(tx *gorm.DB) VoucherRepository
}

// voucherRepository voucher repository implementation
type voucherRepository struct {
	db *gorm.DB
}

// NewVoucherRepository creates a voucher repository
func NewVoucherRepository(db *gorm.DB) VoucherRepository {
	return &voucherRepository{db: db}
}

// WithTx returns a repository bound to the given transaction
func (r *voucherRepository) WithTx(tx *gorm.DB) VoucherRepository {
	return &voucherRepository{db: tx}
}

// GetByID gets a voucher by ID
func (r *voucherRepository) GetByID(ctx context.Context, id uint64) (*model.Voucher, error) {
	var voucher model.Voucher
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&voucher).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrVoucherNotFound
		}
		return nil, err
	}
	return &voucher, nil
}

// GetSeckillVoucher gets the flash-sale extension of a voucher
func (r *voucherRepository) GetSeckillVoucher(ctx context.Context, voucherID uint64) (*model.SeckillVoucher, error) {
	var sv model.SeckillVoucher
	err := r.db.WithContext(ctx).
		Where("voucher_id = ?", voucherID).
		First(&sv).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrVoucherNotFound
		}
		return nil, err
	}
	return &sv, nil
}

// ListActiveSeckillVouchers lists flash-sale vouchers whose window has not
// yet closed
func (r *voucherRepository) ListActiveSeckillVouchers(ctx context.Context) ([]*model.SeckillVoucher, error) {
	var vouchers []*model.SeckillVoucher
	err := r.db.WithContext(ctx).
		Where("end_time > NOW()").
		Find(&vouchers).Error
	return vouchers, err
}

// DecrementStock decrements durable stock only while stock remains. The
// stock > 0 guard makes the update safe under concurrent fulfillment.
func (r *voucherRepository) DecrementStock(ctx context.Context, voucherID uint64) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&model.SeckillVoucher{}).
		Where("voucher_id = ? AND stock > 0", voucherID).
		UpdateColumn("stock", gorm.Expr("stock - ?", 1))

	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
