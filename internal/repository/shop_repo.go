package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"flashsale/internal/model"
)

// ErrShopNotFound is returned when a shop lookup matches nothing.
var ErrShopNotFound = errors.New("shop not found")

// ShopRepository shop repository interface
type ShopRepository interface {
	// Get shop by ID
	GetByID(ctx context.Context, id uint64) (*model.Shop, error)

	// List all shop IDs (for bloom filter warmup)
	ListIDs(ctx context.Context) ([]uint64, error)

	// Update shop
	Update(ctx context.Context, shop *model.Shop) error
}

// shopRepository shop repository implementation
type shopRepository struct {
	db *gorm.DB
}

// NewShopRepository creates a shop repository
func NewShopRepository(db *gorm.DB) ShopRepository {
	return &shopRepository{db: db}
}

// GetByID gets a shop by ID
func (r *shopRepository) GetByID(ctx context.Context, id uint64) (*model.Shop, error) {
	var shop model.Shop
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&shop).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrShopNotFound
		}
		return nil, err
	}
	return &shop, nil
}

// ListIDs lists all shop IDs
func (r *shopRepository) ListIDs(ctx context.Context) ([]uint64, error) {
	var ids []uint64
	err := r.db.WithContext(ctx).
		Model(&model.Shop{}).
		Pluck("id", &ids).Error
	return ids, err
}

// Update updates a shop
func (r *shopRepository) Update(ctx context.Context, shop *model.Shop) error {
	return r.db.WithContext(ctx).Save(shop).Error
}
