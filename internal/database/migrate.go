package database

import (
	"fmt"

	"gorm.io/gorm"

	"flashsale/internal/model"
	"flashsale/pkg/log"
)

// AutoMigrate auto migrate database table schema
func AutoMigrate(db *gorm.DB) error {
	log.Info("Starting database migration...")

	models := []interface{}{
		&model.Shop{},
		&model.Voucher{},
		&model.SeckillVoucher{},
		&model.VoucherOrder{},
	}

	for _, m := range models {
		if err := db.AutoMigrate(m); err != nil {
			return fmt.Errorf("failed to migrate %T: %w", m, err)
		}
		log.Infof("Migrated model: %T", m)
	}

	log.Info("Database migration completed successfully")
	return nil
}

// CreateIndexes create additional indexes
func CreateIndexes(db *gorm.DB) error {
	log.Info("Creating additional indexes...")

	indexes := []struct {
		table string
		name  string
		sql   string
	}{
		{
			table: "voucher_orders",
			name:  "idx_voucher_orders_user_voucher",
			sql:   "CREATE INDEX IF NOT EXISTS idx_voucher_orders_user_voucher ON voucher_orders (user_id, voucher_id)",
		},
		{
			table: "seckill_vouchers",
			name:  "idx_seckill_vouchers_time",
			sql:   "CREATE INDEX IF NOT EXISTS idx_seckill_vouchers_time ON seckill_vouchers (begin_time, end_time)",
		},
		{
			table: "vouchers",
			name:  "idx_vouchers_shop",
			sql:   "CREATE INDEX IF NOT EXISTS idx_vouchers_shop ON vouchers (shop_id)",
		},
	}

	for _, idx := range indexes {
		if err := db.Exec(idx.sql).Error; err != nil {
			log.Warnf("Failed to create index %s on table %s: %v", idx.name, idx.table, err)
		} else {
			log.Infof("Created index: %s on table %s", idx.name, idx.table)
		}
	}

	log.Info("Index creation completed")
	return nil
}
