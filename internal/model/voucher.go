package model

import (
	"time"
)

// Voucher voucher model
type Voucher struct {
	ID          uint64    `gorm:"primaryKey;autoIncrement;comment:优惠券ID" json:"id"`
	ShopID      uint64    `gorm:"type:bigint unsigned;not null;index;comment:商铺ID" json:"shop_id"`
	Title       string    `gorm:"type:varchar(255);not null;comment:代金券标题" json:"title"`
	SubTitle    *string   `gorm:"type:varchar(255);comment:副标题" json:"sub_title,omitempty"`
	Rules       *string   `gorm:"type:varchar(1024);comment:使用规则" json:"rules,omitempty"`
	PayValue    int64     `gorm:"type:bigint unsigned;not null;comment:支付金额（分）" json:"pay_value"`
	ActualValue int64     `gorm:"type:bigint;not null;comment:抵扣金额（分）" json:"actual_value"`
	Type        int8      `gorm:"type:tinyint;not null;default:0;comment:类型：0-普通券，1-秒杀券" json:"type"`
	Status      int8      `gorm:"type:tinyint;not null;default:1;comment:状态：1-上架，2-下架，3-过期" json:"status"`
	CreatedAt   time.Time `gorm:"type:timestamp;not null;default:CURRENT_TIMESTAMP;comment:创建时间" json:"created_at"`
	UpdatedAt   time.Time `gorm:"type:timestamp;not null;default:CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP;comment:更新时间" json:"updated_at"`

	// 关联字段
	Seckill *SeckillVoucher `gorm:"foreignKey:VoucherID" json:"seckill,omitempty"`
}

// TableName set name
func (Voucher) TableName() string {
	return "vouchers"
}

// VoucherType voucher type const
const (
	VoucherTypeNormal  = 0
	VoucherTypeSeckill = 1
)

// VoucherStatus voucher status const
const (
	VoucherStatusOnShelf  = 1
	VoucherStatusOffShelf = 2
	VoucherStatusExpired  = 3
)

// IsSeckill check voucher is a flash-sale voucher
func (v *Voucher) IsSeckill() bool {
	return v.Type == VoucherTypeSeckill
}

// SeckillVoucher flash-sale extension of a voucher
type SeckillVoucher struct {
	VoucherID uint64    `gorm:"primaryKey;comment:关联的优惠券ID" json:"voucher_id"`
	Stock     int       `gorm:"type:int;not null;comment:库存" json:"stock"`
	BeginTime time.Time `gorm:"type:timestamp;not null;index;comment:生效时间" json:"begin_time"`
	EndTime   time.Time `gorm:"type:timestamp;not null;index;comment:失效时间" json:"end_time"`
	CreatedAt time.Time `gorm:"type:timestamp;not null;default:CURRENT_TIMESTAMP;comment:创建时间" json:"created_at"`
	UpdatedAt time.Time `gorm:"type:timestamp;not null;default:CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP;comment:更新时间" json:"updated_at"`
}

// TableName set name
func (SeckillVoucher) TableName() string {
	return "seckill_vouchers"
}

// IsStarted check sale window has opened at the given time
func (sv *SeckillVoucher) IsStarted(now time.Time) bool {
	return !now.Before(sv.BeginTime)
}

// IsEnded check sale window has closed at the given time
func (sv *SeckillVoucher) IsEnded(now time.Time) bool {
	return now.After(sv.EndTime)
}

// InWindow check the given time falls inside the sale window
func (sv *SeckillVoucher) InWindow(now time.Time) bool {
	return sv.IsStarted(now) && !sv.IsEnded(now)
}
