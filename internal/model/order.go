package model

import (
	"time"
)

// VoucherOrder voucher order model. The ID is assigned by the distributed
// generator at admission time, never by MySQL auto-increment.
type VoucherOrder struct {
	ID         uint64     `gorm:"primaryKey;comment:订单ID（全局ID生成器分配）" json:"id"`
	UserID     uint64     `gorm:"type:bigint unsigned;not null;index:idx_user_voucher;comment:用户ID" json:"user_id"`
	VoucherID  uint64     `gorm:"type:bigint unsigned;not null;index:idx_user_voucher;comment:优惠券ID" json:"voucher_id"`
	PayType    int8       `gorm:"type:tinyint;not null;default:1;comment:支付方式：1-余额，2-支付宝，3-微信" json:"pay_type"`
	Status     int8       `gorm:"type:tinyint;not null;default:1;index;comment:状态：1-未支付，2-已支付，3-已核销，4-已取消，5-已退款" json:"status"`
	PayTime    *time.Time `gorm:"type:timestamp;comment:支付时间" json:"pay_time,omitempty"`
	UseTime    *time.Time `gorm:"type:timestamp;comment:核销时间" json:"use_time,omitempty"`
	RefundTime *time.Time `gorm:"type:timestamp;comment:退款时间" json:"refund_time,omitempty"`
	CreatedAt  time.Time  `gorm:"type:timestamp;not null;default:CURRENT_TIMESTAMP;index;comment:创建时间" json:"created_at"`
	UpdatedAt  time.Time  `gorm:"type:timestamp;not null;default:CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP;comment:更新时间" json:"updated_at"`
}

// TableName set name
func (VoucherOrder) TableName() string {
	return "voucher_orders"
}

// OrderStatus order status const
const (
	OrderStatusUnpaid    = 1
	OrderStatusPaid      = 2
	OrderStatusRedeemed  = 3
	OrderStatusCancelled = 4
	OrderStatusRefunded  = 5
)

// PayType pay type const
const (
	PayTypeBalance = 1
	PayTypeAlipay  = 2
	PayTypeWechat  = 3
)

// IsUnpaid check order is unpaid
func (o *VoucherOrder) IsUnpaid() bool {
	return o.Status == OrderStatusUnpaid
}

// IsPaid check order is paid
func (o *VoucherOrder) IsPaid() bool {
	return o.Status == OrderStatusPaid
}

// CanPay check order can pay
func (o *VoucherOrder) CanPay() bool {
	return o.IsUnpaid()
}

// CanRefund check order can refund
func (o *VoucherOrder) CanRefund() bool {
	return o.IsPaid()
}
