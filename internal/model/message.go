package model

// OrderMessage admitted order handed off to the fulfillment worker
type OrderMessage struct {
	OrderID   uint64 `json:"order_id"`   // Order ID assigned at admission
	UserID    uint64 `json:"user_id"`    // User ID
	VoucherID uint64 `json:"voucher_id"` // Voucher ID
	Timestamp int64  `json:"timestamp"`  // Admission timestamp (unix millis)
}
