package seckill

import "errors"

// Admission failures surfaced to the handler layer. Each maps to a
// deterministic rejection; none of them leaves gate state behind.
var (
	// ErrSeckillNotStarted the sale window has not opened yet
	ErrSeckillNotStarted = errors.New("seckill has not started")

	// ErrSeckillEnded the sale window has closed
	ErrSeckillEnded = errors.New("seckill has ended")

	// ErrInsufficientStock the cached stock is exhausted
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrAlreadyPurchased the user already holds an admission for this voucher
	ErrAlreadyPurchased = errors.New("user already purchased this voucher")

	// ErrSystemOverloaded the fulfillment queue is full
	ErrSystemOverloaded = errors.New("system overloaded, please try again later")

	// ErrServiceDegraded an operator switched admissions off for the voucher
	ErrServiceDegraded = errors.New("service temporarily degraded")
)
