package stock

import (
	"context"
	"strconv"
	"time"

	"flashsale/internal/monitor"
	"flashsale/internal/redis"
	"flashsale/internal/repository"
	"flashsale/pkg/log"
)

// Report compares admission state in Redis with durable state in MySQL for
// one voucher.
//
// Steady-state invariants:
//
//	RedisStock <= DBStock          (Redis decrements first, MySQL follows)
//	OrderCount <= AdmittedCount    (fulfillment trails admission)
//
// Backlog is the gap between admissions and durable orders. A persistent
// backlog means the worker is behind or dropping; a violated invariant means
// state was mutated outside the admission path.
type Report struct {
	VoucherID     uint64
	RedisStock    int
	AdmittedCount int64
	DBStock       int
	OrderCount    int64
	Backlog       int64
	Consistent    bool
}

// Reconciler periodically cross-checks the Redis admission gate against
// MySQL and reports drift. It never mutates state on its own; operators
// resync explicitly.
type Reconciler struct {
	voucherRepo repository.VoucherRepository
	orderRepo   repository.OrderRepository
	gate        *redis.AdmissionGate
	stockTTL    time.Duration
}

// NewReconciler creates a stock reconciler
func NewReconciler(
	voucherRepo repository.VoucherRepository,
	orderRepo repository.OrderRepository,
	gate *redis.AdmissionGate,
	stockTTL time.Duration,
) *Reconciler {
	return &Reconciler{
		voucherRepo: voucherRepo,
		orderRepo:   orderRepo,
		gate:        gate,
		stockTTL:    stockTTL,
	}
}

// Check builds a consistency report for one voucher.
func (r *Reconciler) Check(ctx context.Context, voucherID uint64) (*Report, error) {
	sv, err := r.voucherRepo.GetSeckillVoucher(ctx, voucherID)
	if err != nil {
		return nil, err
	}

	redisStock, err := r.gate.GetVoucherStock(ctx, voucherID)
	if err != nil {
		// Stock not prewarmed yet is not drift, just nothing to compare.
		return nil, err
	}

	admitted, err := r.gate.AdmittedCount(ctx, voucherID)
	if err != nil {
		return nil, err
	}

	orderCount, err := r.orderRepo.CountByVoucher(ctx, voucherID)
	if err != nil {
		return nil, err
	}

	report := &Report{
		VoucherID:     voucherID,
		RedisStock:    redisStock,
		AdmittedCount: admitted,
		DBStock:       sv.Stock,
		OrderCount:    orderCount,
		Backlog:       admitted - orderCount,
	}
	report.Consistent = redisStock <= sv.Stock && orderCount <= admitted

	return report, nil
}

// CheckAll reports on every voucher whose sale window has not closed.
// Vouchers that were never prewarmed are skipped.
func (r *Reconciler) CheckAll(ctx context.Context) ([]*Report, error) {
	vouchers, err := r.voucherRepo.ListActiveSeckillVouchers(ctx)
	if err != nil {
		return nil, err
	}

	reports := make([]*Report, 0, len(vouchers))
	for _, sv := range vouchers {
		report, err := r.Check(ctx, sv.VoucherID)
		if err != nil {
			log.Debugf("Skipping reconciliation for voucher %d: %v", sv.VoucherID, err)
			continue
		}
		reports = append(reports, report)
	}

	return reports, nil
}

// Resync overwrites the Redis stock counter with the MySQL value. Only for
// operator use after an incident: it does not touch the admitted-user set,
// so one-per-user stays intact.
func (r *Reconciler) Resync(ctx context.Context, voucherID uint64) error {
	sv, err := r.voucherRepo.GetSeckillVoucher(ctx, voucherID)
	if err != nil {
		return err
	}

	if err := r.gate.InitVoucherStock(ctx, voucherID, sv.Stock, r.stockTTL); err != nil {
		return err
	}

	log.WithFields(map[string]interface{}{
		"voucher_id": voucherID,
		"stock":      sv.Stock,
	}).Warn("Redis stock resynced from MySQL")
	return nil
}

// Run checks all active vouchers on the given interval until ctx is
// cancelled, exporting backlog gauges and logging inconsistencies.
func (r *Reconciler) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			reports, err := r.CheckAll(ctx)
			if err != nil {
				log.Errorf("Stock reconciliation failed: %v", err)
				continue
			}
			for _, report := range reports {
				r.publish(report)
			}
		}
	}
}

func (r *Reconciler) publish(report *Report) {
	monitor.SetFulfillmentBacklog(strconv.FormatUint(report.VoucherID, 10), report.Backlog)

	if !report.Consistent {
		monitor.RecordStockInconsistency()
		log.WithFields(map[string]interface{}{
			"voucher_id":  report.VoucherID,
			"redis_stock": report.RedisStock,
			"db_stock":    report.DBStock,
			"admitted":    report.AdmittedCount,
			"orders":      report.OrderCount,
		}).Error("Stock state inconsistent between Redis and MySQL")
	}
}
