package monitor

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// 业务指标
var (
	admissionTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seckill_admission_total",
			Help: "Total number of admission attempts by outcome",
		},
		[]string{"outcome"},
	)

	fulfillmentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seckill_fulfillment_total",
			Help: "Total number of fulfillment attempts by status",
		},
		[]string{"status"},
	)

	fulfillmentDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "seckill_fulfillment_duration_seconds",
			Help:    "Duration of durable order fulfillment",
			Buckets: prometheus.DefBuckets,
		},
	)

	gateDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "seckill_gate_duration_seconds",
			Help:    "Duration of the atomic Redis admission script",
			Buckets: prometheus.DefBuckets,
		},
	)

	fulfillmentDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "seckill_fulfillment_dropped_total",
			Help: "Total number of admitted orders dropped before fulfillment",
		},
	)

	queueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "seckill_queue_depth",
			Help: "Number of admitted orders awaiting fulfillment",
		},
	)

	prewarmTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seckill_prewarm_total",
			Help: "Total number of voucher prewarm operations",
		},
		[]string{"status"},
	)

	fulfillmentBacklog = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "seckill_fulfillment_backlog",
			Help: "Admitted orders not yet durable in MySQL, per voucher",
		},
		[]string{"voucher_id"},
	)

	stockInconsistentTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "seckill_stock_inconsistent_total",
			Help: "Total number of stock reconciliation checks that found an inconsistency",
		},
	)
)

// 系统指标
var (
	httpRequestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_request_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// RecordAdmission 记录一次准入结果
func RecordAdmission(outcome string) {
	admissionTotal.WithLabelValues(outcome).Inc()
}

// RecordFulfillment 记录一次落库结果
func RecordFulfillment(status string) {
	fulfillmentTotal.WithLabelValues(status).Inc()
}

// ObserveFulfillmentDuration 记录落库耗时
func ObserveFulfillmentDuration(d time.Duration) {
	fulfillmentDuration.Observe(d.Seconds())
}

// ObserveGateDuration 记录准入脚本耗时
func ObserveGateDuration(d time.Duration) {
	gateDuration.Observe(d.Seconds())
}

// RecordFulfillmentDropped 记录被丢弃的已准入订单
func RecordFulfillmentDropped() {
	fulfillmentDroppedTotal.Inc()
}

// SetQueueDepth 更新待落库订单数
func SetQueueDepth(n int) {
	queueDepth.Set(float64(n))
}

// RecordPrewarm 记录预热结果
func RecordPrewarm(status string) {
	prewarmTotal.WithLabelValues(status).Inc()
}

// SetFulfillmentBacklog 更新某个voucher的待落库积压
func SetFulfillmentBacklog(voucherID string, n int64) {
	fulfillmentBacklog.WithLabelValues(voucherID).Set(float64(n))
}

// RecordStockInconsistency 记录一次库存不一致
func RecordStockInconsistency() {
	stockInconsistentTotal.Inc()
}

// RecordHTTPRequest 记录HTTP请求
func RecordHTTPRequest(method, path, status string) {
	httpRequestTotal.WithLabelValues(method, path, status).Inc()
}

// ObserveHTTPDuration 记录HTTP请求耗时
func ObserveHTTPDuration(method, path string, duration time.Duration) {
	httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}
