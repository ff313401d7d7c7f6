// internal/pkg/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// 订单与库存核心链路的业务指标。
// 标签保持低基数: status/reason 只允许有限的枚举值。
var (
	OrdersCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "atlas",
		Subsystem: "order",
		Name:      "created_total",
		Help:      "Total number of temp orders created.",
	})

	OrdersCheckedOut = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "atlas",
		Subsystem: "order",
		Name:      "checked_out_total",
		Help:      "Total number of orders that completed checkout.",
	})

	OrdersExpired = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "atlas",
		Subsystem: "order",
		Name:      "expired_total",
		Help:      "Total number of temp orders removed by the expiry sweep.",
	})

	OrdersCancelled = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "atlas",
		Subsystem: "order",
		Name:      "cancelled_total",
		Help:      "Total number of orders cancelled by an admin.",
	})

	AllocationFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "atlas",
		Subsystem: "inventory",
		Name:      "allocation_failures_total",
		Help:      "Stock allocation failures by reason.",
	}, []string{"reason"})

	VoucherRedemptions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "atlas",
		Subsystem: "order",
		Name:      "voucher_redemptions_total",
		Help:      "Voucher application attempts by outcome.",
	}, []string{"outcome"})

	SweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "atlas",
		Subsystem: "order",
		Name:      "sweep_duration_seconds",
		Help:      "Duration of a full expiry sweep.",
		Buckets:   prometheus.DefBuckets,
	})
)
