package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ReservationsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reservations_created_total",
		Help: "Total number of holds successfully placed or refreshed",
	})

	ReservationsRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reservations_rejected_total",
		Help: "Total number of per-item reservation rejections",
	}, []string{"reason"})

	HoldsReleasedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "holds_released_total",
		Help: "Total number of holds removed by explicit release",
	})

	HoldsExpiredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "holds_expired_total",
		Help: "Total number of holds removed by the expiry sweep",
	})

	OrdersReconciledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_reconciled_total",
		Help: "Total number of reservations converted into durable orders",
	})

	ReconcileFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reconcile_failed_total",
		Help: "Total number of failed reconciliations",
	}, []string{"reason"})

	ReconcileInconsistencyTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reconcile_inconsistency_total",
		Help: "Orders written whose stock decrement failed and needs manual reconciliation",
	})

	ReserveLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "reserve_latency_seconds",
		Help:    "Latency of reservation batch handling",
		Buckets: prometheus.DefBuckets,
	})

	OrdersPaidTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_paid_total",
		Help: "Total number of orders marked paid from payment callbacks",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
