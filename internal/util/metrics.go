package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_created_total",
		Help: "Total number of orders created",
	})

	OrdersPaidTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_paid_total",
		Help: "Total number of orders paid",
	})

	OrdersCancelledTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_cancelled_total",
		Help: "Total number of orders cancelled",
	}, []string{"actor"})

	OrdersFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_failed_total",
		Help: "Total number of failed order creations",
	}, []string{"reason"})

	StockReservationsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stock_reservations_failed_total",
		Help: "Total number of reservations rejected for insufficient stock",
	})

	CouponsClaimedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "coupons_claimed_total",
		Help: "Total number of coupon grants issued",
	})

	CouponClaimsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coupon_claims_rejected_total",
		Help: "Total number of rejected coupon claims",
	}, []string{"reason"})

	UserCouponsExpiredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "user_coupons_expired_total",
		Help: "Total number of user coupons expired by the sweep",
	})

	SweepOrdersCancelled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sweep_orders_cancelled_total",
		Help: "Total number of timed-out orders cancelled by the sweep",
	})

	SweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "sweep_duration_seconds",
		Help:    "Duration of reconciler sweeps",
		Buckets: prometheus.DefBuckets,
	})

	EventPublishFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "event_publish_failures_total",
		Help: "Total number of failed event publishes",
	}, []string{"queue"})

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
