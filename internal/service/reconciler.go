package service

import (
	"context"
	"errors"
	"time"

	"order-core/internal/broker"
	"order-core/internal/models"
	"order-core/internal/util"

	"go.uber.org/zap"
)

// DefaultSweepInterval is how often the reconciler scans for expired
// pending orders and overdue coupon grants.
const DefaultSweepInterval = 5 * time.Minute

// ReconcilerStore is the slice of the store the reconciler needs.
type ReconcilerStore interface {
	GetExpiredPendingOrders(ctx context.Context, cutoff time.Time) ([]models.Order, error)
	CancelOrderTx(ctx context.Context, orderID int64) ([]models.OrderItem, error)
	ExpireUserCoupons(ctx context.Context, now time.Time) (int64, error)
}

// CancelPublisher publishes cancellation events for swept orders.
type CancelPublisher interface {
	PublishOrderCancelled(ctx context.Context, event *models.OrderEvent) error
}

// Reconciler is the periodic sweep that cancels timed-out PENDING orders,
// restoring their stock, and expires overdue UNUSED coupon grants. It runs
// independently of request traffic.
type Reconciler struct {
	store     ReconcilerStore
	publisher CancelPublisher
	logger    *zap.Logger
	timeout   time.Duration
	interval  time.Duration
}

// NewReconciler creates a reconciler. The timeout must be the same value
// the order service uses for RemainingMinutes.
func NewReconciler(store ReconcilerStore, publisher CancelPublisher, timeout, interval time.Duration) *Reconciler {
	if timeout <= 0 {
		timeout = DefaultOrderTimeout
	}
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Reconciler{
		store:     store,
		publisher: publisher,
		logger:    util.GetLogger(),
		timeout:   timeout,
		interval:  interval,
	}
}

// Run sweeps immediately, then on every tick until the context is done.
func (r *Reconciler) Run(ctx context.Context) {
	r.logger.Info("Reconciler started",
		zap.Duration("timeout", r.timeout),
		zap.Duration("interval", r.interval))

	r.Sweep(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Reconciler stopped")
			return
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

// Sweep cancels every PENDING order older than the timeout. Each order is
// handled independently: one failure is logged and the sweep moves on.
// Re-sweeping an already-cancelled order is a no-op because the cancel
// path is guarded by the PENDING precondition.
func (r *Reconciler) Sweep(ctx context.Context) {
	start := time.Now()
	defer func() {
		util.SweepDuration.Observe(time.Since(start).Seconds())
	}()

	cutoff := start.Add(-r.timeout)
	orders, err := r.store.GetExpiredPendingOrders(ctx, cutoff)
	if err != nil {
		r.logger.Error("Failed to scan for expired orders", zap.Error(err))
		return
	}

	if len(orders) > 0 {
		r.logger.Info("Expired pending orders found", zap.Int("count", len(orders)))
	}

	for i := range orders {
		order := &orders[i]
		items, err := r.store.CancelOrderTx(ctx, order.ID)
		if err != nil {
			if errors.Is(err, models.ErrInvalidState) {
				// Lost the race against a pay or an explicit cancel.
				continue
			}
			r.logger.Error("Failed to cancel expired order",
				zap.Int64("order_id", order.ID),
				zap.String("order_no", order.OrderNo),
				zap.Error(err))
			continue
		}

		util.OrdersCancelledTotal.WithLabelValues("timeout").Inc()
		util.SweepOrdersCancelled.Inc()
		r.logger.Info("Expired order cancelled, stock restored",
			zap.Int64("order_id", order.ID),
			zap.String("order_no", order.OrderNo))

		order.Status = models.OrderStatusCancelled
		event := broker.NewOrderEvent(models.EventTypeOrderCancelled, order, items)
		event.Reason = "timeout"
		if err := r.publisher.PublishOrderCancelled(ctx, event); err != nil {
			util.EventPublishFailures.WithLabelValues(models.QueueOrderCancelled).Inc()
			r.logger.Error("Failed to publish cancellation event",
				zap.Int64("order_id", order.ID),
				zap.Error(err))
		}
	}

	expired, err := r.store.ExpireUserCoupons(ctx, start)
	if err != nil {
		r.logger.Error("Failed to expire user coupons", zap.Error(err))
		return
	}
	if expired > 0 {
		util.UserCouponsExpiredTotal.Add(float64(expired))
		r.logger.Info("User coupons expired", zap.Int64("count", expired))
	}
}
