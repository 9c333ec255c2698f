package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"order-core/internal/models"
	"order-core/internal/service"
	"order-core/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler contains HTTP handlers
type Handler struct {
	orderService  *service.OrderService
	couponService *service.CouponService
}

// NewHandler creates a new HTTP handler
func NewHandler(orderService *service.OrderService, couponService *service.CouponService) *Handler {
	return &Handler{
		orderService:  orderService,
		couponService: couponService,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.POST("/orders", h.createOrder)
		v1.GET("/orders", h.listOrders)
		v1.GET("/orders/:id", h.getOrder)
		v1.POST("/orders/:id/cancel", h.cancelOrder)
		v1.POST("/orders/:id/pay", h.payOrder)
		v1.POST("/orders/:id/confirm", h.confirmOrder)
		v1.GET("/orders/:id/remaining-time", h.remainingTime)
		v1.GET("/orders/no/:orderNo", h.getOrderByNo)

		v1.POST("/admin/orders/:id/ship", h.shipOrder)

		v1.POST("/coupons/claim", h.claimCoupon)
		v1.GET("/coupons", h.listClaimableCoupons)
		v1.GET("/coupons/mine", h.listMyCoupons)
		v1.GET("/coupons/available-for-order", h.availableForOrder)
		v1.POST("/coupons/preview-discount", h.previewDiscount)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// userID resolves the authenticated user from the X-User-ID header set by
// the gateway. Requests without it are rejected.
func userID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.GetHeader("X-User-ID"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error": "Missing or invalid X-User-ID header",
		})
		return 0, false
	}
	return id, true
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid " + name,
		})
		return 0, false
	}
	return id, true
}

// writeError maps domain errors onto HTTP statuses.
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, models.ErrEmptyItems):
		status = http.StatusBadRequest
	case errors.Is(err, models.ErrProductNotFound),
		errors.Is(err, models.ErrOrderNotFound),
		errors.Is(err, models.ErrCouponNotFound),
		errors.Is(err, models.ErrUserCouponNotFound):
		status = http.StatusNotFound
	case errors.Is(err, models.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, models.ErrInsufficientStock),
		errors.Is(err, models.ErrInvalidState),
		errors.Is(err, models.ErrCouponNotActive),
		errors.Is(err, models.ErrCouponExpired),
		errors.Is(err, models.ErrCouponDisabled),
		errors.Is(err, models.ErrCouponSoldOut),
		errors.Is(err, models.ErrClaimLimitReached),
		errors.Is(err, models.ErrCouponUnavailable):
		status = http.StatusConflict
	}

	c.JSON(status, gin.H{
		"error": err.Error(),
	})
}

// createOrder handles order creation
func (h *Handler) createOrder(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}

	var req service.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}
	req.UserID = uid

	resp, err := h.orderService.CreateOrder(c.Request.Context(), &req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// listOrders handles paginated order listing for the current user
func (h *Handler) listOrders(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))

	var status *string
	if s := c.Query("status"); s != "" {
		status = &s
	}

	orders, total, err := h.orderService.ListOrders(c.Request.Context(), uid, status, page, limit)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"orders": orders,
		"total":  total,
		"page":   page,
		"limit":  limit,
	})
}

// getOrder handles get order by ID
func (h *Handler) getOrder(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	orderID, ok := pathID(c, "id")
	if !ok {
		return
	}

	order, items, err := h.orderService.GetOrder(c.Request.Context(), orderID, uid)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"order": order,
		"items": items,
	})
}

// getOrderByNo handles get order by external order number
func (h *Handler) getOrderByNo(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	orderNo := c.Param("orderNo")
	if orderNo == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid order number",
		})
		return
	}

	order, items, err := h.orderService.GetOrderByNo(c.Request.Context(), orderNo, uid)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"order": order,
		"items": items,
	})
}

// shipOrder handles the back-office ship action
func (h *Handler) shipOrder(c *gin.Context) {
	orderID, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.orderService.ShipOrder(c.Request.Context(), orderID); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": models.OrderStatusShipped,
	})
}

// cancelOrder handles user-initiated cancellation
func (h *Handler) cancelOrder(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	orderID, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.orderService.CancelOrder(c.Request.Context(), orderID, uid); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": models.OrderStatusCancelled,
	})
}

// payOrder handles payment confirmation
func (h *Handler) payOrder(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	orderID, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.orderService.PayOrder(c.Request.Context(), orderID, uid); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": models.OrderStatusPaid,
	})
}

// confirmOrder handles delivery confirmation
func (h *Handler) confirmOrder(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	orderID, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.orderService.ConfirmOrder(c.Request.Context(), orderID, uid); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": models.OrderStatusCompleted,
	})
}

// remainingTime reports the minutes left before a pending order times out
func (h *Handler) remainingTime(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	orderID, ok := pathID(c, "id")
	if !ok {
		return
	}

	minutes, err := h.orderService.RemainingMinutes(c.Request.Context(), orderID, uid)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"remaining_minutes": minutes,
	})
}

type claimCouponRequest struct {
	CouponID int64  `json:"coupon_id"`
	Code     string `json:"code"`
}

// claimCoupon handles coupon claim by ID or code
func (h *Handler) claimCoupon(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}

	var req claimCouponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	userCouponID, err := h.couponService.Claim(c.Request.Context(), uid, req.CouponID, req.Code)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"user_coupon_id": userCouponID,
	})
}

// listClaimableCoupons handles listing enabled coupon templates
func (h *Handler) listClaimableCoupons(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	coupons, total, err := h.couponService.ListClaimable(c.Request.Context(), page, limit)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"coupons": coupons,
		"total":   total,
		"page":    page,
		"limit":   limit,
	})
}

// listMyCoupons handles listing the current user's coupon grants
func (h *Handler) listMyCoupons(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}

	var status *string
	if s := c.Query("status"); s != "" {
		status = &s
	}

	coupons, err := h.couponService.ListUserCoupons(c.Request.Context(), uid, status)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"coupons": coupons,
	})
}

// availableForOrder lists the user's usable coupons for an order amount
func (h *Handler) availableForOrder(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}

	amount, err := strconv.ParseInt(c.Query("amount"), 10, 64)
	if err != nil || amount < 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid amount",
		})
		return
	}

	coupons, err := h.couponService.ListAvailableForOrder(c.Request.Context(), uid, amount)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"coupons": coupons,
	})
}

type previewDiscountRequest struct {
	UserCouponID int64 `json:"user_coupon_id" binding:"required"`
	OrderAmount  int64 `json:"order_amount" binding:"required,min=0"`
}

// previewDiscount computes a coupon's effect on an amount without using it
func (h *Handler) previewDiscount(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}

	var req previewDiscountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	discount, finalAmount, err := h.couponService.PreviewDiscount(c.Request.Context(), uid, req.UserCouponID, req.OrderAmount)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"discount_amount": discount,
		"final_amount":    finalAmount,
	})
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
