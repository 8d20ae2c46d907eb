package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"reservation-service/internal/models"
	"reservation-service/internal/service"
	"reservation-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// OrderLookup is the read side of the order store used by the API.
type OrderLookup interface {
	GetOrderByID(ctx context.Context, id int64) (*models.Order, error)
	GetOrderItemsByOrderID(ctx context.Context, orderID int64) ([]models.OrderItem, error)
	ListReconciliationFailures(ctx context.Context) ([]models.ReconciliationFailure, error)
}

// Handler contains HTTP handlers
type Handler struct {
	reservations *service.ReservationService
	reconciler   *service.Reconciler
	orders       OrderLookup
}

// NewHandler creates a new HTTP handler
func NewHandler(reservations *service.ReservationService, reconciler *service.Reconciler, orders OrderLookup) *Handler {
	return &Handler{
		reservations: reservations,
		reconciler:   reconciler,
		orders:       orders,
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
		v1.POST("/reservations", h.createReservation)
		v1.DELETE("/reservations/:sessionId", h.releaseReservation)
		v1.GET("/reservations", h.listReservations)
		v1.POST("/orders", h.reconcileOrder)
		v1.GET("/orders/:id", h.getOrder)
		v1.GET("/reconciliation-failures", h.listReconciliationFailures)
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

type createReservationRequest struct {
	SessionID string                       `json:"session_id" binding:"required"`
	Items     []service.ReserveItemRequest `json:"items" binding:"required,min=1"`
}

// createReservation places or refreshes holds for a session. Items succeed
// and fail independently; the response reports each outcome.
func (h *Handler) createReservation(c *gin.Context) {
	var req createReservationRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	resp, err := h.reservations.Reserve(c.Request.Context(), req.SessionID, req.Items)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to reserve",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, resp)
}

// releaseReservation drops every hold owned by a session
func (h *Handler) releaseReservation(c *gin.Context) {
	sessionID := c.Param("sessionId")

	removed, err := h.reservations.Release(c.Request.Context(), sessionID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to release holds",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"released": removed})
}

// listReservations returns all active holds with remaining lifetime
func (h *Handler) listReservations(c *gin.Context) {
	holds, err := h.reservations.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to list holds",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"holds": holds,
		"count": len(holds),
	})
}

// reconcileOrder converts a reservation into a durable order
func (h *Handler) reconcileOrder(c *gin.Context) {
	var req service.ReconcileRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	resp, err := h.reconciler.Reconcile(c.Request.Context(), &req)
	if err != nil {
		ise, isCapacity := models.AsInsufficientStock(err)
		switch {
		case isCapacity:
			c.JSON(http.StatusConflict, gin.H{
				"error":      "Insufficient stock",
				"product_id": ise.ProductID,
				"available":  ise.Available,
				"requested":  ise.Requested,
			})
		case errors.Is(err, models.ErrProductNotFound):
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "Product not found",
				"details": err.Error(),
			})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":   "Failed to reconcile order",
				"details": err.Error(),
			})
		}
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// getOrder handles get order by ID
func (h *Handler) getOrder(c *gin.Context) {
	idStr := c.Param("id")
	orderID, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid order ID",
		})
		return
	}

	order, err := h.orders.GetOrderByID(c.Request.Context(), orderID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "Order not found",
			"details": err.Error(),
		})
		return
	}

	items, err := h.orders.GetOrderItemsByOrderID(c.Request.Context(), orderID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to load order items",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"order": order,
		"items": items,
	})
}

// listReconciliationFailures exposes partially-applied commitments (order
// written, stock decrement failed or fell short) for the operator workflow
func (h *Handler) listReconciliationFailures(c *gin.Context) {
	failures, err := h.orders.ListReconciliationFailures(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to list reconciliation failures",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"failures": failures,
		"count":    len(failures),
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
