package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"checkout-service/internal/models"
	"checkout-service/internal/service"
	"checkout-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const staffIDHeader = "X-Staff-ID"

// Handler contains HTTP handlers
type Handler struct {
	checkout *service.CheckoutService
}

// NewHandler creates a new HTTP handler
func NewHandler(checkout *service.CheckoutService) *Handler {
	return &Handler{
		checkout: checkout,
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
		// Customer self-checkout: no identity, gated by the scan flag.
		v1.POST("/checkout", h.createScanSale)
		v1.GET("/sales/:code", h.lookupSale)

		// Staff endpoints. Identity is resolved upstream (gateway) and
		// trusted here via the X-Staff-ID header.
		staff := v1.Group("/")
		staff.Use(requireStaff())
		{
			staff.POST("/sales", h.createManualSale)
			staff.POST("/sales/:code/confirm", h.confirmSale)
		}
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

// createScanSale handles customer self-checkout
func (h *Handler) createScanSale(c *gin.Context) {
	var req service.CreateSaleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	resp, err := h.checkout.CreateSale(c.Request.Context(), models.SaleSourceCustomerScan, 0, &req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// createManualSale handles staff-operated POS sales
func (h *Handler) createManualSale(c *gin.Context) {
	var req service.CreateSaleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	staffID := c.MustGet("staffID").(int64)

	resp, err := h.checkout.CreateSale(c.Request.Context(), models.SaleSourceStaffManual, staffID, &req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// lookupSale handles lookup / polling by public code
func (h *Handler) lookupSale(c *gin.Context) {
	view, err := h.checkout.LookupSale(c.Request.Context(), c.Param("code"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

// confirmSale handles staff redemption of a scan-checkout code
func (h *Handler) confirmSale(c *gin.Context) {
	staffID := c.MustGet("staffID").(int64)

	view, err := h.checkout.ConfirmSale(c.Request.Context(), c.Param("code"), staffID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

// writeError maps workflow errors to HTTP statuses.
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidItems),
		errors.Is(err, service.ErrInvalidPayment),
		errors.Is(err, service.ErrInvalidCode):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrScanDisabled):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrCodeNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrMissingProduct):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrAlreadyConfirmed),
		errors.Is(err, service.ErrNotScanSource):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrRetryExhausted):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Request failed",
			"details": err.Error(),
		})
	}
}

// requireStaff trusts the staff identity resolved by the upstream gateway.
// The service performs no authentication of its own.
func requireStaff() gin.HandlerFunc {
	return func(c *gin.Context) {
		staffID, err := strconv.ParseInt(c.GetHeader(staffIDHeader), 10, 64)
		if err != nil || staffID <= 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Missing staff identity",
			})
			return
		}
		c.Set("staffID", staffID)
		c.Next()
	}
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
