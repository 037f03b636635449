package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"order-gateway/internal/apperr"
	"order-gateway/internal/service"
	"order-gateway/internal/util"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Options configure the HTTP layer
type Options struct {
	Debug          bool
	CookieSecure   bool
	RequestTimeout time.Duration
}

// ReadinessCheck is a dependency probed by /ready
type ReadinessCheck struct {
	Name string
	Ping func(ctx context.Context) error
}

// Handler contains HTTP handlers
type Handler struct {
	orderService   *service.OrderService
	authService    *service.AuthService
	catalogService *service.CatalogService
	checks         []ReadinessCheck
	opts           Options
}

// NewHandler creates a new HTTP handler
func NewHandler(
	orderService *service.OrderService,
	authService *service.AuthService,
	catalogService *service.CatalogService,
	opts Options,
	checks ...ReadinessCheck,
) *Handler {
	return &Handler{
		orderService:   orderService,
		authService:    authService,
		catalogService: catalogService,
		checks:         checks,
		opts:           opts,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	RegisterValidators()

	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())
	router.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))
	router.Use(errorHandler(h.opts.Debug))
	router.Use(requestTimeout(h.opts.RequestTimeout))

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authed := authRequired(h.authService)

	authGroup := router.Group("/api/v1/auth")
	{
		authGroup.POST("/sms-send", h.sendCode)
		authGroup.POST("/login", h.login)
		authGroup.POST("/refresh", h.refresh)
		authGroup.POST("/logout", authed, h.logout)
	}

	v1 := router.Group("/api/v1", authed)
	{
		v1.POST("/orders/create", h.createOrder)
		v1.GET("/orders/:id", h.getOrder)
		v1.PUT("/orders/:id", h.updateOrder)

		v1.GET("/addresses", h.listAddresses)
		v1.POST("/addresses", h.createAddress)

		v1.GET("/cards", h.listCards)
		v1.POST("/cards", h.createCard)
	}

	internal := router.Group("/internal/v1", authed)
	{
		internal.GET("/orders", h.listOrders)

		internal.PUT("/addresses/:id", h.updateAddress)
		internal.DELETE("/addresses/:id", h.deleteAddress)

		internal.PUT("/cards/:id", h.updateCard)
		internal.DELETE("/cards/:id", h.deleteCard)

		internal.GET("/shops", h.listShops)
		internal.GET("/shops/:id", h.getShop)
		internal.POST("/shops", h.createShop)
		internal.PUT("/shops/:id", h.updateShop)
		internal.DELETE("/shops/:id", h.deleteShop)

		internal.GET("/profile", h.getProfile)
		internal.PUT("/profile", h.updateProfile)

		internal.GET("/sessions", h.listSessions)
		internal.POST("/sessions/deactivate", h.deactivateSession)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck pings every dependency and reports the first failure
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	for _, check := range h.checks {
		if err := check.Ping(ctx); err != nil {
			body := gin.H{
				"status": "unavailable",
				"failed": check.Name,
				"time":   time.Now().Unix(),
			}
			if h.opts.Debug {
				body["detail"] = err.Error()
			}
			c.JSON(http.StatusServiceUnavailable, body)
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// bindJSON decodes and validates the body, recording a bind error on failure
func bindJSON(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		_ = c.Error(err).SetType(gin.ErrorTypeBind)
		return false
	}
	return true
}

// bindQuery decodes and validates the query string
func bindQuery(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindQuery(obj); err != nil {
		_ = c.Error(err).SetType(gin.ErrorTypeBind)
		return false
	}
	return true
}

// idParam parses the :id path segment
func idParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		_ = c.Error(apperr.Validation("invalid id"))
		return 0, false
	}
	return id, true
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
