package api

import (
	"net/http"

	"order-service/api/health"
	"order-service/api/middleware"
	"order-service/api/order"
	"order-service/api/response"
	"order-service/config"
	apperrors "order-service/pkg/errors"
	"order-service/pkg/metrics"

	"github.com/gin-gonic/gin"
)

// Router Route configuration
type Router struct {
	engine           *gin.Engine
	config           *config.Config
	metrics          *metrics.Metrics
	healthController *health.Controller
	orderController  *order.Controller
}

// NewRouter builds the gin engine with the middleware chain. m may be nil.
func NewRouter(
	cfg *config.Config,
	m *metrics.Metrics,
	healthController *health.Controller,
	orderController *order.Controller,
) *Router {
	if cfg.IsDevelopment() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()

	// order matters: request id first so every later log line carries it
	engine.Use(middleware.RequestIDMiddleware())
	engine.Use(middleware.RecoveryMiddleware())
	engine.Use(middleware.LoggingMiddleware())
	if m != nil {
		engine.Use(middleware.MetricsMiddleware(m))
	}
	engine.Use(middleware.CORSMiddleware(&cfg.CORS))
	engine.Use(middleware.RateLimitMiddleware(&cfg.Server.RateLimit))

	return &Router{
		engine:           engine,
		config:           cfg,
		metrics:          m,
		healthController: healthController,
		orderController:  orderController,
	}
}

// SetupRoutes Set up all routes
func (r *Router) SetupRoutes() {
	r.healthController.RegisterRoutes(r.engine)

	apiGroup := r.engine.Group("/api/v1")
	{
		r.healthController.RegisterRoutes(apiGroup)
		r.orderController.RegisterRoutes(apiGroup)
	}

	if r.metrics != nil && r.config.Metrics.Enabled {
		r.engine.GET(r.config.Metrics.Path, gin.WrapH(r.metrics.Handler()))
	}

	r.engine.NoRoute(func(c *gin.Context) {
		response.HandleAppError(c, apperrors.NotFound("route not found: "+c.Request.URL.Path))
	})

	r.engine.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"name":    r.config.App.Name,
			"version": r.config.App.Version,
			"env":     r.config.App.Env,
			"health":  "/health",
		})
	})
}

// GetEngine Get Gin engine
func (r *Router) GetEngine() *gin.Engine {
	return r.engine
}
