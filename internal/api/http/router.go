package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"getpaid-p24/internal/infrastructure/przelewy24"
)

// HealthFunc reports dependency health; a "status" of "down" turns into 503.
type HealthFunc func(ctx context.Context) map[string]string

// RouterConfig: empty TrustedProxies keeps gin's default of trusting every
// peer's X-Forwarded-For; a nil Readiness means always ready.
type RouterConfig struct {
	CORSOrigins    []string
	TrustedProxies []string
	Health         HealthFunc
	Readiness      func() bool
}

func NewRouter(h *Handler, cfg RouterConfig, logger *zap.Logger) (*gin.Engine, error) {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger))

	if len(cfg.TrustedProxies) > 0 {
		if err := router.SetTrustedProxies(cfg.TrustedProxies); err != nil {
			return nil, fmt.Errorf("set trusted proxies: %w", err)
		}
	}

	if len(cfg.CORSOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORSOrigins,
			AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	router.POST(przelewy24.StatusPath, h.PostStatus)

	ret := router.Group("/przelewy24/return")
	{
		ret.GET("/:id", h.Return)
		ret.POST("/:id", h.Return)
	}

	router.POST("/payments/:id/checkout", h.Checkout)
	router.GET("/health", healthHandler(cfg.Health))
	router.GET("/ready", readyHandler(cfg.Readiness))

	return router, nil
}

func healthHandler(health HealthFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		if health == nil {
			c.JSON(http.StatusOK, gin.H{"status": "up"})
			return
		}
		stats := health(c.Request.Context())
		if stats["status"] == "down" {
			c.JSON(http.StatusServiceUnavailable, stats)
			return
		}
		c.JSON(http.StatusOK, stats)
	}
}

func readyHandler(ready func() bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if ready != nil && !ready() {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	}
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	log := logger.Named("http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	}
}
