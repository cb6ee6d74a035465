package api

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/anvisa/api/handler"
	"github.com/use-agent/anvisa/api/middleware"
	"github.com/use-agent/anvisa/config"
	"github.com/use-agent/anvisa/metrics"
)

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → Logger → Metrics → CORS
//	Search:  Auth (if enabled) → RateLimit
//
// Health, info and metrics stay outside auth so monitoring probes always work.
// ctx bounds the rate limiter's background eviction.
func NewRouter(ctx context.Context, s handler.Searcher, cfg *config.Config, startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())
	r.Use(metrics.Middleware())
	r.Use(middleware.CORS())

	// Open endpoints.
	r.GET("/", handler.Info())
	r.GET("/health", handler.Health(s, startTime))
	r.GET("/metrics", metrics.Handler())

	v1 := r.Group("/api/v1")
	v1.GET("/health", handler.Health(s, startTime))

	// Search: auth + rate limit, shared by the versioned route and its alias.
	guard := []gin.HandlerFunc{middleware.RateLimit(ctx, cfg.RateLimit)}
	if cfg.Auth.Enabled {
		guard = append([]gin.HandlerFunc{middleware.Auth(cfg.Auth.APIKeys)}, guard...)
	}
	search := append(guard, handler.Search(s))

	v1.POST("/search", search...)
	r.POST("/anvisa/search", search...)

	return r
}
