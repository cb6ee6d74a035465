package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/anvisa/models"
)

// Version is reported by the health and info endpoints.
const Version = "0.1.0"

// Health returns a handler for GET /api/v1/health.
//
// Reports browser session utilisation and degrades status when every
// session slot is busy, since new searches will queue.
func Health(s Searcher, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		active, capacity := s.Active(), s.Capacity()

		status := "healthy"
		if capacity > 0 && active >= capacity {
			status = "degraded"
		}

		c.JSON(http.StatusOK, models.HealthResponse{
			Status:         status,
			Uptime:         time.Since(startTime).Round(time.Second).String(),
			ActiveSearches: active,
			MaxSearches:    capacity,
			Version:        Version,
		})
	}
}

// Info returns a handler for GET / describing the service.
func Info() gin.HandlerFunc {
	info := models.ServiceInfo{
		Service: "anvisa",
		Version: Version,
		Status:  "running",
		Endpoints: map[string]string{
			"search":  "POST /api/v1/search",
			"health":  "GET /api/v1/health",
			"metrics": "GET /metrics",
		},
	}
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, info)
	}
}
