// Package health exposes liveness and readiness probes for a relay service.
package health

import (
	"context"
	"net/http"
	"time"

	"github.com/brightforge/relay/internal/bus"
	"github.com/brightforge/relay/internal/logging"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handler serves the /health/live and /health/ready endpoints.
type Handler struct {
	redis *bus.Service
}

// NewHandler builds a Handler. redis may be nil (single-instance mode).
func NewHandler(redis *bus.Service) *Handler {
	return &Handler{redis: redis}
}

type livenessResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

type readinessResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks"`
	Timestamp string            `json:"timestamp"`
}

// Liveness returns 200 whenever the process is up; it checks no dependency.
func (h *Handler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, livenessResponse{
		Status:    "alive",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// Readiness returns 200 only if every checked dependency is healthy, 503
// otherwise.
func (h *Handler) Readiness(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	checks := map[string]string{"redis": h.checkRedis(ctx)}

	status := "ready"
	code := http.StatusOK
	for _, v := range checks {
		if v != "healthy" {
			status = "unavailable"
			code = http.StatusServiceUnavailable
			break
		}
	}

	c.JSON(code, readinessResponse{
		Status:    status,
		Checks:    checks,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *Handler) checkRedis(ctx context.Context) string {
	if h.redis == nil {
		return "healthy"
	}
	if err := h.redis.Ping(ctx); err != nil {
		logging.Error(ctx, "redis health check failed", zap.Error(err))
		return "unhealthy"
	}
	return "healthy"
}
