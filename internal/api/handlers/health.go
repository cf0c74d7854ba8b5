package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Pinger is a dependency the health check probes.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Stats exposes the live matchmaking counters.
type Stats interface {
	QueueLen() int
	ActiveCalls() int
}

type HealthHandler struct {
	db    Pinger
	stats Stats
}

func NewHealthHandler(db Pinger, stats Stats) *HealthHandler {
	return &HealthHandler{db: db, stats: stats}
}

// HealthCheck godoc
// @Summary Health check
// @Description Check if the API server and its database are reachable
// @Tags system
// @Produce json
// @Success 200 {object} map[string]interface{} "Server is healthy"
// @Failure 503 {object} map[string]interface{} "Database unreachable"
// @Router /health [get]
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	body := gin.H{
		"status":  "ok",
		"service": "duochat-backend",
	}
	if h.stats != nil {
		body["queued"] = h.stats.QueueLen()
		body["activeCalls"] = h.stats.ActiveCalls()
	}

	if h.db != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.PingContext(ctx); err != nil {
			body["status"] = "degraded"
			body["database"] = "unreachable"
			c.JSON(http.StatusServiceUnavailable, body)
			return
		}
	}

	c.JSON(http.StatusOK, body)
}
