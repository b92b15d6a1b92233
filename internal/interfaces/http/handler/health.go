package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/bricksync/backend/internal/infrastructure/persistence"
)

// HealthHandler answers liveness and readiness probes
type HealthHandler struct {
	db    *persistence.Database
	redis *redis.Client
}

// NewHealthHandler creates a new HealthHandler. The Redis client may be nil
// when the deployment runs without Redis.
func NewHealthHandler(db *persistence.Database, redisClient *redis.Client) *HealthHandler {
	return &HealthHandler{db: db, redis: redisClient}
}

// Health handles GET /health. Alive as long as the process serves requests.
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "healthy",
		"database": h.db.Ping() == nil,
	})
}

// Ready handles GET /ready. Ready only when every backing store answers.
func (h *HealthHandler) Ready(c *gin.Context) {
	checks := gin.H{}
	ready := true

	if err := h.db.Ping(); err != nil {
		checks["database"] = err.Error()
		ready = false
	} else {
		checks["database"] = "ok"
	}

	if h.redis != nil {
		if err := h.redis.Ping(c.Request.Context()).Err(); err != nil {
			checks["redis"] = err.Error()
			ready = false
		} else {
			checks["redis"] = "ok"
		}
	}

	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{
		"ready":     ready,
		"checks":    checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
