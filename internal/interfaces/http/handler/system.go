package handler

import (
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
)

const serviceName = "BrickSync API"

// Version is stamped at build time via -ldflags "-X .../handler.Version=..."
var Version = "dev"

// SystemHandler serves service metadata and liveness endpoints. These sit
// next to the health endpoints but never touch the database, so they stay up
// even when the storage layer is degraded.
type SystemHandler struct {
	BaseHandler
	startedAt time.Time
}

func NewSystemHandler() *SystemHandler {
	return &SystemHandler{startedAt: time.Now()}
}

// SystemInfoResponse describes the running service instance
type SystemInfoResponse struct {
	Name          string `json:"name"`
	Version       string `json:"version"`
	GoVersion     string `json:"go_version"`
	Uptime        string `json:"uptime"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

// GetSystemInfo reports service name, version and uptime
func (h *SystemHandler) GetSystemInfo(c *gin.Context) {
	uptime := time.Since(h.startedAt)
	h.Success(c, SystemInfoResponse{
		Name:          serviceName,
		Version:       Version,
		GoVersion:     runtime.Version(),
		Uptime:        uptime.Round(time.Second).String(),
		UptimeSeconds: int64(uptime.Seconds()),
	})
}

// PingResponse carries the liveness echo
type PingResponse struct {
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// Ping answers a liveness check without touching any dependency
func (h *SystemHandler) Ping(c *gin.Context) {
	h.Success(c, PingResponse{
		Message:   "pong",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}
