package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	appsync "github.com/bricksync/backend/internal/application/sync"
)

// SyncHandler exposes manual synchronization triggers
type SyncHandler struct {
	BaseHandler
	ingestion *appsync.IngestionService
	logger    *zap.Logger
}

// NewSyncHandler creates a new SyncHandler
func NewSyncHandler(ingestion *appsync.IngestionService, logger *zap.Logger) *SyncHandler {
	return &SyncHandler{ingestion: ingestion, logger: logger}
}

// pullOrdersRequest optionally narrows the pull window
type pullOrdersRequest struct {
	Since string `json:"since,omitempty"`
}

// pullOrdersResponse summarizes a manual pull
type pullOrdersResponse struct {
	Provider string `json:"provider"`
	Pulled   int    `json:"pulled"`
	Ingested int    `json:"ingested"`
	Failed   int    `json:"failed"`
}

// PullOrders handles POST /api/v1/sync/orders/:provider
func (h *SyncHandler) PullOrders(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Tenant context required")
		return
	}
	provider, ok := parseProvider(c)
	if !ok {
		h.BadRequest(c, "Unknown provider")
		return
	}

	var req pullOrdersRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.BadRequest(c, "Invalid request body")
			return
		}
	}

	var since time.Time
	if req.Since != "" {
		since, err = time.Parse(time.RFC3339, req.Since)
		if err != nil {
			h.BadRequest(c, "since must be ISO-8601")
			return
		}
	}

	result, err := h.ingestion.PullOrders(c.Request.Context(), tenantID, provider, since)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, pullOrdersResponse{
		Provider: result.Provider.String(),
		Pulled:   result.Pulled,
		Ingested: result.Ingested,
		Failed:   result.Failed,
	})
}
