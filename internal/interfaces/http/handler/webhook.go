package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	appsync "github.com/bricksync/backend/internal/application/sync"
	"github.com/bricksync/backend/internal/domain/marketplace"
)

// WebhookHandler receives marketplace push notifications on the public
// per-tenant callback URL. The token in the path is the only authentication.
type WebhookHandler struct {
	BaseHandler
	webhooks *appsync.WebhookService
	logger   *zap.Logger
}

// NewWebhookHandler creates a new WebhookHandler
func NewWebhookHandler(webhooks *appsync.WebhookService, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{webhooks: webhooks, logger: logger}
}

// webhookRequest is the provider delivery payload
type webhookRequest struct {
	EventType  string `json:"event_type" binding:"required"`
	ResourceID int64  `json:"resource_id" binding:"required"`
	Timestamp  string `json:"timestamp" binding:"required"`
}

// webhookResponse is always returned with HTTP 200 for structurally valid
// requests, so providers do not retry deliveries we already recorded.
type webhookResponse struct {
	Received  bool   `json:"received"`
	Duplicate bool   `json:"duplicate,omitempty"`
	Replay    bool   `json:"replay,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Receive handles POST /webhook/:token
func (h *WebhookHandler) Receive(c *gin.Context) {
	var req webhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Malformed webhook payload")
		return
	}

	eventType := marketplace.WebhookEventType(req.EventType)
	if !eventType.IsValid() {
		h.BadRequest(c, "Unknown event type")
		return
	}
	if req.ResourceID <= 0 {
		h.BadRequest(c, "Resource ID must be a positive integer")
		return
	}
	timestamp, err := time.Parse(time.RFC3339, req.Timestamp)
	if err != nil {
		h.BadRequest(c, "Timestamp must be ISO-8601")
		return
	}

	result, err := h.webhooks.Receive(c.Request.Context(), c.Param("token"), &appsync.WebhookEvent{
		EventType:  eventType,
		ResourceID: req.ResourceID,
		Timestamp:  timestamp,
	})
	if err != nil {
		// Unknown tokens still get 200 so the endpoint cannot be used to
		// probe for valid callback URLs.
		if errors.Is(err, appsync.ErrUnknownWebhookToken) {
			c.JSON(http.StatusOK, webhookResponse{Received: false, Error: "unknown token"})
			return
		}
		h.logger.Error("webhook receive failed", zap.Error(err))
		c.JSON(http.StatusOK, webhookResponse{Received: false, Error: "temporarily unable to record delivery"})
		return
	}

	c.JSON(http.StatusOK, webhookResponse{
		Received:  true,
		Duplicate: result.Duplicate,
		Replay:    result.Replay,
	})
}
