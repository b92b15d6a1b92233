package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	appcredential "github.com/bricksync/backend/internal/application/credential"
)

// CredentialHandler exposes the credential vault over HTTP. Responses only
// ever contain masked fields.
type CredentialHandler struct {
	BaseHandler
	credentials *appcredential.Service
	logger      *zap.Logger
}

// NewCredentialHandler creates a new CredentialHandler
func NewCredentialHandler(credentials *appcredential.Service, logger *zap.Logger) *CredentialHandler {
	return &CredentialHandler{credentials: credentials, logger: logger}
}

// saveCredentialRequest carries the plaintext secret fields for one provider
type saveCredentialRequest struct {
	Fields               map[string]string `json:"fields" binding:"required"`
	OrdersSyncEnabled    *bool             `json:"orders_sync_enabled,omitempty"`
	InventorySyncEnabled *bool             `json:"inventory_sync_enabled,omitempty"`
}

// Save handles PUT /api/v1/credentials/:provider
func (h *CredentialHandler) Save(c *gin.Context) {
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

	var req saveCredentialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body")
		return
	}

	status, err := h.credentials.Save(c.Request.Context(), tenantID, &appcredential.SaveRequest{
		Provider:             provider,
		Fields:               req.Fields,
		OrdersSyncEnabled:    req.OrdersSyncEnabled,
		InventorySyncEnabled: req.InventorySyncEnabled,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, status)
}

// Revoke handles DELETE /api/v1/credentials/:provider
func (h *CredentialHandler) Revoke(c *gin.Context) {
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

	if err := h.credentials.Revoke(c.Request.Context(), tenantID, provider); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// Test handles POST /api/v1/credentials/:provider/test
func (h *CredentialHandler) Test(c *gin.Context) {
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

	status, err := h.credentials.TestConnection(c.Request.Context(), tenantID, provider)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, status)
}

// Status handles GET /api/v1/credentials/:provider
func (h *CredentialHandler) Status(c *gin.Context) {
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

	status, err := h.credentials.GetStatus(c.Request.Context(), tenantID, provider)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, status)
}
