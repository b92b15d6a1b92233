package credential

import (
	"time"

	"github.com/bricksync/backend/internal/domain/credential"
	"github.com/bricksync/backend/internal/domain/marketplace"
)

// Status is the client-facing view of stored credentials. Secret values are
// always masked; only field names and lifecycle state leave the vault.
type Status struct {
	Provider             marketplace.ProviderCode   `json:"provider"`
	Fields               map[string]string          `json:"fields"`
	IsActive             bool                       `json:"is_active"`
	OrdersSyncEnabled    bool                       `json:"orders_sync_enabled"`
	InventorySyncEnabled bool                       `json:"inventory_sync_enabled"`
	ValidationStatus     credential.ValidationStatus `json:"validation_status"`
	ValidationMessage    string                     `json:"validation_message,omitempty"`
	ValidatedAt          *time.Time                 `json:"validated_at,omitempty"`
	WebhookStatus        credential.WebhookStatus   `json:"webhook_status"`
	WebhookToken         string                     `json:"webhook_token,omitempty"`
	CreatedAt            time.Time                  `json:"created_at"`
	UpdatedAt            time.Time                  `json:"updated_at"`
}

// StatusFromCredential builds the masked view of a credential
func StatusFromCredential(c *credential.Credential) *Status {
	return &Status{
		Provider:             c.Provider,
		Fields:               c.MaskedFields(),
		IsActive:             c.IsActive,
		OrdersSyncEnabled:    c.OrdersSyncEnabled,
		InventorySyncEnabled: c.InventorySyncEnabled,
		ValidationStatus:     c.ValidationStatus,
		ValidationMessage:    c.ValidationMessage,
		ValidatedAt:          c.ValidatedAt,
		WebhookStatus:        c.WebhookStatus,
		WebhookToken:         c.WebhookToken,
		CreatedAt:            c.CreatedAt,
		UpdatedAt:            c.UpdatedAt,
	}
}

// SaveRequest carries the plaintext secret fields for a save or rotation.
// Fields never outlive the request; only ciphertexts are stored.
type SaveRequest struct {
	Provider             marketplace.ProviderCode `json:"provider"`
	Fields               map[string]string        `json:"fields"`
	OrdersSyncEnabled    *bool                    `json:"orders_sync_enabled,omitempty"`
	InventorySyncEnabled *bool                    `json:"inventory_sync_enabled,omitempty"`
}
