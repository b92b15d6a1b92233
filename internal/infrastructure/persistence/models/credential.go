package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/bricksync/backend/internal/domain/credential"
	"github.com/bricksync/backend/internal/domain/marketplace"
)

// CredentialModel is the persistence model for the Credential aggregate.
// Secret fields are stored as a JSON map of field name to ciphertext; the
// plaintext never reaches this layer.
type CredentialModel struct {
	ID                   uuid.UUID                   `gorm:"type:uuid;primary_key"`
	TenantID             uuid.UUID                   `gorm:"type:uuid;not null;uniqueIndex:idx_credentials_tenant_provider,priority:1"`
	Provider             marketplace.ProviderCode    `gorm:"type:varchar(20);not null;uniqueIndex:idx_credentials_tenant_provider,priority:2"`
	EncryptedFieldsJSON  string                      `gorm:"type:jsonb;column:encrypted_fields;not null"`
	IsActive             bool                        `gorm:"not null;default:true"`
	OrdersSyncEnabled    bool                        `gorm:"not null;default:true"`
	InventorySyncEnabled bool                        `gorm:"not null;default:true"`
	ValidationStatus     credential.ValidationStatus `gorm:"type:varchar(20);not null;default:'pending'"`
	ValidationMessage    string                      `gorm:"type:text"`
	ValidatedAt          *time.Time
	WebhookToken         string                   `gorm:"type:varchar(64);uniqueIndex:idx_credentials_webhook_token"`
	WebhookStatus        credential.WebhookStatus `gorm:"type:varchar(20);not null;default:'unconfigured'"`
	WebhookCallbackURL   string                   `gorm:"type:varchar(512)"`
	WebhookCheckedAt     *time.Time
	CreatedAt            time.Time `gorm:"not null"`
	UpdatedAt            time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (CredentialModel) TableName() string {
	return "marketplace_credentials"
}

// ToDomain converts the persistence model to a domain Credential
func (m *CredentialModel) ToDomain() *credential.Credential {
	c := &credential.Credential{
		TenantID:             m.TenantID,
		Provider:             m.Provider,
		EncryptedFields:      map[string]string{},
		IsActive:             m.IsActive,
		OrdersSyncEnabled:    m.OrdersSyncEnabled,
		InventorySyncEnabled: m.InventorySyncEnabled,
		ValidationStatus:     m.ValidationStatus,
		ValidationMessage:    m.ValidationMessage,
		ValidatedAt:          m.ValidatedAt,
		WebhookToken:         m.WebhookToken,
		WebhookStatus:        m.WebhookStatus,
		WebhookCallbackURL:   m.WebhookCallbackURL,
		WebhookCheckedAt:     m.WebhookCheckedAt,
	}
	c.ID = m.ID
	c.CreatedAt = m.CreatedAt
	c.UpdatedAt = m.UpdatedAt

	if m.EncryptedFieldsJSON != "" {
		var fields map[string]string
		if err := json.Unmarshal([]byte(m.EncryptedFieldsJSON), &fields); err == nil {
			c.EncryptedFields = fields
		}
	}
	return c
}

// FromDomain populates the persistence model from a domain Credential
func (m *CredentialModel) FromDomain(c *credential.Credential) {
	m.ID = c.ID
	m.TenantID = c.TenantID
	m.Provider = c.Provider
	m.IsActive = c.IsActive
	m.OrdersSyncEnabled = c.OrdersSyncEnabled
	m.InventorySyncEnabled = c.InventorySyncEnabled
	m.ValidationStatus = c.ValidationStatus
	m.ValidationMessage = c.ValidationMessage
	m.ValidatedAt = c.ValidatedAt
	m.WebhookToken = c.WebhookToken
	m.WebhookStatus = c.WebhookStatus
	m.WebhookCallbackURL = c.WebhookCallbackURL
	m.WebhookCheckedAt = c.WebhookCheckedAt
	m.CreatedAt = c.CreatedAt
	m.UpdatedAt = c.UpdatedAt

	if encoded, err := json.Marshal(c.EncryptedFields); err == nil {
		m.EncryptedFieldsJSON = string(encoded)
	} else {
		m.EncryptedFieldsJSON = "{}"
	}
}

// CredentialModelFromDomain creates a persistence model from a domain Credential
func CredentialModelFromDomain(c *credential.Credential) *CredentialModel {
	m := &CredentialModel{}
	m.FromDomain(c)
	return m
}
