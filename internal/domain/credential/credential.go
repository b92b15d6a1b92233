package credential

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bricksync/backend/internal/domain/marketplace"
	"github.com/bricksync/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// Errors
// ---------------------------------------------------------------------------

var (
	ErrNotFound        = errors.New("credential: credentials not found")
	ErrFieldMissing    = errors.New("credential: required field missing or empty")
	ErrTenantMismatch  = errors.New("credential: credential belongs to a different tenant")
	ErrPartialDecrypt  = errors.New("credential: decrypted field set is incomplete")
	ErrUnknownProvider = errors.New("credential: unknown provider")
)

// MaskPlaceholder is what masked secret fields render as. Fixed width, never
// derived from the secret, so no part of the real value leaks to a client.
const MaskPlaceholder = "••••••••"

// BrickLink OAuth 1.0a field names
const (
	FieldConsumerKey    = "consumer_key"
	FieldConsumerSecret = "consumer_secret"
	FieldTokenValue     = "token_value"
	FieldTokenSecret    = "token_secret"
)

// BrickOwl field names
const (
	FieldAPIKey = "api_key"
)

// RequiredFields returns the secret field names a provider needs
func RequiredFields(provider marketplace.ProviderCode) ([]string, error) {
	switch provider {
	case marketplace.ProviderCodeBrickLink:
		return []string{FieldConsumerKey, FieldConsumerSecret, FieldTokenValue, FieldTokenSecret}, nil
	case marketplace.ProviderCodeBrickOwl:
		return []string{FieldAPIKey}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, provider)
	}
}

// ---------------------------------------------------------------------------
// Status Enums
// ---------------------------------------------------------------------------

// ValidationStatus tracks the outcome of the async connectivity test
type ValidationStatus string

const (
	ValidationStatusPending ValidationStatus = "pending"
	ValidationStatusSuccess ValidationStatus = "success"
	ValidationStatusFailed  ValidationStatus = "failed"
)

// IsValid returns true if the status is valid
func (s ValidationStatus) IsValid() bool {
	switch s {
	case ValidationStatusPending, ValidationStatusSuccess, ValidationStatusFailed:
		return true
	default:
		return false
	}
}

// String returns the string representation of ValidationStatus
func (s ValidationStatus) String() string {
	return string(s)
}

// WebhookStatus tracks the push notification registration lifecycle
type WebhookStatus string

const (
	WebhookStatusUnconfigured WebhookStatus = "unconfigured"
	WebhookStatusRegistering  WebhookStatus = "registering"
	WebhookStatusRegistered   WebhookStatus = "registered"
	WebhookStatusDisabled     WebhookStatus = "disabled"
	WebhookStatusError        WebhookStatus = "error"
)

// IsValid returns true if the status is valid
func (s WebhookStatus) IsValid() bool {
	switch s {
	case WebhookStatusUnconfigured, WebhookStatusRegistering,
		WebhookStatusRegistered, WebhookStatusDisabled, WebhookStatusError:
		return true
	default:
		return false
	}
}

// String returns the string representation of WebhookStatus
func (s WebhookStatus) String() string {
	return string(s)
}

// ---------------------------------------------------------------------------
// Credential Aggregate
// ---------------------------------------------------------------------------

// Credential holds one tenant's secrets for one provider. Secret fields are
// stored encrypted per field so a single field can be rotated without
// touching the others. At most one active credential exists per
// (tenant, provider).
type Credential struct {
	shared.BaseEntity
	TenantID uuid.UUID
	Provider marketplace.ProviderCode
	// EncryptedFields maps field name to independently encrypted ciphertext
	EncryptedFields map[string]string
	IsActive        bool
	// OrdersSyncEnabled gates order ingestion for this provider
	OrdersSyncEnabled bool
	// InventorySyncEnabled gates inventory pushes for this provider
	InventorySyncEnabled bool
	ValidationStatus     ValidationStatus
	ValidationMessage    string
	ValidatedAt          *time.Time
	// WebhookToken is the high-entropy token in the tenant's callback URL.
	// Generated once on first save and stable across re-saves.
	WebhookToken string
	WebhookStatus WebhookStatus
	// WebhookCallbackURL is the last URL registered with the provider
	WebhookCallbackURL string
	// WebhookCheckedAt is when the registration was last verified
	WebhookCheckedAt *time.Time
}

// NewCredential creates an active credential with pending validation
func NewCredential(tenantID uuid.UUID, provider marketplace.ProviderCode, encryptedFields map[string]string) (*Credential, error) {
	if tenantID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_TENANT", "Tenant ID cannot be empty")
	}
	if !provider.IsValid() {
		return nil, ErrUnknownProvider
	}
	required, err := RequiredFields(provider)
	if err != nil {
		return nil, err
	}
	for _, name := range required {
		if encryptedFields[name] == "" {
			return nil, fmt.Errorf("%w: %s", ErrFieldMissing, name)
		}
	}

	c := &Credential{
		BaseEntity:           shared.NewBaseEntity(),
		TenantID:             tenantID,
		Provider:             provider,
		EncryptedFields:      encryptedFields,
		IsActive:             true,
		OrdersSyncEnabled:    true,
		InventorySyncEnabled: true,
		ValidationStatus:     ValidationStatusPending,
		WebhookStatus:        WebhookStatusUnconfigured,
	}
	if !provider.SupportsWebhooks() {
		c.WebhookStatus = WebhookStatusDisabled
	}
	return c, nil
}

// ReplaceFields swaps in a new encrypted field set, preserving the webhook
// token and resetting validation to pending.
func (c *Credential) ReplaceFields(encryptedFields map[string]string) error {
	required, err := RequiredFields(c.Provider)
	if err != nil {
		return err
	}
	for _, name := range required {
		if encryptedFields[name] == "" {
			return fmt.Errorf("%w: %s", ErrFieldMissing, name)
		}
	}
	c.EncryptedFields = encryptedFields
	c.ValidationStatus = ValidationStatusPending
	c.ValidationMessage = ""
	c.ValidatedAt = nil
	c.UpdatedAt = time.Now()
	return nil
}

// CheckComplete verifies every required field is present and non-empty.
// Used both on save and after decryption as a guard against partial
// corruption of stored ciphertexts.
func CheckComplete(provider marketplace.ProviderCode, fields map[string]string) error {
	required, err := RequiredFields(provider)
	if err != nil {
		return err
	}
	for _, name := range required {
		if fields[name] == "" {
			return fmt.Errorf("%w: %s", ErrPartialDecrypt, name)
		}
	}
	return nil
}

// MarkValidation records the outcome of a connectivity test
func (c *Credential) MarkValidation(ok bool, message string) {
	now := time.Now()
	if ok {
		c.ValidationStatus = ValidationStatusSuccess
	} else {
		c.ValidationStatus = ValidationStatusFailed
	}
	c.ValidationMessage = message
	c.ValidatedAt = &now
	c.UpdatedAt = now
}

// MarkWebhookRegistered records a successful webhook registration
func (c *Credential) MarkWebhookRegistered(callbackURL string) {
	now := time.Now()
	c.WebhookStatus = WebhookStatusRegistered
	c.WebhookCallbackURL = callbackURL
	c.WebhookCheckedAt = &now
	c.UpdatedAt = now
}

// MarkWebhookError records a failed webhook registration
func (c *Credential) MarkWebhookError() {
	now := time.Now()
	c.WebhookStatus = WebhookStatusError
	c.WebhookCheckedAt = &now
	c.UpdatedAt = now
}

// WebhookRegistrationStale reports whether the registration sweep should
// re-register: URL changed, never registered, or last check too old.
func (c *Credential) WebhookRegistrationStale(desiredURL string, staleAfter time.Duration, now time.Time) bool {
	if !c.Provider.SupportsWebhooks() || c.WebhookStatus == WebhookStatusDisabled {
		return false
	}
	if c.WebhookStatus != WebhookStatusRegistered {
		return true
	}
	if c.WebhookCallbackURL != desiredURL {
		return true
	}
	return c.WebhookCheckedAt == nil || now.Sub(*c.WebhookCheckedAt) > staleAfter
}

// Mask returns the display placeholder for a secret value
func Mask(string) string {
	return MaskPlaceholder
}

// MaskedFields returns the field names with masked values for display
func (c *Credential) MaskedFields() map[string]string {
	masked := make(map[string]string, len(c.EncryptedFields))
	for name := range c.EncryptedFields {
		masked[name] = MaskPlaceholder
	}
	return masked
}

// ---------------------------------------------------------------------------
// Ports
// ---------------------------------------------------------------------------

// FieldEncryptor is the black-box encrypt/decrypt service the vault consumes.
// Implementations must be safe for concurrent use.
type FieldEncryptor interface {
	// Encrypt returns the ciphertext for one secret field
	Encrypt(plaintext string) (string, error)
	// Decrypt returns the plaintext for one stored ciphertext
	Decrypt(ciphertext string) (string, error)
}

// Repository persists credentials keyed by (tenant, provider)
type Repository interface {
	// Save inserts or updates the credential
	Save(ctx context.Context, c *Credential) error

	// FindByTenantAndProvider returns the active credential, or ErrNotFound
	FindByTenantAndProvider(ctx context.Context, tenantID uuid.UUID, provider marketplace.ProviderCode) (*Credential, error)

	// FindByWebhookToken reverse-looks-up a credential by webhook token
	FindByWebhookToken(ctx context.Context, token string) (*Credential, error)

	// ListActive returns all active credentials, optionally filtered by provider
	ListActive(ctx context.Context, provider *marketplace.ProviderCode) ([]*Credential, error)

	// Delete hard-deletes the credential. No secret material is retained.
	Delete(ctx context.Context, tenantID uuid.UUID, provider marketplace.ProviderCode) error
}
