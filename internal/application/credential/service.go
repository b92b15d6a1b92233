package credential

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bricksync/backend/internal/domain/credential"
	"github.com/bricksync/backend/internal/domain/marketplace"
)

// validationTimeout bounds the background connectivity test kicked off by Save
const validationTimeout = 30 * time.Second

// Service is the credential vault. It encrypts secret fields before they are
// stored, decrypts them on demand for the marketplace adapters, and never
// returns plaintext to a client surface.
type Service struct {
	repo      credential.Repository
	encryptor credential.FieldEncryptor
	registry  marketplace.Registry
	logger    *zap.Logger
}

// NewService creates a new credential vault service
func NewService(repo credential.Repository, encryptor credential.FieldEncryptor, logger *zap.Logger) *Service {
	return &Service{
		repo:      repo,
		encryptor: encryptor,
		logger:    logger,
	}
}

// SetRegistry wires the adapter registry used for connectivity tests. The
// adapters themselves read credentials through this service, so the registry
// is attached after construction to break the cycle.
func (s *Service) SetRegistry(registry marketplace.Registry) {
	s.registry = registry
}

// ---------------------------------------------------------------------------
// Vault Operations
// ---------------------------------------------------------------------------

// Save stores or rotates a tenant's credentials for one provider. Each secret
// field is encrypted independently. The webhook token of an existing
// credential survives rotation, so registered callback URLs stay valid. A
// connectivity test runs in the background and updates the validation status.
func (s *Service) Save(ctx context.Context, tenantID uuid.UUID, req *SaveRequest) (*Status, error) {
	required, err := credential.RequiredFields(req.Provider)
	if err != nil {
		return nil, err
	}
	for _, name := range required {
		if req.Fields[name] == "" {
			return nil, fmt.Errorf("%w: %s", credential.ErrFieldMissing, name)
		}
	}

	encrypted := make(map[string]string, len(required))
	for _, name := range required {
		ciphertext, err := s.encryptor.Encrypt(req.Fields[name])
		if err != nil {
			return nil, fmt.Errorf("encrypt field %s: %w", name, err)
		}
		encrypted[name] = ciphertext
	}

	existing, err := s.repo.FindByTenantAndProvider(ctx, tenantID, req.Provider)
	switch {
	case err == nil:
		if err := existing.ReplaceFields(encrypted); err != nil {
			return nil, err
		}
	case errors.Is(err, credential.ErrNotFound):
		existing, err = credential.NewCredential(tenantID, req.Provider, encrypted)
		if err != nil {
			return nil, err
		}
		token, err := generateWebhookToken()
		if err != nil {
			return nil, err
		}
		existing.WebhookToken = token
	default:
		return nil, err
	}

	if req.OrdersSyncEnabled != nil {
		existing.OrdersSyncEnabled = *req.OrdersSyncEnabled
	}
	if req.InventorySyncEnabled != nil {
		existing.InventorySyncEnabled = *req.InventorySyncEnabled
	}

	if err := s.repo.Save(ctx, existing); err != nil {
		return nil, err
	}

	s.logger.Info("credentials saved",
		zap.String("tenant_id", tenantID.String()),
		zap.String("provider", req.Provider.String()))

	go s.validateInBackground(tenantID, req.Provider)

	return StatusFromCredential(existing), nil
}

// Revoke hard-deletes the tenant's credentials for one provider. No secret
// material, encrypted or otherwise, is retained.
func (s *Service) Revoke(ctx context.Context, tenantID uuid.UUID, provider marketplace.ProviderCode) error {
	if err := s.repo.Delete(ctx, tenantID, provider); err != nil {
		return err
	}
	s.logger.Info("credentials revoked",
		zap.String("tenant_id", tenantID.String()),
		zap.String("provider", provider.String()))
	return nil
}

// GetStatus returns the masked view of the tenant's stored credentials
func (s *Service) GetStatus(ctx context.Context, tenantID uuid.UUID, provider marketplace.ProviderCode) (*Status, error) {
	c, err := s.repo.FindByTenantAndProvider(ctx, tenantID, provider)
	if err != nil {
		return nil, err
	}
	return StatusFromCredential(c), nil
}

// ListActive returns all active credentials, optionally filtered by provider.
// Used by the schedulers to enumerate tenants with sync enabled.
func (s *Service) ListActive(ctx context.Context, provider *marketplace.ProviderCode) ([]*credential.Credential, error) {
	return s.repo.ListActive(ctx, provider)
}

// TestConnection runs a synchronous connectivity test against the provider
// and records the outcome on the stored credential.
func (s *Service) TestConnection(ctx context.Context, tenantID uuid.UUID, provider marketplace.ProviderCode) (*Status, error) {
	c, err := s.repo.FindByTenantAndProvider(ctx, tenantID, provider)
	if err != nil {
		return nil, err
	}

	testErr := s.runConnectionTest(ctx, tenantID, provider)
	if testErr != nil {
		c.MarkValidation(false, testErr.Error())
	} else {
		c.MarkValidation(true, "")
	}

	if err := s.repo.Save(ctx, c); err != nil {
		return nil, err
	}
	return StatusFromCredential(c), nil
}

// ---------------------------------------------------------------------------
// Adapter Credential Source
// ---------------------------------------------------------------------------

// DecryptedFields returns the plaintext secret fields for one tenant and
// provider. This is the only path out of the vault that yields plaintext and
// it is reserved for the marketplace adapters.
func (s *Service) DecryptedFields(ctx context.Context, tenantID uuid.UUID, provider marketplace.ProviderCode) (map[string]string, error) {
	c, err := s.repo.FindByTenantAndProvider(ctx, tenantID, provider)
	if err != nil {
		if errors.Is(err, credential.ErrNotFound) {
			return nil, marketplace.NewAppError(provider, marketplace.ErrorCodeCredentialsNotFound,
				"No active credentials configured for this provider")
		}
		return nil, err
	}
	if c.TenantID != tenantID {
		return nil, credential.ErrTenantMismatch
	}

	fields := make(map[string]string, len(c.EncryptedFields))
	for name, ciphertext := range c.EncryptedFields {
		plaintext, err := s.encryptor.Decrypt(ciphertext)
		if err != nil {
			return nil, fmt.Errorf("decrypt field %s: %w", name, err)
		}
		fields[name] = plaintext
	}

	if err := credential.CheckComplete(provider, fields); err != nil {
		return nil, err
	}
	return fields, nil
}

// ---------------------------------------------------------------------------
// Internals
// ---------------------------------------------------------------------------

func (s *Service) runConnectionTest(ctx context.Context, tenantID uuid.UUID, provider marketplace.ProviderCode) error {
	if s.registry == nil {
		return errors.New("credential: no adapter registry configured")
	}
	adapter, err := s.registry.Get(provider)
	if err != nil {
		return err
	}
	return adapter.TestConnection(ctx, tenantID)
}

func (s *Service) validateInBackground(tenantID uuid.UUID, provider marketplace.ProviderCode) {
	ctx, cancel := context.WithTimeout(context.Background(), validationTimeout)
	defer cancel()

	if _, err := s.TestConnection(ctx, tenantID, provider); err != nil {
		s.logger.Warn("background credential validation failed",
			zap.String("tenant_id", tenantID.String()),
			zap.String("provider", provider.String()),
			zap.Error(err))
	}
}

// generateWebhookToken returns a 64 hex character token with 256 bits of
// entropy. The token is the sole authentication on the webhook callback URL.
func generateWebhookToken() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("credential: failed to generate webhook token: %w", err)
	}
	return hex.EncodeToString(raw), nil
}
