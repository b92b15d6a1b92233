package marketplace

import (
	"context"

	"github.com/google/uuid"

	"github.com/bricksync/backend/internal/domain/marketplace"
)

// CredentialSource supplies decrypted credential fields for a tenant and
// provider. The credential application service implements it; adapters never
// see ciphertext or the vault's storage.
type CredentialSource interface {
	// DecryptedFields returns the plaintext secret fields for the pair.
	// Fails with CREDENTIALS_NOT_FOUND when the tenant has no active
	// credential for the provider.
	DecryptedFields(ctx context.Context, tenantID uuid.UUID, provider marketplace.ProviderCode) (map[string]string, error)
}

// Limiter gates outbound provider calls per (tenant, provider). Admit is
// called before each logical call and the adapter reports exactly one outcome
// per logical call afterwards, regardless of how many HTTP attempts the
// transport made.
type Limiter interface {
	// Admit rejects with a normalized *marketplace.AppError when the quota
	// is exhausted or the circuit breaker is open.
	Admit(ctx context.Context, tenantID uuid.UUID, provider marketplace.ProviderCode) error

	// ReportSuccess records a successful logical call
	ReportSuccess(ctx context.Context, tenantID uuid.UUID, provider marketplace.ProviderCode)

	// ReportFailure records a failed logical call
	ReportFailure(ctx context.Context, tenantID uuid.UUID, provider marketplace.ProviderCode)
}
