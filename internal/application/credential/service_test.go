package credential

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bricksync/backend/internal/domain/credential"
	"github.com/bricksync/backend/internal/domain/marketplace"
	"github.com/bricksync/backend/internal/infrastructure/crypto"
)

const testHexKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

// ---------------------------------------------------------------------------
// Fakes
// ---------------------------------------------------------------------------

type fakeCredentialRepo struct {
	mu    sync.Mutex
	items map[string]*credential.Credential
}

func newFakeCredentialRepo() *fakeCredentialRepo {
	return &fakeCredentialRepo{items: make(map[string]*credential.Credential)}
}

func repoKey(tenantID uuid.UUID, provider marketplace.ProviderCode) string {
	return tenantID.String() + ":" + provider.String()
}

func (r *fakeCredentialRepo) Save(_ context.Context, c *credential.Credential) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *c
	r.items[repoKey(c.TenantID, c.Provider)] = &copied
	return nil
}

func (r *fakeCredentialRepo) FindByTenantAndProvider(_ context.Context, tenantID uuid.UUID, provider marketplace.ProviderCode) (*credential.Credential, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.items[repoKey(tenantID, provider)]
	if !ok {
		return nil, credential.ErrNotFound
	}
	copied := *c
	return &copied, nil
}

func (r *fakeCredentialRepo) FindByWebhookToken(_ context.Context, token string) (*credential.Credential, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.items {
		if token != "" && c.WebhookToken == token {
			copied := *c
			return &copied, nil
		}
	}
	return nil, credential.ErrNotFound
}

func (r *fakeCredentialRepo) ListActive(_ context.Context, provider *marketplace.ProviderCode) ([]*credential.Credential, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*credential.Credential
	for _, c := range r.items {
		if provider != nil && c.Provider != *provider {
			continue
		}
		copied := *c
		out = append(out, &copied)
	}
	return out, nil
}

func (r *fakeCredentialRepo) Delete(_ context.Context, tenantID uuid.UUID, provider marketplace.ProviderCode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := repoKey(tenantID, provider)
	if _, ok := r.items[key]; !ok {
		return credential.ErrNotFound
	}
	delete(r.items, key)
	return nil
}

type fakeAdapter struct {
	provider marketplace.ProviderCode
	testErr  error
}

func (a *fakeAdapter) Provider() marketplace.ProviderCode { return a.provider }
func (a *fakeAdapter) TestConnection(context.Context, uuid.UUID) error {
	return a.testErr
}
func (a *fakeAdapter) PullOrders(context.Context, *marketplace.OrderPullRequest) ([]marketplace.RemoteOrder, error) {
	return nil, nil
}
func (a *fakeAdapter) GetOrder(context.Context, uuid.UUID, string) (*marketplace.RemoteOrder, error) {
	return nil, nil
}
func (a *fakeAdapter) GetOrderItems(context.Context, uuid.UUID, string) ([]marketplace.RemoteOrderItem, error) {
	return nil, nil
}

type fakeRegistry struct {
	adapters map[marketplace.ProviderCode]marketplace.Marketplace
}

func (r *fakeRegistry) Get(provider marketplace.ProviderCode) (marketplace.Marketplace, error) {
	a, ok := r.adapters[provider]
	if !ok {
		return nil, marketplace.ErrProviderNotConfigured
	}
	return a, nil
}

func (r *fakeRegistry) List() []marketplace.Marketplace {
	out := make([]marketplace.Marketplace, 0, len(r.adapters))
	for _, a := range r.adapters {
		out = append(out, a)
	}
	return out
}

func newTestService(t *testing.T) (*Service, *fakeCredentialRepo, *fakeAdapter) {
	t.Helper()
	encryptor, err := crypto.NewAEADFieldEncryptor(testHexKey)
	require.NoError(t, err)

	repo := newFakeCredentialRepo()
	adapter := &fakeAdapter{provider: marketplace.ProviderCodeBrickLink}
	svc := NewService(repo, encryptor, zap.NewNop())
	svc.SetRegistry(&fakeRegistry{adapters: map[marketplace.ProviderCode]marketplace.Marketplace{
		marketplace.ProviderCodeBrickLink: adapter,
	}})
	return svc, repo, adapter
}

func brickLinkSaveRequest() *SaveRequest {
	return &SaveRequest{
		Provider: marketplace.ProviderCodeBrickLink,
		Fields: map[string]string{
			credential.FieldConsumerKey:    "ck-plain",
			credential.FieldConsumerSecret: "cs-plain",
			credential.FieldTokenValue:     "tv-plain",
			credential.FieldTokenSecret:    "ts-plain",
		},
	}
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestService_SaveEncryptsEveryField(t *testing.T) {
	svc, repo, _ := newTestService(t)
	tenantID := uuid.New()

	status, err := svc.Save(context.Background(), tenantID, brickLinkSaveRequest())
	require.NoError(t, err)

	// The returned view is masked.
	for _, value := range status.Fields {
		assert.Equal(t, credential.MaskPlaceholder, value)
	}

	stored, err := repo.FindByTenantAndProvider(context.Background(), tenantID, marketplace.ProviderCodeBrickLink)
	require.NoError(t, err)
	require.Len(t, stored.EncryptedFields, 4)
	for name, ciphertext := range stored.EncryptedFields {
		assert.NotContains(t, ciphertext, "plain", "field %s stored in plaintext", name)
	}
	assert.Len(t, stored.WebhookToken, 64)
}

func TestService_SaveRejectsMissingField(t *testing.T) {
	svc, _, _ := newTestService(t)

	req := brickLinkSaveRequest()
	delete(req.Fields, credential.FieldTokenSecret)

	_, err := svc.Save(context.Background(), uuid.New(), req)
	assert.ErrorIs(t, err, credential.ErrFieldMissing)
}

// Rotation swaps the ciphertexts but keeps the webhook token, so callback
// URLs registered with providers stay valid.
func TestService_SavePreservesWebhookTokenOnRotation(t *testing.T) {
	svc, repo, _ := newTestService(t)
	tenantID := uuid.New()
	ctx := context.Background()

	_, err := svc.Save(ctx, tenantID, brickLinkSaveRequest())
	require.NoError(t, err)
	first, err := repo.FindByTenantAndProvider(ctx, tenantID, marketplace.ProviderCodeBrickLink)
	require.NoError(t, err)

	rotated := brickLinkSaveRequest()
	rotated.Fields[credential.FieldConsumerKey] = "ck-rotated"
	_, err = svc.Save(ctx, tenantID, rotated)
	require.NoError(t, err)

	second, err := repo.FindByTenantAndProvider(ctx, tenantID, marketplace.ProviderCodeBrickLink)
	require.NoError(t, err)
	assert.Equal(t, first.WebhookToken, second.WebhookToken)
	assert.Equal(t, first.ID, second.ID)
	assert.NotEqual(t, first.EncryptedFields[credential.FieldConsumerKey],
		second.EncryptedFields[credential.FieldConsumerKey])
	assert.Equal(t, credential.ValidationStatusPending, second.ValidationStatus)
}

func TestService_DecryptedFieldsRoundTrip(t *testing.T) {
	svc, _, _ := newTestService(t)
	tenantID := uuid.New()
	ctx := context.Background()

	_, err := svc.Save(ctx, tenantID, brickLinkSaveRequest())
	require.NoError(t, err)

	fields, err := svc.DecryptedFields(ctx, tenantID, marketplace.ProviderCodeBrickLink)
	require.NoError(t, err)
	assert.Equal(t, "ck-plain", fields[credential.FieldConsumerKey])
	assert.Equal(t, "ts-plain", fields[credential.FieldTokenSecret])
}

func TestService_DecryptedFieldsMissingCredentials(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.DecryptedFields(context.Background(), uuid.New(), marketplace.ProviderCodeBrickLink)

	appErr := marketplace.AsAppError(err)
	require.NotNil(t, appErr)
	assert.Equal(t, marketplace.ErrorCodeCredentialsNotFound, appErr.Code)
	assert.False(t, appErr.Retryable)
}

// crossTenantRepo returns the same credential regardless of the tenant asked
// for, simulating a repository that lost its tenant scoping.
type crossTenantRepo struct {
	fakeCredentialRepo
	stored *credential.Credential
}

func (r *crossTenantRepo) FindByTenantAndProvider(_ context.Context, _ uuid.UUID, _ marketplace.ProviderCode) (*credential.Credential, error) {
	return r.stored, nil
}

func TestService_DecryptedFieldsRejectsForeignTenant(t *testing.T) {
	encryptor, err := crypto.NewAEADFieldEncryptor(testHexKey)
	require.NoError(t, err)

	foreign, err := credential.NewCredential(uuid.New(), marketplace.ProviderCodeBrickOwl,
		map[string]string{credential.FieldAPIKey: "ciphertext"})
	require.NoError(t, err)

	svc := NewService(&crossTenantRepo{stored: foreign}, encryptor, zap.NewNop())

	_, err = svc.DecryptedFields(context.Background(), uuid.New(), marketplace.ProviderCodeBrickOwl)
	assert.ErrorIs(t, err, credential.ErrTenantMismatch)
}

func TestService_TestConnectionRecordsOutcome(t *testing.T) {
	svc, repo, adapter := newTestService(t)
	tenantID := uuid.New()
	ctx := context.Background()

	_, err := svc.Save(ctx, tenantID, brickLinkSaveRequest())
	require.NoError(t, err)

	status, err := svc.TestConnection(ctx, tenantID, marketplace.ProviderCodeBrickLink)
	require.NoError(t, err)
	assert.Equal(t, credential.ValidationStatusSuccess, status.ValidationStatus)

	adapter.testErr = marketplace.NewAppError(marketplace.ProviderCodeBrickLink,
		marketplace.ErrorCodeAuth, "Signature verification failed")

	status, err = svc.TestConnection(ctx, tenantID, marketplace.ProviderCodeBrickLink)
	require.NoError(t, err)
	assert.Equal(t, credential.ValidationStatusFailed, status.ValidationStatus)
	assert.Contains(t, status.ValidationMessage, "Signature verification failed")

	stored, err := repo.FindByTenantAndProvider(ctx, tenantID, marketplace.ProviderCodeBrickLink)
	require.NoError(t, err)
	assert.Equal(t, credential.ValidationStatusFailed, stored.ValidationStatus)
	assert.NotNil(t, stored.ValidatedAt)
}

func TestService_RevokeDeletesEverything(t *testing.T) {
	svc, repo, _ := newTestService(t)
	tenantID := uuid.New()
	ctx := context.Background()

	_, err := svc.Save(ctx, tenantID, brickLinkSaveRequest())
	require.NoError(t, err)

	require.NoError(t, svc.Revoke(ctx, tenantID, marketplace.ProviderCodeBrickLink))

	_, err = repo.FindByTenantAndProvider(ctx, tenantID, marketplace.ProviderCodeBrickLink)
	assert.ErrorIs(t, err, credential.ErrNotFound)

	assert.ErrorIs(t, svc.Revoke(ctx, tenantID, marketplace.ProviderCodeBrickLink), credential.ErrNotFound)
}

func TestService_GetStatusNeverLeaksSecrets(t *testing.T) {
	svc, _, _ := newTestService(t)
	tenantID := uuid.New()
	ctx := context.Background()

	_, err := svc.Save(ctx, tenantID, brickLinkSaveRequest())
	require.NoError(t, err)

	status, err := svc.GetStatus(ctx, tenantID, marketplace.ProviderCodeBrickLink)
	require.NoError(t, err)
	require.Len(t, status.Fields, 4)
	for _, value := range status.Fields {
		assert.Equal(t, credential.MaskPlaceholder, value)
	}
}
