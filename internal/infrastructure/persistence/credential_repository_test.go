package persistence

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/bricksync/backend/internal/domain/credential"
	"github.com/bricksync/backend/internal/domain/marketplace"
	"github.com/bricksync/backend/internal/infrastructure/persistence/models"
)

func setupCredentialTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.CredentialModel{}))
	return db
}

func newTestCredential(t *testing.T, tenantID uuid.UUID, provider marketplace.ProviderCode) *credential.Credential {
	t.Helper()
	fields := map[string]string{}
	required, err := credential.RequiredFields(provider)
	require.NoError(t, err)
	for _, name := range required {
		fields[name] = "ct-" + name
	}
	c, err := credential.NewCredential(tenantID, provider, fields)
	require.NoError(t, err)
	c.WebhookToken = uuid.NewString()
	return c
}

func TestGormCredentialRepository_SaveAndFind(t *testing.T) {
	db := setupCredentialTestDB(t)
	repo := NewGormCredentialRepository(db)
	ctx := context.Background()
	tenantID := uuid.New()

	c := newTestCredential(t, tenantID, marketplace.ProviderCodeBrickLink)
	require.NoError(t, repo.Save(ctx, c))

	found, err := repo.FindByTenantAndProvider(ctx, tenantID, marketplace.ProviderCodeBrickLink)
	require.NoError(t, err)
	assert.Equal(t, c.ID, found.ID)
	assert.Equal(t, c.EncryptedFields, found.EncryptedFields)
	assert.Equal(t, credential.ValidationStatusPending, found.ValidationStatus)
	assert.Equal(t, c.WebhookToken, found.WebhookToken)
}

// A second save for the same (tenant, provider) converges on the same row
func TestGormCredentialRepository_SaveUpsertsOnTenantProvider(t *testing.T) {
	db := setupCredentialTestDB(t)
	repo := NewGormCredentialRepository(db)
	ctx := context.Background()
	tenantID := uuid.New()

	first := newTestCredential(t, tenantID, marketplace.ProviderCodeBrickOwl)
	require.NoError(t, repo.Save(ctx, first))

	second := newTestCredential(t, tenantID, marketplace.ProviderCodeBrickOwl)
	require.NoError(t, repo.Save(ctx, second))

	var count int64
	require.NoError(t, db.Model(&models.CredentialModel{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestGormCredentialRepository_FindMissing(t *testing.T) {
	db := setupCredentialTestDB(t)
	repo := NewGormCredentialRepository(db)

	_, err := repo.FindByTenantAndProvider(context.Background(), uuid.New(), marketplace.ProviderCodeBrickLink)

	assert.ErrorIs(t, err, credential.ErrNotFound)
}

func TestGormCredentialRepository_FindByWebhookToken(t *testing.T) {
	db := setupCredentialTestDB(t)
	repo := NewGormCredentialRepository(db)
	ctx := context.Background()

	c := newTestCredential(t, uuid.New(), marketplace.ProviderCodeBrickLink)
	require.NoError(t, repo.Save(ctx, c))

	found, err := repo.FindByWebhookToken(ctx, c.WebhookToken)
	require.NoError(t, err)
	assert.Equal(t, c.ID, found.ID)

	_, err = repo.FindByWebhookToken(ctx, "no-such-token")
	assert.ErrorIs(t, err, credential.ErrNotFound)

	_, err = repo.FindByWebhookToken(ctx, "")
	assert.ErrorIs(t, err, credential.ErrNotFound)
}

func TestGormCredentialRepository_ListActive(t *testing.T) {
	db := setupCredentialTestDB(t)
	repo := NewGormCredentialRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, newTestCredential(t, uuid.New(), marketplace.ProviderCodeBrickLink)))
	require.NoError(t, repo.Save(ctx, newTestCredential(t, uuid.New(), marketplace.ProviderCodeBrickOwl)))

	all, err := repo.ListActive(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	provider := marketplace.ProviderCodeBrickOwl
	owlOnly, err := repo.ListActive(ctx, &provider)
	require.NoError(t, err)
	require.Len(t, owlOnly, 1)
	assert.Equal(t, marketplace.ProviderCodeBrickOwl, owlOnly[0].Provider)
}

// Revocation hard-deletes the row: no ciphertext survives
func TestGormCredentialRepository_Delete(t *testing.T) {
	db := setupCredentialTestDB(t)
	repo := NewGormCredentialRepository(db)
	ctx := context.Background()
	tenantID := uuid.New()

	c := newTestCredential(t, tenantID, marketplace.ProviderCodeBrickLink)
	require.NoError(t, repo.Save(ctx, c))

	require.NoError(t, repo.Delete(ctx, tenantID, marketplace.ProviderCodeBrickLink))

	var count int64
	require.NoError(t, db.Model(&models.CredentialModel{}).Count(&count).Error)
	assert.Zero(t, count)

	assert.ErrorIs(t, repo.Delete(ctx, tenantID, marketplace.ProviderCodeBrickLink), credential.ErrNotFound)
}
