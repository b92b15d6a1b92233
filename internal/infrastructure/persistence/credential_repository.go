package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/bricksync/backend/internal/domain/credential"
	"github.com/bricksync/backend/internal/domain/marketplace"
	"github.com/bricksync/backend/internal/infrastructure/persistence/models"
)

// GormCredentialRepository implements credential.Repository using GORM
type GormCredentialRepository struct {
	db *gorm.DB
}

// NewGormCredentialRepository creates a new GormCredentialRepository
func NewGormCredentialRepository(db *gorm.DB) *GormCredentialRepository {
	return &GormCredentialRepository{db: db}
}

var _ credential.Repository = (*GormCredentialRepository)(nil)

// Save inserts or updates the credential. The (tenant, provider) unique
// index makes a concurrent double-save converge on one row.
func (r *GormCredentialRepository) Save(ctx context.Context, c *credential.Credential) error {
	model := models.CredentialModelFromDomain(c)
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "tenant_id"}, {Name: "provider"}},
			UpdateAll: true,
		}).
		Create(model).Error
}

// FindByTenantAndProvider returns the active credential for the pair
func (r *GormCredentialRepository) FindByTenantAndProvider(ctx context.Context, tenantID uuid.UUID, provider marketplace.ProviderCode) (*credential.Credential, error) {
	var model models.CredentialModel
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND provider = ? AND is_active = ?", tenantID, provider, true).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, credential.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByWebhookToken reverse-looks-up a credential by its webhook token
func (r *GormCredentialRepository) FindByWebhookToken(ctx context.Context, token string) (*credential.Credential, error) {
	if token == "" {
		return nil, credential.ErrNotFound
	}
	var model models.CredentialModel
	err := r.db.WithContext(ctx).
		Where("webhook_token = ? AND is_active = ?", token, true).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, credential.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// ListActive returns all active credentials, optionally filtered by provider
func (r *GormCredentialRepository) ListActive(ctx context.Context, provider *marketplace.ProviderCode) ([]*credential.Credential, error) {
	query := r.db.WithContext(ctx).Where("is_active = ?", true)
	if provider != nil {
		query = query.Where("provider = ?", *provider)
	}

	var rows []models.CredentialModel
	if err := query.Order("created_at").Find(&rows).Error; err != nil {
		return nil, err
	}

	out := make([]*credential.Credential, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].ToDomain())
	}
	return out, nil
}

// Delete hard-deletes the credential row. No soft delete: revoked secret
// material must not survive in the table.
func (r *GormCredentialRepository) Delete(ctx context.Context, tenantID uuid.UUID, provider marketplace.ProviderCode) error {
	result := r.db.WithContext(ctx).
		Where("tenant_id = ? AND provider = ?", tenantID, provider).
		Delete(&models.CredentialModel{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return credential.ErrNotFound
	}
	return nil
}
