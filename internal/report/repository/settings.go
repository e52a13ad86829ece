package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/facturo/facturo-backend/internal/report/domain"
	"github.com/facturo/facturo-backend/pkg/database"
	"github.com/facturo/facturo-backend/pkg/errors"
	"github.com/facturo/facturo-backend/pkg/tenant"
)

// SettingsRepository persists field registries in the field_settings table,
// one JSONB array per tenant and collection.
type SettingsRepository struct {
	db *database.DB
}

// NewSettingsRepository creates a new settings repository
func NewSettingsRepository(db *database.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// Load returns the saved fields of collection, or nil when none were saved.
func (r *SettingsRepository) Load(ctx context.Context, collection string) ([]domain.FieldDescriptor, error) {
	var raw []byte
	query := `SELECT fields FROM field_settings WHERE tenant_id = $1 AND collection = $2`
	err := r.db.GetContext(ctx, &raw, query, tenant.TenantIDOrDefault(ctx), collection)
	if database.IsNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, database.MapError(err)
	}

	var fields []domain.FieldDescriptor
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, errors.Store(fmt.Errorf("decode field settings: %w", err))
	}
	return fields, nil
}

// Save replaces the saved fields of collection.
func (r *SettingsRepository) Save(ctx context.Context, collection string, fields []domain.FieldDescriptor) error {
	if fields == nil {
		fields = []domain.FieldDescriptor{}
	}
	raw, err := json.Marshal(fields)
	if err != nil {
		return errors.Internal("failed to encode field settings")
	}

	query := `
		INSERT INTO field_settings (tenant_id, collection, fields, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (tenant_id, collection)
		DO UPDATE SET fields = EXCLUDED.fields, updated_at = NOW()
	`
	if _, err := r.db.ExecContext(ctx, query, tenant.TenantIDOrDefault(ctx), collection, raw); err != nil {
		return database.MapError(err)
	}
	return nil
}
