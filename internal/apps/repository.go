package apps

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atriumhq/console/internal/models"
)

// Repository handles the app catalog and per-organization activations.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an apps repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListAvailable returns the platform app catalog.
func (r *Repository) ListAvailable(ctx context.Context) ([]models.AvailableApp, error) {
	const q = `SELECT id, app_type, name, enabled, requires_setup FROM available_apps ORDER BY name`
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.AvailableApp
	for rows.Next() {
		var a models.AvailableApp
		if err := rows.Scan(&a.ID, &a.AppType, &a.Name, &a.Enabled, &a.RequiresSetup); err != nil {
			return nil, err
		}
		list = append(list, a)
	}
	return list, rows.Err()
}

// GetAvailable returns one catalog entry by app type, or nil.
func (r *Repository) GetAvailable(ctx context.Context, appType string) (*models.AvailableApp, error) {
	const q = `SELECT id, app_type, name, enabled, requires_setup FROM available_apps WHERE app_type = $1`
	var a models.AvailableApp
	err := r.pool.QueryRow(ctx, q, appType).Scan(&a.ID, &a.AppType, &a.Name, &a.Enabled, &a.RequiresSetup)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// ListForOrganization returns the organization's app activations.
func (r *Repository) ListForOrganization(ctx context.Context, orgID uuid.UUID) ([]models.OrganizationApp, error) {
	const q = `SELECT id, organization_id, app_type, enabled, settings, created_at, updated_at
		FROM organization_apps WHERE organization_id = $1 ORDER BY app_type`
	rows, err := r.pool.Query(ctx, q, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.OrganizationApp
	for rows.Next() {
		var a models.OrganizationApp
		if err := rows.Scan(&a.ID, &a.OrganizationID, &a.AppType, &a.Enabled, &a.Settings, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, a)
	}
	return list, rows.Err()
}

// GetForOrganization returns one activation row, or nil.
func (r *Repository) GetForOrganization(ctx context.Context, orgID uuid.UUID, appType string) (*models.OrganizationApp, error) {
	const q = `SELECT id, organization_id, app_type, enabled, settings, created_at, updated_at
		FROM organization_apps WHERE organization_id = $1 AND app_type = $2`
	var a models.OrganizationApp
	err := r.pool.QueryRow(ctx, q, orgID, appType).Scan(&a.ID, &a.OrganizationID, &a.AppType, &a.Enabled, &a.Settings, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// Upsert writes an activation row with its settings blob.
func (r *Repository) Upsert(ctx context.Context, orgID uuid.UUID, appType string, enabled bool, settings json.RawMessage) (*models.OrganizationApp, error) {
	const q = `INSERT INTO organization_apps (organization_id, app_type, enabled, settings)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (organization_id, app_type) DO UPDATE
		SET enabled = EXCLUDED.enabled, settings = EXCLUDED.settings, updated_at = NOW()
		RETURNING id, organization_id, app_type, enabled, settings, created_at, updated_at`
	var a models.OrganizationApp
	err := r.pool.QueryRow(ctx, q, orgID, appType, enabled, settings).
		Scan(&a.ID, &a.OrganizationID, &a.AppType, &a.Enabled, &a.Settings, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// SetEnabled flips the activation flag without touching settings.
func (r *Repository) SetEnabled(ctx context.Context, orgID uuid.UUID, appType string, enabled bool) error {
	const q = `UPDATE organization_apps SET enabled = $1, updated_at = NOW()
		WHERE organization_id = $2 AND app_type = $3`
	tag, err := r.pool.Exec(ctx, q, enabled, orgID, appType)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
