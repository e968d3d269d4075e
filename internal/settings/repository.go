package settings

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atriumhq/console/internal/models"
)

// Repository handles the singleton site settings row.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a site settings repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Get returns the site settings row. The migration seeds it, so it always exists.
func (r *Repository) Get(ctx context.Context) (*models.SiteSettings, error) {
	const q = `SELECT id, site_name, COALESCE(logo_url, ''), primary_color, secondary_color, created_at, updated_at
		FROM site_settings LIMIT 1`
	var s models.SiteSettings
	err := r.pool.QueryRow(ctx, q).Scan(&s.ID, &s.SiteName, &s.LogoURL, &s.PrimaryColor, &s.SecondaryColor, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Update rewrites site name and theme colors.
func (r *Repository) Update(ctx context.Context, siteName, primaryColor, secondaryColor string) error {
	const q = `UPDATE site_settings SET site_name = $1, primary_color = $2, secondary_color = $3, updated_at = NOW()`
	_, err := r.pool.Exec(ctx, q, siteName, primaryColor, secondaryColor)
	return err
}

// SetLogoURL updates only the site logo.
func (r *Repository) SetLogoURL(ctx context.Context, logoURL string) error {
	const q = `UPDATE site_settings SET logo_url = NULLIF($1, ''), updated_at = NOW()`
	_, err := r.pool.Exec(ctx, q, logoURL)
	return err
}
