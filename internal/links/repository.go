package links

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atriumhq/console/internal/models"
)

// Repository handles link directory and top bar link persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a links repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a link into an organization's directory.
func (r *Repository) Create(ctx context.Context, l *models.Link) error {
	const q = `INSERT INTO links (id, organization_id, title, description, url, logo_url)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5)
		RETURNING id, created_at`
	return r.pool.QueryRow(ctx, q, l.OrganizationID, l.Title, l.Description, l.URL, l.LogoURL).
		Scan(&l.ID, &l.CreatedAt)
}

// GetByID returns a link, or nil when it does not exist.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Link, error) {
	const q = `SELECT id, organization_id, title, COALESCE(description, ''), url, COALESCE(logo_url, ''), created_at
		FROM links WHERE id = $1`
	var l models.Link
	err := r.pool.QueryRow(ctx, q, id).Scan(&l.ID, &l.OrganizationID, &l.Title, &l.Description, &l.URL, &l.LogoURL, &l.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// ListByOrganization returns the organization's links newest first.
func (r *Repository) ListByOrganization(ctx context.Context, orgID uuid.UUID) ([]models.Link, error) {
	const q = `SELECT id, organization_id, title, COALESCE(description, ''), url, COALESCE(logo_url, ''), created_at
		FROM links WHERE organization_id = $1 ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, q, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.Link
	for rows.Next() {
		var l models.Link
		if err := rows.Scan(&l.ID, &l.OrganizationID, &l.Title, &l.Description, &l.URL, &l.LogoURL, &l.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, l)
	}
	return list, rows.Err()
}

// Update rewrites a link's fields.
func (r *Repository) Update(ctx context.Context, l *models.Link) error {
	const q = `UPDATE links SET title = $1, description = NULLIF($2, ''), url = $3, logo_url = NULLIF($4, '')
		WHERE id = $5`
	_, err := r.pool.Exec(ctx, q, l.Title, l.Description, l.URL, l.LogoURL, l.ID)
	return err
}

// Delete removes a link.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	const q = `DELETE FROM links WHERE id = $1`
	_, err := r.pool.Exec(ctx, q, id)
	return err
}

// CreateTopBarLink inserts a global top bar link.
func (r *Repository) CreateTopBarLink(ctx context.Context, l *models.TopBarLink) error {
	const q = `INSERT INTO topbar_links (id, label, url, icon_name, position)
		VALUES (gen_random_uuid(), $1, $2, $3, $4)
		RETURNING id`
	return r.pool.QueryRow(ctx, q, l.Label, l.URL, l.IconName, l.Position).Scan(&l.ID)
}

// ListTopBarLinks returns all top bar links in display order.
func (r *Repository) ListTopBarLinks(ctx context.Context) ([]models.TopBarLink, error) {
	const q = `SELECT id, label, url, COALESCE(icon_name, ''), position FROM topbar_links ORDER BY position, label`
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.TopBarLink
	for rows.Next() {
		var l models.TopBarLink
		if err := rows.Scan(&l.ID, &l.Label, &l.URL, &l.IconName, &l.Position); err != nil {
			return nil, err
		}
		list = append(list, l)
	}
	return list, rows.Err()
}

// UpdateTopBarLink rewrites a top bar link.
func (r *Repository) UpdateTopBarLink(ctx context.Context, l *models.TopBarLink) error {
	const q = `UPDATE topbar_links SET label = $1, url = $2, icon_name = NULLIF($3, ''), position = $4 WHERE id = $5`
	_, err := r.pool.Exec(ctx, q, l.Label, l.URL, l.IconName, l.Position, l.ID)
	return err
}

// DeleteTopBarLink removes a top bar link.
func (r *Repository) DeleteTopBarLink(ctx context.Context, id uuid.UUID) error {
	const q = `DELETE FROM topbar_links WHERE id = $1`
	_, err := r.pool.Exec(ctx, q, id)
	return err
}
