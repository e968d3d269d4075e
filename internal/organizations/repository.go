package organizations

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atriumhq/console/internal/models"
	"github.com/atriumhq/console/internal/tenant"
)

// Repository handles organization and membership persistence. It also backs
// the tenant resolver's membership queries.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an organization repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a new organization.
func (r *Repository) Create(ctx context.Context, o *models.Organization) error {
	const q = `INSERT INTO organizations (id, name, slug, logo_url)
		VALUES (gen_random_uuid(), $1, $2, $3)
		RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, o.Name, o.Slug, o.LogoURL).
		Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
}

// GetByID returns an organization by ID, or nil when it does not exist.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Organization, error) {
	const q = `SELECT id, name, slug, COALESCE(logo_url, ''), created_at, updated_at
		FROM organizations WHERE id = $1`
	var o models.Organization
	err := r.pool.QueryRow(ctx, q, id).Scan(&o.ID, &o.Name, &o.Slug, &o.LogoURL, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// GetBySlug returns an organization by slug, or nil when it does not exist.
func (r *Repository) GetBySlug(ctx context.Context, slug string) (*models.Organization, error) {
	const q = `SELECT id, name, slug, COALESCE(logo_url, ''), created_at, updated_at
		FROM organizations WHERE slug = $1`
	var o models.Organization
	err := r.pool.QueryRow(ctx, q, slug).Scan(&o.ID, &o.Name, &o.Slug, &o.LogoURL, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// List returns all organizations ordered by name.
func (r *Repository) List(ctx context.Context) ([]models.Organization, error) {
	const q = `SELECT id, name, slug, COALESCE(logo_url, ''), created_at, updated_at
		FROM organizations ORDER BY name`
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.Organization
	for rows.Next() {
		var o models.Organization
		if err := rows.Scan(&o.ID, &o.Name, &o.Slug, &o.LogoURL, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, o)
	}
	return list, rows.Err()
}

// ListForUser returns the organizations the user is a member of.
func (r *Repository) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Organization, error) {
	const q = `SELECT o.id, o.name, o.slug, COALESCE(o.logo_url, ''), o.created_at, o.updated_at
		FROM organizations o
		JOIN user_organizations uo ON uo.organization_id = o.id
		WHERE uo.user_id = $1
		ORDER BY o.name`
	rows, err := r.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.Organization
	for rows.Next() {
		var o models.Organization
		if err := rows.Scan(&o.ID, &o.Name, &o.Slug, &o.LogoURL, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, o)
	}
	return list, rows.Err()
}

// Update updates name, slug, and logo URL.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, name, slug, logoURL string) error {
	const q = `UPDATE organizations SET name = $1, slug = $2, logo_url = NULLIF($3, ''), updated_at = NOW() WHERE id = $4`
	_, err := r.pool.Exec(ctx, q, name, slug, logoURL, id)
	return err
}

// SetLogoURL updates only the logo URL.
func (r *Repository) SetLogoURL(ctx context.Context, id uuid.UUID, logoURL string) error {
	const q = `UPDATE organizations SET logo_url = NULLIF($1, ''), updated_at = NOW() WHERE id = $2`
	_, err := r.pool.Exec(ctx, q, logoURL, id)
	return err
}

// Delete removes an organization. Memberships, teams, links, app configs, and
// chat history cascade at the database level.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	const q = `DELETE FROM organizations WHERE id = $1`
	_, err := r.pool.Exec(ctx, q, id)
	return err
}

// AddMember upserts a membership row for the user with the given role.
func (r *Repository) AddMember(ctx context.Context, orgID, userID uuid.UUID, role models.Role) error {
	const q = `INSERT INTO user_organizations (id, user_id, organization_id, role)
		VALUES (gen_random_uuid(), $1, $2, $3)
		ON CONFLICT (user_id, organization_id) DO UPDATE SET role = EXCLUDED.role, updated_at = NOW()`
	_, err := r.pool.Exec(ctx, q, userID, orgID, role)
	return err
}

// RemoveMember deletes a membership row.
func (r *Repository) RemoveMember(ctx context.Context, orgID, userID uuid.UUID) error {
	const q = `DELETE FROM user_organizations WHERE organization_id = $1 AND user_id = $2`
	_, err := r.pool.Exec(ctx, q, orgID, userID)
	return err
}

// GetUserRole returns the user's role in an organization, or "" for non-members.
func (r *Repository) GetUserRole(ctx context.Context, orgID, userID uuid.UUID) (models.Role, error) {
	const q = `SELECT role FROM user_organizations WHERE organization_id = $1 AND user_id = $2`
	var role models.Role
	err := r.pool.QueryRow(ctx, q, orgID, userID).Scan(&role)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return role, nil
}

// Member is a membership row joined with the user's public profile.
type Member struct {
	models.UserPublic
	Role models.Role `json:"role"`
}

// ListMembers returns all members of an organization with their roles.
func (r *Repository) ListMembers(ctx context.Context, orgID uuid.UUID) ([]Member, error) {
	const q = `SELECT u.id, u.email, COALESCE(u.display_name, ''), COALESCE(u.avatar_url, ''), u.is_global_admin, u.created_at, uo.role
		FROM user_organizations uo
		JOIN users u ON u.id = uo.user_id
		WHERE uo.organization_id = $1
		ORDER BY u.display_name, u.email`
	rows, err := r.pool.Query(ctx, q, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []Member
	for rows.Next() {
		var m Member
		if err := rows.Scan(&m.ID, &m.Email, &m.DisplayName, &m.AvatarURL, &m.IsGlobalAdmin, &m.CreatedAt, &m.Role); err != nil {
			return nil, err
		}
		list = append(list, m)
	}
	return list, rows.Err()
}

// ListMemberships returns the user's memberships for tenant resolution,
// ordered by join time so "first membership" is stable.
func (r *Repository) ListMemberships(ctx context.Context, userID uuid.UUID) ([]tenant.Membership, error) {
	const q = `SELECT organization_id, role FROM user_organizations
		WHERE user_id = $1 ORDER BY created_at, organization_id`
	rows, err := r.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []tenant.Membership
	for rows.Next() {
		var m tenant.Membership
		if err := rows.Scan(&m.OrganizationID, &m.Role); err != nil {
			return nil, err
		}
		list = append(list, m)
	}
	return list, rows.Err()
}

// GetOrganization satisfies the tenant resolver's store interface.
func (r *Repository) GetOrganization(ctx context.Context, id uuid.UUID) (*models.Organization, error) {
	return r.GetByID(ctx, id)
}
