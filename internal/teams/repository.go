package teams

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atriumhq/console/internal/models"
)

// Repository handles team persistence. Teams are scoped to one organization.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a team repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a team under an organization.
func (r *Repository) Create(ctx context.Context, t *models.Team) error {
	const q = `INSERT INTO teams (id, organization_id, name, slug)
		VALUES (gen_random_uuid(), $1, $2, $3)
		RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, t.OrganizationID, t.Name, t.Slug).
		Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
}

// GetByID returns a team, or nil when it does not exist.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Team, error) {
	const q = `SELECT id, organization_id, name, slug, created_at, updated_at FROM teams WHERE id = $1`
	var t models.Team
	err := r.pool.QueryRow(ctx, q, id).Scan(&t.ID, &t.OrganizationID, &t.Name, &t.Slug, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ListByOrganization returns all teams in an organization.
func (r *Repository) ListByOrganization(ctx context.Context, orgID uuid.UUID) ([]models.Team, error) {
	const q = `SELECT id, organization_id, name, slug, created_at, updated_at
		FROM teams WHERE organization_id = $1 ORDER BY name`
	rows, err := r.pool.Query(ctx, q, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.Team
	for rows.Next() {
		var t models.Team
		if err := rows.Scan(&t.ID, &t.OrganizationID, &t.Name, &t.Slug, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, t)
	}
	return list, rows.Err()
}

// ListForUser returns the teams a user belongs to within an organization.
func (r *Repository) ListForUser(ctx context.Context, orgID, userID uuid.UUID) ([]models.Team, error) {
	const q = `SELECT t.id, t.organization_id, t.name, t.slug, t.created_at, t.updated_at
		FROM teams t
		JOIN user_teams ut ON ut.team_id = t.id
		WHERE t.organization_id = $1 AND ut.user_id = $2
		ORDER BY t.name`
	rows, err := r.pool.Query(ctx, q, orgID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.Team
	for rows.Next() {
		var t models.Team
		if err := rows.Scan(&t.ID, &t.OrganizationID, &t.Name, &t.Slug, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, t)
	}
	return list, rows.Err()
}

// Update renames a team.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, name, slug string) error {
	const q = `UPDATE teams SET name = $1, slug = $2, updated_at = NOW() WHERE id = $3`
	_, err := r.pool.Exec(ctx, q, name, slug, id)
	return err
}

// Delete removes a team; user_teams rows cascade.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	const q = `DELETE FROM teams WHERE id = $1`
	_, err := r.pool.Exec(ctx, q, id)
	return err
}

// AddMember upserts a team membership.
func (r *Repository) AddMember(ctx context.Context, teamID, userID uuid.UUID, role models.Role) error {
	const q = `INSERT INTO user_teams (id, user_id, team_id, role)
		VALUES (gen_random_uuid(), $1, $2, $3)
		ON CONFLICT (user_id, team_id) DO UPDATE SET role = EXCLUDED.role`
	_, err := r.pool.Exec(ctx, q, userID, teamID, role)
	return err
}

// RemoveMember deletes a team membership.
func (r *Repository) RemoveMember(ctx context.Context, teamID, userID uuid.UUID) error {
	const q = `DELETE FROM user_teams WHERE team_id = $1 AND user_id = $2`
	_, err := r.pool.Exec(ctx, q, teamID, userID)
	return err
}

// Member is a team membership row joined with the user's public profile.
type Member struct {
	models.UserPublic
	Role models.Role `json:"role"`
}

// ListMembers returns all members of a team.
func (r *Repository) ListMembers(ctx context.Context, teamID uuid.UUID) ([]Member, error) {
	const q = `SELECT u.id, u.email, COALESCE(u.display_name, ''), COALESCE(u.avatar_url, ''), u.is_global_admin, u.created_at, ut.role
		FROM user_teams ut
		JOIN users u ON u.id = ut.user_id
		WHERE ut.team_id = $1
		ORDER BY u.display_name, u.email`
	rows, err := r.pool.Query(ctx, q, teamID)
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
