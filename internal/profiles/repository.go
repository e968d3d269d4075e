package profiles

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atriumhq/console/internal/models"
)

// Repository handles profile reads and updates on the users table.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a profile repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetByID returns a user's profile, or nil when it does not exist.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	const q = `SELECT id, email, COALESCE(display_name, ''), COALESCE(avatar_url, ''), is_global_admin, otp_enabled, created_at, updated_at
		FROM users WHERE id = $1`
	var u models.User
	err := r.pool.QueryRow(ctx, q, id).Scan(&u.ID, &u.Email, &u.DisplayName, &u.AvatarURL, &u.IsGlobalAdmin, &u.OTPEnabled, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// UpdateDisplayName sets the user's display name.
func (r *Repository) UpdateDisplayName(ctx context.Context, id uuid.UUID, displayName string) error {
	const q = `UPDATE users SET display_name = $1, updated_at = NOW() WHERE id = $2`
	_, err := r.pool.Exec(ctx, q, displayName, id)
	return err
}

// SetAvatarURL sets the user's avatar URL.
func (r *Repository) SetAvatarURL(ctx context.Context, id uuid.UUID, avatarURL string) error {
	const q = `UPDATE users SET avatar_url = NULLIF($1, ''), updated_at = NOW() WHERE id = $2`
	_, err := r.pool.Exec(ctx, q, avatarURL, id)
	return err
}

// SetOTPEnabled toggles the user's OTP flag.
func (r *Repository) SetOTPEnabled(ctx context.Context, id uuid.UUID, enabled bool) error {
	const q = `UPDATE users SET otp_enabled = $1, updated_at = NOW() WHERE id = $2`
	_, err := r.pool.Exec(ctx, q, enabled, id)
	return err
}

// SetGlobalAdmin toggles the global admin flag.
func (r *Repository) SetGlobalAdmin(ctx context.Context, id uuid.UUID, isAdmin bool) error {
	const q = `UPDATE users SET is_global_admin = $1, updated_at = NOW() WHERE id = $2`
	_, err := r.pool.Exec(ctx, q, isAdmin, id)
	return err
}

// List returns all profiles ordered by display name.
func (r *Repository) List(ctx context.Context) ([]models.User, error) {
	const q = `SELECT id, email, COALESCE(display_name, ''), COALESCE(avatar_url, ''), is_global_admin, otp_enabled, created_at, updated_at
		FROM users ORDER BY display_name, email`
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Email, &u.DisplayName, &u.AvatarURL, &u.IsGlobalAdmin, &u.OTPEnabled, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, u)
	}
	return list, rows.Err()
}
