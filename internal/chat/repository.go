package chat

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atriumhq/console/internal/models"
)

// Repository handles chat message, config, and usage persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a chat repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListMessages returns the organization's transcript in server order.
func (r *Repository) ListMessages(ctx context.Context, orgID uuid.UUID) ([]models.ChatMessage, error) {
	const q = `SELECT id, organization_id, user_id, role, content, tokens, created_at
		FROM chat_messages WHERE organization_id = $1 ORDER BY created_at, id`
	rows, err := r.pool.Query(ctx, q, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.ChatMessage
	for rows.Next() {
		var m models.ChatMessage
		if err := rows.Scan(&m.ID, &m.OrganizationID, &m.UserID, &m.Role, &m.Content, &m.Tokens, &m.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, m)
	}
	return list, rows.Err()
}

// AppendMessage inserts a message; the database assigns id and created_at.
func (r *Repository) AppendMessage(ctx context.Context, m *models.ChatMessage) error {
	const q = `INSERT INTO chat_messages (organization_id, user_id, role, content, tokens)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`
	return r.pool.QueryRow(ctx, q, m.OrganizationID, m.UserID, m.Role, m.Content, m.Tokens).
		Scan(&m.ID, &m.CreatedAt)
}

// GetChatConfig loads and parses the organization's chat app settings.
// Returns ErrConfigMissing when no chat app row exists.
func (r *Repository) GetChatConfig(ctx context.Context, orgID uuid.UUID) (*Config, error) {
	const q = `SELECT enabled, settings FROM organization_apps
		WHERE organization_id = $1 AND app_type = $2`
	var enabled bool
	var settings []byte
	err := r.pool.QueryRow(ctx, q, orgID, models.AppTypeAIChat).Scan(&enabled, &settings)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrConfigMissing
	}
	if err != nil {
		return nil, err
	}
	return ParseConfig(enabled, settings)
}

// RecordUsage rolls one turn's counters into the organization's daily row.
func (r *Repository) RecordUsage(ctx context.Context, orgID uuid.UUID, day time.Time, messages, tokens int64) error {
	const q = `INSERT INTO chat_usage (organization_id, day, message_count, token_count)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (organization_id, day) DO UPDATE
		SET message_count = chat_usage.message_count + EXCLUDED.message_count,
		    token_count = chat_usage.token_count + EXCLUDED.token_count`
	_, err := r.pool.Exec(ctx, q, orgID, day, messages, tokens)
	return err
}

// Usage is a daily usage rollup row.
type Usage struct {
	Day          time.Time `json:"day"`
	MessageCount int64     `json:"message_count"`
	TokenCount   int64     `json:"token_count"`
}

// ListUsage returns the organization's daily rollups, newest first.
func (r *Repository) ListUsage(ctx context.Context, orgID uuid.UUID, limit int) ([]Usage, error) {
	if limit <= 0 {
		limit = 30
	}
	const q = `SELECT day, message_count, token_count FROM chat_usage
		WHERE organization_id = $1 ORDER BY day DESC LIMIT $2`
	rows, err := r.pool.Query(ctx, q, orgID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []Usage
	for rows.Next() {
		var u Usage
		if err := rows.Scan(&u.Day, &u.MessageCount, &u.TokenCount); err != nil {
			return nil, err
		}
		list = append(list, u)
	}
	return list, rows.Err()
}
