package billing

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atriumhq/console/internal/models"
)

// Repository handles subscription persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a billing repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const subscriptionColumns = `id, user_id, customer_id, COALESCE(stripe_subscription_id, ''), status, created_at, updated_at`

func scanSubscription(row interface{ Scan(...any) error }) (*models.Subscription, error) {
	var s models.Subscription
	err := row.Scan(&s.ID, &s.UserID, &s.CustomerID, &s.StripeSubscriptionID, &s.Status, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// GetByUserID returns the user's subscription row, or nil.
func (r *Repository) GetByUserID(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	const q = `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE user_id = $1`
	return scanSubscription(r.pool.QueryRow(ctx, q, userID))
}

// GetByCustomerID returns the subscription row for a billing customer, or nil.
func (r *Repository) GetByCustomerID(ctx context.Context, customerID string) (*models.Subscription, error) {
	const q = `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE customer_id = $1`
	return scanSubscription(r.pool.QueryRow(ctx, q, customerID))
}

// HasActiveSubscription reports whether the user's subscription entitles
// access to gated features.
func (r *Repository) HasActiveSubscription(ctx context.Context, userID uuid.UUID) (bool, error) {
	sub, err := r.GetByUserID(ctx, userID)
	if err != nil {
		return false, err
	}
	return sub.Entitled(), nil
}

// UpsertCustomer records the billing customer for a user, keeping any
// existing subscription state.
func (r *Repository) UpsertCustomer(ctx context.Context, userID uuid.UUID, customerID string) error {
	const q = `INSERT INTO subscriptions (user_id, customer_id)
		VALUES ($1, $2)
		ON CONFLICT (customer_id) DO NOTHING`
	_, err := r.pool.Exec(ctx, q, userID, customerID)
	return err
}

// SetSubscription attaches a provider subscription and status to a customer.
func (r *Repository) SetSubscription(ctx context.Context, customerID, subscriptionID, status string) error {
	const q = `UPDATE subscriptions
		SET stripe_subscription_id = $1, status = $2, updated_at = NOW()
		WHERE customer_id = $3`
	tag, err := r.pool.Exec(ctx, q, subscriptionID, status, customerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// UpdateStatusBySubscriptionID transitions a subscription's status.
func (r *Repository) UpdateStatusBySubscriptionID(ctx context.Context, subscriptionID, status string) error {
	const q = `UPDATE subscriptions SET status = $1, updated_at = NOW() WHERE stripe_subscription_id = $2`
	_, err := r.pool.Exec(ctx, q, status, subscriptionID)
	return err
}

// MarkCanceledBySubscriptionID records a deleted provider subscription.
func (r *Repository) MarkCanceledBySubscriptionID(ctx context.Context, subscriptionID string) error {
	return r.UpdateStatusBySubscriptionID(ctx, subscriptionID, models.SubscriptionCanceled)
}
