package models

import (
	"time"

	"github.com/google/uuid"
)

// Subscription statuses mirror the billing provider's subscription lifecycle.
const (
	SubscriptionActive     = "active"
	SubscriptionTrialing   = "trialing"
	SubscriptionIncomplete = "incomplete"
	SubscriptionCanceled   = "canceled"
)

// Subscription links a user to a billing provider customer and subscription.
type Subscription struct {
	ID                   uuid.UUID `json:"id"`
	UserID               uuid.UUID `json:"user_id"`
	CustomerID           string    `json:"customer_id"`
	StripeSubscriptionID string    `json:"stripe_subscription_id,omitempty"`
	Status               string    `json:"status"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// Entitled reports whether the subscription grants access to gated features.
func (s *Subscription) Entitled() bool {
	return s != nil && (s.Status == SubscriptionActive || s.Status == SubscriptionTrialing)
}
