package models

import (
	"time"

	"github.com/google/uuid"
)

// Team is a group within an organization.
type Team struct {
	ID             uuid.UUID `json:"id"`
	OrganizationID uuid.UUID `json:"organization_id"`
	Name           string    `json:"name"`
	Slug           string    `json:"slug"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// UserTeam links a user to a team with a role.
type UserTeam struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	TeamID    uuid.UUID `json:"team_id"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}
