package models

import (
	"time"

	"github.com/google/uuid"
)

// Role is a user's role within an organization. Global admin is a profile
// flag, not a membership role: it bypasses membership checks entirely.
type Role string

const (
	RoleGlobalAdmin       Role = "global_admin"
	RoleOrganizationAdmin Role = "organization_admin"
	RoleTeamAdmin         Role = "team_admin"
	RoleUser              Role = "user"
)

// ValidMembershipRole reports whether r can be stored on a membership row.
func ValidMembershipRole(r Role) bool {
	switch r {
	case RoleOrganizationAdmin, RoleTeamAdmin, RoleUser:
		return true
	}
	return false
}

// User is a platform user profile.
type User struct {
	ID            uuid.UUID `json:"id"`
	Email         string    `json:"email"`
	Password      string    `json:"-"`
	DisplayName   string    `json:"display_name"`
	AvatarURL     string    `json:"avatar_url,omitempty"`
	IsGlobalAdmin bool      `json:"is_global_admin"`
	OTPEnabled    bool      `json:"has_otp_enabled"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// UserPublic is User without sensitive fields for API responses.
type UserPublic struct {
	ID            uuid.UUID `json:"id"`
	Email         string    `json:"email"`
	DisplayName   string    `json:"display_name"`
	AvatarURL     string    `json:"avatar_url,omitempty"`
	IsGlobalAdmin bool      `json:"is_global_admin"`
	CreatedAt     time.Time `json:"created_at"`
}

// ToPublic converts User to UserPublic.
func (u *User) ToPublic() UserPublic {
	return UserPublic{
		ID:            u.ID,
		Email:         u.Email,
		DisplayName:   u.DisplayName,
		AvatarURL:     u.AvatarURL,
		IsGlobalAdmin: u.IsGlobalAdmin,
		CreatedAt:     u.CreatedAt,
	}
}
