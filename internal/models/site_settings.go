package models

import (
	"time"

	"github.com/google/uuid"
)

// SiteSettings is the singleton site branding row.
type SiteSettings struct {
	ID             uuid.UUID `json:"id"`
	SiteName       string    `json:"site_name"`
	LogoURL        string    `json:"logo_url,omitempty"`
	PrimaryColor   string    `json:"primary_color"`
	SecondaryColor string    `json:"secondary_color"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
