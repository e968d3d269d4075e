package models

import (
	"time"

	"github.com/google/uuid"
)

// Link is an entry in an organization's link directory.
type Link struct {
	ID             uuid.UUID `json:"id"`
	OrganizationID uuid.UUID `json:"organization_id"`
	Title          string    `json:"title"`
	Description    string    `json:"description,omitempty"`
	URL            string    `json:"url"`
	LogoURL        string    `json:"logo_url,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// TopBarLink is a global navigation link shown in the top bar, ordered by position.
type TopBarLink struct {
	ID       uuid.UUID `json:"id"`
	Label    string    `json:"label"`
	URL      string    `json:"url"`
	IconName string    `json:"icon_name"`
	Position int       `json:"position"`
}
