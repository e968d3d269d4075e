package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AppType identifies a feature app that can be enabled per organization.
const (
	AppTypeAIChat = "ai_chat"
)

// AvailableApp is a platform-level app catalog entry.
type AvailableApp struct {
	ID            uuid.UUID `json:"id"`
	AppType       string    `json:"app_type"`
	Name          string    `json:"name"`
	Enabled       bool      `json:"enabled"`
	RequiresSetup bool      `json:"requires_setup"`
}

// OrganizationApp is a per-organization app activation with its settings blob.
// Settings are opaque here; feature packages parse them into typed configs.
type OrganizationApp struct {
	ID             uuid.UUID       `json:"id"`
	OrganizationID uuid.UUID       `json:"organization_id"`
	AppType        string          `json:"app_type"`
	Enabled        bool            `json:"enabled"`
	Settings       json.RawMessage `json:"settings"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}
