package models

import (
	"time"

	"github.com/google/uuid"
)

// ChatRole is the author role of a chat message.
type ChatRole string

const (
	ChatRoleUser      ChatRole = "user"
	ChatRoleAssistant ChatRole = "assistant"
	ChatRoleSystem    ChatRole = "system"
)

// ChatMessage is one turn in an organization's chat transcript.
// Ordering authority is server-assigned (created_at, id).
type ChatMessage struct {
	ID             uuid.UUID  `json:"id"`
	OrganizationID uuid.UUID  `json:"organization_id"`
	UserID         *uuid.UUID `json:"user_id,omitempty"`
	Role           ChatRole   `json:"role"`
	Content        string     `json:"content"`
	Tokens         *int       `json:"tokens,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}
