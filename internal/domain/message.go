package domain

import (
	"time"
)

// Message roles. The transcript only ever contains these two.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is one transcript entry. Messages are append-only and ordered
// by CreatedAt within a session; they are never updated or deleted.
type ChatMessage struct {
	SessionID string    `json:"session_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}
