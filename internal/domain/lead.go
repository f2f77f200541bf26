package domain

import (
	"time"
)

// LeadFields holds contact details extracted from a visitor message by
// deterministic pattern matching. Empty string means "not found".
type LeadFields struct {
	Email        string `json:"email,omitempty"`
	WebsiteURL   string `json:"website_url,omitempty"`
	BusinessName string `json:"business_name,omitempty"`
}

// Lead is an explicit lead submitted through the intake form.
type Lead struct {
	ID                int64     `json:"id"`
	SessionID         string    `json:"session_id"`
	Name              string    `json:"name,omitempty"`
	BusinessName      string    `json:"business_name"`
	WebsiteURL        string    `json:"website_url"`
	Email             string    `json:"email"`
	Notes             string    `json:"notes,omitempty"`
	TranscriptSummary string    `json:"transcript_summary,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}
