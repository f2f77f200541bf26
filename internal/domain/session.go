// Package domain contains core domain types for the Relay gateway.
package domain

import (
	"time"
)

// ChatSession represents one visitor conversation and its lead state.
//
// Lead fields only move one way: LeadScore never decreases, LeadSignals only
// grows, and IsLead latches from false to true exactly once.
type ChatSession struct {
	SessionID       string     `json:"session_id"`
	Goal            string     `json:"goal,omitempty"`
	LeadScore       int        `json:"lead_score"`
	LeadSignals     []string   `json:"lead_signals"`
	IsLead          bool       `json:"is_lead"`
	LeadFirstSeenAt *time.Time `json:"lead_first_seen_at,omitempty"`
	LeadEmailSentAt *time.Time `json:"lead_email_sent_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// HasSignal reports whether the session already carries the given signal tag.
func (s *ChatSession) HasSignal(signal string) bool {
	for _, sig := range s.LeadSignals {
		if sig == signal {
			return true
		}
	}
	return false
}
