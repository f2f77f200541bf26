// Package chat implements the conversational lead-qualification pipeline:
// intent classification, knowledge retrieval, reply generation and
// streaming, transcript persistence, and lead scoring.
package chat

import (
	"github.com/relaylabs/relay-gateway/internal/domain"
)

// ChatRequest is the inbound chat payload.
type ChatRequest struct {
	SessionID string `json:"sessionId,omitempty"`
	Message   string `json:"message"`
	PagePath  string `json:"pagePath,omitempty"`
	Stream    bool   `json:"stream,omitempty"`
}

// Meta describes how a reply was produced.
type Meta struct {
	UsedKB bool     `json:"usedKb"`
	Chunks []string `json:"chunks"`
}

// FinalReply is the terminal result of one chat turn.
type FinalReply struct {
	SessionID string `json:"sessionId"`
	Reply     string `json:"reply"`
	Meta      Meta   `json:"meta"`
}

// Event is one element of a turn's output stream: zero or more token
// events followed by exactly one final event.
type Event struct {
	Token string
	Final *FinalReply
}

// Turn is one validated inbound chat turn.
type Turn struct {
	SessionID string
	Message   string
	PagePath  string
}

// maxMessageLen bounds inbound messages; the frontend enforces the same cap.
const maxMessageLen = 800

// LeadUpdate is the scored result of one message.
type LeadUpdate struct {
	Score   int
	Signals []string
	Fields  domain.LeadFields
}
