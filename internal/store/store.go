// Package store provides data persistence interfaces and implementations
// for chat sessions, transcripts, and lead state.
package store

import (
	"context"
	"errors"

	"github.com/relaylabs/relay-gateway/internal/domain"
)

// ErrSessionNotFound is returned when an operation references a session
// that does not exist.
var ErrSessionNotFound = errors.New("session not found")

// LeadOutcome describes the result of a RecordLead call.
type LeadOutcome struct {
	// BecameLeadNow is true only on the call that flipped is_lead to true.
	BecameLeadNow bool
	// ShouldNotify is true when the session is a lead and no alert email has
	// been successfully sent yet. The caller attempts one outbound alert and
	// latches MarkLeadEmailSent only on success, so a failed send is retried
	// by the next qualifying signal.
	ShouldNotify bool
	Score        int
	Signals      []string
}

// Repository defines the interface for persisting session and lead data.
type Repository interface {
	// EnsureSession creates the session row if absent (get-or-create) and
	// returns the session, including any previously stored goal.
	EnsureSession(ctx context.Context, sessionID string) (*domain.ChatSession, error)

	// AppendMessage inserts one ordered transcript row. It fails with
	// ErrSessionNotFound if the session does not exist.
	AppendMessage(ctx context.Context, sessionID, role, content string) error

	// RecentMessages returns the most recent limit messages in chronological
	// (oldest-first) order. limit is clamped to 1..20.
	RecentMessages(ctx context.Context, sessionID string, limit int) ([]domain.ChatMessage, error)

	// UpdateGoal patches session metadata. Best-effort; not required for
	// conversation correctness.
	UpdateGoal(ctx context.Context, sessionID, goal string) error

	// RecordLead applies a lead-score update atomically: score becomes
	// max(existing, score), signals become the union, and is_lead latches to
	// true once the running score crosses threshold.
	RecordLead(ctx context.Context, sessionID string, score int, signals []string, threshold int) (LeadOutcome, error)

	// MarkLeadEmailSent latches lead_email_sent_at, suppressing any future
	// duplicate alert. It is only called after a successful send.
	MarkLeadEmailSent(ctx context.Context, sessionID string) error

	// InsertLead stores an explicit lead-form submission and returns its id.
	InsertLead(ctx context.Context, lead *domain.Lead) (int64, error)

	// Ping verifies database connectivity.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
