package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/relaylabs/relay-gateway/internal/domain"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	leadMu sync.Mutex // serializes lead read-modify-write transitions
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS chat_sessions (
		session_id TEXT PRIMARY KEY,
		goal TEXT,
		lead_score INTEGER NOT NULL DEFAULT 0,
		lead_signals TEXT NOT NULL DEFAULT '[]',
		is_lead INTEGER NOT NULL DEFAULT 0,
		lead_first_seen_at INTEGER,
		lead_email_sent_at INTEGER,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS chat_messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL REFERENCES chat_sessions(session_id),
		role TEXT NOT NULL CHECK (role IN ('user', 'assistant')),
		content TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_messages_session ON chat_messages(session_id, id);

	CREATE TABLE IF NOT EXISTS leads (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		name TEXT,
		business_name TEXT NOT NULL,
		website_url TEXT NOT NULL,
		email TEXT NOT NULL,
		notes TEXT,
		transcript_summary TEXT,
		created_at INTEGER NOT NULL
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// EnsureSession creates a session row if absent and returns the session.
func (s *SQLiteStore) EnsureSession(ctx context.Context, sessionID string) (*domain.ChatSession, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("ensure session: empty session id")
	}

	now := time.Now()
	insert := `
		INSERT INTO chat_sessions (session_id, created_at, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(session_id) DO NOTHING`
	if _, err := s.db.ExecContext(ctx, insert, sessionID, now.Unix(), now.Unix()); err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}

	return s.getSession(ctx, sessionID)
}

func (s *SQLiteStore) getSession(ctx context.Context, sessionID string) (*domain.ChatSession, error) {
	query := `
		SELECT session_id, goal, lead_score, lead_signals, is_lead,
		       lead_first_seen_at, lead_email_sent_at, created_at, updated_at
		FROM chat_sessions WHERE session_id = ?`

	row := s.db.QueryRowContext(ctx, query, sessionID)

	var session domain.ChatSession
	var goal sql.NullString
	var signalsJSON string
	var firstSeen, emailSent sql.NullInt64
	var createdAt, updatedAt int64

	err := row.Scan(
		&session.SessionID, &goal, &session.LeadScore, &signalsJSON,
		&session.IsLead, &firstSeen, &emailSent, &createdAt, &updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan session row: %w", err)
	}

	session.Goal = goal.String
	if err := json.Unmarshal([]byte(signalsJSON), &session.LeadSignals); err != nil {
		return nil, fmt.Errorf("decode lead signals: %w", err)
	}
	if firstSeen.Valid {
		ts := time.Unix(firstSeen.Int64, 0)
		session.LeadFirstSeenAt = &ts
	}
	if emailSent.Valid {
		ts := time.Unix(emailSent.Int64, 0)
		session.LeadEmailSentAt = &ts
	}
	session.CreatedAt = time.Unix(createdAt, 0)
	session.UpdatedAt = time.Unix(updatedAt, 0)

	return &session, nil
}

// AppendMessage inserts one ordered transcript row.
func (s *SQLiteStore) AppendMessage(ctx context.Context, sessionID, role, content string) error {
	if role != domain.RoleUser && role != domain.RoleAssistant {
		return fmt.Errorf("append message: invalid role %q", role)
	}

	query := `
		INSERT INTO chat_messages (session_id, role, content, created_at)
		SELECT session_id, ?, ?, ? FROM chat_sessions WHERE session_id = ?`
	result, err := s.db.ExecContext(ctx, query, role, content, time.Now().UnixNano(), sessionID)
	if err != nil {
		return fmt.Errorf("append message: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("append message for %s: %w", sessionID, ErrSessionNotFound)
	}
	return nil
}

// RecentMessages returns the most recent limit messages oldest-first.
func (s *SQLiteStore) RecentMessages(ctx context.Context, sessionID string, limit int) ([]domain.ChatMessage, error) {
	if limit < 1 {
		limit = 1
	}
	if limit > 20 {
		limit = 20
	}

	query := `
		SELECT session_id, role, content, created_at
		FROM chat_messages WHERE session_id = ?
		ORDER BY id DESC LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent messages: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close recent messages rows", "error", closeErr)
		}
	}()

	var messages []domain.ChatMessage
	for rows.Next() {
		var msg domain.ChatMessage
		var createdAt int64
		if err := rows.Scan(&msg.SessionID, &msg.Role, &msg.Content, &createdAt); err != nil {
			return nil, fmt.Errorf("scan message row: %w", err)
		}
		msg.CreatedAt = time.Unix(0, createdAt)
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}

	// Reverse newest-first into chronological order.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// UpdateGoal patches the session goal.
func (s *SQLiteStore) UpdateGoal(ctx context.Context, sessionID, goal string) error {
	query := `UPDATE chat_sessions SET goal = ?, updated_at = ? WHERE session_id = ?`
	result, err := s.db.ExecContext(ctx, query, goal, time.Now().Unix(), sessionID)
	if err != nil {
		return fmt.Errorf("update goal: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		slog.Warn("UpdateGoal affected 0 rows", "session_id", sessionID)
	}
	return nil
}

// RecordLead applies a lead update as a single atomic transition.
func (s *SQLiteStore) RecordLead(ctx context.Context, sessionID string, score int, signals []string, threshold int) (LeadOutcome, error) {
	s.leadMu.Lock()
	defer s.leadMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return LeadOutcome{}, fmt.Errorf("begin lead tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	row := tx.QueryRowContext(ctx, `
		SELECT lead_score, lead_signals, is_lead, lead_email_sent_at
		FROM chat_sessions WHERE session_id = ?`, sessionID)

	var curScore int
	var signalsJSON string
	var isLead bool
	var emailSent sql.NullInt64
	if err := row.Scan(&curScore, &signalsJSON, &isLead, &emailSent); err != nil {
		if err == sql.ErrNoRows {
			return LeadOutcome{}, ErrSessionNotFound
		}
		return LeadOutcome{}, fmt.Errorf("scan lead state: %w", err)
	}

	var curSignals []string
	if err := json.Unmarshal([]byte(signalsJSON), &curSignals); err != nil {
		return LeadOutcome{}, fmt.Errorf("decode lead signals: %w", err)
	}

	newScore := curScore
	if score > newScore {
		newScore = score
	}
	merged := unionSignals(curSignals, signals)

	becameLead := !isLead && newScore >= threshold
	nowLead := isLead || becameLead

	mergedJSON, err := json.Marshal(merged)
	if err != nil {
		return LeadOutcome{}, fmt.Errorf("encode lead signals: %w", err)
	}

	now := time.Now().Unix()
	if becameLead {
		// lead_first_seen_at is set exactly once, on the false->true edge.
		_, err = tx.ExecContext(ctx, `
			UPDATE chat_sessions
			SET lead_score = ?, lead_signals = ?, is_lead = 1,
			    lead_first_seen_at = ?, updated_at = ?
			WHERE session_id = ?`,
			newScore, string(mergedJSON), now, now, sessionID)
	} else {
		_, err = tx.ExecContext(ctx, `
			UPDATE chat_sessions
			SET lead_score = ?, lead_signals = ?, is_lead = ?, updated_at = ?
			WHERE session_id = ?`,
			newScore, string(mergedJSON), boolToInt(nowLead), now, sessionID)
	}
	if err != nil {
		return LeadOutcome{}, fmt.Errorf("update lead state: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return LeadOutcome{}, fmt.Errorf("commit lead tx: %w", err)
	}

	return LeadOutcome{
		BecameLeadNow: becameLead,
		ShouldNotify:  nowLead && !emailSent.Valid,
		Score:         newScore,
		Signals:       merged,
	}, nil
}

// MarkLeadEmailSent latches the email-sent timestamp.
func (s *SQLiteStore) MarkLeadEmailSent(ctx context.Context, sessionID string) error {
	query := `
		UPDATE chat_sessions SET lead_email_sent_at = ?, updated_at = ?
		WHERE session_id = ? AND lead_email_sent_at IS NULL`
	result, err := s.db.ExecContext(ctx, query, time.Now().Unix(), time.Now().Unix(), sessionID)
	if err != nil {
		return fmt.Errorf("mark lead email sent: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		slog.Warn("MarkLeadEmailSent affected 0 rows", "session_id", sessionID)
	}
	return nil
}

// InsertLead stores an explicit lead-form submission.
func (s *SQLiteStore) InsertLead(ctx context.Context, lead *domain.Lead) (int64, error) {
	query := `
		INSERT INTO leads (session_id, name, business_name, website_url, email, notes, transcript_summary, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	result, err := s.db.ExecContext(ctx, query,
		lead.SessionID, nullable(lead.Name), lead.BusinessName, lead.WebsiteURL,
		lead.Email, nullable(lead.Notes), nullable(lead.TranscriptSummary),
		time.Now().Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("insert lead: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("lead insert id: %w", err)
	}
	return id, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

func unionSignals(existing, incoming []string) []string {
	seen := make(map[string]bool, len(existing)+len(incoming))
	merged := make([]string, 0, len(existing)+len(incoming))
	for _, sig := range existing {
		if !seen[sig] {
			seen[sig] = true
			merged = append(merged, sig)
		}
	}
	for _, sig := range incoming {
		if !seen[sig] {
			seen[sig] = true
			merged = append(merged, sig)
		}
	}
	return merged
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
