package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/relaylabs/relay-gateway/internal/domain"
)

func newTestStore(t *testing.T) Repository {
	t.Helper()
	repo, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() {
		if err := repo.Close(); err != nil {
			t.Errorf("Failed to close store: %v", err)
		}
	})
	return repo
}

func TestEnsureSessionIdempotent(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	first, err := repo.EnsureSession(ctx, "s1")
	if err != nil {
		t.Fatalf("EnsureSession failed: %v", err)
	}
	if first.SessionID != "s1" {
		t.Errorf("Expected session_id s1, got %q", first.SessionID)
	}

	if err := repo.UpdateGoal(ctx, "s1", "rebuild"); err != nil {
		t.Fatalf("UpdateGoal failed: %v", err)
	}

	second, err := repo.EnsureSession(ctx, "s1")
	if err != nil {
		t.Fatalf("EnsureSession failed on second call: %v", err)
	}
	if second.Goal != "rebuild" {
		t.Errorf("Expected goal to survive re-ensure, got %q", second.Goal)
	}
}

func TestAppendMessageUnknownSession(t *testing.T) {
	repo := newTestStore(t)

	err := repo.AppendMessage(context.Background(), "missing", domain.RoleUser, "hello")
	if !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Expected ErrSessionNotFound, got %v", err)
	}
}

func TestRecentMessagesOrdering(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	if _, err := repo.EnsureSession(ctx, "s1"); err != nil {
		t.Fatalf("EnsureSession failed: %v", err)
	}

	contents := []string{"first", "second", "third", "fourth"}
	for i, c := range contents {
		role := domain.RoleUser
		if i%2 == 1 {
			role = domain.RoleAssistant
		}
		if err := repo.AppendMessage(ctx, "s1", role, c); err != nil {
			t.Fatalf("AppendMessage %d failed: %v", i, err)
		}
	}

	msgs, err := repo.RecentMessages(ctx, "s1", 20)
	if err != nil {
		t.Fatalf("RecentMessages failed: %v", err)
	}
	if len(msgs) != 4 {
		t.Fatalf("Expected 4 messages, got %d", len(msgs))
	}
	for i, msg := range msgs {
		if msg.Content != contents[i] {
			t.Errorf("Position %d: expected %q, got %q", i, contents[i], msg.Content)
		}
	}

	// The window keeps the most recent messages, still oldest-first.
	msgs, err = repo.RecentMessages(ctx, "s1", 2)
	if err != nil {
		t.Fatalf("RecentMessages failed: %v", err)
	}
	if len(msgs) != 2 || msgs[0].Content != "third" || msgs[1].Content != "fourth" {
		t.Errorf("Expected [third fourth], got %+v", msgs)
	}
}

func TestRecentMessagesClampsLimit(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	if _, err := repo.EnsureSession(ctx, "s1"); err != nil {
		t.Fatalf("EnsureSession failed: %v", err)
	}
	if err := repo.AppendMessage(ctx, "s1", domain.RoleUser, "hello"); err != nil {
		t.Fatalf("AppendMessage failed: %v", err)
	}

	msgs, err := repo.RecentMessages(ctx, "s1", 0)
	if err != nil {
		t.Fatalf("RecentMessages with limit 0 failed: %v", err)
	}
	if len(msgs) != 1 {
		t.Errorf("Expected clamped limit to return 1 message, got %d", len(msgs))
	}
}

func TestRecordLeadScoreMonotone(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	if _, err := repo.EnsureSession(ctx, "s1"); err != nil {
		t.Fatalf("EnsureSession failed: %v", err)
	}

	out, err := repo.RecordLead(ctx, "s1", 4, []string{"has_email", "hire_intent"}, 3)
	if err != nil {
		t.Fatalf("RecordLead failed: %v", err)
	}
	if out.Score != 4 || !out.BecameLeadNow {
		t.Errorf("Expected score 4 and lead transition, got %+v", out)
	}

	// A lower score must not shrink the stored score, and signals grow as a
	// union.
	out, err = repo.RecordLead(ctx, "s1", 2, []string{"has_website"}, 3)
	if err != nil {
		t.Fatalf("RecordLead failed: %v", err)
	}
	if out.Score != 4 {
		t.Errorf("Expected score to stay at 4, got %d", out.Score)
	}
	if out.BecameLeadNow {
		t.Error("Expected lead transition to fire only once")
	}
	want := map[string]bool{"has_email": true, "hire_intent": true, "has_website": true}
	if len(out.Signals) != len(want) {
		t.Fatalf("Expected 3 signals, got %v", out.Signals)
	}
	for _, sig := range out.Signals {
		if !want[sig] {
			t.Errorf("Unexpected signal %q", sig)
		}
	}
}

func TestRecordLeadBelowThreshold(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	if _, err := repo.EnsureSession(ctx, "s1"); err != nil {
		t.Fatalf("EnsureSession failed: %v", err)
	}

	out, err := repo.RecordLead(ctx, "s1", 2, []string{"has_website"}, 3)
	if err != nil {
		t.Fatalf("RecordLead failed: %v", err)
	}
	if out.BecameLeadNow || out.ShouldNotify {
		t.Errorf("Expected no transition below threshold, got %+v", out)
	}

	// Crossing later still fires the edge exactly once.
	out, err = repo.RecordLead(ctx, "s1", 3, []string{"has_email"}, 3)
	if err != nil {
		t.Fatalf("RecordLead failed: %v", err)
	}
	if !out.BecameLeadNow || !out.ShouldNotify {
		t.Errorf("Expected transition on crossing, got %+v", out)
	}
}

func TestLeadNotifyLatch(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	if _, err := repo.EnsureSession(ctx, "s1"); err != nil {
		t.Fatalf("EnsureSession failed: %v", err)
	}

	out, err := repo.RecordLead(ctx, "s1", 5, []string{"has_email"}, 3)
	if err != nil {
		t.Fatalf("RecordLead failed: %v", err)
	}
	if !out.ShouldNotify {
		t.Fatal("Expected ShouldNotify on transition")
	}

	// Send failed: latch not set, so a later signal asks for a retry.
	out, err = repo.RecordLead(ctx, "s1", 5, nil, 3)
	if err != nil {
		t.Fatalf("RecordLead failed: %v", err)
	}
	if !out.ShouldNotify {
		t.Error("Expected retry request while email unsent")
	}

	if err := repo.MarkLeadEmailSent(ctx, "s1"); err != nil {
		t.Fatalf("MarkLeadEmailSent failed: %v", err)
	}

	out, err = repo.RecordLead(ctx, "s1", 9, []string{"hire_intent"}, 3)
	if err != nil {
		t.Fatalf("RecordLead failed: %v", err)
	}
	if out.ShouldNotify {
		t.Error("Expected notification suppressed after successful send")
	}
	if out.Score != 9 {
		t.Errorf("Expected score updates to continue after latch, got %d", out.Score)
	}
}

func TestInsertLead(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	if _, err := repo.EnsureSession(ctx, "s1"); err != nil {
		t.Fatalf("EnsureSession failed: %v", err)
	}

	id, err := repo.InsertLead(ctx, &domain.Lead{
		SessionID:    "s1",
		BusinessName: "Acme Bakery",
		WebsiteURL:   "https://acme.example",
		Email:        "owner@acme.example",
	})
	if err != nil {
		t.Fatalf("InsertLead failed: %v", err)
	}
	if id <= 0 {
		t.Errorf("Expected positive lead id, got %d", id)
	}
}
