package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/relaylabs/relay-gateway/internal/domain"
	"github.com/relaylabs/relay-gateway/internal/llm"
)

type fakeSummarizer struct {
	summary string
	err     error
}

func (f *fakeSummarizer) Complete(_ context.Context, _ []llm.Message, _ int) (string, error) {
	return f.summary, f.err
}

func newLeadsHandler(repo *fakeRepo, summarizer Summarizer) *LeadsHandler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewLeadsHandler(repo, summarizer, testConfig(), logger)
}

func postLead(t *testing.T, h *LeadsHandler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/leads", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.Submit(w, req)
	return w
}

const validLeadBody = `{
	"sessionId": "sess-1",
	"businessName": "Acme Bakery",
	"websiteUrl": "https://acme.example",
	"email": "owner@acme.example"
}`

func TestLeadSubmit(t *testing.T) {
	repo := newFakeRepo()
	if _, err := repo.EnsureSession(context.Background(), "sess-1"); err != nil {
		t.Fatalf("EnsureSession failed: %v", err)
	}
	if err := repo.AppendMessage(context.Background(), "sess-1", domain.RoleUser, "need a rebuild"); err != nil {
		t.Fatalf("AppendMessage failed: %v", err)
	}
	h := newLeadsHandler(repo, &fakeSummarizer{summary: "Visitor wants a bakery site rebuild."})

	w := postLead(t, h, validLeadBody)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		OK     bool  `json:"ok"`
		LeadID int64 `json:"leadId"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if !resp.OK || resp.LeadID != 1 {
		t.Errorf("Expected ok with lead id 1, got %+v", resp)
	}
}

func TestLeadSubmitInvalid(t *testing.T) {
	h := newLeadsHandler(newFakeRepo(), &fakeSummarizer{})

	cases := []string{
		`not json`,
		`{"sessionId":"sess-1","businessName":"","websiteUrl":"https://a.example","email":"a@b.com"}`,
		`{"sessionId":"sess-1","businessName":"Acme","websiteUrl":"ftp://a.example","email":"a@b.com"}`,
		`{"sessionId":"sess-1","businessName":"Acme","websiteUrl":"not a url","email":"a@b.com"}`,
		`{"sessionId":"sess-1","businessName":"Acme","websiteUrl":"https://a.example","email":"nope"}`,
		`{"sessionId":"bad id!","businessName":"Acme","websiteUrl":"https://a.example","email":"a@b.com"}`,
	}
	for _, body := range cases {
		if w := postLead(t, h, body); w.Code != http.StatusBadRequest {
			t.Errorf("Body %.60q: expected 400, got %d", body, w.Code)
		}
	}
}

func TestLeadSubmitSummaryFailureTolerated(t *testing.T) {
	repo := newFakeRepo()
	if _, err := repo.EnsureSession(context.Background(), "sess-1"); err != nil {
		t.Fatalf("EnsureSession failed: %v", err)
	}
	if err := repo.AppendMessage(context.Background(), "sess-1", domain.RoleUser, "hello"); err != nil {
		t.Fatalf("AppendMessage failed: %v", err)
	}
	h := newLeadsHandler(repo, &fakeSummarizer{err: errors.New("oracle down")})

	w := postLead(t, h, validLeadBody)
	if w.Code != http.StatusOK {
		t.Errorf("Expected summary failure tolerated, got %d", w.Code)
	}
}
