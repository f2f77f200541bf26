package chat

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/relaylabs/relay-gateway/internal/api"
	"github.com/relaylabs/relay-gateway/internal/config"
	"github.com/relaylabs/relay-gateway/internal/domain"
	"github.com/relaylabs/relay-gateway/internal/llm"
	"github.com/relaylabs/relay-gateway/internal/store"
)

const (
	maxLeadNameLen     = 120
	maxBusinessNameLen = 200
	maxNotesLen        = 2000
	summaryTurns       = 12
	summaryMaxChars    = 4000
)

// Summarizer produces the short transcript summary attached to a lead.
type Summarizer interface {
	Complete(ctx context.Context, messages []llm.Message, maxTokens int) (string, error)
}

// LeadsHandler handles explicit lead-form submissions.
type LeadsHandler struct {
	repo       store.Repository
	summarizer Summarizer
	cfg        *config.Config
	logger     *slog.Logger
}

// NewLeadsHandler creates the lead-form HTTP handler.
func NewLeadsHandler(repo store.Repository, summarizer Summarizer, cfg *config.Config, logger *slog.Logger) *LeadsHandler {
	return &LeadsHandler{repo: repo, summarizer: summarizer, cfg: cfg, logger: logger}
}

// RegisterRoutes mounts the leads endpoint.
func (h *LeadsHandler) RegisterRoutes(r chi.Router) {
	r.Post("/api/leads", h.Submit)
}

type leadRequest struct {
	SessionID    string `json:"sessionId"`
	Name         string `json:"name,omitempty"`
	BusinessName string `json:"businessName"`
	WebsiteURL   string `json:"websiteUrl"`
	Email        string `json:"email"`
	Notes        string `json:"notes,omitempty"`
}

func (req *leadRequest) validate() bool {
	if !sessionIDRe.MatchString(req.SessionID) {
		return false
	}
	if req.BusinessName == "" || len(req.BusinessName) > maxBusinessNameLen {
		return false
	}
	if len(req.Name) > maxLeadNameLen || len(req.Notes) > maxNotesLen {
		return false
	}
	if !emailRe.MatchString(req.Email) {
		return false
	}
	u, err := url.Parse(req.WebsiteURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return false
	}
	return true
}

// Submit validates and stores one lead-form submission, attaching a
// best-effort transcript summary.
func (h *LeadsHandler) Submit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req leadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "Invalid input")
		return
	}
	if !req.validate() {
		api.Error(w, http.StatusBadRequest, "Invalid input")
		return
	}

	lead := &domain.Lead{
		SessionID:         req.SessionID,
		Name:              req.Name,
		BusinessName:      req.BusinessName,
		WebsiteURL:        req.WebsiteURL,
		Email:             req.Email,
		Notes:             req.Notes,
		TranscriptSummary: h.summarize(r.Context(), req.SessionID),
	}

	leadID, err := h.repo.InsertLead(r.Context(), lead)
	if err != nil {
		h.logger.Error("lead insert failed", "session_id", req.SessionID, "error", err)
		api.ErrorWithDetail(w, http.StatusInternalServerError, "Server error", h.errDetail(err))
		return
	}

	api.JSON(w, http.StatusOK, map[string]interface{}{"ok": true, "leadId": leadID})
}

// summarize condenses the recent transcript into 1-2 sentences for internal
// lead notes. Any failure yields an empty summary, never a failed
// submission.
func (h *LeadsHandler) summarize(ctx context.Context, sessionID string) string {
	recent, err := h.repo.RecentMessages(ctx, sessionID, summaryTurns)
	if err != nil || len(recent) == 0 {
		return ""
	}

	var sb strings.Builder
	for _, m := range recent {
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(strings.ToUpper(m.Role))
		sb.WriteString(": ")
		sb.WriteString(m.Content)
	}
	transcript := sb.String()
	if len(transcript) > summaryMaxChars {
		transcript = transcript[:summaryMaxChars]
	}
	if strings.TrimSpace(transcript) == "" {
		return ""
	}

	summary, err := h.summarizer.Complete(ctx, []llm.Message{
		{
			Role:    llm.RoleSystem,
			Content: "Summarize the chat in 1-2 short sentences for internal lead notes. Do not include sensitive data beyond what the user shared.",
		},
		{Role: llm.RoleUser, Content: transcript},
	}, h.cfg.LLM.MaxChatTokens)
	if err != nil {
		h.logger.Warn("transcript summary failed", "session_id", sessionID, "error", err)
		return ""
	}
	return strings.TrimSpace(summary)
}

func (h *LeadsHandler) errDetail(err error) string {
	if h.cfg.IsDevelopment() {
		return err.Error()
	}
	return ""
}
