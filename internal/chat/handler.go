package chat

import (
	"encoding/json"
	"net"
	"net/http"
	"regexp"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/relaylabs/relay-gateway/internal/api"
	"github.com/relaylabs/relay-gateway/internal/config"
)

const (
	maxBodyBytes   = 1 << 20
	maxPagePathLen = 120
)

// Client-supplied session IDs are constrained so they can be used directly
// as cache and lock keys.
var sessionIDRe = regexp.MustCompile(`^[A-Za-z0-9._:-]{1,128}$`)

// Handler exposes the chat pipeline over HTTP.
type Handler struct {
	service *Service
	limiter *RateLimiter
	cfg     *config.Config
}

// NewHandler creates the chat HTTP handler.
func NewHandler(service *Service, limiter *RateLimiter, cfg *config.Config) *Handler {
	return &Handler{service: service, limiter: limiter, cfg: cfg}
}

// RegisterRoutes mounts the chat endpoint.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/api/chat", h.Chat)
}

// ndjsonFrame is one line of the streaming wire protocol.
type ndjsonFrame struct {
	Type      string `json:"type"`
	Token     string `json:"token,omitempty"`
	OK        *bool  `json:"ok,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
	Reply     string `json:"reply,omitempty"`
	Meta      *Meta  `json:"meta,omitempty"`
	Error     string `json:"error,omitempty"`
	Detail    string `json:"detail,omitempty"`
}

// Chat handles one chat turn, buffered or streamed depending on the
// request.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	if !h.limiter.Allow(clientKey(r)) {
		api.Error(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "Invalid input")
		return
	}

	message := strings.TrimSpace(req.Message)
	if message == "" || len(message) > maxMessageLen {
		api.Error(w, http.StatusBadRequest, "Invalid input")
		return
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	} else if !sessionIDRe.MatchString(sessionID) {
		api.Error(w, http.StatusBadRequest, "Invalid input")
		return
	}

	pagePath := req.PagePath
	if len(pagePath) > maxPagePathLen {
		pagePath = pagePath[:maxPagePathLen]
	}

	turn := Turn{SessionID: sessionID, Message: message, PagePath: pagePath}

	if req.Stream {
		h.streamTurn(w, r, turn)
		return
	}
	h.bufferTurn(w, r, turn)
}

// bufferTurn drains the event stream and responds with a single JSON body.
// Buffered and streamed replies go through the identical pipeline.
func (h *Handler) bufferTurn(w http.ResponseWriter, r *http.Request, turn Turn) {
	var final *FinalReply
	for event, err := range h.service.Respond(r.Context(), turn) {
		if err != nil {
			api.ErrorWithDetail(w, http.StatusInternalServerError, "Server error", h.errDetail(err))
			return
		}
		if event.Final != nil {
			final = event.Final
		}
	}
	if final == nil {
		api.Error(w, http.StatusInternalServerError, "Server error")
		return
	}

	api.JSON(w, http.StatusOK, map[string]interface{}{
		"ok":        true,
		"sessionId": final.SessionID,
		"reply":     final.Reply,
		"meta":      final.Meta,
	})
}

// streamTurn writes NDJSON frames: zero or more token frames, then exactly
// one terminal final or error frame. Nothing is written after the terminal
// frame.
func (h *Handler) streamTurn(w http.ResponseWriter, r *http.Request, turn Turn) {
	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache, no-transform")
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)
	enc := json.NewEncoder(w)
	writeFrame := func(frame ndjsonFrame) {
		if err := enc.Encode(frame); err != nil {
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}

	for event, err := range h.service.Respond(r.Context(), turn) {
		if err != nil {
			ok := false
			writeFrame(ndjsonFrame{Type: "error", OK: &ok, Error: "Server error", Detail: h.errDetail(err)})
			return
		}
		if event.Final != nil {
			ok := true
			writeFrame(ndjsonFrame{
				Type:      "final",
				OK:        &ok,
				SessionID: event.Final.SessionID,
				Reply:     event.Final.Reply,
				Meta:      &event.Final.Meta,
			})
			return
		}
		if event.Token != "" {
			writeFrame(ndjsonFrame{Type: "token", Token: event.Token})
		}
	}
}

// errDetail exposes the underlying error only in development.
func (h *Handler) errDetail(err error) string {
	if h.cfg.IsDevelopment() {
		return err.Error()
	}
	return ""
}

// clientKey is the rate-limit key: the client IP with any port stripped.
// chi's RealIP middleware has already resolved proxy headers.
func clientKey(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
