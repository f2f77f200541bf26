package chat

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"strings"

	"github.com/relaylabs/relay-gateway/internal/config"
	"github.com/relaylabs/relay-gateway/internal/domain"
	"github.com/relaylabs/relay-gateway/internal/knowledge"
	"github.com/relaylabs/relay-gateway/internal/llm"
	"github.com/relaylabs/relay-gateway/internal/mailer"
	"github.com/relaylabs/relay-gateway/internal/store"
)

// transcriptWindow bounds how much history goes into the prompt.
const transcriptWindow = 20

// maxFacts bounds how many stored assistant facts are folded into the
// baseline context.
const maxFacts = 12

// errStopConsuming signals that the event consumer stopped mid-stream.
var errStopConsuming = errors.New("consumer stopped")

// Completer is the reply oracle. StreamComplete is the primitive; buffered
// replies are produced by draining the same stream.
type Completer interface {
	StreamComplete(ctx context.Context, messages []llm.Message, maxTokens int, emit func(token string) error) (string, error)
}

// KnowledgeRetriever runs one retrieval pass over the knowledge base.
type KnowledgeRetriever interface {
	Retrieve(ctx context.Context, message string, forced bool) ([]domain.KnowledgeChunk, error)
}

// FactsProvider loads stored assistant facts for the baseline context.
type FactsProvider interface {
	Facts(ctx context.Context, limit int) ([]domain.AssistantFact, error)
}

// Service orchestrates one chat turn end to end: persistence, routing,
// retrieval, generation, and lead qualification.
type Service struct {
	repo      store.Repository
	retriever KnowledgeRetriever
	facts     FactsProvider
	cache     *knowledge.ContextCache
	completer Completer
	notifier  mailer.Notifier
	cfg       *config.Config
	logger    *slog.Logger
	locks     *sessionLocks
}

// NewService wires the chat pipeline.
func NewService(
	repo store.Repository,
	retriever KnowledgeRetriever,
	facts FactsProvider,
	cache *knowledge.ContextCache,
	completer Completer,
	notifier mailer.Notifier,
	cfg *config.Config,
	logger *slog.Logger,
) *Service {
	return &Service{
		repo:      repo,
		retriever: retriever,
		facts:     facts,
		cache:     cache,
		completer: completer,
		notifier:  notifier,
		cfg:       cfg,
		logger:    logger,
		locks:     newSessionLocks(),
	}
}

// Respond runs one chat turn and yields its event stream: zero or more
// token events followed by exactly one final event. A non-nil error ends
// the sequence; no final event follows an error and the assistant turn is
// not persisted. Turns for the same session are serialized.
func (s *Service) Respond(ctx context.Context, turn Turn) iter.Seq2[Event, error] {
	return func(yield func(Event, error) bool) {
		release := s.locks.Acquire(turn.SessionID)
		defer release()

		if _, err := s.repo.EnsureSession(ctx, turn.SessionID); err != nil {
			s.logger.Error("session lookup failed", "session_id", turn.SessionID, "error", err)
			yield(Event{}, fmt.Errorf("ensure session: %w", err))
			return
		}
		if err := s.repo.AppendMessage(ctx, turn.SessionID, domain.RoleUser, turn.Message); err != nil {
			s.logger.Error("append user message failed", "session_id", turn.SessionID, "error", err)
			yield(Event{}, fmt.Errorf("append message: %w", err))
			return
		}

		fields := ExtractFields(turn.Message)
		update := ScoreSignals(turn.Message, fields)
		cls := Classify(turn.Message, update)

		chunks := s.retrieve(ctx, turn, cls)
		meta := Meta{UsedKB: len(chunks) > 0, Chunks: []string{}}
		if len(chunks) > 0 {
			meta.Chunks = knowledge.ChunkTags(chunks)
		}

		transcript, err := s.repo.RecentMessages(ctx, turn.SessionID, transcriptWindow)
		if err != nil {
			s.logger.Error("transcript load failed", "session_id", turn.SessionID, "error", err)
			transcript = []domain.ChatMessage{{SessionID: turn.SessionID, Role: domain.RoleUser, Content: turn.Message}}
		}

		var reply string
		if cls.Canned() {
			reply = FinalizeReply(cannedReply(cls), cls)
			meta = Meta{UsedKB: false, Chunks: []string{}}
		} else {
			raw, genErr := s.generate(ctx, cls, chunks, transcript, yield)
			if genErr != nil {
				if errors.Is(genErr, errStopConsuming) {
					return
				}
				s.logger.Error("generation failed", "session_id", turn.SessionID, "error", genErr)
				yield(Event{}, fmt.Errorf("generate reply: %w", genErr))
				return
			}
			reply = FinalizeReply(raw, cls)
		}

		// A disconnected client must not leave a ghost assistant entry.
		if ctx.Err() != nil {
			return
		}
		if err := s.repo.AppendMessage(ctx, turn.SessionID, domain.RoleAssistant, reply); err != nil {
			s.logger.Error("append assistant message failed", "session_id", turn.SessionID, "error", err)
			yield(Event{}, fmt.Errorf("append message: %w", err))
			return
		}

		s.qualifyLead(ctx, turn, update, transcript)

		yield(Event{Final: &FinalReply{SessionID: turn.SessionID, Reply: reply, Meta: meta}}, nil)
	}
}

// retrieve runs the retrieval policy for one turn. Errors degrade the turn
// to a context-free reply; they never fail it.
func (s *Service) retrieve(ctx context.Context, turn Turn, cls Classification) []domain.KnowledgeChunk {
	if cls.Canned() {
		return nil
	}

	if cls.Intent == IntentGeneral && len(strings.Fields(turn.Message)) < s.cfg.Retrieval.MinQueryWords {
		if cached := s.cache.Get(turn.SessionID); cached != nil {
			return cached
		}
	}

	chunks, err := s.retriever.Retrieve(ctx, turn.Message, false)
	if err != nil {
		s.logger.Warn("retrieval failed", "session_id", turn.SessionID, "error", err)
		chunks = nil
	}

	if len(chunks) == 0 && cls.ForceRetrieval {
		chunks, err = s.retriever.Retrieve(ctx, turn.Message, true)
		if err != nil {
			s.logger.Warn("forced retrieval failed", "session_id", turn.SessionID, "error", err)
			return nil
		}
	}

	if len(chunks) > 0 {
		s.cache.Put(turn.SessionID, chunks)
	}
	return chunks
}

// generate streams the oracle reply, forwarding each token to the consumer,
// and returns the accumulated raw text. A consumer stop surfaces as
// errStopConsuming.
func (s *Service) generate(
	ctx context.Context,
	cls Classification,
	chunks []domain.KnowledgeChunk,
	transcript []domain.ChatMessage,
	yield func(Event, error) bool,
) (string, error) {
	factsContext := s.loadFactsContext(ctx)
	kbContext := knowledge.BuildContext(chunks)
	prompt := buildPrompt(factsContext, kbContext, transcript)

	return s.completer.StreamComplete(ctx, prompt, s.cfg.LLM.MaxChatTokens, func(token string) error {
		if !yield(Event{Token: token}, nil) {
			return errStopConsuming
		}
		return nil
	})
}

func (s *Service) loadFactsContext(ctx context.Context) string {
	if s.facts == nil {
		return ""
	}
	facts, err := s.facts.Facts(ctx, maxFacts)
	if err != nil {
		s.logger.Warn("facts load failed", "error", err)
		return ""
	}
	return knowledge.BuildFactsContext(facts)
}

// qualifyLead applies the turn's lead-score update and sends at most one
// alert per session. All failures here are logged and swallowed; lead
// bookkeeping never breaks the conversation.
func (s *Service) qualifyLead(ctx context.Context, turn Turn, update LeadUpdate, transcript []domain.ChatMessage) {
	userTurns := 0
	for _, m := range transcript {
		if m.Role == domain.RoleUser {
			userTurns++
		}
	}
	update = AddEngagementSignal(update, userTurns)
	if update.Score == 0 {
		return
	}

	outcome, err := s.repo.RecordLead(ctx, turn.SessionID, update.Score, update.Signals, s.cfg.Lead.Threshold)
	if err != nil {
		s.logger.Error("lead update failed", "session_id", turn.SessionID, "error", err)
		return
	}
	if outcome.BecameLeadNow {
		s.logger.Info("lead candidate",
			"session_id", turn.SessionID,
			"score", outcome.Score,
			"signals", outcome.Signals,
		)
	}
	if !outcome.ShouldNotify {
		return
	}

	preview := turn.Message
	if len(preview) > previewChars {
		preview = truncateAtRune(preview, previewChars)
	}
	sent := s.notifier.SendLeadAlert(ctx, mailer.LeadAlert{
		SessionID: turn.SessionID,
		Score:     outcome.Score,
		Signals:   outcome.Signals,
		Fields:    update.Fields,
		Preview:   preview,
		PagePath:  turn.PagePath,
	})
	if !sent {
		s.logger.Warn("lead alert not sent; will retry on next transition check", "session_id", turn.SessionID)
		return
	}
	if err := s.repo.MarkLeadEmailSent(ctx, turn.SessionID); err != nil {
		s.logger.Error("marking lead email sent failed", "session_id", turn.SessionID, "error", err)
	}
}
