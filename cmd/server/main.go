// Relay - Conversational Lead-Qualification Gateway
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/relaylabs/relay-gateway/internal/api"
	"github.com/relaylabs/relay-gateway/internal/chat"
	"github.com/relaylabs/relay-gateway/internal/config"
	"github.com/relaylabs/relay-gateway/internal/knowledge"
	"github.com/relaylabs/relay-gateway/internal/llm"
	"github.com/relaylabs/relay-gateway/internal/mailer"
	"github.com/relaylabs/relay-gateway/internal/middleware"
	"github.com/relaylabs/relay-gateway/internal/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment())

	// Initialize dependencies.
	repo, err := store.NewSQLite(cfg.SessionDBPath)
	if err != nil {
		slog.Error("Failed to initialize session database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close session store", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Session database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Session database connected")

	kb, err := knowledge.NewStore(cfg.KnowledgeDBPath, cfg.Retrieval.EmbeddingDims)
	if err != nil {
		slog.Error("Failed to initialize knowledge database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := kb.Close(); closeErr != nil {
			slog.Error("Failed to close knowledge store", "error", closeErr)
		}
	}()

	if err := kb.Ping(context.Background()); err != nil {
		slog.Error("Knowledge database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Knowledge database connected", "dims", cfg.Retrieval.EmbeddingDims)

	oracle, err := llm.New(cfg.LLM.Model, cfg.LLM.EmbedModel)
	if err != nil {
		slog.Error("Failed to initialize completion client", "error", err)
		os.Exit(1)
	}

	notifier := mailer.New(cfg)
	if !cfg.MailConfigured() {
		slog.Info("SMTP not configured, lead alerts disabled")
	}

	// Initialize services.
	retriever := knowledge.NewRetriever(oracle, kb,
		cfg.Retrieval.MatchCount, cfg.Retrieval.ForcedExtra, cfg.Retrieval.MinSimilarity)
	cache := knowledge.NewContextCache(cfg.Retrieval.CacheTTL, cfg.Retrieval.CacheMaxEntries)
	service := chat.NewService(repo, retriever, kb, cache, oracle, notifier, cfg, logger)

	// Initialize handlers.
	limiter := chat.NewRateLimiter(cfg.RateLimit.RequestsPerWindow, cfg.RateLimit.Window)
	chatHandler := chat.NewHandler(service, limiter, cfg)
	leadsHandler := chat.NewLeadsHandler(repo, oracle, cfg, logger)
	healthHandler := api.NewHealthHandler(repo, kb)

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS([]string{cfg.ClientOrigin}))

	healthHandler.RegisterHealth(r)
	chatHandler.RegisterRoutes(r)
	leadsHandler.RegisterRoutes(r)

	// Create server.
	// Note: NDJSON streaming requires long writes (no WriteTimeout).
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // 0 = no timeout for streaming support
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}
