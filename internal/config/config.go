// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration. It is constructed once at
// startup and passed into each component; business logic never reads the
// process environment directly.
type Config struct {
	Port            string
	ClientOrigin    string
	SessionDBPath   string
	KnowledgeDBPath string
	LLM             LLMConfig
	Retrieval       RetrievalConfig
	Lead            LeadConfig
	SMTP            SMTPConfig
	RateLimit       RateLimitConfig
}

// LLMConfig selects the completion and embedding oracle models.
type LLMConfig struct {
	Model         string
	EmbedModel    string
	MaxChatTokens int
}

// RetrievalConfig tunes knowledge retrieval and the context cache.
type RetrievalConfig struct {
	MatchCount      int
	ForcedExtra     int // widening added to MatchCount when a topic forces retrieval
	MinSimilarity   float64
	EmbeddingDims   int
	MinQueryWords   int // below this, a cached context may be reused
	CacheTTL        time.Duration
	CacheMaxEntries int
}

// LeadConfig controls lead scoring and alerting.
type LeadConfig struct {
	Threshold  int
	AlertEmail string
}

// SMTPConfig holds outbound mail settings. An empty Host disables sending.
type SMTPConfig struct {
	Host string
	Port int
	User string
	Pass string
	From string
}

// RateLimitConfig bounds chat requests per client.
type RateLimitConfig struct {
	RequestsPerWindow int
	Window            time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:            getEnv("PORT", "8787"),
		ClientOrigin:    getEnv("CLIENT_ORIGIN", "http://localhost:3000"),
		SessionDBPath:   getEnv("SESSION_DB_PATH", "./data/sessions.db"),
		KnowledgeDBPath: getEnv("KNOWLEDGE_DB_PATH", "./data/knowledge.db"),
		LLM: LLMConfig{
			Model:         getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			EmbedModel:    getEnv("OPENAI_EMBED_MODEL", "text-embedding-3-small"),
			MaxChatTokens: getEnvInt("MAX_CHAT_TOKENS", 180),
		},
		Retrieval: RetrievalConfig{
			MatchCount:      getEnvInt("RAG_MATCH_COUNT", 6),
			ForcedExtra:     getEnvInt("RAG_FORCED_EXTRA", 2),
			MinSimilarity:   getEnvFloat("RAG_MIN_SIMILARITY", 0.0),
			EmbeddingDims:   getEnvInt("RAG_EMBEDDING_DIMS", 1536),
			MinQueryWords:   getEnvInt("RAG_MIN_QUERY_WORDS", 3),
			CacheTTL:        getEnvDuration("CONTEXT_CACHE_TTL", 5*time.Minute),
			CacheMaxEntries: getEnvInt("CONTEXT_CACHE_MAX_ENTRIES", 120),
		},
		Lead: LeadConfig{
			Threshold:  getEnvInt("LEAD_THRESHOLD", 3),
			AlertEmail: getEnv("LEAD_ALERT_EMAIL", ""),
		},
		SMTP: SMTPConfig{
			Host: getEnv("SMTP_HOST", ""),
			Port: getEnvInt("SMTP_PORT", 587),
			User: getEnv("SMTP_USER", ""),
			Pass: getEnv("SMTP_PASS", ""),
			From: getEnv("EMAIL_FROM", "Relay <no-reply@relaylabs.dev>"),
		},
		RateLimit: RateLimitConfig{
			RequestsPerWindow: getEnvInt("RATE_LIMIT_REQUESTS", 60),
			Window:            getEnvDuration("RATE_LIMIT_WINDOW", 15*time.Minute),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are sane.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.SessionDBPath == "" {
		return fmt.Errorf("SESSION_DB_PATH cannot be empty")
	}
	if c.KnowledgeDBPath == "" {
		return fmt.Errorf("KNOWLEDGE_DB_PATH cannot be empty")
	}
	if c.LLM.Model == "" || c.LLM.EmbedModel == "" {
		return fmt.Errorf("OPENAI_MODEL and OPENAI_EMBED_MODEL cannot be empty")
	}
	if c.LLM.MaxChatTokens <= 0 {
		return fmt.Errorf("MAX_CHAT_TOKENS must be > 0")
	}
	if c.Retrieval.MatchCount < 1 || c.Retrieval.MatchCount > 20 {
		return fmt.Errorf("RAG_MATCH_COUNT must be in 1..20")
	}
	if c.Retrieval.EmbeddingDims <= 0 {
		return fmt.Errorf("RAG_EMBEDDING_DIMS must be > 0")
	}
	if c.Retrieval.CacheMaxEntries <= 0 {
		return fmt.Errorf("CONTEXT_CACHE_MAX_ENTRIES must be > 0")
	}
	if c.Lead.Threshold <= 0 {
		return fmt.Errorf("LEAD_THRESHOLD must be > 0")
	}
	if c.RateLimit.RequestsPerWindow <= 0 || c.RateLimit.Window <= 0 {
		return fmt.Errorf("rate limit settings must be > 0")
	}
	return nil
}

// MailConfigured returns true if enough SMTP settings are present to send
// lead alerts.
func (c *Config) MailConfigured() bool {
	return c.SMTP.Host != "" && c.SMTP.Port > 0 && c.Lead.AlertEmail != ""
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	if env := os.Getenv("APP_ENV"); env != "" {
		return env == "development"
	}
	return strings.Contains(c.ClientOrigin, "localhost") ||
		strings.Contains(c.ClientOrigin, "127.0.0.1")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	value, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(value) == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return f
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
