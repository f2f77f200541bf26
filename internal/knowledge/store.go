// Package knowledge provides read-only access to the knowledge base:
// vector-similarity chunk retrieval and curated assistant facts.
package knowledge

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"time"

	vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
	"github.com/relaylabs/relay-gateway/internal/domain"
)

func init() {
	// Register the sqlite-vec extension with the go-sqlite3 driver.
	vec.Auto()
}

const (
	minMatchCount = 1
	maxMatchCount = 20
	maxFactsLimit = 50
)

// Store provides similarity search over KB chunks and access to curated
// facts. The gateway never writes chunks or facts; seeding happens offline.
type Store struct {
	db   *sql.DB
	dims int
}

// NewStore opens the knowledge database and ensures the schema exists so an
// empty deployment still starts cleanly.
func NewStore(dbPath string, embeddingDims int) (*Store, error) {
	if embeddingDims <= 0 {
		return nil, fmt.Errorf("invalid embedding dims: %d", embeddingDims)
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create knowledge directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open knowledge database: %w", err)
	}
	db.SetMaxOpenConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping knowledge database: %w", err)
	}

	s := &Store{db: db, dims: embeddingDims}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize knowledge schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema() error {
	schema := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS kb_chunks (
		chunk_id INTEGER PRIMARY KEY,
		doc_id TEXT NOT NULL,
		chunk_index INTEGER NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		chunk_text TEXT NOT NULL,
		tags TEXT NOT NULL DEFAULT '[]',
		source TEXT NOT NULL DEFAULT ''
	);
	CREATE VIRTUAL TABLE IF NOT EXISTS vec_kb_chunks USING vec0(
		embedding float[%d],
		chunk_id INTEGER
	);
	CREATE TABLE IF NOT EXISTS assistant_facts (
		fact_key TEXT PRIMARY KEY,
		fact_value TEXT NOT NULL,
		tags TEXT NOT NULL DEFAULT '[]',
		priority INTEGER NOT NULL DEFAULT 100,
		updated_at INTEGER NOT NULL DEFAULT 0
	);
	`, s.dims)
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// SimilaritySearch returns the matchCount chunks nearest to queryEmbedding,
// highest similarity first. minSimilarity, when non-nil, is applied as a
// post-filter on the returned rows because the distance function cannot
// push the cutoff down. A nil tags filter matches everything.
func (s *Store) SimilaritySearch(ctx context.Context, queryEmbedding []float32, matchCount int, minSimilarity *float64, tags []string) ([]domain.KnowledgeChunk, error) {
	if len(queryEmbedding) != s.dims {
		return nil, fmt.Errorf("query embedding has %d dims, want %d", len(queryEmbedding), s.dims)
	}
	if matchCount < minMatchCount {
		matchCount = minMatchCount
	}
	if matchCount > maxMatchCount {
		matchCount = maxMatchCount
	}

	queryBlob := encodeFloat32Blob(queryEmbedding)

	query := `
		SELECT c.chunk_id, c.doc_id, c.chunk_index, c.title, c.chunk_text,
		       c.tags, c.source,
		       vec_distance_cosine(v.embedding, ?) AS distance
		FROM vec_kb_chunks v
		JOIN kb_chunks c ON c.chunk_id = v.chunk_id
		ORDER BY distance ASC
		LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, queryBlob, matchCount)
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close similarity rows", "error", closeErr)
		}
	}()

	var chunks []domain.KnowledgeChunk
	for rows.Next() {
		var chunk domain.KnowledgeChunk
		var tagsJSON string
		var distance float64
		if err := rows.Scan(
			&chunk.ChunkID, &chunk.DocID, &chunk.ChunkIndex, &chunk.Title,
			&chunk.Text, &tagsJSON, &chunk.Source, &distance,
		); err != nil {
			return nil, fmt.Errorf("scan chunk row: %w", err)
		}
		if err := json.Unmarshal([]byte(tagsJSON), &chunk.Tags); err != nil {
			chunk.Tags = nil
		}
		// Cosine distance is 1 - similarity.
		chunk.Similarity = 1.0 - distance
		if minSimilarity != nil && !math.IsNaN(*minSimilarity) && chunk.Similarity < *minSimilarity {
			continue
		}
		if len(tags) > 0 && !hasAnyTag(chunk.Tags, tags) {
			continue
		}
		chunks = append(chunks, chunk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chunk rows: %w", err)
	}
	return chunks, nil
}

// Facts returns curated assistant facts ordered by priority. limit is
// clamped to 1..50.
func (s *Store) Facts(ctx context.Context, limit int) ([]domain.AssistantFact, error) {
	if limit < 1 {
		limit = 1
	}
	if limit > maxFactsLimit {
		limit = maxFactsLimit
	}

	query := `
		SELECT fact_key, fact_value, tags, priority
		FROM assistant_facts
		ORDER BY priority ASC, updated_at DESC
		LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query assistant facts: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close facts rows", "error", closeErr)
		}
	}()

	var facts []domain.AssistantFact
	for rows.Next() {
		var fact domain.AssistantFact
		var tagsJSON string
		if err := rows.Scan(&fact.Key, &fact.Value, &tagsJSON, &fact.Priority); err != nil {
			return nil, fmt.Errorf("scan fact row: %w", err)
		}
		if err := json.Unmarshal([]byte(tagsJSON), &fact.Tags); err != nil {
			fact.Tags = nil
		}
		facts = append(facts, fact)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate fact rows: %w", err)
	}
	return facts, nil
}

// Ping verifies database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close knowledge database: %w", err)
	}
	return nil
}

// encodeFloat32Blob encodes an embedding as the little-endian float32 blob
// format sqlite-vec expects.
func encodeFloat32Blob(values []float32) []byte {
	buf := make([]byte, len(values)*4)
	for i, v := range values {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func hasAnyTag(chunkTags, wanted []string) bool {
	for _, w := range wanted {
		for _, t := range chunkTags {
			if t == w {
				return true
			}
		}
	}
	return false
}
