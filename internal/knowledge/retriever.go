package knowledge

import (
	"context"
	"fmt"

	"github.com/relaylabs/relay-gateway/internal/domain"
)

// Embedder turns text into a query embedding.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Searcher runs a vector similarity search over the knowledge base.
type Searcher interface {
	SimilaritySearch(ctx context.Context, queryEmbedding []float32, matchCount int, minSimilarity *float64, tags []string) ([]domain.KnowledgeChunk, error)
}

// Retriever composes embedding and similarity search into one retrieval
// step. Callers treat retrieval errors as degradation, not request failure.
type Retriever struct {
	embedder      Embedder
	searcher      Searcher
	matchCount    int
	forcedExtra   int
	minSimilarity float64
}

// NewRetriever wires an embedder and searcher with the configured knobs.
func NewRetriever(embedder Embedder, searcher Searcher, matchCount, forcedExtra int, minSimilarity float64) *Retriever {
	if matchCount < 1 {
		matchCount = 1
	}
	return &Retriever{
		embedder:      embedder,
		searcher:      searcher,
		matchCount:    matchCount,
		forcedExtra:   forcedExtra,
		minSimilarity: minSimilarity,
	}
}

// Retrieve embeds the message and searches the knowledge base. When forced
// (the classifier matched a high-value topic), the similarity bar is dropped
// and the match count widened, trading precision for recall.
func (r *Retriever) Retrieve(ctx context.Context, message string, forced bool) ([]domain.KnowledgeChunk, error) {
	embedding, err := r.embedder.Embed(ctx, message)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	matchCount := r.matchCount
	minSim := &r.minSimilarity
	if forced {
		matchCount += r.forcedExtra
		minSim = nil
	}

	chunks, err := r.searcher.SimilaritySearch(ctx, embedding, matchCount, minSim, nil)
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}
	return chunks, nil
}
