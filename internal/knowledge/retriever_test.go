package knowledge

import (
	"context"
	"errors"
	"testing"

	"github.com/relaylabs/relay-gateway/internal/domain"
)

type fakeEmbedder struct {
	embedding []float32
	err       error
}

func (f *fakeEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	return f.embedding, f.err
}

type fakeSearcher struct {
	chunks []domain.KnowledgeChunk
	err    error

	lastMatchCount int
	lastMinSim     *float64
}

func (f *fakeSearcher) SimilaritySearch(_ context.Context, _ []float32, matchCount int, minSimilarity *float64, _ []string) ([]domain.KnowledgeChunk, error) {
	f.lastMatchCount = matchCount
	f.lastMinSim = minSimilarity
	return f.chunks, f.err
}

func TestRetrieveDefaults(t *testing.T) {
	searcher := &fakeSearcher{chunks: []domain.KnowledgeChunk{{Title: "pricing"}}}
	r := NewRetriever(&fakeEmbedder{embedding: []float32{0.1}}, searcher, 6, 2, 0.25)

	chunks, err := r.Retrieve(context.Background(), "how much?", false)
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if len(chunks) != 1 {
		t.Errorf("Expected 1 chunk, got %d", len(chunks))
	}
	if searcher.lastMatchCount != 6 {
		t.Errorf("Expected match count 6, got %d", searcher.lastMatchCount)
	}
	if searcher.lastMinSim == nil || *searcher.lastMinSim != 0.25 {
		t.Errorf("Expected min similarity 0.25, got %v", searcher.lastMinSim)
	}
}

func TestRetrieveForcedWidens(t *testing.T) {
	searcher := &fakeSearcher{}
	r := NewRetriever(&fakeEmbedder{embedding: []float32{0.1}}, searcher, 6, 2, 0.25)

	if _, err := r.Retrieve(context.Background(), "pricing details", true); err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if searcher.lastMatchCount != 8 {
		t.Errorf("Expected widened match count 8, got %d", searcher.lastMatchCount)
	}
	if searcher.lastMinSim != nil {
		t.Errorf("Expected similarity bar dropped, got %v", searcher.lastMinSim)
	}
}

func TestRetrieveEmbedError(t *testing.T) {
	wantErr := errors.New("embedding unavailable")
	r := NewRetriever(&fakeEmbedder{err: wantErr}, &fakeSearcher{}, 6, 2, 0.25)

	if _, err := r.Retrieve(context.Background(), "hi", false); !errors.Is(err, wantErr) {
		t.Errorf("Expected embed error surfaced, got %v", err)
	}
}

func TestRetrieveSearchError(t *testing.T) {
	wantErr := errors.New("search down")
	r := NewRetriever(&fakeEmbedder{embedding: []float32{0.1}}, &fakeSearcher{err: wantErr}, 6, 2, 0.25)

	if _, err := r.Retrieve(context.Background(), "hi", false); !errors.Is(err, wantErr) {
		t.Errorf("Expected search error surfaced, got %v", err)
	}
}
