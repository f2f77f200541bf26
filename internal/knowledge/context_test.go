package knowledge

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/relaylabs/relay-gateway/internal/domain"
)

func TestBuildContextEmpty(t *testing.T) {
	if got := BuildContext(nil); got != "" {
		t.Errorf("Expected empty context, got %q", got)
	}
}

func TestBuildContextFormat(t *testing.T) {
	chunks := []domain.KnowledgeChunk{
		{Title: "Pricing", Text: "Rebuilds cost  $1,000\n to $1,500.", Similarity: 0.91},
		{Title: "", Text: "Turnaround is 7 days.", Similarity: 0.75},
	}

	got := BuildContext(chunks)

	if !strings.Contains(got, "[#1 | sim=0.910] Pricing") {
		t.Errorf("Expected annotated first block, got %q", got)
	}
	if !strings.Contains(got, "Rebuilds cost $1,000 to $1,500.") {
		t.Errorf("Expected collapsed whitespace, got %q", got)
	}
	if !strings.Contains(got, "[#2 | sim=0.750] Untitled") {
		t.Errorf("Expected untitled placeholder, got %q", got)
	}
	if !strings.Contains(got, "\n\n---\n\n") {
		t.Errorf("Expected block separator, got %q", got)
	}
}

func TestBuildContextCapsChunksAndLength(t *testing.T) {
	long := strings.Repeat("x", 1000)
	var chunks []domain.KnowledgeChunk
	for i := 0; i < 6; i++ {
		chunks = append(chunks, domain.KnowledgeChunk{Title: "t", Text: long})
	}

	got := BuildContext(chunks)

	if strings.Count(got, "---") != maxContextChunks-1 {
		t.Errorf("Expected %d blocks, got %d separators", maxContextChunks, strings.Count(got, "---"))
	}
	for _, block := range strings.Split(got, "\n\n---\n\n") {
		lines := strings.SplitN(block, "\n", 2)
		if len(lines) == 2 && len(lines[1]) > maxChunkChars {
			t.Errorf("Expected chunk text capped at %d chars, got %d", maxChunkChars, len(lines[1]))
		}
	}
}

func TestBuildContextMultibyteTruncation(t *testing.T) {
	// Chunk text over the cap must be cut on a rune boundary, not mid-rune.
	chunks := []domain.KnowledgeChunk{{Title: "t", Text: "a" + strings.Repeat("好", 300)}}

	got := BuildContext(chunks)

	if !utf8.ValidString(got) {
		t.Fatalf("Expected valid UTF-8 after truncation, got %q", got)
	}
	lines := strings.SplitN(got, "\n", 2)
	if len(lines) != 2 {
		t.Fatalf("Expected annotated block, got %q", got)
	}
	if len(lines[1]) > maxChunkChars {
		t.Errorf("Expected chunk text capped at %d bytes, got %d", maxChunkChars, len(lines[1]))
	}
}

func TestBuildFactsContextMultibyteTruncation(t *testing.T) {
	facts := []domain.AssistantFact{{Key: "long", Value: "a" + strings.Repeat("好", 200)}}

	got := BuildFactsContext(facts)

	if !utf8.ValidString(got) {
		t.Fatalf("Expected valid UTF-8 after truncation, got %q", got)
	}
	if !strings.HasSuffix(got, "...") {
		t.Errorf("Expected ellipsis suffix, got %q", got)
	}
}

func TestBuildFactsContext(t *testing.T) {
	facts := []domain.AssistantFact{
		{Key: "pricing_floor", Value: "Projects start at $1,000."},
		{Key: "long", Value: strings.Repeat("y", 400)},
	}

	got := BuildFactsContext(facts)

	lines := strings.Split(got, "\n")
	if len(lines) != 2 {
		t.Fatalf("Expected one bullet per fact, got %q", got)
	}
	if !strings.HasSuffix(lines[1], "...") {
		t.Errorf("Expected long fact truncated with ellipsis, got %q", lines[1])
	}
	if got := len(lines[1]) - len("- long: "); got > maxFactChars {
		t.Errorf("Expected fact value bounded at %d chars, got %d", maxFactChars, got)
	}
}

func TestChunkTagsDedup(t *testing.T) {
	chunks := []domain.KnowledgeChunk{
		{Tags: []string{"pricing", "scope"}},
		{Tags: []string{"scope", "timeline"}},
		{Tags: nil},
	}

	got := ChunkTags(chunks)

	want := []string{"pricing", "scope", "timeline"}
	if len(got) != len(want) {
		t.Fatalf("Expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Position %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}
