package knowledge

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/relaylabs/relay-gateway/internal/domain"
)

// Context bounding. These caps are a token-budget control on the prompt,
// not cosmetic truncation.
const (
	maxContextChunks = 4
	maxChunkChars    = 600
	maxFactChars     = 240
)

// BuildContext renders retrieved chunks as a bounded text block for prompt
// injection: top chunks only, each capped in length, similarity annotated.
func BuildContext(chunks []domain.KnowledgeChunk) string {
	if len(chunks) == 0 {
		return ""
	}
	if len(chunks) > maxContextChunks {
		chunks = chunks[:maxContextChunks]
	}

	blocks := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		title := strings.TrimSpace(chunk.Title)
		if title == "" {
			title = "Untitled"
		}
		text := collapseWhitespace(chunk.Text)
		if len(text) > maxChunkChars {
			text = truncateAtRune(text, maxChunkChars)
		}
		blocks = append(blocks, fmt.Sprintf("[#%d | sim=%.3f] %s\n%s", i+1, chunk.Similarity, title, text))
	}
	return strings.Join(blocks, "\n\n---\n\n")
}

// BuildFactsContext renders curated facts as a bullet list, one per line.
func BuildFactsContext(facts []domain.AssistantFact) string {
	if len(facts) == 0 {
		return ""
	}
	lines := make([]string, 0, len(facts))
	for _, fact := range facts {
		value := collapseWhitespace(fact.Value)
		if len(value) > maxFactChars {
			value = truncateAtRune(value, maxFactChars-3) + "..."
		}
		key := strings.TrimSpace(fact.Key)
		if key != "" {
			lines = append(lines, "- "+key+": "+value)
		} else {
			lines = append(lines, "- "+value)
		}
	}
	return strings.Join(lines, "\n")
}

// ChunkTags returns the deduplicated tags across a chunk set, in first-seen
// order. Used for response metadata.
func ChunkTags(chunks []domain.KnowledgeChunk) []string {
	seen := make(map[string]bool)
	var tags []string
	for _, chunk := range chunks {
		for _, tag := range chunk.Tags {
			if tag != "" && !seen[tag] {
				seen[tag] = true
				tags = append(tags, tag)
			}
		}
	}
	return tags
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// truncateAtRune cuts s to at most n bytes without splitting a UTF-8 rune.
func truncateAtRune(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
