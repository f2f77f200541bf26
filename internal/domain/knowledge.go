package domain

// KnowledgeChunk is a retrieved knowledge-base snippet with its similarity
// to the query embedding. Chunks are read-only to the gateway.
type KnowledgeChunk struct {
	ChunkID    int64    `json:"chunk_id"`
	DocID      string   `json:"doc_id"`
	ChunkIndex int      `json:"chunk_index"`
	Title      string   `json:"title"`
	Text       string   `json:"text"`
	Tags       []string `json:"tags,omitempty"`
	Source     string   `json:"source,omitempty"`
	Similarity float64  `json:"similarity"`
}

// AssistantFact is a curated key/value fact injected into every generation
// prompt regardless of retrieval outcome. Lower priority sorts first.
type AssistantFact struct {
	Key      string   `json:"fact_key"`
	Value    string   `json:"fact_value"`
	Tags     []string `json:"tags,omitempty"`
	Priority int      `json:"priority"`
}
