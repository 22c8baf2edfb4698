package model

// RAGChunk is a retrieved chunk enriched with its parent insight metadata,
// as returned by the Retriever (C8).
type RAGChunk struct {
	ChunkID        string  `json:"chunk_id"`
	InsightID      string  `json:"insight_id"`
	ChunkIndex     int     `json:"chunk_index"`
	ChunkText      string  `json:"chunk_text"`
	ChunkSize      int     `json:"chunk_size"`
	Score          float64 `json:"score"`
	InsightTitle   string  `json:"insight_title"`
	InsightURL     string  `json:"insight_url"`
	InsightSummary string  `json:"insight_summary"`
}

// RAGContext is the citation-numbered, token-budgeted prompt section built by C9.
type RAGContext struct {
	Chunks             []RAGChunk `json:"chunks"`
	ContextText        string     `json:"context_text"`
	TotalContextTokens int        `json:"total_context_tokens"`
	ExtractedKeywords  []string   `json:"extracted_keywords"`
}
