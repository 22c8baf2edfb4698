package model

import "time"

// Insight is a user-owned bookmarked URL with extracted metadata.
type Insight struct {
	ID          string    `db:"id" json:"id"`
	UserID      string    `db:"user_id" json:"user_id"`
	URL         string    `db:"url" json:"url"`
	Title       string    `db:"title" json:"title"`
	Description string    `db:"description" json:"description"`
	ImageURL    string    `db:"image_url" json:"image_url"`
	Thought     string    `db:"thought" json:"thought"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// InsightContent is the extracted article body and generated summary, 1:1 with Insight.
type InsightContent struct {
	InsightID   string    `db:"insight_id" json:"insight_id"`
	UserID      string    `db:"user_id" json:"user_id"`
	URL         string    `db:"url" json:"url"`
	HTML        string    `db:"html" json:"html,omitempty"`
	Text        string    `db:"text" json:"text"`
	Markdown    string    `db:"markdown" json:"markdown"`
	Summary     string    `db:"summary" json:"summary"`
	Thought     string    `db:"thought" json:"thought"`
	ContentType string    `db:"content_type" json:"content_type"`
	ExtractedAt time.Time `db:"extracted_at" json:"extracted_at"`
}

// ChunkMethod names the splitting strategy used to produce a set of chunks.
type ChunkMethod string

const (
	ChunkMethodRecursive ChunkMethod = "recursive_char"
)

// InsightChunk is one atomic retrieval unit.
type InsightChunk struct {
	ID                   string      `db:"id" json:"id"`
	InsightID            string      `db:"insight_id" json:"insight_id"`
	ChunkIndex           int         `db:"chunk_index" json:"chunk_index"`
	ChunkText            string      `db:"chunk_text" json:"chunk_text"`
	ChunkSize            int         `db:"chunk_size" json:"chunk_size"`
	EstimatedTokens      int         `db:"estimated_tokens" json:"estimated_tokens"`
	ChunkMethod          ChunkMethod `db:"chunk_method" json:"chunk_method"`
	ChunkOverlap         int         `db:"chunk_overlap" json:"chunk_overlap"`
	Embedding            []float32   `db:"-" json:"embedding,omitempty"`
	EmbeddingModel       string      `db:"embedding_model" json:"embedding_model,omitempty"`
	EmbeddingTokens      int         `db:"embedding_tokens" json:"embedding_tokens,omitempty"`
	EmbeddingGeneratedAt *time.Time  `db:"embedding_generated_at" json:"embedding_generated_at,omitempty"`
	CreatedAt            time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time   `db:"updated_at" json:"updated_at"`
}

// UserTag is a named colored label owned by a user.
type UserTag struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	Name      string    `db:"name" json:"name"`
	Color     string    `db:"color" json:"color"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// InsightTag is a many-to-many association between an Insight and a UserTag.
type InsightTag struct {
	ID        string    `db:"id" json:"id"`
	InsightID string    `db:"insight_id" json:"insight_id"`
	TagID     string    `db:"tag_id" json:"tag_id"`
	UserID    string    `db:"user_id" json:"user_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
