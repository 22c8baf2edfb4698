package model

import (
	"encoding/json"
	"time"
)

type ChatRole string

const (
	ChatRoleUser      ChatRole = "user"
	ChatRoleAssistant ChatRole = "assistant"
	ChatRoleSystem    ChatRole = "system"
)

// ChatSession is a conversation container.
type ChatSession struct {
	ID        string          `db:"id" json:"id"`
	UserID    string          `db:"user_id" json:"user_id"`
	Title     string          `db:"title" json:"title"`
	IsActive  bool            `db:"is_active" json:"is_active"`
	Metadata  json.RawMessage `db:"metadata" json:"metadata,omitempty"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt time.Time       `db:"updated_at" json:"updated_at"`
}

// MessageMetadata is the structured shape stored in ChatMessage.Metadata for
// assistant turns: token counts, model, latency and the rendered sources.
type MessageMetadata struct {
	Model           string         `json:"model,omitempty"`
	PromptTokens    int            `json:"prompt_tokens,omitempty"`
	CompletionTokens int           `json:"completion_tokens,omitempty"`
	LatencyMS       int64          `json:"latency_ms,omitempty"`
	RAGK            int            `json:"rag_k,omitempty"`
	Sources         []ChatSource   `json:"sources,omitempty"`
}

type ChatSource struct {
	ID        string  `json:"id"`
	InsightID string  `json:"insight_id"`
	Score     float64 `json:"score"`
	Index     int     `json:"index"`
	Title     string  `json:"title"`
	URL       string  `json:"url"`
}

// ChatMessage is one turn in a session.
type ChatMessage struct {
	ID              string          `db:"id" json:"id"`
	SessionID       string          `db:"session_id" json:"session_id"`
	Role            ChatRole        `db:"role" json:"role"`
	Content         string          `db:"content" json:"content"`
	ParentMessageID *string         `db:"parent_message_id" json:"parent_message_id,omitempty"`
	Metadata        json.RawMessage `db:"metadata" json:"metadata,omitempty"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
}

// RAGChunkRef is one retrieved chunk reference recorded against a ChatRagContext.
type RAGChunkRef struct {
	ChunkID   string  `json:"chunk_id"`
	InsightID string  `json:"insight_id"`
	Score     float64 `json:"score"`
	Index     int     `json:"index"`
}

// ChatRagContext is the retrieval trace for one assistant message.
type ChatRagContext struct {
	ID                 string          `db:"id" json:"id"`
	MessageID          string          `db:"message_id" json:"message_id"`
	RAGChunks          json.RawMessage `db:"rag_chunks" json:"rag_chunks"`
	ContextText        string          `db:"context_text" json:"context_text"`
	TotalContextTokens int             `db:"total_context_tokens" json:"total_context_tokens"`
	ExtractedKeywords  json.RawMessage `db:"extracted_keywords" json:"extracted_keywords,omitempty"`
	RAGK               int             `db:"rag_k" json:"rag_k"`
	RAGMinScore        float64         `db:"rag_min_score" json:"rag_min_score"`
}

type MemoryType string

const (
	MemoryTypePreference MemoryType = "user_preference"
	MemoryTypeFact       MemoryType = "fact"
	MemoryTypeContext    MemoryType = "context"
	MemoryTypeInsight    MemoryType = "insight"
)

// MemoryMetadata carries extraction provenance for a ChatMemory row.
type MemoryMetadata struct {
	SourceSessionID  string `json:"source_session_id,omitempty"`
	ExtractionModel  string `json:"extraction_model,omitempty"`
}

// ChatMemory is a durable datum extracted from a session.
type ChatMemory struct {
	ID              string          `db:"id" json:"id"`
	SessionID       string          `db:"session_id" json:"session_id"`
	UserID          string          `db:"user_id" json:"user_id"`
	MemoryType      MemoryType      `db:"memory_type" json:"memory_type"`
	Content         string          `db:"content" json:"content"`
	ImportanceScore float64         `db:"importance_score" json:"importance_score"`
	IsActive        bool            `db:"is_active" json:"is_active"`
	Metadata        json.RawMessage `db:"metadata" json:"metadata,omitempty"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
}

func (m *ChatMemory) Clamp() {
	if m.ImportanceScore < 0 {
		m.ImportanceScore = 0
	}
	if m.ImportanceScore > 1 {
		m.ImportanceScore = 1
	}
}
