// Package memory implements C11: post-turn memory extraction and periodic
// consolidation into a user's memory profile.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xxxsen/quill/internal/ai"
	"github.com/xxxsen/quill/internal/model"
	"github.com/xxxsen/quill/internal/pkg/logging"
	"github.com/xxxsen/quill/internal/repo"
)

const extractionWindow = 10

const extractionSystemPrompt = "You extract durable memories from a conversation. A memory is a fact, " +
	"preference, contextual detail, or insight worth remembering across sessions. Return only JSON: " +
	`{"memories":[{"type":"user_preference|fact|context|insight","content":"...","importance":0.0-1.0}]}. ` +
	"Return an empty list if nothing is worth remembering. Never include commentary outside the JSON."

type extractionResponse struct {
	Memories []extractedMemory `json:"memories"`
}

type extractedMemory struct {
	Type       string  `json:"type"`
	Content    string  `json:"content"`
	Importance float64 `json:"importance"`
}

var validMemoryTypes = map[string]model.MemoryType{
	string(model.MemoryTypePreference): model.MemoryTypePreference,
	string(model.MemoryTypeFact):       model.MemoryTypeFact,
	string(model.MemoryTypeContext):    model.MemoryTypeContext,
	string(model.MemoryTypeInsight):    model.MemoryTypeInsight,
}

// Extractor implements chat.MemoryExtractor.
type Extractor struct {
	provider  ai.Provider
	chatModel string
	messages  *repo.ChatMessageRepo
	memories  *repo.ChatMemoryRepo
}

func NewExtractor(provider ai.Provider, chatModel string, messages *repo.ChatMessageRepo, memories *repo.ChatMemoryRepo) *Extractor {
	return &Extractor{provider: provider, chatModel: chatModel, messages: messages, memories: memories}
}

// Extract implements spec §4.11's extraction stage: given the last ≤10
// turns (which already include the just-completed user+assistant pair),
// call the chat model with an extractor prompt and persist each item as a
// ChatMemory row with importance clamped to [0,1].
func (e *Extractor) Extract(ctx context.Context, sessionID, userID string) error {
	logger := logging.From(ctx).With(zap.String("session_id", sessionID))

	turns, err := e.messages.ListBySession(ctx, sessionID, extractionWindow)
	if err != nil {
		return fmt.Errorf("load turns for extraction: %w", err)
	}
	if len(turns) == 0 {
		return nil
	}

	resp, err := e.provider.Complete(ctx, ai.ChatRequest{
		Model: e.chatModel,
		Messages: []ai.ChatMessage{
			{Role: "system", Content: extractionSystemPrompt},
			{Role: "user", Content: formatConversation(turns)},
		},
		Temperature: 0.1,
		MaxTokens:   1000,
	})
	if err != nil {
		return fmt.Errorf("extraction completion: %w", err)
	}

	items, err := parseExtraction(resp.Content)
	if err != nil {
		logger.Warn("extraction response was not valid JSON, skipping this turn", zap.Error(err))
		return nil
	}

	now := time.Now().UTC()
	for _, item := range items {
		memType, ok := validMemoryTypes[item.Type]
		if !ok || strings.TrimSpace(item.Content) == "" {
			continue
		}
		meta, _ := json.Marshal(model.MemoryMetadata{SourceSessionID: sessionID, ExtractionModel: e.chatModel})
		mem := &model.ChatMemory{
			ID:              uuid.NewString(),
			SessionID:       sessionID,
			UserID:          userID,
			MemoryType:      memType,
			Content:         item.Content,
			ImportanceScore: item.Importance,
			IsActive:        true,
			Metadata:        meta,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		mem.Clamp()
		if err := e.memories.Create(ctx, mem); err != nil {
			logger.Warn("persist extracted memory failed", zap.Error(err))
		}
	}
	return nil
}

func formatConversation(turns []model.ChatMessage) string {
	var b strings.Builder
	for _, t := range turns {
		fmt.Fprintf(&b, "%s: %s\n", t.Role, t.Content)
	}
	return b.String()
}

// parseExtraction tolerates a markdown code fence around the JSON body,
// which chat models routinely add despite being told not to.
func parseExtraction(raw string) ([]extractedMemory, error) {
	trimmed := strings.TrimSpace(raw)
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)

	var out extractionResponse
	if err := json.Unmarshal([]byte(trimmed), &out); err != nil {
		return nil, err
	}
	return out.Memories, nil
}
