// Package chat implements C10: session lifecycle, RAG-grounded prompt
// assembly, streaming generation, and post-turn memory extraction.
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xxxsen/quill/internal/ai"
	"github.com/xxxsen/quill/internal/job"
	"github.com/xxxsen/quill/internal/model"
	appErr "github.com/xxxsen/quill/internal/pkg/errors"
	"github.com/xxxsen/quill/internal/pkg/logging"
	"github.com/xxxsen/quill/internal/ragcontext"
	"github.com/xxxsen/quill/internal/repo"
	"github.com/xxxsen/quill/internal/retrieve"
)

const (
	systemInstruction = "You are Quill, a personal knowledge assistant. Answer using only the context " +
		"provided below plus the conversation so far. When you use a numbered context chunk, cite it " +
		"inline as [n]. If the context has no relevant chunks, say so and answer generally without " +
		"inventing facts. Never fabricate sources or content beyond what is given."

	historyWindow   = 20
	maxMemoryLines  = 5
	shortMessageLen = 3
)

// MemoryExtractor decouples C10 from C11: the engine only needs to kick off
// extraction after a turn completes, not how it works.
type MemoryExtractor interface {
	Extract(ctx context.Context, sessionID, userID string) error
}

// EventKind mirrors the streaming framing of spec §6.
type EventKind string

const (
	EventContent EventKind = "content"
	EventDone    EventKind = "done"
	EventError   EventKind = "error"
)

// Event is one server-sent-event payload the handler marshals to JSON.
type Event struct {
	Type      EventKind          `json:"type"`
	Content   string             `json:"content,omitempty"`
	RequestID string             `json:"request_id,omitempty"`
	LatencyMS int64              `json:"latency_ms,omitempty"`
	Sources   []model.ChatSource `json:"sources,omitempty"`
	Code      string             `json:"code,omitempty"`
	Message   string             `json:"message,omitempty"`
}

// TurnRequest is one incoming chat call.
type TurnRequest struct {
	UserID    string
	SessionID string // empty to create a new session
	Message   string
	RAGK      int
	MinScore  float64
}

// TurnResult carries the resolved session id back to the handler so it can
// set the X-Session-ID header before the stream body starts.
type TurnResult struct {
	SessionID string
	Events    <-chan Event
}

type Engine struct {
	provider   ai.Provider
	chatModel  string
	retriever  *retrieve.Retriever
	maxContext int

	sessions *repo.ChatSessionRepo
	messages *repo.ChatMessageRepo
	memories *repo.ChatMemoryRepo
	ragCtxs  *repo.ChatRagContextRepo

	supervisor *job.Supervisor
	extractor  MemoryExtractor
}

func New(
	provider ai.Provider,
	chatModel string,
	retriever *retrieve.Retriever,
	maxContext int,
	sessions *repo.ChatSessionRepo,
	messages *repo.ChatMessageRepo,
	memories *repo.ChatMemoryRepo,
	ragCtxs *repo.ChatRagContextRepo,
	supervisor *job.Supervisor,
	extractor MemoryExtractor,
) *Engine {
	if maxContext <= 0 {
		maxContext = ragcontext.DefaultBudget
	}
	return &Engine{
		provider: provider, chatModel: chatModel, retriever: retriever, maxContext: maxContext,
		sessions: sessions, messages: messages, memories: memories, ragCtxs: ragCtxs,
		supervisor: supervisor, extractor: extractor,
	}
}

// Turn implements spec §4.10's per-message processing. The returned channel
// is closed once the terminal `done` or `error` event has been sent, or
// without a terminal event when ctx is cancelled mid-stream.
func (e *Engine) Turn(ctx context.Context, req TurnRequest) (*TurnResult, error) {
	session, err := e.resolveSession(ctx, req.UserID, req.SessionID)
	if err != nil {
		return nil, err
	}

	userMsg := &model.ChatMessage{
		ID:        uuid.NewString(),
		SessionID: session.ID,
		Role:      model.ChatRoleUser,
		Content:   req.Message,
		CreatedAt: time.Now().UTC(),
	}
	if err := e.messages.Create(ctx, userMsg); err != nil {
		return nil, fmt.Errorf("persist user message: %w", err)
	}

	events := make(chan Event, 8)
	// ctx is the request context: if the client disconnects it cancels, the
	// select loop below observes it and discards the partial answer, per
	// spec §4.10's cancellation rule.
	go e.runTurn(ctx, session, req, events)

	return &TurnResult{SessionID: session.ID, Events: events}, nil
}

// runTurn assembles the prompt, streams the completion, forwards deltas, and
// persists the result. It owns closing events.
func (e *Engine) runTurn(ctx context.Context, session *model.ChatSession, req TurnRequest, events chan<- Event) {
	defer close(events)
	start := time.Now()
	logger := logging.From(ctx).With(zap.String("session_id", session.ID))

	ragChunks, ragCtxBlock := e.retrieveContext(ctx, req)

	history, err := e.messages.ListBySession(ctx, session.ID, historyWindow)
	if err != nil {
		logger.Error("load history failed", zap.Error(err))
		events <- errorEvent(appErr.ErrInternal)
		return
	}

	memLines, err := e.topMemoryLines(ctx, session.ID)
	if err != nil {
		logger.Warn("load memories failed, continuing without them", zap.Error(err))
	}

	prompt := e.buildPrompt(memLines, ragCtxBlock, history)

	deltas, errs := e.provider.Stream(ctx, ai.ChatRequest{
		Model:    e.chatModel,
		Messages: prompt,
		Stream:   true,
	})

	var answer strings.Builder
	var usage ai.Usage
	for {
		select {
		case <-ctx.Done():
			logger.Info("chat stream aborted by client disconnect, discarding partial answer")
			return
		case delta, ok := <-deltas:
			if !ok {
				deltas = nil
				break
			}
			if delta.Content != "" {
				answer.WriteString(delta.Content)
				events <- Event{Type: EventContent, Content: delta.Content}
			}
			if delta.Done {
				usage = delta.Usage
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				break
			}
			if err != nil {
				logger.Warn("chat stream failed mid-generation", zap.Error(err))
				events <- errorEvent(err)
				return
			}
		}
		if deltas == nil && errs == nil {
			break
		}
	}

	sources := renderSources(ragChunks)
	latency := time.Since(start)

	assistantMsg := &model.ChatMessage{
		ID:        uuid.NewString(),
		SessionID: session.ID,
		Role:      model.ChatRoleAssistant,
		Content:   answer.String(),
		CreatedAt: time.Now().UTC(),
	}
	meta := model.MessageMetadata{
		Model:            e.chatModel,
		PromptTokens:     usage.PromptTokens,
		CompletionTokens: usage.CompletionTokens,
		LatencyMS:        latency.Milliseconds(),
		RAGK:             len(ragChunks),
		Sources:          sources,
	}
	if raw, err := json.Marshal(meta); err == nil {
		assistantMsg.Metadata = raw
	}
	if err := e.messages.Create(ctx, assistantMsg); err != nil {
		logger.Error("persist assistant message failed", zap.Error(err))
		events <- errorEvent(appErr.ErrInternal)
		return
	}

	if err := e.persistRagContext(ctx, assistantMsg.ID, ragChunks, ragCtxBlock, req); err != nil {
		logger.Error("persist rag context failed", zap.Error(err))
	}

	title := deriveTitle(session.Title, req.Message)
	if title != session.Title {
		if err := e.sessions.TouchTitle(ctx, session.ID, title); err != nil {
			logger.Warn("update session title failed", zap.Error(err))
		}
	} else if err := e.sessions.Touch(ctx, session.ID); err != nil {
		logger.Warn("touch session failed", zap.Error(err))
	}

	events <- Event{Type: EventDone, RequestID: session.ID, LatencyMS: latency.Milliseconds(), Sources: sources}

	if e.extractor != nil && e.supervisor != nil {
		sessionID, userID := session.ID, req.UserID
		e.supervisor.Spawn("memory_extract:"+sessionID, func(bgCtx context.Context) error {
			return e.extractor.Extract(bgCtx, sessionID, userID)
		})
	}
}

// retrieveContext runs C8+C9 unless the message is short enough or begins
// with a control marker, per spec §4.10 step 2's implementation latitude.
func (e *Engine) retrieveContext(ctx context.Context, req TurnRequest) ([]model.RAGChunk, model.RAGContext) {
	trimmed := strings.TrimSpace(req.Message)
	if len([]rune(trimmed)) <= shortMessageLen || strings.HasPrefix(trimmed, "/") {
		return nil, model.RAGContext{}
	}
	k := req.RAGK
	minScore := req.MinScore
	if k <= 0 {
		k = retrieve.DefaultK
	}
	if minScore <= 0 {
		minScore = retrieve.DefaultMinScore
	}
	chunks := e.retriever.Search(ctx, req.Message, req.UserID, k, minScore)
	if len(chunks) == 0 {
		return nil, model.RAGContext{}
	}
	return chunks, ragcontext.Build(chunks, e.maxContext)
}

func (e *Engine) topMemoryLines(ctx context.Context, sessionID string) ([]string, error) {
	mems, err := e.memories.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	sortByImportanceDesc(mems)
	if len(mems) > maxMemoryLines {
		mems = mems[:maxMemoryLines]
	}
	lines := make([]string, 0, len(mems))
	for _, m := range mems {
		lines = append(lines, fmt.Sprintf("- %s", m.Content))
	}
	return lines, nil
}

func sortByImportanceDesc(mems []model.ChatMemory) {
	for i := 1; i < len(mems); i++ {
		for j := i; j > 0 && mems[j].ImportanceScore > mems[j-1].ImportanceScore; j-- {
			mems[j], mems[j-1] = mems[j-1], mems[j]
		}
	}
}

func (e *Engine) buildPrompt(memLines []string, ragCtx model.RAGContext, history []model.ChatMessage) []ai.ChatMessage {
	var sys strings.Builder
	sys.WriteString(systemInstruction)
	if len(memLines) > 0 {
		sys.WriteString("\n\nWhat you know about this user:\n")
		sys.WriteString(strings.Join(memLines, "\n"))
	}
	sys.WriteString("\n\nContext:\n")
	if ragCtx.ContextText == "" {
		sys.WriteString("No relevant prior notes.")
	} else {
		sys.WriteString(ragCtx.ContextText)
	}

	msgs := make([]ai.ChatMessage, 0, len(history)+1)
	msgs = append(msgs, ai.ChatMessage{Role: "system", Content: sys.String()})
	for _, h := range history {
		msgs = append(msgs, ai.ChatMessage{Role: string(h.Role), Content: h.Content})
	}
	return msgs
}

func (e *Engine) persistRagContext(ctx context.Context, messageID string, chunks []model.RAGChunk, ragCtx model.RAGContext, req TurnRequest) error {
	if len(chunks) == 0 {
		return nil
	}
	refs := make([]model.RAGChunkRef, 0, len(chunks))
	for i, c := range chunks {
		refs = append(refs, model.RAGChunkRef{ChunkID: c.ChunkID, InsightID: c.InsightID, Score: c.Score, Index: i + 1})
	}
	rawRefs, err := json.Marshal(refs)
	if err != nil {
		return err
	}
	rawKeywords, err := json.Marshal(ragCtx.ExtractedKeywords)
	if err != nil {
		return err
	}
	k := req.RAGK
	if k <= 0 {
		k = retrieve.DefaultK
	}
	minScore := req.MinScore
	if minScore <= 0 {
		minScore = retrieve.DefaultMinScore
	}
	return e.ragCtxs.Create(ctx, &model.ChatRagContext{
		ID:                 uuid.NewString(),
		MessageID:          messageID,
		RAGChunks:          rawRefs,
		ContextText:        ragCtx.ContextText,
		TotalContextTokens: ragCtx.TotalContextTokens,
		ExtractedKeywords:  rawKeywords,
		RAGK:               k,
		RAGMinScore:        minScore,
	})
}

func renderSources(chunks []model.RAGChunk) []model.ChatSource {
	if len(chunks) == 0 {
		return nil
	}
	out := make([]model.ChatSource, 0, len(chunks))
	for i, c := range chunks {
		out = append(out, model.ChatSource{
			ID: c.ChunkID, InsightID: c.InsightID, Score: c.Score, Index: i + 1,
			Title: c.InsightTitle, URL: c.InsightURL,
		})
	}
	return out
}

// deriveTitle sets the session title from the first 40 characters of the
// first user message, and leaves an already-titled session untouched.
func deriveTitle(current, firstMessage string) string {
	if current != "" {
		return current
	}
	r := []rune(strings.TrimSpace(firstMessage))
	if len(r) > 40 {
		r = r[:40]
	}
	return string(r)
}

func errorEvent(err error) Event {
	code := "internal"
	var aiErr *ai.Error
	switch {
	case errors.As(err, &aiErr):
		code = string(aiErr.Kind)
	case appErr.IsRateLimited(err):
		code = "rate_limited"
	case appErr.IsNotFound(err):
		code = "not_found"
	}
	return Event{Type: EventError, Code: code, Message: err.Error()}
}

func (e *Engine) resolveSession(ctx context.Context, userID, sessionID string) (*model.ChatSession, error) {
	if sessionID != "" {
		s, err := e.sessions.GetByID(ctx, userID, sessionID)
		if err == nil && s.IsActive {
			return s, nil
		}
		if err != nil && !appErr.IsNotFound(err) {
			return nil, err
		}
	}
	now := time.Now().UTC()
	s := &model.ChatSession{
		ID:        uuid.NewString(),
		UserID:    userID,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := e.sessions.Create(ctx, s); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return s, nil
}
