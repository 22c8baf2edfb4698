package handler

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xxxsen/quill/internal/chat"
	"github.com/xxxsen/quill/internal/model"
	appErr "github.com/xxxsen/quill/internal/pkg/errcode"
	"github.com/xxxsen/quill/internal/pkg/logging"
	"github.com/xxxsen/quill/internal/pkg/response"
	"github.com/xxxsen/quill/internal/repo"
)

const defaultMessageLimit = 20

// ChatHandler implements spec §6's chat surface: a streaming turn endpoint
// plus session/message/context CRUD backing the UI's history view.
type ChatHandler struct {
	engine   *chat.Engine
	sessions *repo.ChatSessionRepo
	messages *repo.ChatMessageRepo
	ragCtxs  *repo.ChatRagContextRepo
}

func NewChatHandler(engine *chat.Engine, sessions *repo.ChatSessionRepo, messages *repo.ChatMessageRepo, ragCtxs *repo.ChatRagContextRepo) *ChatHandler {
	return &ChatHandler{engine: engine, sessions: sessions, messages: messages, ragCtxs: ragCtxs}
}

type chatTurnRequest struct {
	Message  string  `json:"message"`
	RAGK     int     `json:"rag_k"`
	MinScore float64 `json:"min_score"`
}

// Turn streams an assistant reply over SSE. session_id may be supplied as a
// query param to continue a conversation; a fresh session is created and its
// id reported via the X-Session-ID header (the events carry no session id).
func (h *ChatHandler) Turn(c *gin.Context) {
	var req chatTurnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusUnprocessableEntity, appErr.ErrInvalid, "invalid request body")
		return
	}
	if req.Message == "" {
		response.Error(c, http.StatusUnprocessableEntity, appErr.ErrInvalid, "message is required")
		return
	}

	result, err := h.engine.Turn(c.Request.Context(), chat.TurnRequest{
		UserID:    getUserID(c),
		SessionID: c.Query("session_id"),
		Message:   req.Message,
		RAGK:      req.RAGK,
		MinScore:  req.MinScore,
	})
	if err != nil {
		handleError(c, err)
		return
	}

	c.Header("X-Session-ID", result.SessionID)
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	logger := logging.From(c.Request.Context())
	c.Stream(func(w io.Writer) bool {
		event, ok := <-result.Events
		if !ok {
			return false
		}
		payload, err := json.Marshal(event)
		if err != nil {
			logger.Error("marshal chat event failed", zap.Error(err))
			return false
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
			return false
		}
		return true
	})
}

func (h *ChatHandler) Health(c *gin.Context) {
	response.Success(c, gin.H{"status": "ok"})
}

type createSessionRequest struct {
	Title string `json:"title"`
}

func (h *ChatHandler) CreateSession(c *gin.Context) {
	var req createSessionRequest
	_ = c.ShouldBindJSON(&req)
	session := &model.ChatSession{
		ID:        uuid.NewString(),
		UserID:    getUserID(c),
		Title:     req.Title,
		IsActive:  true,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	if err := h.sessions.Create(c.Request.Context(), session); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, session)
}

func (h *ChatHandler) ListSessions(c *gin.Context) {
	userID := getUserID(c)
	page := queryInt(c, "page", defaultPage)
	size := queryInt(c, "size", defaultLimit)
	if size > maxLimit {
		size = maxLimit
	}
	sessions, err := h.sessions.List(c.Request.Context(), userID, size, (page-1)*size)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"sessions": sessions})
}

func (h *ChatHandler) GetSession(c *gin.Context) {
	session, err := h.sessions.GetByID(c.Request.Context(), getUserID(c), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, session)
}

type updateSessionRequest struct {
	Title string `json:"title"`
}

func (h *ChatHandler) UpdateSession(c *gin.Context) {
	var req updateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusUnprocessableEntity, appErr.ErrInvalid, "invalid request body")
		return
	}
	if _, err := h.sessions.GetByID(c.Request.Context(), getUserID(c), c.Param("id")); err != nil {
		handleError(c, err)
		return
	}
	if err := h.sessions.TouchTitle(c.Request.Context(), c.Param("id"), req.Title); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"ok": true})
}

func (h *ChatHandler) DeleteSession(c *gin.Context) {
	if err := h.sessions.Deactivate(c.Request.Context(), getUserID(c), c.Param("id")); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"ok": true})
}

func (h *ChatHandler) ListMessages(c *gin.Context) {
	sessionID := c.Param("id")
	if _, err := h.sessions.GetByID(c.Request.Context(), getUserID(c), sessionID); err != nil {
		handleError(c, err)
		return
	}
	limit := queryInt(c, "limit", defaultMessageLimit)
	messages, err := h.messages.ListBySession(c.Request.Context(), sessionID, limit)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"messages": messages})
}

// GetContext returns the RAG context that grounded the most recent assistant
// message in the session, for the "show sources" panel.
func (h *ChatHandler) GetContext(c *gin.Context) {
	sessionID := c.Param("id")
	if _, err := h.sessions.GetByID(c.Request.Context(), getUserID(c), sessionID); err != nil {
		handleError(c, err)
		return
	}
	limit := queryInt(c, "limit_messages", defaultMessageLimit)
	messages, err := h.messages.ListBySession(c.Request.Context(), sessionID, limit)
	if err != nil {
		handleError(c, err)
		return
	}

	var lastAssistant *model.ChatMessage
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == model.ChatRoleAssistant {
			lastAssistant = &messages[i]
			break
		}
	}
	if lastAssistant == nil {
		response.Success(c, gin.H{"messages": messages, "context": nil})
		return
	}
	ragCtx, err := h.ragCtxs.GetByMessageID(c.Request.Context(), lastAssistant.ID)
	if err != nil {
		response.Success(c, gin.H{"messages": messages, "context": nil})
		return
	}
	response.Success(c, gin.H{"messages": messages, "context": ragCtx})
}
