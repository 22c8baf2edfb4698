package handler

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/xxxsen/quill/internal/ingest"
	"github.com/xxxsen/quill/internal/model"
	appErr "github.com/xxxsen/quill/internal/pkg/errcode"
	"github.com/xxxsen/quill/internal/pkg/response"
	"github.com/xxxsen/quill/internal/repo"
)

const (
	defaultPage  = 1
	defaultLimit = 20
	maxLimit     = 100
)

// InsightHandler owns the CRUD and sync surface of spec §6 for insights;
// ingestion itself is delegated to ingest.Orchestrator.
type InsightHandler struct {
	orchestrator *ingest.Orchestrator
	insights     *repo.InsightRepo
	insightTags  *repo.InsightTagRepo
}

func NewInsightHandler(orchestrator *ingest.Orchestrator, insights *repo.InsightRepo, insightTags *repo.InsightTagRepo) *InsightHandler {
	return &InsightHandler{orchestrator: orchestrator, insights: insights, insightTags: insightTags}
}

type createInsightRequest struct {
	URL     string   `json:"url"`
	Thought string   `json:"thought"`
	TagIDs  []string `json:"tag_ids"`
}

func (h *InsightHandler) Create(c *gin.Context) {
	var req createInsightRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusUnprocessableEntity, appErr.ErrInvalid, "invalid request body")
		return
	}
	userID := getUserID(c)
	insight, err := h.orchestrator.CreateInsight(c.Request.Context(), userID, req.URL, "", req.Thought)
	if err != nil {
		handleError(c, err)
		return
	}
	for _, tagID := range req.TagIDs {
		_ = h.insightTags.Attach(c.Request.Context(), &model.InsightTag{
			ID: uuid.NewString(), InsightID: insight.ID, TagID: tagID, UserID: userID, CreatedAt: time.Now().UTC(),
		})
	}
	response.Success(c, insight)
}

type pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

func (h *InsightHandler) List(c *gin.Context) {
	userID := getUserID(c)
	page := queryInt(c, "page", defaultPage)
	limit := queryInt(c, "limit", defaultLimit)
	if limit > maxLimit {
		limit = maxLimit
	}
	offset := (page - 1) * limit
	search := c.Query("search")

	var insights []model.Insight
	var total int
	var err error
	if search != "" {
		insights, err = h.insights.Search(c.Request.Context(), userID, search, limit, offset)
		if err == nil {
			total, err = h.insights.CountSearch(c.Request.Context(), userID, search)
		}
	} else {
		insights, err = h.insights.List(c.Request.Context(), userID, limit, offset)
		if err == nil {
			total, err = h.insights.Count(c.Request.Context(), userID)
		}
	}
	if err != nil {
		handleError(c, err)
		return
	}

	totalPages := 0
	if limit > 0 {
		totalPages = (total + limit - 1) / limit
	}
	response.Success(c, gin.H{
		"insights": insights,
		"pagination": pagination{
			Page: page, Limit: limit, Total: total, TotalPages: totalPages,
		},
	})
}

func (h *InsightHandler) ListAll(c *gin.Context) {
	insights, err := h.insights.ListAll(c.Request.Context(), getUserID(c))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"insights": insights})
}

// SyncIncremental implements the §6 ETag-based incremental sync: since is an
// RFC3339 timestamp, etag is opaque and compared byte-for-byte against the
// current computed tag. Unchanged returns an empty array with the same tag.
func (h *InsightHandler) SyncIncremental(c *gin.Context) {
	userID := getUserID(c)
	sinceParam := c.Query("since")
	clientETag := c.Query("etag")

	since := time.Time{}
	if sinceParam != "" {
		parsed, err := time.Parse(time.RFC3339, sinceParam)
		if err != nil {
			response.Error(c, http.StatusUnprocessableEntity, appErr.ErrInvalid, "since must be RFC3339")
			return
		}
		since = parsed
	}

	insights, err := h.insights.ListActiveSince(c.Request.Context(), userID, since)
	if err != nil {
		handleError(c, err)
		return
	}
	tag := computeETag(insights)
	if tag == clientETag {
		response.Success(c, gin.H{"insights": []model.Insight{}, "etag": tag})
		return
	}
	response.Success(c, gin.H{"insights": insights, "etag": tag})
}

// computeETag hashes each row's id and updated_at so any change in the
// result set (including a delete, which shrinks the list) changes the tag.
func computeETag(insights []model.Insight) string {
	h := sha256.New()
	for _, in := range insights {
		fmt.Fprintf(h, "%s:%d|", in.ID, in.UpdatedAt.UnixNano())
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}

func (h *InsightHandler) Get(c *gin.Context) {
	insight, err := h.insights.GetByID(c.Request.Context(), getUserID(c), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, insight)
}

type updateInsightRequest struct {
	Thought string `json:"thought"`
}

func (h *InsightHandler) Update(c *gin.Context) {
	var req updateInsightRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusUnprocessableEntity, appErr.ErrInvalid, "invalid request body")
		return
	}
	if err := h.insights.UpdateThought(c.Request.Context(), getUserID(c), c.Param("id"), req.Thought); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"ok": true})
}

func (h *InsightHandler) Delete(c *gin.Context) {
	if err := h.insights.Delete(c.Request.Context(), getUserID(c), c.Param("id")); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"ok": true})
}
