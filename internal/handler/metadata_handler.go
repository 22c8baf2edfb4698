package handler

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/xxxsen/quill/internal/ai"
	"github.com/xxxsen/quill/internal/extract"
	"github.com/xxxsen/quill/internal/fetch"
	"github.com/xxxsen/quill/internal/job"
	appErr "github.com/xxxsen/quill/internal/pkg/errcode"
	"github.com/xxxsen/quill/internal/pkg/logging"
	"github.com/xxxsen/quill/internal/pkg/response"
	"github.com/xxxsen/quill/internal/preprocess"
	"github.com/xxxsen/quill/internal/summarycache"
)

// MetadataHandler implements spec §6's metadata preview surface: a
// synchronous extract that also warms the summary cache for the URL, and a
// polling endpoint over that cache's state. It runs C1/C2/C3/C4 directly
// rather than through ingest.Orchestrator, since no Insight row exists yet.
type MetadataHandler struct {
	fetcher      *fetch.Fetcher
	extractor    *extract.Extractor
	preprocessor *preprocess.Preprocessor
	summaries    *summarycache.Cache
	chat         ai.Provider
	chatModel    string
	supervisor   *job.Supervisor
}

func NewMetadataHandler(
	fetcher *fetch.Fetcher,
	extractor *extract.Extractor,
	preprocessor *preprocess.Preprocessor,
	summaries *summarycache.Cache,
	chat ai.Provider,
	chatModel string,
	supervisor *job.Supervisor,
) *MetadataHandler {
	return &MetadataHandler{
		fetcher: fetcher, extractor: extractor, preprocessor: preprocessor,
		summaries: summaries, chat: chat, chatModel: chatModel, supervisor: supervisor,
	}
}

func (h *MetadataHandler) Extract(c *gin.Context) {
	rawURL := strings.TrimSpace(c.PostForm("url"))
	if rawURL == "" {
		response.Error(c, http.StatusUnprocessableEntity, appErr.ErrInvalid, "url is required")
		return
	}

	fetched, err := h.fetcher.Fetch(c.Request.Context(), rawURL)
	if err != nil {
		response.Error(c, http.StatusBadGateway, appErr.ErrUpstreamTransient, "failed to fetch url")
		return
	}
	extracted := h.extractor.Extract(rawURL, fetched.HTML, extract.DefaultOptions())
	preprocessed := h.preprocessor.Process(extracted.Text, preprocess.DefaultOptions())

	h.supervisor.Spawn("metadata_summary:"+rawURL, func(ctx context.Context) error {
		_, err := h.summaries.GetOrGenerate(rawURL, func() (string, error) {
			resp, err := h.chat.Complete(ctx, ai.ChatRequest{
				Model: h.chatModel,
				Messages: []ai.ChatMessage{
					{Role: "system", Content: "You write concise, factual summaries of articles in at most 300 tokens. Do not add commentary."},
					{Role: "user", Content: preprocessed.ProcessedText},
				},
				Temperature: 0.3,
				MaxTokens:   400,
			})
			if err != nil {
				return "", err
			}
			return resp.Content, nil
		})
		if err != nil {
			logging.From(ctx).Warn("metadata summary generation failed", zap.String("url", rawURL), zap.Error(err))
		}
		return nil
	})

	response.Success(c, gin.H{
		"title":       extracted.Title,
		"description": extracted.Description,
		"image_url":   extracted.ImageURL,
	})
}

// Summary polls the C6 cache by URL. The route captures the URL as a
// wildcard segment since URLs contain slashes; :url alone would not.
func (h *MetadataHandler) Summary(c *gin.Context) {
	rawURL := strings.TrimPrefix(c.Param("url"), "/")
	if decoded, err := url.QueryUnescape(rawURL); err == nil {
		rawURL = decoded
	}
	entry := h.summaries.Get(rawURL)
	if entry == nil {
		response.Success(c, gin.H{"status": string(summarycache.StatusGenerating)})
		return
	}
	response.Success(c, gin.H{"status": string(entry.Status), "summary": entry.Summary, "error": entry.Error})
}
