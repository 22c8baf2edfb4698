// Package ingest implements C7: turn a bookmarked URL into a persisted,
// chunked, embedded Insight, split into a synchronous skeleton-insert
// entrypoint and a supervised background pipeline.
package ingest

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xxxsen/quill/internal/ai"
	"github.com/xxxsen/quill/internal/chunk"
	"github.com/xxxsen/quill/internal/extract"
	"github.com/xxxsen/quill/internal/fetch"
	"github.com/xxxsen/quill/internal/job"
	"github.com/xxxsen/quill/internal/model"
	appErr "github.com/xxxsen/quill/internal/pkg/errors"
	"github.com/xxxsen/quill/internal/pkg/logging"
	"github.com/xxxsen/quill/internal/pkg/textutil"
	"github.com/xxxsen/quill/internal/preprocess"
	"github.com/xxxsen/quill/internal/repo"
	"github.com/xxxsen/quill/internal/summarycache"
)

const embedBatchSize = 96

// Orchestrator wires C1-C6 into the two-entrypoint pipeline of spec §4.7.
type Orchestrator struct {
	fetcher      *fetch.Fetcher
	extractor    *extract.Extractor
	preprocessor *preprocess.Preprocessor
	chunker      *chunk.Chunker
	summaries    *summarycache.Cache
	chat         ai.Provider
	embedder     ai.EmbedProvider
	chatModel    string
	embedModel   string
	supervisor   *job.Supervisor

	insights *repo.InsightRepo
	contents *repo.InsightContentRepo
	chunks   *repo.ChunkRepo
}

func New(
	fetcher *fetch.Fetcher,
	extractor *extract.Extractor,
	preprocessor *preprocess.Preprocessor,
	chunker *chunk.Chunker,
	summaries *summarycache.Cache,
	chat ai.Provider,
	embedder ai.EmbedProvider,
	chatModel, embedModel string,
	supervisor *job.Supervisor,
	insights *repo.InsightRepo,
	contents *repo.InsightContentRepo,
	chunks *repo.ChunkRepo,
) *Orchestrator {
	return &Orchestrator{
		fetcher: fetcher, extractor: extractor, preprocessor: preprocessor, chunker: chunker,
		summaries: summaries, chat: chat, embedder: embedder,
		chatModel: chatModel, embedModel: embedModel, supervisor: supervisor,
		insights: insights, contents: contents, chunks: chunks,
	}
}

// CreateInsight is the synchronous entrypoint (spec §4.7.A): validate,
// insert a skeleton row, enqueue the background pipeline, return
// immediately.
func (o *Orchestrator) CreateInsight(ctx context.Context, userID, rawURL, userTitle, thought string) (*model.Insight, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" || len(rawURL) > 500 {
		return nil, appErr.ErrInvalid
	}
	if _, err := url.ParseRequestURI(rawURL); err != nil {
		return nil, appErr.ErrInvalid
	}
	if len(thought) > 2000 {
		thought = thought[:2000]
	}

	now := time.Now().UTC()
	title := userTitle
	if title == "" {
		title = placeholderTitle(rawURL)
	}

	insight := &model.Insight{
		ID:        uuid.NewString(),
		UserID:    userID,
		URL:       rawURL,
		Title:     title,
		Thought:   thought,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := o.insights.CreateSkeleton(ctx, insight); err != nil {
		return nil, fmt.Errorf("create insight skeleton: %w", err)
	}

	o.supervisor.Spawn("ingest_pipeline:"+insight.ID, func(bgCtx context.Context) error {
		return o.runPipeline(bgCtx, insight.ID, userID, rawURL, userTitle)
	})

	return insight, nil
}

func placeholderTitle(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return rawURL
	}
	return parsed.Host
}

// runPipeline is the async background entrypoint (spec §4.7.B).
func (o *Orchestrator) runPipeline(ctx context.Context, insightID, userID, rawURL, userTitle string) error {
	logger := logging.From(ctx).With(zap.String("insight_id", insightID), zap.String("url", rawURL))

	fetched, err := o.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		logger.Warn("partial ingest: fetch failed", zap.Error(err))
		return nil
	}

	extracted := o.extractor.Extract(rawURL, fetched.HTML, extract.DefaultOptions())
	title := extracted.Title
	if userTitle != "" {
		title = userTitle
	}

	preprocessed := o.preprocessor.Process(extracted.Text, preprocess.DefaultOptions())

	summary, err := o.summaries.GetOrGenerate(rawURL, func() (string, error) {
		return o.summarize(ctx, preprocessed.ProcessedText)
	})
	if err != nil {
		logger.Warn("summary generation failed, continuing without summary", zap.Error(err))
	}

	content := &model.InsightContent{
		InsightID:   insightID,
		UserID:      userID,
		URL:         rawURL,
		HTML:        extracted.HTML,
		Text:        preprocessed.ProcessedText,
		Markdown:    extracted.Markdown,
		Summary:     truncate(summary, 1500),
		ContentType: fetched.ContentType,
		ExtractedAt: time.Now().UTC(),
	}
	if err := o.contents.Upsert(ctx, content); err != nil {
		logger.Error("persist insight content failed", zap.Error(err))
		return err
	}

	if err := o.embedInsight(ctx, insightID, preprocessed.ProcessedText, logger); err != nil {
		logger.Warn("chunk/embed stage failed", zap.Error(err))
	}

	if err := o.insights.UpdateMetadata(ctx, insightID, userID, title, extracted.Description, extracted.ImageURL); err != nil {
		logger.Error("update insight metadata failed", zap.Error(err))
		return err
	}

	logger.Info("ingest pipeline completed")
	return nil
}

// summarize calls C4 for a ≤~300 token summary of the preprocessed body.
func (o *Orchestrator) summarize(ctx context.Context, body string) (string, error) {
	if strings.TrimSpace(body) == "" {
		return "", nil
	}
	resp, err := o.chat.Complete(ctx, ai.ChatRequest{
		Model: o.chatModel,
		Messages: []ai.ChatMessage{
			{Role: "system", Content: "You write concise, factual summaries of articles in at most 300 tokens. Do not add commentary."},
			{Role: "user", Content: body},
		},
		Temperature: 0.3,
		MaxTokens:   400,
	})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// embedInsight implements spec §4.7 steps 5-6: chunk, delete-then-reinsert
// for idempotency, embed in batches of 96 with a single retry pass over
// whatever remains unembedded.
func (o *Orchestrator) embedInsight(ctx context.Context, insightID, body string, logger *zap.Logger) error {
	pieces := o.chunker.Split(body)
	if len(pieces) == 0 {
		return o.chunks.DeleteByInsightID(ctx, insightID)
	}

	rows := chunk.ToModel(pieces, insightID)
	for i := range rows {
		rows[i].ID = uuid.NewString()
	}

	if err := o.chunks.DeleteByInsightID(ctx, insightID); err != nil {
		return fmt.Errorf("clear prior chunks: %w", err)
	}

	pending := rows
	for attempt := 0; attempt < 2 && len(pending) > 0; attempt++ {
		pending = o.embedAndPersistBatches(ctx, pending, logger)
	}
	if len(pending) > 0 {
		logger.Warn("chunks left without embeddings after retry", zap.Int("count", len(pending)))
		if err := o.chunks.InsertBatch(ctx, pending); err != nil {
			return fmt.Errorf("persist unembedded chunks: %w", err)
		}
	}
	return nil
}

// embedAndPersistBatches embeds and persists rows in batches of 96,
// returning the subset that failed to embed so the caller can retry.
func (o *Orchestrator) embedAndPersistBatches(ctx context.Context, rows []model.InsightChunk, logger *zap.Logger) []model.InsightChunk {
	var failed []model.InsightChunk
	for start := 0; start < len(rows); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(rows) {
			end = len(rows)
		}
		batch := rows[start:end]

		texts := make([]string, len(batch))
		for i, r := range batch {
			texts[i] = r.ChunkText
		}

		embeddings, err := o.embedder.Embed(ctx, o.embedModel, texts)
		if err != nil {
			logger.Warn("embedding batch failed", zap.Int("batch_size", len(batch)), zap.Error(err))
			failed = append(failed, batch...)
			continue
		}

		now := time.Now().UTC()
		for i := range batch {
			if i < len(embeddings) {
				batch[i].Embedding = embeddings[i]
				batch[i].EmbeddingModel = o.embedModel
				batch[i].EmbeddingTokens = textutil.EstimateTokens(texts[i])
				batch[i].EmbeddingGeneratedAt = &now
			}
		}
		if err := o.chunks.InsertBatch(ctx, batch); err != nil {
			logger.Error("persist embedded batch failed", zap.Error(err))
			failed = append(failed, batch...)
		}
	}
	return failed
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
