package job

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/xxxsen/quill/internal/ai"
	"github.com/xxxsen/quill/internal/pkg/logging"
	"github.com/xxxsen/quill/internal/repo"
)

// EmbeddingRetryJob answers the open question of "should chunk embedding
// failure retry on a schedule" (spec §9) in the affirmative: chunks left
// with embedding = null after ingestion are periodically retried here so a
// transient provider outage during ingest doesn't permanently exclude a
// chunk from retrieval.
type EmbeddingRetryJob struct {
	chunks    *repo.ChunkRepo
	embedder  ai.EmbedProvider
	model     string
	olderThan time.Duration
	batchSize int
}

func NewEmbeddingRetryJob(chunks *repo.ChunkRepo, embedder ai.EmbedProvider, model string, olderThan time.Duration, batchSize int) *EmbeddingRetryJob {
	if batchSize <= 0 {
		batchSize = 50
	}
	return &EmbeddingRetryJob{chunks: chunks, embedder: embedder, model: model, olderThan: olderThan, batchSize: batchSize}
}

func (j *EmbeddingRetryJob) Name() string {
	return "embedding_retry"
}

func (j *EmbeddingRetryJob) Run(ctx context.Context) error {
	pending, err := j.chunks.PendingEmbeddingRetry(ctx, j.olderThan, j.batchSize)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		return nil
	}

	logger := logging.From(ctx)
	texts := make([]string, len(pending))
	for i, c := range pending {
		texts[i] = c.ChunkText
	}

	embeddings, err := j.embedder.Embed(ctx, j.model, texts)
	if err != nil {
		logger.Warn("embedding retry batch failed", zap.Int("count", len(pending)), zap.Error(err))
		return nil // leave the chunks pending for the next sweep, don't fail the job run
	}

	for i, c := range pending {
		if i >= len(embeddings) {
			break
		}
		if updateErr := j.chunks.UpdateEmbedding(ctx, c.ID, embeddings[i], j.model, len(texts[i])/4); updateErr != nil {
			logger.Warn("failed to persist retried embedding", zap.String("chunk_id", c.ID), zap.Error(updateErr))
		}
	}
	logger.Info("embedding retry sweep completed", zap.Int("count", len(pending)))
	return nil
}
