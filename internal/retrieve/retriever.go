// Package retrieve implements C8: turn a natural-language query into a
// ranked list of a user's own chunks.
package retrieve

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/xxxsen/quill/internal/ai"
	"github.com/xxxsen/quill/internal/model"
	"github.com/xxxsen/quill/internal/pkg/logging"
	"github.com/xxxsen/quill/internal/repo"
)

const (
	DefaultK        = 6
	DefaultMinScore = 0.2

	// clientSideThreshold caps the in-memory cosine strategy to keep worst
	// case per-query CPU bounded; above this the DB-side HNSW index path is
	// used regardless.
	clientSideThreshold = 2000
)

type Retriever struct {
	embedder   ai.EmbedProvider
	embedModel string
	chunks     *repo.ChunkRepo
	// useClientSide selects the in-memory cosine strategy over the DB-side
	// pgvector operator (spec §4.8 names both as equally valid).
	useClientSide bool
}

func New(embedder ai.EmbedProvider, embedModel string, chunks *repo.ChunkRepo, useClientSide bool) *Retriever {
	return &Retriever{embedder: embedder, embedModel: embedModel, chunks: chunks, useClientSide: useClientSide}
}

// Search implements spec §4.8: fail-closed on embedding failure, cosine
// search scoped to the caller's own chunks, sorted by descending score with
// (insight_id, chunk_index) as the tiebreak.
func (r *Retriever) Search(ctx context.Context, query, userID string, k int, minScore float64) []model.RAGChunk {
	if k <= 0 {
		k = DefaultK
	}
	logger := logging.From(ctx)

	embeddings, err := r.embedder.Embed(ctx, r.embedModel, []string{query})
	if err != nil || len(embeddings) == 0 {
		logger.Warn("query embedding failed, retrieval returns empty", zap.Error(err))
		return nil
	}
	queryVec := embeddings[0]

	if r.useClientSide {
		return r.searchClientSide(ctx, queryVec, userID, k, minScore, logger)
	}
	return r.searchDB(ctx, queryVec, userID, k, minScore, logger)
}

func (r *Retriever) searchDB(ctx context.Context, queryVec []float32, userID string, k int, minScore float64, logger *zap.Logger) []model.RAGChunk {
	rows, err := r.chunks.SearchByEmbedding(ctx, userID, queryVec, k, minScore)
	if err != nil {
		logger.Warn("db-side chunk search failed, retrieval returns empty", zap.Error(err))
		return nil
	}
	out := make([]model.RAGChunk, 0, len(rows))
	for _, row := range rows {
		out = append(out, model.RAGChunk{
			ChunkID:        row.ID,
			InsightID:      row.InsightID,
			ChunkIndex:     row.ChunkIndex,
			ChunkText:      row.ChunkText,
			ChunkSize:      row.ChunkSize,
			Score:          row.Score,
			InsightTitle:   row.InsightTitle,
			InsightURL:     row.InsightURL,
			InsightSummary: row.InsightSummary,
		})
	}
	return out
}

func (r *Retriever) searchClientSide(ctx context.Context, queryVec []float32, userID string, k int, minScore float64, logger *zap.Logger) []model.RAGChunk {
	all, err := r.chunks.ListEmbeddingsForUser(ctx, userID)
	if err != nil {
		logger.Warn("client-side chunk fetch failed, retrieval returns empty", zap.Error(err))
		return nil
	}
	if len(all) > clientSideThreshold {
		logger.Info("chunk count exceeds client-side threshold, using db-side search", zap.Int("count", len(all)))
		return r.searchDB(ctx, queryVec, userID, k, minScore, logger)
	}

	type scored struct {
		row   repo.EmbeddedChunk
		score float64
	}
	candidates := make([]scored, 0, len(all))
	for _, row := range all {
		score := cosineSimilarity(queryVec, row.Embedding.Slice())
		if score >= minScore {
			candidates = append(candidates, scored{row: row, score: score})
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		if candidates[i].row.InsightID != candidates[j].row.InsightID {
			return candidates[i].row.InsightID < candidates[j].row.InsightID
		}
		return candidates[i].row.ChunkIndex < candidates[j].row.ChunkIndex
	})
	if len(candidates) > k {
		candidates = candidates[:k]
	}

	out := make([]model.RAGChunk, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, model.RAGChunk{
			ChunkID:        c.row.ID,
			InsightID:      c.row.InsightID,
			ChunkIndex:     c.row.ChunkIndex,
			ChunkText:      c.row.ChunkText,
			ChunkSize:      c.row.ChunkSize,
			Score:          c.score,
			InsightTitle:   c.row.InsightTitle,
			InsightURL:     c.row.InsightURL,
			InsightSummary: c.row.InsightSummary,
		})
	}
	return out
}
