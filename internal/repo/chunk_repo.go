package repo

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pgvector/pgvector-go"

	"github.com/xxxsen/quill/internal/model"
)

type ChunkRepo struct {
	db *sqlx.DB
}

func NewChunkRepo(db *sqlx.DB) *ChunkRepo {
	return &ChunkRepo{db: db}
}

// InsertBatch persists one batch of chunk rows, letting the caller (C7)
// persist as batches complete so a partial embedding failure preserves
// prior progress (spec §4.7 step 6).
func (r *ChunkRepo) InsertBatch(ctx context.Context, chunks []model.InsightChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	const query = `
		INSERT INTO insight_chunks
			(id, insight_id, chunk_index, chunk_text, chunk_size, estimated_tokens, chunk_method, chunk_overlap,
			 embedding, embedding_model, embedding_tokens, embedding_generated_at, created_at, updated_at)
		VALUES
			(:id, :insight_id, :chunk_index, :chunk_text, :chunk_size, :estimated_tokens, :chunk_method, :chunk_overlap,
			 :embedding, :embedding_model, :embedding_tokens, :embedding_generated_at, :created_at, :updated_at)
		ON CONFLICT (insight_id, chunk_index) DO UPDATE SET
			chunk_text = EXCLUDED.chunk_text,
			chunk_size = EXCLUDED.chunk_size,
			estimated_tokens = EXCLUDED.estimated_tokens,
			embedding = EXCLUDED.embedding,
			embedding_model = EXCLUDED.embedding_model,
			embedding_tokens = EXCLUDED.embedding_tokens,
			embedding_generated_at = EXCLUDED.embedding_generated_at,
			updated_at = EXCLUDED.updated_at
	`
	for _, c := range chunks {
		row := chunkRow{InsightChunk: c}
		if len(c.Embedding) > 0 {
			v := pgvector.NewVector(c.Embedding)
			row.EmbeddingVector = &v
		}
		if _, err := tx.NamedExecContext(ctx, query, row); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// DeleteByInsightID clears prior chunks before a re-run reinserts them,
// satisfying the idempotency rule in spec §4.7: a repeat pipeline run must
// not leave stale trailing chunks behind when the new split produces fewer
// pieces than the last one.
func (r *ChunkRepo) DeleteByInsightID(ctx context.Context, insightID string) error {
	const query = `DELETE FROM insight_chunks WHERE insight_id = $1`
	_, err := r.db.ExecContext(ctx, query, insightID)
	return err
}

// chunkRow adds the pgvector-encoded column on top of model.InsightChunk,
// whose own Embedding field is tagged db:"-" since []float32 has no direct
// driver mapping.
type chunkRow struct {
	model.InsightChunk
	EmbeddingVector *pgvector.Vector `db:"embedding"`
}

func (r *ChunkRepo) ListByInsightID(ctx context.Context, insightID string) ([]model.InsightChunk, error) {
	const query = `
		SELECT id, insight_id, chunk_index, chunk_text, chunk_size, estimated_tokens, chunk_method, chunk_overlap,
			embedding_model, embedding_tokens, embedding_generated_at, created_at, updated_at
		FROM insight_chunks WHERE insight_id = $1 ORDER BY chunk_index ASC
	`
	out := make([]model.InsightChunk, 0)
	if err := r.db.SelectContext(ctx, &out, query, insightID); err != nil {
		return nil, err
	}
	return out, nil
}

// ScoredChunk is one retrieval hit, chunk plus similarity and parent
// insight metadata for C8/C9's citation rendering.
type ScoredChunk struct {
	model.InsightChunk
	Score          float64 `db:"score"`
	InsightTitle   string  `db:"insight_title"`
	InsightURL     string  `db:"insight_url"`
	InsightSummary string  `db:"insight_summary"`
}

// SearchByEmbedding runs the DB-side pgvector cosine search: `1 - (embedding
// <=> $1)` maps pgvector's cosine-distance operator to a similarity score in
// [-1,1], filtered to a user's own chunks and a minimum score (spec §4.8).
func (r *ChunkRepo) SearchByEmbedding(ctx context.Context, userID string, query []float32, k int, minScore float64) ([]ScoredChunk, error) {
	const sqlQuery = `
		SELECT
			c.id, c.insight_id, c.chunk_index, c.chunk_text, c.chunk_size, c.estimated_tokens,
			c.chunk_method, c.chunk_overlap, c.embedding_model, c.embedding_tokens,
			c.embedding_generated_at, c.created_at, c.updated_at,
			1 - (c.embedding <=> $1) AS score,
			i.title AS insight_title, i.url AS insight_url, COALESCE(ic.summary, '') AS insight_summary
		FROM insight_chunks c
		JOIN insights i ON i.id = c.insight_id
		LEFT JOIN insight_contents ic ON ic.insight_id = c.insight_id
		WHERE i.user_id = $2 AND c.embedding IS NOT NULL
		ORDER BY c.embedding <=> $1, c.insight_id ASC, c.chunk_index ASC
		LIMIT $3
	`
	vec := pgvector.NewVector(query)
	rows := make([]ScoredChunk, 0)
	if err := r.db.SelectContext(ctx, &rows, sqlQuery, vec, userID, k); err != nil {
		return nil, err
	}
	filtered := rows[:0]
	for _, row := range rows {
		if row.Score >= minScore {
			filtered = append(filtered, row)
		}
	}
	return filtered, nil
}

// EmbeddedChunk is a chunk plus its raw embedding, for the client-side
// cosine strategy spec §4.8 allows when a user's chunk count is modest.
type EmbeddedChunk struct {
	model.InsightChunk
	Embedding      pgvector.Vector `db:"embedding"`
	InsightTitle   string          `db:"insight_title"`
	InsightURL     string          `db:"insight_url"`
	InsightSummary string          `db:"insight_summary"`
}

// ListEmbeddingsForUser pulls every embedded chunk owned by a user for
// in-memory cosine ranking, avoiding the DB-side `<=>` operator entirely.
func (r *ChunkRepo) ListEmbeddingsForUser(ctx context.Context, userID string) ([]EmbeddedChunk, error) {
	const query = `
		SELECT
			c.id, c.insight_id, c.chunk_index, c.chunk_text, c.chunk_size, c.estimated_tokens,
			c.chunk_method, c.chunk_overlap, c.embedding_model, c.embedding_tokens,
			c.embedding_generated_at, c.created_at, c.updated_at, c.embedding,
			i.title AS insight_title, i.url AS insight_url, COALESCE(ic.summary, '') AS insight_summary
		FROM insight_chunks c
		JOIN insights i ON i.id = c.insight_id
		LEFT JOIN insight_contents ic ON ic.insight_id = c.insight_id
		WHERE i.user_id = $1 AND c.embedding IS NOT NULL
	`
	out := make([]EmbeddedChunk, 0)
	if err := r.db.SelectContext(ctx, &out, query, userID); err != nil {
		return nil, err
	}
	return out, nil
}

// PendingEmbeddingRetry lists chunks whose embedding never landed, for the
// internal sweep job the digest §9 redesign flag calls for.
func (r *ChunkRepo) PendingEmbeddingRetry(ctx context.Context, olderThan time.Duration, limit int) ([]model.InsightChunk, error) {
	const query = `
		SELECT id, insight_id, chunk_index, chunk_text, chunk_size, estimated_tokens, chunk_method, chunk_overlap,
			embedding_model, embedding_tokens, embedding_generated_at, created_at, updated_at
		FROM insight_chunks
		WHERE embedding IS NULL AND created_at < now() - ($1 || ' seconds')::interval
		ORDER BY created_at ASC
		LIMIT $2
	`
	out := make([]model.InsightChunk, 0)
	seconds := int(olderThan.Seconds())
	if err := r.db.SelectContext(ctx, &out, query, seconds, limit); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateEmbedding sets a chunk's embedding after a retry succeeds.
func (r *ChunkRepo) UpdateEmbedding(ctx context.Context, id string, embedding []float32, embeddingModel string, embeddingTokens int) error {
	const query = `
		UPDATE insight_chunks
		SET embedding = $1, embedding_model = $2, embedding_tokens = $3, embedding_generated_at = now(), updated_at = now()
		WHERE id = $4
	`
	vec := pgvector.NewVector(embedding)
	_, err := r.db.ExecContext(ctx, query, vec, embeddingModel, embeddingTokens, id)
	return err
}
