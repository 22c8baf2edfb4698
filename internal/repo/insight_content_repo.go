package repo

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/xxxsen/quill/internal/model"
	appErr "github.com/xxxsen/quill/internal/pkg/errors"
)

type InsightContentRepo struct {
	db *sqlx.DB
}

func NewInsightContentRepo(db *sqlx.DB) *InsightContentRepo {
	return &InsightContentRepo{db: db}
}

// Upsert keys on insight_id, matching the invariant "exactly one row per
// Insight after successful ingestion" (spec §3).
func (r *InsightContentRepo) Upsert(ctx context.Context, c *model.InsightContent) error {
	const query = `
		INSERT INTO insight_contents (insight_id, user_id, url, html, text, markdown, summary, thought, content_type, extracted_at)
		VALUES (:insight_id, :user_id, :url, :html, :text, :markdown, :summary, :thought, :content_type, :extracted_at)
		ON CONFLICT (insight_id) DO UPDATE SET
			html = EXCLUDED.html,
			text = EXCLUDED.text,
			markdown = EXCLUDED.markdown,
			summary = EXCLUDED.summary,
			content_type = EXCLUDED.content_type,
			extracted_at = EXCLUDED.extracted_at
	`
	_, err := r.db.NamedExecContext(ctx, query, c)
	return err
}

func (r *InsightContentRepo) GetByInsightID(ctx context.Context, insightID string) (*model.InsightContent, error) {
	const query = `
		SELECT insight_id, user_id, url, html, text, markdown, summary, thought, content_type, extracted_at
		FROM insight_contents WHERE insight_id = $1
	`
	var out model.InsightContent
	if err := r.db.GetContext(ctx, &out, query, insightID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErr.ErrNotFound
		}
		return nil, err
	}
	return &out, nil
}

// ListByInsightIDs batches content lookups for C12's digest payload build,
// avoiding one round trip per insight.
func (r *InsightContentRepo) ListByInsightIDs(ctx context.Context, insightIDs []string) ([]model.InsightContent, error) {
	if len(insightIDs) == 0 {
		return nil, nil
	}
	const query = `
		SELECT insight_id, user_id, url, html, text, markdown, summary, thought, content_type, extracted_at
		FROM insight_contents WHERE insight_id = ANY($1)
	`
	out := make([]model.InsightContent, 0, len(insightIDs))
	if err := r.db.SelectContext(ctx, &out, query, pq.Array(insightIDs)); err != nil {
		return nil, err
	}
	return out, nil
}
