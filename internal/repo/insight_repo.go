package repo

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/xxxsen/quill/internal/model"
	appErr "github.com/xxxsen/quill/internal/pkg/errors"
)

type InsightRepo struct {
	db *sqlx.DB
}

func NewInsightRepo(db *sqlx.DB) *InsightRepo {
	return &InsightRepo{db: db}
}

// CreateSkeleton inserts the synchronous-path insight row (spec §4.7 step A.2).
func (r *InsightRepo) CreateSkeleton(ctx context.Context, in *model.Insight) error {
	const query = `
		INSERT INTO insights (id, user_id, url, title, description, image_url, thought, created_at, updated_at)
		VALUES (:id, :user_id, :url, :title, :description, :image_url, :thought, :created_at, :updated_at)
	`
	_, err := r.db.NamedExecContext(ctx, query, in)
	return err
}

// UpdateMetadata applies the ingestion background task's final title/
// description/image_url (spec §4.7 step B.7).
func (r *InsightRepo) UpdateMetadata(ctx context.Context, id, userID, title, description, imageURL string) error {
	const query = `
		UPDATE insights
		SET title = $1, description = $2, image_url = $3, updated_at = now()
		WHERE id = $4 AND user_id = $5
	`
	res, err := r.db.ExecContext(ctx, query, title, description, imageURL, id, userID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (r *InsightRepo) GetByID(ctx context.Context, userID, id string) (*model.Insight, error) {
	const query = `
		SELECT id, user_id, url, title, description, image_url, thought, created_at, updated_at
		FROM insights WHERE id = $1 AND user_id = $2
	`
	var out model.Insight
	if err := r.db.GetContext(ctx, &out, query, id, userID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErr.ErrNotFound
		}
		return nil, err
	}
	return &out, nil
}

func (r *InsightRepo) List(ctx context.Context, userID string, limit, offset int) ([]model.Insight, error) {
	const query = `
		SELECT id, user_id, url, title, description, image_url, thought, created_at, updated_at
		FROM insights WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	out := make([]model.Insight, 0)
	if err := r.db.SelectContext(ctx, &out, query, userID, limit, offset); err != nil {
		return nil, err
	}
	return out, nil
}

// Count backs the §6 `pagination.total` field for the unfiltered listing.
func (r *InsightRepo) Count(ctx context.Context, userID string) (int, error) {
	const query = `SELECT COUNT(*) FROM insights WHERE user_id = $1`
	var n int
	if err := r.db.GetContext(ctx, &n, query, userID); err != nil {
		return 0, err
	}
	return n, nil
}

// Search filters by a case-insensitive substring match against title,
// description, or url (spec §6's `search?` filter on GET /insights).
func (r *InsightRepo) Search(ctx context.Context, userID, search string, limit, offset int) ([]model.Insight, error) {
	const query = `
		SELECT id, user_id, url, title, description, image_url, thought, created_at, updated_at
		FROM insights
		WHERE user_id = $1 AND (title ILIKE $2 OR description ILIKE $2 OR url ILIKE $2)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`
	pattern := "%" + search + "%"
	out := make([]model.Insight, 0)
	if err := r.db.SelectContext(ctx, &out, query, userID, pattern, limit, offset); err != nil {
		return nil, err
	}
	return out, nil
}

// CountSearch mirrors Search's predicate for the pagination total.
func (r *InsightRepo) CountSearch(ctx context.Context, userID, search string) (int, error) {
	const query = `SELECT COUNT(*) FROM insights WHERE user_id = $1 AND (title ILIKE $2 OR description ILIKE $2 OR url ILIKE $2)`
	pattern := "%" + search + "%"
	var n int
	if err := r.db.GetContext(ctx, &n, query, userID, pattern); err != nil {
		return 0, err
	}
	return n, nil
}

// ListAll returns every insight for a user unpaginated, backing
// `GET /insights/all` (spec §6).
func (r *InsightRepo) ListAll(ctx context.Context, userID string) ([]model.Insight, error) {
	const query = `
		SELECT id, user_id, url, title, description, image_url, thought, created_at, updated_at
		FROM insights WHERE user_id = $1
		ORDER BY created_at DESC
	`
	out := make([]model.Insight, 0)
	if err := r.db.SelectContext(ctx, &out, query, userID); err != nil {
		return nil, err
	}
	return out, nil
}

// ListActiveSince powers C12's weekly digest insight collection: an insight
// counts as this week's activity if it was either created or touched again
// since windowStart, deliberately OR'd (not a [start,end) window) so the
// digest and the AI-summary narrative agree on the same item set.
func (r *InsightRepo) ListActiveSince(ctx context.Context, userID string, windowStart time.Time) ([]model.Insight, error) {
	const query = `
		SELECT id, user_id, url, title, description, image_url, thought, created_at, updated_at
		FROM insights WHERE user_id = $1 AND (created_at >= $2 OR updated_at >= $2)
		ORDER BY created_at DESC
	`
	out := make([]model.Insight, 0)
	if err := r.db.SelectContext(ctx, &out, query, userID, windowStart); err != nil {
		return nil, err
	}
	return out, nil
}

// CountActiveSince backs the digest dispatcher's has_insights check without
// pulling full rows.
func (r *InsightRepo) CountActiveSince(ctx context.Context, userID string, windowStart time.Time) (int, error) {
	const query = `SELECT COUNT(*) FROM insights WHERE user_id = $1 AND (created_at >= $2 OR updated_at >= $2)`
	var count int
	if err := r.db.GetContext(ctx, &count, query, userID, windowStart); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *InsightRepo) UpdateThought(ctx context.Context, userID, id, thought string) error {
	const query = `UPDATE insights SET thought = $1, updated_at = now() WHERE id = $2 AND user_id = $3`
	res, err := r.db.ExecContext(ctx, query, thought, id, userID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// Delete cascades to insight_contents/insight_chunks/insight_tags at the
// schema level (spec §3 Insight lifecycle).
func (r *InsightRepo) Delete(ctx context.Context, userID, id string) error {
	const query = `DELETE FROM insights WHERE id = $1 AND user_id = $2`
	res, err := r.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func requireAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErr.ErrNotFound
	}
	return nil
}
