package repo

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/xxxsen/quill/internal/model"
	"github.com/xxxsen/quill/internal/pkg/dbutil"
	appErr "github.com/xxxsen/quill/internal/pkg/errors"
)

type TagRepo struct {
	db *sqlx.DB
}

func NewTagRepo(db *sqlx.DB) *TagRepo {
	return &TagRepo{db: db}
}

func (r *TagRepo) Create(ctx context.Context, t *model.UserTag) error {
	const query = `
		INSERT INTO user_tags (id, user_id, name, color, created_at, updated_at)
		VALUES (:id, :user_id, :name, :color, :created_at, :updated_at)
	`
	_, err := r.db.NamedExecContext(ctx, query, t)
	if err != nil && dbutil.IsConflict(err) {
		return appErr.ErrConflict
	}
	return err
}

func (r *TagRepo) List(ctx context.Context, userID string) ([]model.UserTag, error) {
	const query = `SELECT id, user_id, name, color, created_at, updated_at FROM user_tags WHERE user_id = $1 ORDER BY name ASC`
	out := make([]model.UserTag, 0)
	if err := r.db.SelectContext(ctx, &out, query, userID); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *TagRepo) GetByID(ctx context.Context, userID, id string) (*model.UserTag, error) {
	const query = `SELECT id, user_id, name, color, created_at, updated_at FROM user_tags WHERE id = $1 AND user_id = $2`
	var out model.UserTag
	if err := r.db.GetContext(ctx, &out, query, id, userID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErr.ErrNotFound
		}
		return nil, err
	}
	return &out, nil
}

func (r *TagRepo) Delete(ctx context.Context, userID, id string) error {
	const query = `DELETE FROM user_tags WHERE id = $1 AND user_id = $2`
	res, err := r.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// InsightTagRepo manages the many-to-many association between insights and
// tags.
type InsightTagRepo struct {
	db *sqlx.DB
}

func NewInsightTagRepo(db *sqlx.DB) *InsightTagRepo {
	return &InsightTagRepo{db: db}
}

func (r *InsightTagRepo) Attach(ctx context.Context, it *model.InsightTag) error {
	const query = `
		INSERT INTO insight_tags (id, insight_id, tag_id, user_id, created_at)
		VALUES (:id, :insight_id, :tag_id, :user_id, :created_at)
		ON CONFLICT (insight_id, tag_id) DO NOTHING
	`
	_, err := r.db.NamedExecContext(ctx, query, it)
	return err
}

func (r *InsightTagRepo) Detach(ctx context.Context, userID, insightID, tagID string) error {
	const query = `DELETE FROM insight_tags WHERE insight_id = $1 AND tag_id = $2 AND user_id = $3`
	_, err := r.db.ExecContext(ctx, query, insightID, tagID, userID)
	return err
}

func (r *InsightTagRepo) ListTagsForInsight(ctx context.Context, insightID string) ([]model.UserTag, error) {
	const query = `
		SELECT t.id, t.user_id, t.name, t.color, t.created_at, t.updated_at
		FROM user_tags t
		JOIN insight_tags it ON it.tag_id = t.id
		WHERE it.insight_id = $1
		ORDER BY t.name ASC
	`
	out := make([]model.UserTag, 0)
	if err := r.db.SelectContext(ctx, &out, query, insightID); err != nil {
		return nil, err
	}
	return out, nil
}

// InsightTagRow is one insight-to-tag-name pairing, used to build C12's
// tags section without an N+1 query per insight.
type InsightTagRow struct {
	InsightID string `db:"insight_id"`
	TagName   string `db:"tag_name"`
}

func (r *InsightTagRepo) ListTagsForInsights(ctx context.Context, insightIDs []string) ([]InsightTagRow, error) {
	if len(insightIDs) == 0 {
		return nil, nil
	}
	const query = `
		SELECT it.insight_id AS insight_id, t.name AS tag_name
		FROM insight_tags it
		JOIN user_tags t ON t.id = it.tag_id
		WHERE it.insight_id = ANY($1)
		ORDER BY t.name ASC
	`
	out := make([]InsightTagRow, 0)
	if err := r.db.SelectContext(ctx, &out, query, pq.Array(insightIDs)); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *InsightTagRepo) ListInsightIDsForTag(ctx context.Context, userID, tagID string) ([]string, error) {
	const query = `SELECT insight_id FROM insight_tags WHERE tag_id = $1 AND user_id = $2`
	var out []string
	if err := r.db.SelectContext(ctx, &out, query, tagID, userID); err != nil {
		return nil, err
	}
	return out, nil
}
