package repo

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/xxxsen/quill/internal/model"
	"github.com/xxxsen/quill/internal/pkg/dbutil"
	appErr "github.com/xxxsen/quill/internal/pkg/errors"
)

type EmailDigestRepo struct {
	db *sqlx.DB
}

func NewEmailDigestRepo(db *sqlx.DB) *EmailDigestRepo {
	return &EmailDigestRepo{db: db}
}

// ClaimSlot inserts the queued row for a (user, week_start) pair. A unique
// constraint on (user_id, week_start) makes this the idempotency guard: two
// concurrent sweep runs racing on the same user/week will have exactly one
// winner (spec §4.13 "idempotent per user per week").
func (r *EmailDigestRepo) ClaimSlot(ctx context.Context, d *model.EmailDigest) (bool, error) {
	const query = `
		INSERT INTO email_digests (id, user_id, week_start, status, payload, message_id, error, retry_count, created_at, updated_at)
		VALUES (:id, :user_id, :week_start, :status, :payload, :message_id, :error, :retry_count, now(), now())
	`
	_, err := r.db.NamedExecContext(ctx, query, d)
	if err != nil {
		if dbutil.IsConflict(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *EmailDigestRepo) MarkSent(ctx context.Context, id, messageID string) error {
	const query = `UPDATE email_digests SET status = $1, message_id = $2, updated_at = now() WHERE id = $3`
	res, err := r.db.ExecContext(ctx, query, model.DigestStatusSent, messageID, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// MarkSentWithPayload records the rendered payload alongside the sent
// transition, so the audit row is self-contained for later inspection.
func (r *EmailDigestRepo) MarkSentWithPayload(ctx context.Context, id, messageID string, payload []byte) error {
	const query = `
		UPDATE email_digests SET status = $1, message_id = $2, payload = $3, updated_at = now() WHERE id = $4
	`
	res, err := r.db.ExecContext(ctx, query, model.DigestStatusSent, messageID, payload, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (r *EmailDigestRepo) MarkFailed(ctx context.Context, id, errMsg string) error {
	const query = `
		UPDATE email_digests
		SET status = $1, error = $2, retry_count = retry_count + 1, updated_at = now()
		WHERE id = $3
	`
	res, err := r.db.ExecContext(ctx, query, model.DigestStatusFailed, errMsg, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (r *EmailDigestRepo) GetByUserAndWeek(ctx context.Context, userID string, weekStart interface{}) (*model.EmailDigest, error) {
	const query = `
		SELECT id, user_id, week_start, status, payload, message_id, error, retry_count, created_at, updated_at
		FROM email_digests WHERE user_id = $1 AND week_start = $2
	`
	var out model.EmailDigest
	if err := r.db.GetContext(ctx, &out, query, userID, weekStart); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErr.ErrNotFound
		}
		return nil, err
	}
	return &out, nil
}

func (r *EmailDigestRepo) ListFailedForRetry(ctx context.Context, maxRetries, limit int) ([]model.EmailDigest, error) {
	const query = `
		SELECT id, user_id, week_start, status, payload, message_id, error, retry_count, created_at, updated_at
		FROM email_digests WHERE status = $1 AND retry_count < $2
		ORDER BY updated_at ASC
		LIMIT $3
	`
	out := make([]model.EmailDigest, 0)
	if err := r.db.SelectContext(ctx, &out, query, model.DigestStatusFailed, maxRetries, limit); err != nil {
		return nil, err
	}
	return out, nil
}
