package repo

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/xxxsen/quill/internal/model"
	"github.com/xxxsen/quill/internal/pkg/dbutil"
)

type UnsubscribeTokenRepo struct {
	db *sqlx.DB
}

func NewUnsubscribeTokenRepo(db *sqlx.DB) *UnsubscribeTokenRepo {
	return &UnsubscribeTokenRepo{db: db}
}

// GetOrCreate returns the stable per-user token used in digest email links,
// minting one on first use.
func (r *UnsubscribeTokenRepo) GetOrCreate(ctx context.Context, userID, token string) (string, error) {
	const selectQuery = `SELECT token FROM unsubscribe_tokens WHERE user_id = $1`
	var existing string
	err := r.db.GetContext(ctx, &existing, selectQuery, userID)
	if err == nil {
		return existing, nil
	}
	if err != sql.ErrNoRows {
		return "", err
	}
	const insertQuery = `INSERT INTO unsubscribe_tokens (token, user_id, created_at) VALUES ($1, $2, now())`
	if _, err := r.db.ExecContext(ctx, insertQuery, token, userID); err != nil {
		if dbutil.IsConflict(err) {
			return r.GetOrCreate(ctx, userID, token)
		}
		return "", err
	}
	return token, nil
}

func (r *UnsubscribeTokenRepo) ResolveUserID(ctx context.Context, token string) (string, error) {
	const query = `SELECT user_id FROM unsubscribe_tokens WHERE token = $1`
	var userID string
	if err := r.db.GetContext(ctx, &userID, query, token); err != nil {
		return "", err
	}
	return userID, nil
}

type EmailEventRepo struct {
	db *sqlx.DB
}

func NewEmailEventRepo(db *sqlx.DB) *EmailEventRepo {
	return &EmailEventRepo{db: db}
}

func (r *EmailEventRepo) Create(ctx context.Context, e *model.EmailEvent) error {
	const query = `
		INSERT INTO email_events (id, user_id, email, event_type, message_id, payload, created_at)
		VALUES (:id, :user_id, :email, :event_type, :message_id, :payload, :created_at)
	`
	_, err := r.db.NamedExecContext(ctx, query, e)
	return err
}

type EmailSuppressionRepo struct {
	db *sqlx.DB
}

func NewEmailSuppressionRepo(db *sqlx.DB) *EmailSuppressionRepo {
	return &EmailSuppressionRepo{db: db}
}

// Suppress is idempotent: a bounce and a later complaint for the same
// address both succeed without erroring on the unique (email) constraint.
func (r *EmailSuppressionRepo) Suppress(ctx context.Context, s *model.EmailSuppression) error {
	const query = `
		INSERT INTO email_suppressions (id, email, reason, created_at)
		VALUES (:id, :email, :reason, :created_at)
		ON CONFLICT (email) DO UPDATE SET reason = EXCLUDED.reason
	`
	_, err := r.db.NamedExecContext(ctx, query, s)
	return err
}

func (r *EmailSuppressionRepo) IsSuppressed(ctx context.Context, email string) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM email_suppressions WHERE email = $1)`
	var suppressed bool
	if err := r.db.GetContext(ctx, &suppressed, query, email); err != nil {
		return false, err
	}
	return suppressed, nil
}
