package repo

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/xxxsen/quill/internal/model"
	appErr "github.com/xxxsen/quill/internal/pkg/errors"
)

type EmailPreferencesRepo struct {
	db *sqlx.DB
}

func NewEmailPreferencesRepo(db *sqlx.DB) *EmailPreferencesRepo {
	return &EmailPreferencesRepo{db: db}
}

func (r *EmailPreferencesRepo) GetByUserID(ctx context.Context, userID string) (*model.EmailPreferences, error) {
	const query = `
		SELECT user_id, weekly_digest_enabled, preferred_day, preferred_hour, timezone, no_activity_policy, created_at, updated_at
		FROM email_preferences WHERE user_id = $1
	`
	var out model.EmailPreferences
	if err := r.db.GetContext(ctx, &out, query, userID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErr.ErrNotFound
		}
		return nil, err
	}
	return &out, nil
}

func (r *EmailPreferencesRepo) Upsert(ctx context.Context, p *model.EmailPreferences) error {
	const query = `
		INSERT INTO email_preferences
			(user_id, weekly_digest_enabled, preferred_day, preferred_hour, timezone, no_activity_policy, created_at, updated_at)
		VALUES
			(:user_id, :weekly_digest_enabled, :preferred_day, :preferred_hour, :timezone, :no_activity_policy, now(), now())
		ON CONFLICT (user_id) DO UPDATE SET
			weekly_digest_enabled = EXCLUDED.weekly_digest_enabled,
			preferred_day = EXCLUDED.preferred_day,
			preferred_hour = EXCLUDED.preferred_hour,
			timezone = EXCLUDED.timezone,
			no_activity_policy = EXCLUDED.no_activity_policy,
			updated_at = now()
	`
	_, err := r.db.NamedExecContext(ctx, query, p)
	return err
}

// ListEnabled returns every user with weekly_digest_enabled set. Whether a
// user's local send time falls within the current sweep window is evaluated
// by the caller per-timezone since Postgres stores the raw IANA name, not an
// offset the DB itself can normalize.
func (r *EmailPreferencesRepo) ListEnabled(ctx context.Context) ([]model.EmailPreferences, error) {
	const query = `
		SELECT user_id, weekly_digest_enabled, preferred_day, preferred_hour, timezone, no_activity_policy, created_at, updated_at
		FROM email_preferences WHERE weekly_digest_enabled = true
	`
	out := make([]model.EmailPreferences, 0)
	if err := r.db.SelectContext(ctx, &out, query); err != nil {
		return nil, err
	}
	return out, nil
}

// ListAll powers a force-sweep, which per spec §4.13 bypasses the enabled
// flag (but not suppression) so an operator can trigger a test send for
// every configured user regardless of their digest opt-in state.
func (r *EmailPreferencesRepo) ListAll(ctx context.Context) ([]model.EmailPreferences, error) {
	const query = `
		SELECT user_id, weekly_digest_enabled, preferred_day, preferred_hour, timezone, no_activity_policy, created_at, updated_at
		FROM email_preferences
	`
	out := make([]model.EmailPreferences, 0)
	if err := r.db.SelectContext(ctx, &out, query); err != nil {
		return nil, err
	}
	return out, nil
}
