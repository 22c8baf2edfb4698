package repo

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/xxxsen/quill/internal/model"
	appErr "github.com/xxxsen/quill/internal/pkg/errors"
)

type ProfileRepo struct {
	db *sqlx.DB
}

func NewProfileRepo(db *sqlx.DB) *ProfileRepo {
	return &ProfileRepo{db: db}
}

func (r *ProfileRepo) GetByID(ctx context.Context, id string) (*model.Profile, error) {
	const query = `
		SELECT id, username, nickname, email, avatar_url, bio, memory_profile, created_at, updated_at
		FROM profiles WHERE id = $1
	`
	var out model.Profile
	if err := r.db.GetContext(ctx, &out, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErr.ErrNotFound
		}
		return nil, err
	}
	return &out, nil
}

// EnsureExists lazily creates a profile row, with a fresh MemoryProfile at
// the current schema version, when none exists yet for the user; the auth
// middleware calls it on every authenticated request.
func (r *ProfileRepo) EnsureExists(ctx context.Context, id, username, email string) (*model.Profile, error) {
	existing, err := r.GetByID(ctx, id)
	if err == nil {
		return existing, nil
	}
	if err != appErr.ErrNotFound {
		return nil, err
	}
	p := &model.Profile{
		ID:            id,
		Username:      username,
		Email:         email,
		MemoryProfile: model.NewMemoryProfile(),
	}
	const query = `
		INSERT INTO profiles (id, username, nickname, email, avatar_url, bio, memory_profile, created_at, updated_at)
		VALUES (:id, :username, :nickname, :email, :avatar_url, :bio, :memory_profile, now(), now())
		ON CONFLICT (id) DO NOTHING
	`
	if _, err := r.db.NamedExecContext(ctx, query, p); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

func (r *ProfileRepo) UpdateMemoryProfile(ctx context.Context, id string, mp model.MemoryProfile) error {
	const query = `UPDATE profiles SET memory_profile = $1, updated_at = now() WHERE id = $2`
	res, err := r.db.ExecContext(ctx, query, mp, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (r *ProfileRepo) UpdateBio(ctx context.Context, id, nickname, bio, avatarURL string) error {
	const query = `
		UPDATE profiles SET nickname = $1, bio = $2, avatar_url = $3, updated_at = now() WHERE id = $4
	`
	res, err := r.db.ExecContext(ctx, query, nickname, bio, avatarURL, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}
