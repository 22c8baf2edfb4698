package repo

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/xxxsen/quill/internal/model"
	appErr "github.com/xxxsen/quill/internal/pkg/errors"
)

type ChatSessionRepo struct {
	db *sqlx.DB
}

func NewChatSessionRepo(db *sqlx.DB) *ChatSessionRepo {
	return &ChatSessionRepo{db: db}
}

func (r *ChatSessionRepo) Create(ctx context.Context, s *model.ChatSession) error {
	const query = `
		INSERT INTO chat_sessions (id, user_id, title, is_active, metadata, created_at, updated_at)
		VALUES (:id, :user_id, :title, :is_active, :metadata, :created_at, :updated_at)
	`
	_, err := r.db.NamedExecContext(ctx, query, s)
	return err
}

func (r *ChatSessionRepo) GetByID(ctx context.Context, userID, id string) (*model.ChatSession, error) {
	const query = `
		SELECT id, user_id, title, is_active, metadata, created_at, updated_at
		FROM chat_sessions WHERE id = $1 AND user_id = $2
	`
	var out model.ChatSession
	if err := r.db.GetContext(ctx, &out, query, id, userID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErr.ErrNotFound
		}
		return nil, err
	}
	return &out, nil
}

func (r *ChatSessionRepo) List(ctx context.Context, userID string, limit, offset int) ([]model.ChatSession, error) {
	const query = `
		SELECT id, user_id, title, is_active, metadata, created_at, updated_at
		FROM chat_sessions WHERE user_id = $1 AND is_active = true
		ORDER BY updated_at DESC
		LIMIT $2 OFFSET $3
	`
	out := make([]model.ChatSession, 0)
	if err := r.db.SelectContext(ctx, &out, query, userID, limit, offset); err != nil {
		return nil, err
	}
	return out, nil
}

// TouchTitle sets the auto-derived title and bumps updated_at; the chat
// engine calls it on a session's first turn and Touch on later turns.
func (r *ChatSessionRepo) TouchTitle(ctx context.Context, id, title string) error {
	const query = `UPDATE chat_sessions SET title = $1, updated_at = now() WHERE id = $2`
	res, err := r.db.ExecContext(ctx, query, title, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (r *ChatSessionRepo) Touch(ctx context.Context, id string) error {
	const query = `UPDATE chat_sessions SET updated_at = now() WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// Deactivate soft-deletes a session (spec: sessions are archived, not purged,
// so history stays available to memory consolidation).
func (r *ChatSessionRepo) Deactivate(ctx context.Context, userID, id string) error {
	const query = `UPDATE chat_sessions SET is_active = false, updated_at = now() WHERE id = $1 AND user_id = $2`
	res, err := r.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}
