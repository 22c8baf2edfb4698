package repo

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/xxxsen/quill/internal/model"
	appErr "github.com/xxxsen/quill/internal/pkg/errors"
)

type ChatMemoryRepo struct {
	db *sqlx.DB
}

func NewChatMemoryRepo(db *sqlx.DB) *ChatMemoryRepo {
	return &ChatMemoryRepo{db: db}
}

func (r *ChatMemoryRepo) Create(ctx context.Context, m *model.ChatMemory) error {
	const query = `
		INSERT INTO chat_memories
			(id, session_id, user_id, memory_type, content, importance_score, is_active, metadata, created_at, updated_at)
		VALUES
			(:id, :session_id, :user_id, :memory_type, :content, :importance_score, :is_active, :metadata, :created_at, :updated_at)
	`
	_, err := r.db.NamedExecContext(ctx, query, m)
	return err
}

func (r *ChatMemoryRepo) GetByID(ctx context.Context, userID, id string) (*model.ChatMemory, error) {
	const query = `
		SELECT id, session_id, user_id, memory_type, content, importance_score, is_active, metadata, created_at, updated_at
		FROM chat_memories WHERE id = $1 AND user_id = $2
	`
	var out model.ChatMemory
	if err := r.db.GetContext(ctx, &out, query, id, userID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErr.ErrNotFound
		}
		return nil, err
	}
	return &out, nil
}

// ListActiveByType powers consolidation: candidates are scoped per-user,
// per-type so unrelated buckets never merge into one another.
func (r *ChatMemoryRepo) ListActiveByType(ctx context.Context, userID string, memType model.MemoryType) ([]model.ChatMemory, error) {
	const query = `
		SELECT id, session_id, user_id, memory_type, content, importance_score, is_active, metadata, created_at, updated_at
		FROM chat_memories WHERE user_id = $1 AND memory_type = $2 AND is_active = true
		ORDER BY created_at ASC
	`
	out := make([]model.ChatMemory, 0)
	if err := r.db.SelectContext(ctx, &out, query, userID, memType); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *ChatMemoryRepo) ListBySession(ctx context.Context, sessionID string) ([]model.ChatMemory, error) {
	const query = `
		SELECT id, session_id, user_id, memory_type, content, importance_score, is_active, metadata, created_at, updated_at
		FROM chat_memories WHERE session_id = $1 AND is_active = true
		ORDER BY created_at ASC
	`
	out := make([]model.ChatMemory, 0)
	if err := r.db.SelectContext(ctx, &out, query, sessionID); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *ChatMemoryRepo) ListActiveForUser(ctx context.Context, userID string) ([]model.ChatMemory, error) {
	const query = `
		SELECT id, session_id, user_id, memory_type, content, importance_score, is_active, metadata, created_at, updated_at
		FROM chat_memories WHERE user_id = $1 AND is_active = true
		ORDER BY importance_score DESC, created_at ASC
	`
	out := make([]model.ChatMemory, 0)
	if err := r.db.SelectContext(ctx, &out, query, userID); err != nil {
		return nil, err
	}
	return out, nil
}

// Deactivate marks a set of memories superseded by a consolidated entry; it
// never deletes rows so provenance survives for audit.
func (r *ChatMemoryRepo) Deactivate(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	const query = `UPDATE chat_memories SET is_active = false, updated_at = now() WHERE id = ANY($1)`
	_, err := r.db.ExecContext(ctx, query, pq.Array(ids))
	return err
}

func (r *ChatMemoryRepo) Delete(ctx context.Context, userID, id string) error {
	const query = `DELETE FROM chat_memories WHERE id = $1 AND user_id = $2`
	res, err := r.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}
