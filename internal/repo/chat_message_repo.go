package repo

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/xxxsen/quill/internal/model"
)

type ChatMessageRepo struct {
	db *sqlx.DB
}

func NewChatMessageRepo(db *sqlx.DB) *ChatMessageRepo {
	return &ChatMessageRepo{db: db}
}

func (r *ChatMessageRepo) Create(ctx context.Context, m *model.ChatMessage) error {
	const query = `
		INSERT INTO chat_messages (id, session_id, role, content, parent_message_id, metadata, created_at)
		VALUES (:id, :session_id, :role, :content, :parent_message_id, :metadata, :created_at)
	`
	_, err := r.db.NamedExecContext(ctx, query, m)
	return err
}

// ListBySession returns messages oldest-first, matching prompt-assembly order.
func (r *ChatMessageRepo) ListBySession(ctx context.Context, sessionID string, limit int) ([]model.ChatMessage, error) {
	const query = `
		SELECT id, session_id, role, content, parent_message_id, metadata, created_at
		FROM chat_messages WHERE session_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	out := make([]model.ChatMessage, 0)
	if err := r.db.SelectContext(ctx, &out, query, sessionID, limit); err != nil {
		return nil, err
	}
	reverse(out)
	return out, nil
}

func reverse(msgs []model.ChatMessage) {
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
}

func (r *ChatMessageRepo) CountBySession(ctx context.Context, sessionID string) (int, error) {
	const query = `SELECT count(*) FROM chat_messages WHERE session_id = $1`
	var n int
	if err := r.db.GetContext(ctx, &n, query, sessionID); err != nil {
		return 0, err
	}
	return n, nil
}
