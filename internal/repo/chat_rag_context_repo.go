package repo

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/xxxsen/quill/internal/model"
	appErr "github.com/xxxsen/quill/internal/pkg/errors"
)

type ChatRagContextRepo struct {
	db *sqlx.DB
}

func NewChatRagContextRepo(db *sqlx.DB) *ChatRagContextRepo {
	return &ChatRagContextRepo{db: db}
}

func (r *ChatRagContextRepo) Create(ctx context.Context, c *model.ChatRagContext) error {
	const query = `
		INSERT INTO chat_rag_contexts
			(id, message_id, rag_chunks, context_text, total_context_tokens, extracted_keywords, rag_k, rag_min_score)
		VALUES
			(:id, :message_id, :rag_chunks, :context_text, :total_context_tokens, :extracted_keywords, :rag_k, :rag_min_score)
	`
	_, err := r.db.NamedExecContext(ctx, query, c)
	return err
}

func (r *ChatRagContextRepo) GetByMessageID(ctx context.Context, messageID string) (*model.ChatRagContext, error) {
	const query = `
		SELECT id, message_id, rag_chunks, context_text, total_context_tokens, extracted_keywords, rag_k, rag_min_score
		FROM chat_rag_contexts WHERE message_id = $1
	`
	var out model.ChatRagContext
	if err := r.db.GetContext(ctx, &out, query, messageID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErr.ErrNotFound
		}
		return nil, err
	}
	return &out, nil
}
