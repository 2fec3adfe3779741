// Package messages provides the PostgreSQL-backed repository for message
// rows, including the per-read running-total projection and search.
package messages

import (
	"context"
	"fmt"

	"github.com/mkarpis/chatdb/internal/common"
	"github.com/mkarpis/chatdb/internal/dbx"
	"github.com/mkarpis/chatdb/internal/server/models"
)

// PostgresRepository implements message storage over a dbx.DBTX
// (pool, connection or transaction).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a message. Inserting against a missing conversation trips
// the foreign key and is reported as ErrorNotFound.
func (r *PostgresRepository) Create(ctx context.Context, conversationID string, role string, content string, tokenCount int) (*models.Message, error) {

	query :=
		`INSERT INTO messages (conversation_id, role, content, token_count)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, conversation_id, role, content, token_count, created_at
		 `

	m := &models.Message{}
	err := r.db.QueryRow(ctx, query, conversationID, role, content, tokenCount).
		Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &m.TokenCount, &m.CreatedAt)

	if err != nil {
		if dbx.IsForeignKeyViolation(err) {
			return nil, fmt.Errorf("conversation: %w", common.ErrorNotFound)
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return m, nil
}

// ListWithTotals returns the conversation's messages oldest first, each
// annotated with the sum of token counts over messages created at or
// before it. The total is recomputed by the store on every call.
func (r *PostgresRepository) ListWithTotals(ctx context.Context, conversationID string) ([]*models.MessageWithTotal, error) {

	query :=
		`SELECT m.id, m.conversation_id, m.role, m.content, m.token_count, m.created_at,
		        (SELECT SUM(token_count) FROM messages
		         WHERE conversation_id = m.conversation_id AND created_at <= m.created_at)
		        AS running_total
		 FROM messages m
		 WHERE m.conversation_id = $1
		 ORDER BY m.created_at ASC
		 `

	rows, err := r.db.Query(ctx, query, conversationID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.MessageWithTotal
	for rows.Next() {
		var item models.MessageWithTotal
		if err := rows.Scan(
			&item.ID, &item.ConversationID, &item.Role, &item.Content,
			&item.TokenCount, &item.CreatedAt, &item.RunningTotal,
		); err != nil {
			return nil, err
		}
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Search matches the user's messages by case-insensitive substring,
// newest first, bounded by limit.
func (r *PostgresRepository) Search(ctx context.Context, userID string, query string, limit int) ([]*models.Message, error) {

	q :=
		`SELECT m.id, m.conversation_id, m.role, m.content, m.token_count, m.created_at
		 FROM messages m
		 JOIN conversations c ON c.id = m.conversation_id
		 WHERE c.user_id = $1
		   AND m.content ILIKE '%' || $2 || '%'
		 ORDER BY m.created_at DESC
		 LIMIT $3
		 `

	rows, err := r.db.Query(ctx, q, userID, query, limit)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.Message
	for rows.Next() {
		var item models.Message
		if err := rows.Scan(
			&item.ID, &item.ConversationID, &item.Role, &item.Content,
			&item.TokenCount, &item.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// SumTokens totals token_count over the conversation's messages.
func (r *PostgresRepository) SumTokens(ctx context.Context, conversationID string) (int64, error) {

	query :=
		`SELECT COALESCE(SUM(token_count), 0) FROM messages
		 WHERE conversation_id = $1
		 `

	var total int64
	err := r.db.QueryRow(ctx, query, conversationID).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}

	return total, nil
}
