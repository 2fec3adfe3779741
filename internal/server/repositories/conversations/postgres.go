// Package conversations provides the PostgreSQL-backed repository for
// conversation rows and their message-count bookkeeping.
package conversations

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mkarpis/chatdb/internal/common"
	"github.com/mkarpis/chatdb/internal/dbx"
	"github.com/mkarpis/chatdb/internal/server/models"
)

// PostgresRepository implements conversation storage over a dbx.DBTX
// (pool, connection or transaction).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, userID string, title string) (*models.Conversation, error) {

	query :=
		`INSERT INTO conversations (user_id, title)
		 VALUES ($1, $2)
		 RETURNING id, user_id, title, message_count, updated_at, created_at
		 `

	c := &models.Conversation{}
	err := r.db.QueryRow(ctx, query, userID, title).
		Scan(&c.ID, &c.UserID, &c.Title, &c.MessageCount, &c.UpdatedAt, &c.CreatedAt)

	if err != nil {
		if dbx.IsForeignKeyViolation(err) {
			return nil, fmt.Errorf("user: %w", common.ErrorNotFound)
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return c, nil
}

func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]*models.Conversation, error) {

	query :=
		`SELECT id, user_id, title, message_count, updated_at, created_at
		 FROM conversations
		 WHERE user_id = $1
		 ORDER BY updated_at DESC
		 `

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.Conversation
	for rows.Next() {
		var item models.Conversation
		if err := rows.Scan(
			&item.ID, &item.UserID, &item.Title, &item.MessageCount,
			&item.UpdatedAt, &item.CreatedAt,
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

// GetOwner returns the user id owning the conversation, or ErrorNotFound.
func (r *PostgresRepository) GetOwner(ctx context.Context, conversationID string) (string, error) {

	query :=
		`SELECT user_id FROM conversations
		 WHERE id = $1
		 `

	var userID string
	err := r.db.QueryRow(ctx, query, conversationID).Scan(&userID)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", common.ErrorNotFound
		}
		return "", fmt.Errorf("db error: %w", err)
	}

	return userID, nil
}

func (r *PostgresRepository) GetTitle(ctx context.Context, conversationID string) (string, error) {

	query :=
		`SELECT title FROM conversations
		 WHERE id = $1
		 `

	var title string
	err := r.db.QueryRow(ctx, query, conversationID).Scan(&title)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", common.ErrorNotFound
		}
		return "", fmt.Errorf("db error: %w", err)
	}

	return title, nil
}

// IncrementMessageCount bumps message_count by n and touches updated_at in
// one store-side update, so concurrent appends never lose counts.
func (r *PostgresRepository) IncrementMessageCount(ctx context.Context, conversationID string, n int) error {

	query :=
		`UPDATE conversations
		 SET message_count = message_count + $2,
		     updated_at = now()
		 WHERE id = $1
		 `

	_, err := r.db.Exec(ctx, query, conversationID, n)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}

// Delete removes the conversation row; messages cascade at the store level.
func (r *PostgresRepository) Delete(ctx context.Context, conversationID string) error {

	query := `DELETE FROM conversations WHERE id = $1`

	_, err := r.db.Exec(ctx, query, conversationID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}
