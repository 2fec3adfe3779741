// Package notifications provides the PostgreSQL-backed repository for
// notification rows.
package notifications

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/mkarpis/chatdb/internal/common"
	"github.com/mkarpis/chatdb/internal/dbx"
	"github.com/mkarpis/chatdb/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, userID string, ntype string, payload models.Payload) error {

	query :=
		`INSERT INTO notifications (user_id, type, payload)
		 VALUES ($1, $2, $3)
		 `

	_, err := r.db.Exec(ctx, query, userID, ntype, payload)
	if err != nil {
		if dbx.IsForeignKeyViolation(err) {
			return fmt.Errorf("user: %w", common.ErrorNotFound)
		}
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}

func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]*models.Notification, error) {

	query :=
		`SELECT id, user_id, type, payload, read, created_at
		 FROM notifications
		 WHERE user_id = $1
		 ORDER BY created_at DESC
		 `

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	return scanNotifications(rows)
}

// ListCreatedAfter returns the user's notifications created strictly after
// the given instant. Used by the long-poll loop.
func (r *PostgresRepository) ListCreatedAfter(ctx context.Context, userID string, since time.Time) ([]*models.Notification, error) {

	query :=
		`SELECT id, user_id, type, payload, read, created_at
		 FROM notifications
		 WHERE user_id = $1 AND created_at > $2
		 `

	rows, err := r.db.Query(ctx, query, userID, since)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	return scanNotifications(rows)
}

func (r *PostgresRepository) ListUnreadIDs(ctx context.Context, userID string) ([]string, error) {

	query :=
		`SELECT id FROM notifications
		 WHERE user_id = $1 AND NOT read
		 `

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		result = append(result, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) MarkRead(ctx context.Context, id string) error {

	query :=
		`UPDATE notifications SET read = true
		 WHERE id = $1
		 `

	_, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}

func (r *PostgresRepository) CountUnread(ctx context.Context, userID string) (int64, error) {

	query :=
		`SELECT COUNT(*) FROM notifications
		 WHERE user_id = $1 AND NOT read
		 `

	var count int64
	err := r.db.QueryRow(ctx, query, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}

	return count, nil
}

// CountUnreadAll totals unread notifications across every user. Broadcast
// reads it inside its transaction, which also gives serializable runs a
// predicate for conflict detection.
func (r *PostgresRepository) CountUnreadAll(ctx context.Context) (int64, error) {

	query := `SELECT COUNT(*) FROM notifications WHERE NOT read`

	var count int64
	err := r.db.QueryRow(ctx, query).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}

	return count, nil
}

func scanNotifications(rows pgx.Rows) ([]*models.Notification, error) {
	var result []*models.Notification
	for rows.Next() {
		var item models.Notification
		if err := rows.Scan(
			&item.ID, &item.UserID, &item.Type, &item.Payload,
			&item.Read, &item.CreatedAt,
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
