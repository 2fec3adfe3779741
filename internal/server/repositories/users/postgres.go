package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mkarpis/chatdb/internal/common"
	"github.com/mkarpis/chatdb/internal/dbx"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Ensure(ctx context.Context, id string, email string) error {

	query :=
		`INSERT INTO users (id, email, plan_tier)
		 VALUES ($1, $2, 'free')
		 ON CONFLICT (id) DO NOTHING
		 `

	_, err := r.db.Exec(ctx, query, id, email)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}

func (r *PostgresRepository) ListIDs(ctx context.Context) ([]string, error) {

	query := `SELECT id FROM users`

	rows, err := r.db.Query(ctx, query)
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

func (r *PostgresRepository) GetTokenUsage(ctx context.Context, userID string) (int64, error) {

	query :=
		`SELECT token_usage FROM users
		 WHERE id = $1
		 `

	var usage int64
	err := r.db.QueryRow(ctx, query, userID).Scan(&usage)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, common.ErrorNotFound
		}
		return 0, fmt.Errorf("db error: %w", err)
	}

	return usage, nil
}

func (r *PostgresRepository) UpdateTokenUsage(ctx context.Context, userID string, usage int64) error {

	query :=
		`UPDATE users SET token_usage = $1, updated_at = now()
		 WHERE id = $2
		 `

	_, err := r.db.Exec(ctx, query, usage, userID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}
