package users

import (
	"context"
)

type Repository interface {
	Ensure(ctx context.Context, id string, email string) error
	ListIDs(ctx context.Context) ([]string, error)
	GetTokenUsage(ctx context.Context, userID string) (int64, error)
	UpdateTokenUsage(ctx context.Context, userID string, usage int64) error
}
