package notifications

import (
	"context"
	"time"

	"github.com/mkarpis/chatdb/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, userID string, ntype string, payload models.Payload) error
	ListByUser(ctx context.Context, userID string) ([]*models.Notification, error)
	ListCreatedAfter(ctx context.Context, userID string, since time.Time) ([]*models.Notification, error)
	ListUnreadIDs(ctx context.Context, userID string) ([]string, error)
	MarkRead(ctx context.Context, id string) error
	CountUnread(ctx context.Context, userID string) (int64, error)
	CountUnreadAll(ctx context.Context) (int64, error)
}
