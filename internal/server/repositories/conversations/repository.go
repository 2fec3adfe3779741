package conversations

import (
	"context"

	"github.com/mkarpis/chatdb/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, userID string, title string) (*models.Conversation, error)
	ListByUser(ctx context.Context, userID string) ([]*models.Conversation, error)
	GetOwner(ctx context.Context, conversationID string) (string, error)
	GetTitle(ctx context.Context, conversationID string) (string, error)
	IncrementMessageCount(ctx context.Context, conversationID string, n int) error
	Delete(ctx context.Context, conversationID string) error
}
