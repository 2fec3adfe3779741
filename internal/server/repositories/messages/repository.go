package messages

import (
	"context"

	"github.com/mkarpis/chatdb/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, conversationID string, role string, content string, tokenCount int) (*models.Message, error)
	ListWithTotals(ctx context.Context, conversationID string) ([]*models.MessageWithTotal, error)
	Search(ctx context.Context, userID string, query string, limit int) ([]*models.Message, error)
	SumTokens(ctx context.Context, conversationID string) (int64, error)
}
