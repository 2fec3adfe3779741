// Package services contains server-side business logic. This file implements
// ChatService, which owns conversations, messages, and the per-user token
// accounting that every write keeps in sync.
package services

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/mkarpis/chatdb/internal/common"
	"github.com/mkarpis/chatdb/internal/dbx"
	"github.com/mkarpis/chatdb/internal/server/config"
	"github.com/mkarpis/chatdb/internal/server/models"
	"github.com/mkarpis/chatdb/internal/server/repositories/repomanager"
)

const defaultSearchLimit = 50

// ChatService provides conversation and message operations:
// - CreateConversation / ListConversations / DeleteConversation
// - AddMessage / GetMessages / SearchMessages
// - StreamMessage (see stream.go)
//
// Each operation runs inside exactly one transaction on one pooled
// connection, held for the operation's full duration.
//
// Token accounting reads token_usage, adds in application code, and writes
// the result back. The read and the write are separate statements, so
// concurrent writers against the same user row can overwrite each other.
type ChatService struct {
	db             dbx.Beginner
	repomanager    repomanager.RepositoryManager
	streamDelayMin time.Duration
	streamDelayMax time.Duration
}

// NewChatService constructs a ChatService using repositories and server config.
func NewChatService(db dbx.Beginner, m repomanager.RepositoryManager, cfg *config.Config) *ChatService {
	return &ChatService{
		db:             db,
		repomanager:    m,
		streamDelayMin: cfg.StreamDelayMin,
		streamDelayMax: cfg.StreamDelayMax,
	}
}

// CreateConversation creates a conversation owned by userID. A missing user
// surfaces as common.ErrorNotFound.
func (s *ChatService) CreateConversation(ctx context.Context, userID string, title string) (*models.Conversation, error) {
	var conv *models.Conversation
	err := dbx.WithTx(ctx, s.db, pgx.TxOptions{}, func(ctx context.Context, tx dbx.DBTX) error {
		var txErr error
		conv, txErr = s.repomanager.Conversations(tx).Create(ctx, userID, title)
		return txErr
	})
	if err != nil {
		return nil, err
	}
	return conv, nil
}

// ListConversations returns the user's conversations, most recently
// updated first.
func (s *ChatService) ListConversations(ctx context.Context, userID string) ([]*models.Conversation, error) {
	var convs []*models.Conversation
	err := dbx.WithTx(ctx, s.db, pgx.TxOptions{}, func(ctx context.Context, tx dbx.DBTX) error {
		var txErr error
		convs, txErr = s.repomanager.Conversations(tx).ListByUser(ctx, userID)
		return txErr
	})
	if err != nil {
		return nil, err
	}
	return convs, nil
}

// AddMessage appends a message to a conversation and updates the owner's
// token accounting. In one transaction: insert the message, bump the
// conversation's message_count store-side, then read the owner's
// token_usage and write back the sum.
func (s *ChatService) AddMessage(ctx context.Context, conversationID string, role string, content string, tokenCount int) (*models.Message, error) {
	var msg *models.Message
	err := dbx.WithTx(ctx, s.db, pgx.TxOptions{}, func(ctx context.Context, tx dbx.DBTX) error {
		msgRepo := s.repomanager.Messages(tx)
		convRepo := s.repomanager.Conversations(tx)
		userRepo := s.repomanager.Users(tx)

		var txErr error
		msg, txErr = msgRepo.Create(ctx, conversationID, role, content, tokenCount)
		if txErr != nil {
			return txErr
		}

		if err := convRepo.IncrementMessageCount(ctx, conversationID, 1); err != nil {
			return err
		}

		userID, err := convRepo.GetOwner(ctx, conversationID)
		if err != nil {
			// Conversation gone mid-transaction: message is in, accounting is skipped.
			if errors.Is(err, common.ErrorNotFound) {
				return nil
			}
			return err
		}

		current, err := userRepo.GetTokenUsage(ctx, userID)
		if err != nil {
			return err
		}
		return userRepo.UpdateTokenUsage(ctx, userID, current+int64(tokenCount))
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// GetMessages returns the conversation's messages oldest first, each with a
// running token total recomputed by the store per request.
func (s *ChatService) GetMessages(ctx context.Context, conversationID string) ([]*models.MessageWithTotal, error) {
	var msgs []*models.MessageWithTotal
	err := dbx.WithTx(ctx, s.db, pgx.TxOptions{}, func(ctx context.Context, tx dbx.DBTX) error {
		var txErr error
		msgs, txErr = s.repomanager.Messages(tx).ListWithTotals(ctx, conversationID)
		return txErr
	})
	if err != nil {
		return nil, err
	}
	return msgs, nil
}

// SearchMessages runs a case-insensitive substring search over all of the
// user's messages, newest first. A non-positive limit falls back to 50.
func (s *ChatService) SearchMessages(ctx context.Context, userID string, query string, limit int) ([]*models.Message, error) {
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	var msgs []*models.Message
	err := dbx.WithTx(ctx, s.db, pgx.TxOptions{}, func(ctx context.Context, tx dbx.DBTX) error {
		var txErr error
		msgs, txErr = s.repomanager.Messages(tx).Search(ctx, userID, query, limit)
		return txErr
	})
	if err != nil {
		return nil, err
	}
	return msgs, nil
}

// DeleteConversation removes a conversation and reconciles the owner's
// token accounting. In one transaction: sum the conversation's message
// tokens, resolve the owner, delete the row (messages cascade), then read
// the owner's token_usage and write back the difference floored at zero.
// Returns false with a nil error when the conversation does not exist.
func (s *ChatService) DeleteConversation(ctx context.Context, conversationID string) (bool, error) {
	deleted := false
	err := dbx.WithTx(ctx, s.db, pgx.TxOptions{}, func(ctx context.Context, tx dbx.DBTX) error {
		msgRepo := s.repomanager.Messages(tx)
		convRepo := s.repomanager.Conversations(tx)
		userRepo := s.repomanager.Users(tx)

		totalTokens, err := msgRepo.SumTokens(ctx, conversationID)
		if err != nil {
			return err
		}

		userID, err := convRepo.GetOwner(ctx, conversationID)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return nil
			}
			return err
		}

		if err := convRepo.Delete(ctx, conversationID); err != nil {
			return err
		}

		current, err := userRepo.GetTokenUsage(ctx, userID)
		if err != nil {
			return err
		}
		usage := current - totalTokens
		if usage < 0 {
			usage = 0
		}
		if err := userRepo.UpdateTokenUsage(ctx, userID, usage); err != nil {
			return err
		}

		deleted = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return deleted, nil
}
