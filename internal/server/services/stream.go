package services

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/mkarpis/chatdb/internal/common"
	"github.com/mkarpis/chatdb/internal/dbx"
)

// Canned response fragments the simulator assembles replies from.
var responseFragments = []string{
	"I understand your question. ",
	"Let me think about that. ",
	"Based on my analysis, ",
	"there are several factors to consider. ",
	"First, we should look at ",
	"the underlying assumptions. ",
	"Additionally, it's worth noting that ",
	"this relates to broader patterns ",
	"in the field. ",
	"To summarize, ",
	"the key insight is that ",
	"we need to balance multiple considerations. ",
	"I hope this helps clarify things. ",
	"Let me know if you have follow-up questions.",
}

// pickFragments samples n fragments without replacement, where n is chosen
// uniformly between min and len(responseFragments).
func pickFragments(min int) []string {
	n := min + rand.Intn(len(responseFragments)-min+1)
	out := make([]string, 0, n)
	for _, i := range rand.Perm(len(responseFragments))[:n] {
		out = append(out, responseFragments[i])
	}
	return out
}

// StreamMessage simulates an incrementally generated assistant reply.
//
// In one transaction: insert the user's message, then emit 5 or more
// fragments with a random delay of streamDelayMin..streamDelayMax before
// each one. The connection and transaction stay held across every delay.
// After the last fragment: insert the assembled assistant message with a
// word-count token estimate, bump message_count by two, and apply one
// combined token accounting update for both messages.
//
// Returns the emitted fragments. A missing conversation surfaces as
// common.ErrorNotFound.
func (s *ChatService) StreamMessage(ctx context.Context, conversationID string, content string, tokenCount int) ([]string, error) {
	selected := pickFragments(5)

	var chunks []string
	err := dbx.WithTx(ctx, s.db, pgx.TxOptions{}, func(ctx context.Context, tx dbx.DBTX) error {
		msgRepo := s.repomanager.Messages(tx)
		convRepo := s.repomanager.Conversations(tx)
		userRepo := s.repomanager.Users(tx)

		if _, err := msgRepo.Create(ctx, conversationID, common.RoleUser, content, tokenCount); err != nil {
			return err
		}

		var full strings.Builder
		totalTokens := 0
		for _, chunk := range selected {
			if err := s.sleepBetweenChunks(ctx); err != nil {
				return err
			}
			full.WriteString(chunk)
			totalTokens += len(strings.Fields(chunk))
			chunks = append(chunks, chunk)
		}

		if _, err := msgRepo.Create(ctx, conversationID, common.RoleAssistant, full.String(), totalTokens); err != nil {
			return err
		}

		if err := convRepo.IncrementMessageCount(ctx, conversationID, 2); err != nil {
			return err
		}

		userID, err := convRepo.GetOwner(ctx, conversationID)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return nil
			}
			return err
		}

		current, err := userRepo.GetTokenUsage(ctx, userID)
		if err != nil {
			return err
		}
		return userRepo.UpdateTokenUsage(ctx, userID, current+int64(tokenCount)+int64(totalTokens))
	})
	if err != nil {
		return nil, err
	}
	return chunks, nil
}

// sleepBetweenChunks waits a uniform random duration in
// [streamDelayMin, streamDelayMax], abandoning the wait if ctx ends.
func (s *ChatService) sleepBetweenChunks(ctx context.Context) error {
	d := s.streamDelayMin
	if s.streamDelayMax > s.streamDelayMin {
		d += time.Duration(rand.Int63n(int64(s.streamDelayMax - s.streamDelayMin)))
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
