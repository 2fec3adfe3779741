package services

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/mkarpis/chatdb/internal/dbx"
	"github.com/mkarpis/chatdb/internal/logging"
	"github.com/mkarpis/chatdb/internal/server/config"
	"github.com/mkarpis/chatdb/internal/server/models"
	"github.com/mkarpis/chatdb/internal/server/repositories/repomanager"
)

// pollSinceDefault is the far-past cutoff used when a poll request does not
// name one.
var pollSinceDefault = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

// NotificationService provides the notification feed:
// - Broadcast under default or serializable isolation
// - ListNotifications / UnreadCount / MarkAllRead
// - Poll, a bounded long-poll loop inside a single transaction
type NotificationService struct {
	db           dbx.Beginner
	repomanager  repomanager.RepositoryManager
	logger       logging.Logger
	pollInterval time.Duration
	pollAttempts int
}

// NewNotificationService constructs a NotificationService using repositories
// and server config.
func NewNotificationService(db dbx.Beginner, m repomanager.RepositoryManager, cfg *config.Config, logger logging.Logger) *NotificationService {
	return &NotificationService{
		db:           db,
		repomanager:  m,
		logger:       logger.With("module", "notifications"),
		pollInterval: cfg.PollInterval,
		pollAttempts: cfg.PollAttempts,
	}
}

// Broadcast inserts one notification per existing user and returns how many
// were created. Everything runs in a single transaction: read the total
// unread backlog, enumerate user ids, insert per user.
//
// With serializable=false the transaction runs at the store's default
// isolation; users created after the enumeration snapshot are silently
// missed. With serializable=true it runs SERIALIZABLE, and the store may
// abort one of two overlapping broadcasts; that surfaces as
// common.ErrSerializationFailure and is never retried here.
func (s *NotificationService) Broadcast(ctx context.Context, ntype string, payload models.Payload, serializable bool) (int, error) {
	opts := pgx.TxOptions{}
	if serializable {
		opts.IsoLevel = pgx.Serializable
	}

	recipients := 0
	err := dbx.WithTx(ctx, s.db, opts, func(ctx context.Context, tx dbx.DBTX) error {
		userRepo := s.repomanager.Users(tx)
		notifRepo := s.repomanager.Notifications(tx)

		backlog, err := notifRepo.CountUnreadAll(ctx)
		if err != nil {
			return err
		}
		s.logger.Info(ctx, "broadcasting", "type", ntype, "serializable", serializable, "unread_backlog", backlog)

		ids, err := userRepo.ListIDs(ctx)
		if err != nil {
			return err
		}
		for _, id := range ids {
			if err := notifRepo.Create(ctx, id, ntype, payload); err != nil {
				return err
			}
		}
		recipients = len(ids)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return recipients, nil
}

// ListNotifications returns the user's notifications newest first. When a
// payload carries a conversation_id, the conversation title is attached
// best-effort; a missing or invalid reference leaves the title nil.
func (s *NotificationService) ListNotifications(ctx context.Context, userID string) ([]*models.NotificationWithTitle, error) {
	var result []*models.NotificationWithTitle
	err := dbx.WithTx(ctx, s.db, pgx.TxOptions{}, func(ctx context.Context, tx dbx.DBTX) error {
		notifRepo := s.repomanager.Notifications(tx)
		convRepo := s.repomanager.Conversations(tx)

		notifs, err := notifRepo.ListByUser(ctx, userID)
		if err != nil {
			return err
		}

		result = make([]*models.NotificationWithTitle, 0, len(notifs))
		for _, n := range notifs {
			item := &models.NotificationWithTitle{Notification: *n}
			if convID, ok := n.Payload.ConversationID(); ok {
				if title, err := convRepo.GetTitle(ctx, convID); err == nil {
					item.ConversationTitle = &title
				}
			}
			result = append(result, item)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// UnreadCount returns the number of unread notifications for the user.
func (s *NotificationService) UnreadCount(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := dbx.WithTx(ctx, s.db, pgx.TxOptions{}, func(ctx context.Context, tx dbx.DBTX) error {
		var txErr error
		count, txErr = s.repomanager.Notifications(tx).CountUnread(ctx, userID)
		return txErr
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// MarkAllRead marks every unread notification for the user as read, one
// update per row inside the operation's single transaction, and returns
// how many rows the unread snapshot held.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) (int, error) {
	marked := 0
	err := dbx.WithTx(ctx, s.db, pgx.TxOptions{}, func(ctx context.Context, tx dbx.DBTX) error {
		notifRepo := s.repomanager.Notifications(tx)

		ids, err := notifRepo.ListUnreadIDs(ctx, userID)
		if err != nil {
			return err
		}
		for _, id := range ids {
			if err := notifRepo.MarkRead(ctx, id); err != nil {
				return err
			}
		}
		marked = len(ids)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return marked, nil
}

// Poll long-polls for notifications created after since (zero means
// 2000-01-01T00:00:00Z). It queries up to pollAttempts times at
// pollInterval spacing and returns as soon as rows appear, or an empty
// slice when the budget runs out.
//
// The whole retry loop, sleeps included, runs inside one transaction on
// one pooled connection.
func (s *NotificationService) Poll(ctx context.Context, userID string, since time.Time) ([]*models.Notification, error) {
	if since.IsZero() {
		since = pollSinceDefault
	}

	var found []*models.Notification
	err := dbx.WithTx(ctx, s.db, pgx.TxOptions{}, func(ctx context.Context, tx dbx.DBTX) error {
		notifRepo := s.repomanager.Notifications(tx)

		for i := 0; i < s.pollAttempts; i++ {
			rows, err := notifRepo.ListCreatedAfter(ctx, userID, since)
			if err != nil {
				return err
			}
			if len(rows) > 0 {
				found = rows
				return nil
			}
			if err := s.sleepBetweenAttempts(ctx); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		found = []*models.Notification{}
	}
	return found, nil
}

func (s *NotificationService) sleepBetweenAttempts(ctx context.Context) error {
	t := time.NewTimer(s.pollInterval)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
