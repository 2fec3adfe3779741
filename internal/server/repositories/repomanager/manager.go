package repomanager

import (
	"context"
	"database/sql"

	"github.com/mkarpis/chatdb/internal/dbx"
	"github.com/mkarpis/chatdb/internal/server/repositories/conversations"
	"github.com/mkarpis/chatdb/internal/server/repositories/messages"
	"github.com/mkarpis/chatdb/internal/server/repositories/notifications"
	"github.com/mkarpis/chatdb/internal/server/repositories/users"
)

// RepositoryManager vends repositories bound to a DBTX, so services can
// run several repositories against the same transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Conversations(db dbx.DBTX) conversations.Repository
	Messages(db dbx.DBTX) messages.Repository
	Notifications(db dbx.DBTX) notifications.Repository
}
