// Package dbx provides tiny DB abstractions shared by repositories:
// a minimal interface (DBTX) implemented by pgx pools, connections and
// transactions, a helper to run functions inside a transaction, and a
// bounded wrapper around pgxpool.
package dbx

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the subset of pgx used by our repos.
// *pgxpool.Pool, *pgxpool.Conn and pgx.Tx all satisfy this interface.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Beginner starts transactions. *Pool satisfies this interface, applying
// its acquisition wait bound; mocks can stand in for tests.
type Beginner interface {
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// WithTx begins a transaction, runs fn with a transactional handle, and then
// commits on success or rolls back on error/panic. Panics are rethrown.
// The returned error is passed through MapError so driver-level
// serialization and constraint failures match the common sentinels.
//
// The transaction holds one pooled connection for its whole lifetime,
// including any time fn spends sleeping or waiting.
//
// Typical use:
//
//	err := dbx.WithTx(ctx, pool, pgx.TxOptions{}, func(ctx context.Context, tx dbx.DBTX) error {
//	    // use tx instead of the pool
//	    _, err := tx.Exec(ctx, "UPDATE ...")
//	    return err
//	})
func WithTx(ctx context.Context, db Beginner, opts pgx.TxOptions, fn func(ctx context.Context, tx DBTX) error) (err error) {
	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback(ctx)
			err = MapError(err)
			return
		}
		err = MapError(tx.Commit(ctx))
	}()

	err = fn(ctx, tx)
	return err
}
