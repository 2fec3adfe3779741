package dbx

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mkarpis/chatdb/internal/common"
)

// PoolConfig carries the tunables for NewPool. A zero MaxConns keeps the
// driver default; a zero AcquireTimeout disables the wait bound so
// acquisition blocks until a connection frees up or ctx is cancelled.
type PoolConfig struct {
	DSN            string
	MinConns       int32
	MaxConns       int32
	AcquireTimeout time.Duration
}

// PoolStat is a snapshot of pool occupancy plus the configured bounds.
type PoolStat struct {
	TotalConns    int32
	IdleConns     int32
	AcquiredConns int32
	MinConns      int32
	MaxConns      int32
}

// Pool wraps pgxpool with a bounded acquire: when every connection is busy
// longer than AcquireTimeout, callers get common.ErrPoolExhausted instead
// of waiting forever. The pool keeps MinConns connections warm and never
// opens more than MaxConns.
type Pool struct {
	pool           *pgxpool.Pool
	acquireTimeout time.Duration
}

// NewPool parses the DSN, applies the size bounds and constructs the pool.
// Connections are established lazily; use Ping to verify reachability.
func NewPool(ctx context.Context, cfg PoolConfig) (*Pool, error) {
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing dsn: %w", err)
	}

	pc.MinConns = cfg.MinConns
	if cfg.MaxConns > 0 {
		pc.MaxConns = cfg.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("creating pool: %w", err)
	}

	return &Pool{pool: pool, acquireTimeout: cfg.AcquireTimeout}, nil
}

// BeginTx starts a transaction on a pooled connection, waiting at most
// AcquireTimeout for one to become free. The connection stays leased to
// the returned transaction until Commit or Rollback.
func (p *Pool) BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error) {
	if p.acquireTimeout <= 0 {
		return p.pool.BeginTx(ctx, txOptions)
	}

	acquireCtx, cancel := context.WithTimeout(ctx, p.acquireTimeout)
	defer cancel()

	tx, err := p.pool.BeginTx(acquireCtx, txOptions)
	if err != nil {
		return nil, p.classifyAcquireErr(ctx, err)
	}
	return tx, nil
}

// Ping acquires a connection and verifies the server answers, within the
// same wait bound as BeginTx.
func (p *Pool) Ping(ctx context.Context) error {
	if p.acquireTimeout <= 0 {
		return p.pool.Ping(ctx)
	}

	acquireCtx, cancel := context.WithTimeout(ctx, p.acquireTimeout)
	defer cancel()

	if err := p.pool.Ping(acquireCtx); err != nil {
		return p.classifyAcquireErr(ctx, err)
	}
	return nil
}

// classifyAcquireErr distinguishes "the wait bound elapsed" from "the
// caller gave up": only the former becomes ErrPoolExhausted.
func (p *Pool) classifyAcquireErr(parent context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) && parent.Err() == nil {
		return fmt.Errorf("%w: no connection became available within %s", common.ErrPoolExhausted, p.acquireTimeout)
	}
	return err
}

// Stat reports current occupancy and the configured bounds. Intended for
// the health endpoint and metrics collectors; the data layer does not
// consult it.
func (p *Pool) Stat() PoolStat {
	s := p.pool.Stat()
	return PoolStat{
		TotalConns:    s.TotalConns(),
		IdleConns:     s.IdleConns(),
		AcquiredConns: s.AcquiredConns(),
		MinConns:      p.pool.Config().MinConns,
		MaxConns:      s.MaxConns(),
	}
}

// Conn exposes the underlying pgx pool for integrations that need it,
// such as the database/sql bridge used by migrations.
func (p *Pool) Conn() *pgxpool.Pool {
	return p.pool
}

// Close releases all pooled connections.
func (p *Pool) Close() {
	p.pool.Close()
}
