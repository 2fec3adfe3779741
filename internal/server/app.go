// Package server initializes and runs the chat database application.
// It wires configuration, logging, the bounded connection pool, schema
// migrations and user seeding, starts the HTTP server and handles
// graceful shutdown on OS signals.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/mkarpis/chatdb/internal/dbx"
	"github.com/mkarpis/chatdb/internal/logging"
	"github.com/mkarpis/chatdb/internal/server/config"
	"github.com/mkarpis/chatdb/internal/server/repositories/repomanager"
	"github.com/mkarpis/chatdb/internal/server/services"
	"github.com/mkarpis/chatdb/internal/server/web"
)

type App struct {
	config *config.Config
	logger logging.Logger
	pool   *dbx.Pool
	web    *web.HTTPServer
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {

	slogger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	logger := logging.NewSlogLogger(slogger)

	pool, err := dbx.NewPool(ctx, dbx.PoolConfig{
		DSN:            cfg.DatabaseDSN,
		MinConns:       cfg.PoolMinConns,
		MaxConns:       cfg.PoolMaxConns,
		AcquireTimeout: cfg.PoolAcquireTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	m := repomanager.NewPostgresRepositoryManager()

	if err := applyMigrations(ctx, pool, m); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	if err := seedUsers(ctx, pool, m, cfg); err != nil {
		pool.Close()
		return nil, fmt.Errorf("user seeding error: %w", err)
	}

	cs := services.NewChatService(pool, m, cfg)
	ns := services.NewNotificationService(pool, m, cfg, logger)

	ws := web.NewHTTPServer(cfg.EndpointAddrHTTP, logger, cs, ns, pool, cfg.DefaultUserID, cfg.ShutdownTimeout)

	return &App{config: cfg, logger: logger, pool: pool, web: ws}, nil
}

// applyMigrations runs the embedded goose migrations over a database/sql
// bridge borrowed from the pgx pool. Closing the bridge releases its
// connections without closing the pool.
func applyMigrations(ctx context.Context, pool *dbx.Pool, m repomanager.RepositoryManager) error {
	db := stdlib.OpenDBFromPool(pool.Conn())
	defer db.Close()
	return m.RunMigrations(ctx, db)
}

// seedUsers makes sure the default user and the deterministic users the
// load harness addresses all exist. The inserts are idempotent, so
// restarts are safe.
func seedUsers(ctx context.Context, pool *dbx.Pool, m repomanager.RepositoryManager, cfg *config.Config) error {
	return dbx.WithTx(ctx, pool, pgx.TxOptions{}, func(ctx context.Context, tx dbx.DBTX) error {
		repo := m.Users(tx)

		email := fmt.Sprintf("user-%.8s@example.com", cfg.DefaultUserID)
		if err := repo.Ensure(ctx, cfg.DefaultUserID, email); err != nil {
			return err
		}

		for i := 0; i < cfg.SeedUserCount; i++ {
			id := fmt.Sprintf("00000000-0000-4000-9000-%012d", i)
			if err := repo.Ensure(ctx, id, fmt.Sprintf("notif-user-%d@example.com", i)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	if err := app.web.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()

	app.pool.Close()
}
