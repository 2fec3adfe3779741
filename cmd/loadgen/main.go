package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mkarpis/chatdb/internal/loadgen"
	"github.com/mkarpis/chatdb/internal/logging"
)

func main() {

	slogger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	logger := logging.NewSlogLogger(slogger)

	cfg := loadgen.LoadConfig()

	ctx, cancelFunc := context.WithCancel(context.Background())

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		<-sigs
		cancelFunc()
	}()

	h := loadgen.NewHarness(cfg, logger)

	if err := h.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error(ctx, "load generator stopped", "error", err)
		os.Exit(1)
	}

	logger.Info(ctx, "load generator shutting down")
}
