package main

import (
	"context"
	"log"

	"github.com/mkarpis/chatdb/internal/server"
	"github.com/mkarpis/chatdb/internal/server/config"
)

func main() {
	ctx := context.Background()
	cfg := config.LoadConfig()

	app, err := server.NewApp(ctx, cfg)
	if err != nil {
		log.Fatalf("startup: %v", err)
	}

	app.Run(ctx)
}
