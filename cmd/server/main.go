package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"voicenotes/internal/config"
	httpserver "voicenotes/internal/http"
	"voicenotes/internal/logger"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	l := logger.New(cfg.LogLevel)

	// Missing credentials are reported per request as a 500, so the server
	// still starts and answers /api/test-env.
	if err := cfg.MissingCredentials(); err != nil {
		l.Warn(ctx, "missing credentials: %v", err)
	}

	srv, err := httpserver.NewServer(cfg, l)
	if err != nil {
		log.Fatalf("failed to create server: %v", err)
	}

	if err := srv.Run(ctx); err != nil {
		log.Fatalf("server stopped with error: %v", err)
	}
	l.Info(context.Background(), "server stopped")
}
